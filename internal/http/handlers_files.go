package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"keuangan/internal/impexp"
	"keuangan/internal/log"
	"keuangan/internal/notify"
	"keuangan/internal/services"
)

// MsgNoPendingRestore is shown when a restore answer arrives for a prompt that
// is no longer open.
const MsgNoPendingRestore = "Tidak ada pemulihan data yang menunggu konfirmasi."

// restoreData feeds restore_confirm.html.
type restoreData struct {
	Token  string
	Name   string
	Count  int
	Prompt string
}

// handleBackup serves the JSON backup. An htmx request only checks that there
// is something to download and redirects the browser to the file.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	s.serveDownload(w, r, "/backup", notify.MsgBackupEmpty, notify.MsgBackupDone, s.ledger.Backup)
}

// handleExport serves the tabular export the same way as handleBackup.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.serveDownload(w, r, "/export.csv", notify.MsgExportEmpty, notify.MsgExportDone, s.ledger.Export)
}

func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request, path, emptyMsg, doneMsg string,
	produce func(context.Context) (services.Download, services.Outcome, error)) {
	if isHTMX(r) {
		if s.ledger.Snapshot().Empty() {
			NewHTMXResponse().Notify(notify.Warn(emptyMsg)).Write(w)
			return
		}
		NewHTMXResponse().
			Notify(notify.Ok(doneMsg)).
			Header("HX-Redirect", path).
			Write(w)
		return
	}

	dl, out, err := produce(r.Context())
	if errors.Is(err, services.ErrNothingToExport) {
		http.Error(w, firstNotice(out.Notices, emptyMsg), http.StatusNotFound)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Download failed", log.FieldError, err, "path", path)
		http.Error(w, firstNotice(out.Notices, notify.MsgExportFailed), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	ref, out, err := s.ledger.ExportToSheets(r.Context())
	status := http.StatusOK
	switch {
	case err == nil:
		log.FromContext(r.Context()).InfoContext(r.Context(), "Exported to sheets", "range", ref)
	case errors.Is(err, services.ErrNothingToExport):
	case errors.Is(err, services.ErrSheetsDisabled):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusBadGateway
	}
	NewHTMXResponse().Status(status).NotifyAll(out.Notices).Write(w)
}

// handleRestoreUpload reads the chosen backup, checks it and stages it. The
// ledger is untouched until the user answers the prompt.
func (s *Server) handleRestoreUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.config.MaxRestoreBytes {
		ErrorResponse(http.StatusRequestEntityTooLarge, notify.MsgFileReadFailed).Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRestoreBytes)
	if err := r.ParseMultipartForm(s.config.MaxRestoreBytes); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Restore upload rejected", log.FieldError, err)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ErrorResponse(status, notify.MsgFileReadFailed).Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(FieldRestoreFile)
	if errors.Is(err, http.ErrMissingFile) {
		// nothing chosen
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		ErrorResponse(http.StatusBadRequest, notify.MsgFileReadFailed).Write(w)
		return
	}
	defer file.Close()

	strict, _ := strconv.ParseBool(r.FormValue("strict"))
	pending, out, err := s.ledger.PrepareRestore(r.Context(), header.Filename, file, impexp.ImportOptions{Strict: strict})
	if err != nil {
		NewHTMXResponse().Status(http.StatusUnprocessableEntity).NotifyAll(out.Notices).Write(w)
		return
	}

	staged := &stagedRestore{token: uuid.NewString(), restore: pending}
	s.mu.Lock()
	s.pending = staged
	s.mu.Unlock()

	body, err := s.renderString("restore_confirm.html", restoreData{
		Token:  staged.token,
		Name:   pending.Name,
		Count:  pending.Count(),
		Prompt: pending.Prompt(),
	})
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Restore prompt render failed", log.FieldError, err)
		InternalServerError(notify.MsgRestoreFailed).Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleRestoreConfirm(w http.ResponseWriter, r *http.Request) {
	s.answerRestore(w, r, true)
}

func (s *Server) handleRestoreCancel(w http.ResponseWriter, r *http.Request) {
	s.answerRestore(w, r, false)
}

func (s *Server) answerRestore(w http.ResponseWriter, r *http.Request, yes bool) {
	staged := s.takePending(r.FormValue("token"))
	if staged == nil {
		ErrorResponse(http.StatusConflict, MsgNoPendingRestore).TriggerRestoreClosed().Write(w)
		return
	}

	answer := services.ConfirmFunc(func(context.Context, string) (bool, error) { return yes, nil })
	out, err := s.ledger.Restore(r.Context(), staged.restore, answer)
	if err != nil {
		NewHTMXResponse().Status(http.StatusInternalServerError).NotifyAll(out.Notices).TriggerRestoreClosed().Write(w)
		return
	}
	b := NewHTMXResponse().NotifyAll(out.Notices).TriggerRestoreClosed()
	if !out.Declined {
		b.TriggerLedgerChanged(out.Snapshot.Len())
	}
	b.Write(w)
}

// takePending removes and returns the staged restore if token matches it.
func (s *Server) takePending(token string) *stagedRestore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.token != token {
		return nil
	}
	staged := s.pending
	s.pending = nil
	return staged
}

func firstNotice(ns []notify.Notification, fallback string) string {
	if len(ns) > 0 {
		return ns[len(ns)-1].Message
	}
	return fallback
}
