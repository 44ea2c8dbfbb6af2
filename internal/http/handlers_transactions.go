package http

import (
	"context"
	"errors"
	"net/http"

	"keuangan/internal/core"
	"keuangan/internal/log"
	"keuangan/internal/notify"
	"keuangan/internal/services"
)

// handleCreate adds one transaction from a form post or a JSON body.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse body error", log.FieldError, err)
		BadRequestError("Format permintaan tidak valid").Write(w)
		return
	}

	out, err := s.ledger.Create(r.Context(), p.Candidate())
	if err != nil {
		status := http.StatusInternalServerError
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			status = http.StatusUnprocessableEntity
		}
		if p.IsJSON() {
			writeError(w, status, firstMessage(out.Notices, notify.MsgCreateFailed))
			return
		}
		NewHTMXResponse().Status(status).NotifyAll(out.Notices).Write(w)
		return
	}

	if p.IsJSON() {
		writeJSON(w, http.StatusCreated, out.Snapshot.Transactions()[0])
		return
	}
	NewHTMXResponse().
		NotifyAll(out.Notices).
		TriggerLedgerChanged(out.Snapshot.Len()).
		TriggerFormReset().
		Write(w)
}

// handleDelete removes one transaction. The client must send confirmed=true,
// which the page does after hx-confirm.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError("ID transaksi tidak valid").Write(w)
		return
	}

	confirmed := IsConfirmed(r)
	out, err := s.ledger.Delete(r.Context(), id, services.ConfirmFunc(func(context.Context, string) (bool, error) {
		return confirmed, nil
	}))
	if err != nil {
		NewHTMXResponse().Status(http.StatusInternalServerError).NotifyAll(out.Notices).Write(w)
		return
	}
	if out.Declined {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().
		NotifyAll(out.Notices).
		TriggerLedgerChanged(out.Snapshot.Len()).
		Write(w)
}

func firstMessage(ns []notify.Notification, fallback string) string {
	for _, n := range ns {
		if n.Severity == notify.Error {
			return n.Message
		}
	}
	return fallback
}
