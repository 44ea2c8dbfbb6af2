package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"keuangan/internal/core"
	"keuangan/internal/log"
	"keuangan/internal/services"
	"keuangan/internal/view"
)

// pageData feeds index.html and ledger.html.
type pageData struct {
	view.View
	Today         string
	ChartJSON     string
	DeletePrompt  string
	SheetsEnabled bool
}

func (s *Server) pageData(r *http.Request) pageData {
	v := s.ledger.View(r.Context())
	chart, err := json.Marshal(v.Chart)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart encoding failed", log.FieldError, err)
	}
	return pageData{
		View:          v,
		Today:         time.Now().Format(core.DateLayout),
		ChartJSON:     string(chart),
		DeletePrompt:  services.PromptDelete,
		SheetsEnabled: s.config.SheetsEnabled,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", s.pageData(r))
}

// handleLedgerPartial re-renders the table, summary and chart. The page asks
// for it on every ledger:changed event.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "ledger.html", s.pageData(r))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady reports whether templates loaded and a ledger is attached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "ledger": "ok"}
	status, code := "ready", http.StatusOK
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.ledger == nil {
		checks["ledger"] = "failed: no ledger"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["transactions"] = strconv.Itoa(s.ledger.Snapshot().Len())
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
