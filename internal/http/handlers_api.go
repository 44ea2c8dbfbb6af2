package http

import (
	"net/http"

	"keuangan/internal/view"
)

// summaryResponse carries the totals both as numbers and as display text.
type summaryResponse struct {
	Income  float64      `json:"income"`
	Expense float64      `json:"expense"`
	Balance float64      `json:"balance"`
	Count   int          `json:"count"`
	Display view.Summary `json:"display"`
}

func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Transactions(r.Context()))
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	v := s.ledger.View(r.Context())
	series := v.Summary.Totals.Series()
	writeJSON(w, http.StatusOK, summaryResponse{
		Income:  series[0],
		Expense: series[1],
		Balance: series[2],
		Count:   v.Count,
		Display: v.Summary,
	})
}

func (s *Server) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.View(r.Context()).Chart)
}
