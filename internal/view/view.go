// Package view projects a ledger snapshot into what the user sees: the
// transaction table, the summary figures and the chart series.
package view

import (
	"strconv"

	"keuangan/internal/core"
	"keuangan/internal/format"
	"keuangan/internal/ledger"
)

// EmptyMessage is shown in place of the table when there are no transactions.
const EmptyMessage = "Belum ada transaksi"

// Chart labels and colors.
const (
	ChartLabel   = "Jumlah (Rp)"
	LabelIncome  = "Pemasukan"
	LabelExpense = "Pengeluaran"
	LabelBalance = "Saldo"
)

// ChartColors are the bar colors for income, expense and balance.
var ChartColors = [3]string{"rgba(40, 167, 69, 0.7)", "rgba(220, 53, 69, 0.7)", "rgba(0, 123, 255, 0.7)"}

type (
	// Row is one line of the transaction table.
	Row struct {
		ID          int64  `json:"id"`
		Date        string `json:"date"`
		Description string `json:"description"`
		TypeLabel   string `json:"typeLabel"`
		Amount      string `json:"amount"`
		Income      bool   `json:"income"`
		Empty       bool   `json:"empty,omitempty"`
		Message     string `json:"message,omitempty"`
	}

	// Summary holds the totals and their display strings.
	Summary struct {
		Totals   core.Summary `json:"-"`
		Income   string       `json:"income"`
		Expense  string       `json:"expense"`
		Balance  string       `json:"balance"`
		Positive bool         `json:"positive"`
	}

	// Chart is the bar chart dataset.
	Chart struct {
		Label  string     `json:"label"`
		Labels [3]string  `json:"labels"`
		Values [3]float64 `json:"values"`
		Colors [3]string  `json:"colors"`
	}

	// View is the complete projection of one snapshot.
	View struct {
		Rows    []Row   `json:"rows"`
		Summary Summary `json:"summary"`
		Chart   Chart   `json:"chart"`
		Count   int     `json:"count"`
	}
)

// Project recomputes every derived view from s. It is pure.
func Project(s ledger.Snapshot) View {
	sum := s.Summarize()
	return View{
		Rows:    Rows(s),
		Summary: NewSummary(sum),
		Chart:   NewChart(sum),
		Count:   s.Len(),
	}
}

// Rows renders the table rows in ledger order. An empty ledger yields a single
// placeholder row.
func Rows(s ledger.Snapshot) []Row {
	if s.Empty() {
		return []Row{{Empty: true, Message: EmptyMessage}}
	}
	txs := s.Transactions()
	rows := make([]Row, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, Row{
			ID:          t.ID,
			Date:        format.LongDate(t.Date),
			Description: t.Description,
			TypeLabel:   t.Type.Label(),
			Amount:      format.Signed(t.Amount, t.Type),
			Income:      t.Type.IsIncome(),
		})
	}
	return rows
}

// NewSummary formats totals for display.
func NewSummary(sum core.Summary) Summary {
	return Summary{
		Totals:   sum,
		Income:   format.Currency(sum.Income),
		Expense:  format.Currency(sum.Expense),
		Balance:  format.Currency(sum.Balance),
		Positive: !sum.Balance.IsNegative(),
	}
}

// NewChart reshapes totals into the chart dataset.
func NewChart(sum core.Summary) Chart {
	return Chart{
		Label:  ChartLabel,
		Labels: [3]string{LabelIncome, LabelExpense, LabelBalance},
		Values: sum.Series(),
		Colors: ChartColors,
	}
}

// IDString renders a row id for use in URLs and form values.
func (r Row) IDString() string {
	return strconv.FormatInt(r.ID, 10)
}
