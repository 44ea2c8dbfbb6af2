package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"keuangan/internal/view"
)

// markdownTable renders the transaction rows as a markdown table.
func markdownTable(rows []view.Row) string {
	var b strings.Builder
	b.WriteString("| ID | Tanggal | Keterangan | Jenis | Jumlah |\n")
	b.WriteString("|---:|---|---|---|---:|\n")
	for _, r := range rows {
		if r.Empty {
			fmt.Fprintf(&b, "| | | %s | | |\n", cell(r.Message))
			continue
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			r.ID, cell(r.Date), cell(r.Description), r.TypeLabel, cell(r.Amount))
	}
	return b.String()
}

// markdownSummary renders the totals as a markdown list.
func markdownSummary(s view.Summary, count int) string {
	var b strings.Builder
	b.WriteString("## Ringkasan\n\n")
	fmt.Fprintf(&b, "- **%s:** %s\n", view.LabelIncome, s.Income)
	fmt.Fprintf(&b, "- **%s:** %s\n", view.LabelExpense, s.Expense)
	fmt.Fprintf(&b, "- **%s:** %s\n", view.LabelBalance, s.Balance)
	fmt.Fprintf(&b, "- **Transaksi:** %d\n", count)
	return b.String()
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// writeMarkdown prints md styled for the terminal, or raw when plain is set.
func writeMarkdown(w io.Writer, md string, plain bool) error {
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
