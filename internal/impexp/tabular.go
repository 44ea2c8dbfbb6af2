package impexp

import (
	"bytes"
	"strconv"
	"strings"

	"keuangan/internal/core"
	"keuangan/internal/format"
)

// TabularHeader is the first row of every tabular export.
var TabularHeader = []string{"Tanggal", "Keterangan", "Jenis", "Jumlah (Rp)"}

// TabularRows returns the header followed by one row per transaction: long
// date, description, type label and plain amount.
func TabularRows(txs []core.Transaction) [][]string {
	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, TabularHeader)
	for _, t := range txs {
		rows = append(rows, []string{
			format.LongDate(t.Date),
			t.Description,
			t.Type.Label(),
			formatAmount(t.Amount),
		})
	}
	return rows
}

// ExportTabular writes the rows as comma separated text. Date and description
// are always quoted, with embedded quotes doubled.
func ExportTabular(txs []core.Transaction) []byte {
	var buf bytes.Buffer
	for i, row := range TabularRows(txs) {
		if i == 0 {
			buf.WriteString(strings.Join(row, ","))
		} else {
			buf.WriteString(quote(row[0]))
			buf.WriteByte(',')
			buf.WriteString(quote(row[1]))
			buf.WriteByte(',')
			buf.WriteString(row[2])
			buf.WriteByte(',')
			buf.WriteString(row[3])
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
