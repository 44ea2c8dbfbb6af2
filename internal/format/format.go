// Package format renders amounts and dates for display in Indonesian locale.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"keuangan/internal/core"
)

const (
	decimalSep  = ","
	thousandSep = "."
	fraction    = 2
)

var rupiah = money.NewFormatter(fraction, decimalSep, thousandSep, "Rp ", "$1")

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// Currency formats an amount as rupiah, e.g. "Rp 5.000.000" or "Rp 12,5".
// Up to two fraction digits are shown and trailing zeros are dropped.
func Currency(d decimal.Decimal) string {
	minor := d.Round(fraction).Shift(fraction).IntPart()
	s := rupiah.Format(minor)
	if i := strings.LastIndex(s, decimalSep); i >= 0 {
		frac := strings.TrimRight(s[i+1:], "0")
		if frac == "" {
			s = s[:i]
		} else {
			s = s[:i+1] + frac
		}
	}
	return s
}

// CurrencyFloat formats a float amount as rupiah.
func CurrencyFloat(v float64) string {
	return Currency(decimal.NewFromFloat(v))
}

// Signed prefixes the formatted amount with "+ " for income and "- " otherwise.
func Signed(amount float64, t core.Type) string {
	sign := "- "
	if t.IsIncome() {
		sign = "+ "
	}
	return sign + CurrencyFloat(amount)
}

// LongDate turns "2024-01-15" into "15 Januari 2024". Anything that does not
// parse as a calendar date is returned unchanged.
func LongDate(s string) string {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return s
	}
	return LongTime(t)
}

// LongTime formats t as a long Indonesian date.
func LongTime(t time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(t.Day()))
	b.WriteByte(' ')
	b.WriteString(months[t.Month()-1])
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(t.Year()))
	return b.String()
}
