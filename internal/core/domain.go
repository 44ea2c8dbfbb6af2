package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	Income  Type = "pemasukan"
	Expense Type = "pengeluaran"
)

// DateLayout is the calendar date form stored in every transaction.
const DateLayout = "2006-01-02"

type (
	// Type tells whether an amount adds to or subtracts from the balance.
	Type string

	// Transaction is a single income or expense record. It is never edited in place:
	// it is replaced by a delete followed by a create, or by a bulk restore.
	Transaction struct {
		ID          int64     `json:"id"`
		Date        string    `json:"date"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		Type        Type      `json:"type"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Candidate holds raw user input before validation.
	Candidate struct {
		Date        string
		Description string
		Amount      string
		Type        Type
	}

	// Draft is a validated, normalized candidate that still lacks an id.
	Draft struct {
		Date        string
		Description string
		Amount      float64
		Type        Type
	}
)

// Label returns the display label for the type. Anything that is not Income is
// shown and counted as an expense.
func (t Type) Label() string {
	if t == Income {
		return "Pemasukan"
	}
	return "Pengeluaran"
}

// IsIncome reports whether the type adds to the balance.
func (t Type) IsIncome() bool {
	return t == Income
}

// ParseType maps user-facing text to a Type.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pemasukan", "income", "in":
		return Income, true
	case "pengeluaran", "expense", "out":
		return Expense, true
	default:
		return "", false
	}
}

// Validate checks a candidate entry against the required-field and positivity
// rules and returns the normalized draft.
func Validate(c Candidate) (Draft, error) {
	date := strings.TrimSpace(c.Date)
	if date == "" {
		return Draft{}, &ValidationError{Field: "date", Err: ErrMissingDate}
	}
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		return Draft{}, &ValidationError{Field: "description", Err: ErrMissingDescription}
	}
	amount, err := ParseAmount(c.Amount)
	if err != nil {
		return Draft{}, &ValidationError{Field: "amount", Err: err}
	}
	return Draft{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Type:        c.Type,
	}, nil
}

// ParseAmount converts user text to a positive finite amount.
// Both dot (12.5) and comma (12,5) decimal separators are accepted.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
