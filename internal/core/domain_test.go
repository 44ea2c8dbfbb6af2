package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		in   Candidate
		want error
	}{
		{"ok", Candidate{Date: "2024-01-15", Description: "Salary", Amount: "5000000", Type: Income}, nil},
		{"ok comma", Candidate{Date: "2024-01-15", Description: "Kopi", Amount: "12,5", Type: Expense}, nil},
		{"missing date", Candidate{Date: "", Description: "x", Amount: "1"}, ErrMissingDate},
		{"blank date", Candidate{Date: "   ", Description: "x", Amount: "1"}, ErrMissingDate},
		{"missing description", Candidate{Date: "2024-01-15", Description: "  \t", Amount: "1"}, ErrMissingDescription},
		{"empty amount", Candidate{Date: "2024-01-15", Description: "x", Amount: ""}, ErrInvalidAmount},
		{"zero amount", Candidate{Date: "2024-01-15", Description: "x", Amount: "0"}, ErrInvalidAmount},
		{"negative amount", Candidate{Date: "2024-01-15", Description: "x", Amount: "-5"}, ErrInvalidAmount},
		{"text amount", Candidate{Date: "2024-01-15", Description: "x", Amount: "abc"}, ErrInvalidAmount},
		{"nan amount", Candidate{Date: "2024-01-15", Description: "x", Amount: "NaN"}, ErrInvalidAmount},
		{"inf amount", Candidate{Date: "2024-01-15", Description: "x", Amount: "+Inf"}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.in)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	d, err := Validate(Candidate{Date: " 2024-01-15 ", Description: "  Gaji bulanan  ", Amount: " 2,50 ", Type: Income})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Description != "Gaji bulanan" {
		t.Fatalf("description not trimmed: %q", d.Description)
	}
	if d.Date != "2024-01-15" {
		t.Fatalf("date not trimmed: %q", d.Date)
	}
	if d.Amount != 2.5 {
		t.Fatalf("amount = %v, want 2.5", d.Amount)
	}
	if d.Type != Income {
		t.Fatalf("type = %q", d.Type)
	}
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"pemasukan", Income, true},
		{"Income", Income, true},
		{"PENGELUARAN", Expense, true},
		{" expense ", Expense, true},
		{"", "", false},
		{"incme", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseType(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseType(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTypeLabel(t *testing.T) {
	if Income.Label() != "Pemasukan" {
		t.Fatalf("income label = %q", Income.Label())
	}
	if Expense.Label() != "Pengeluaran" {
		t.Fatalf("expense label = %q", Expense.Label())
	}
	// Unknown types fall on the expense side, like the totals do.
	if Type("lainnya").Label() != "Pengeluaran" {
		t.Fatalf("unknown label = %q", Type("lainnya").Label())
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(nil)
	if !s.Income.IsZero() || !s.Expense.IsZero() || !s.Balance.IsZero() {
		t.Fatalf("empty summary not zero: %+v", s)
	}

	txs := []Transaction{
		{ID: 1, Amount: 5000000, Type: Income},
		{ID: 2, Amount: 20000, Type: Expense},
		{ID: 3, Amount: 0.1, Type: Expense},
		{ID: 4, Amount: 0.2, Type: Expense},
	}
	s = Summarize(txs)
	if !s.Income.Equal(decimal.NewFromInt(5000000)) {
		t.Fatalf("income = %s", s.Income)
	}
	if !s.Expense.Equal(decimal.RequireFromString("20000.3")) {
		t.Fatalf("expense = %s", s.Expense)
	}
	if !s.Balance.Equal(s.Income.Sub(s.Expense)) {
		t.Fatalf("balance = %s", s.Balance)
	}
	series := s.Series()
	if series[0] != 5000000 || series[1] != 20000.3 {
		t.Fatalf("series = %v", series)
	}
}

func TestErrorKinds(t *testing.T) {
	pe := &PersistenceError{Op: "save", Err: errors.New("quota")}
	if !errors.Is(pe, ErrPersistence) {
		t.Fatalf("persistence error does not match sentinel")
	}
	fe := &FileReadError{Name: "b.json", Err: errors.New("eof")}
	if !errors.Is(fe, ErrFileRead) {
		t.Fatalf("file read error does not match sentinel")
	}
	ie := NewImportError(ErrIncompleteRecord, 2, "amount", nil)
	if !errors.Is(ie, ErrIncompleteRecord) || errors.Is(ie, ErrMalformedPayload) {
		t.Fatalf("import error kind mismatch: %v", ie)
	}
	if ie.Error() != `incomplete record at record 2 (field "amount")` {
		t.Fatalf("import error message = %q", ie.Error())
	}
}
