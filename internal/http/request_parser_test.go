package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"keuangan/internal/core"
)

func TestRequestBodyParser_Candidate(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        core.Candidate
	}{
		{
			name:        "form",
			body:        "date=2024-01-15&description=Salary&amount=5000000&type=pemasukan",
			contentType: "application/x-www-form-urlencoded",
			want:        core.Candidate{Date: "2024-01-15", Description: "Salary", Amount: "5000000", Type: core.Income},
		},
		{
			name:        "json with number amount",
			body:        `{"date":"2024-01-15","description":"Kopi","amount":12.5,"type":"expense"}`,
			contentType: "application/json",
			want:        core.Candidate{Date: "2024-01-15", Description: "Kopi", Amount: "12.5", Type: core.Expense},
		},
		{
			name:        "control characters stripped",
			body:        "date=2024-01-15&description=%20Ka%07fe%20&amount=1&type=pengeluaran",
			contentType: "application/x-www-form-urlencoded",
			want:        core.Candidate{Date: "2024-01-15", Description: "Kafe", Amount: "1", Type: core.Expense},
		},
		{
			name:        "unknown type kept",
			body:        "date=2024-01-15&description=x&amount=1&type=lainnya",
			contentType: "application/x-www-form-urlencoded",
			want:        core.Candidate{Date: "2024-01-15", Description: "x", Amount: "1", Type: core.Type("lainnya")},
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/x-www-form-urlencoded",
			want:        core.Candidate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := p.Candidate(); got != tt.want {
				t.Errorf("Candidate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"date":`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error")
	}
	// a second call returns the cached result
	if err := p.Parse(); err == nil {
		t.Fatal("expected cached error")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1705312800000", 1705312800000, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", tt.raw)
		req := httptest.NewRequest(http.MethodDelete, "/transactions/"+tt.raw+"/delete", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		got, err := ParseID(req)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseID(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

func TestIsConfirmed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/transactions/1/delete?confirmed=true", nil)
	if !IsConfirmed(req) {
		t.Error("query confirmation not seen")
	}

	req = httptest.NewRequest(http.MethodPost, "/transactions/1/delete", strings.NewReader("confirmed=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if !IsConfirmed(req) {
		t.Error("form confirmation not seen")
	}

	req = httptest.NewRequest(http.MethodPost, "/transactions/1/delete", nil)
	if IsConfirmed(req) {
		t.Error("missing confirmation accepted")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc  "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
