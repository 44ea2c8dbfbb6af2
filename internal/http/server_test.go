package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"keuangan/internal/core"
	"keuangan/internal/metrics"
	"keuangan/internal/services"
	sheetsmem "keuangan/internal/sheets/memory"
	"keuangan/internal/storage"
	"keuangan/internal/storage/memory"
)

const salaryForm = "date=2024-01-15&description=Salary&amount=5000000&type=pemasukan"

func newTestServer(t *testing.T, cfg Config, opts ...services.Option) (*Server, *services.Ledger) {
	t.Helper()
	l := services.NewLedger(context.Background(), storage.NewGateway(memory.New(0), storage.SlotKey), opts...)
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = 1000
	}
	srv := NewServer(cfg, l, metrics.New(), nil)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, l
}

func do(srv *Server, method, path, contentType string, body []byte, htmx bool) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(srv *Server, path, form string) *httptest.ResponseRecorder {
	return do(srv, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form), true)
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(srv, http.MethodGet, "/", "", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Catatan Keuangan", "Belum ada transaksi", "Rp 0"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/static/app.js"} {
		rr := do(srv, http.MethodGet, path, "", nil, false)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateTransaction(t *testing.T) {
	srv, l := newTestServer(t, Config{})

	rr := do(srv, http.MethodGet, "/transactions", "", nil, false)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr = postForm(srv, "/transactions", "date=2024-01-15&description=x&amount=abc&type=pemasukan")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount: expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Jumlah transaksi harus lebih dari 0!") {
		t.Errorf("missing amount message: %s", rr.Header().Get("HX-Trigger"))
	}

	rr = postForm(srv, "/transactions", "date=2024-01-15&description=%20%20&amount=1&type=pemasukan")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank description: expected 422, got %d", rr.Code)
	}

	rr = postForm(srv, "/transactions", "date=2024-01-15&description=x&amount=1&type=lainnya")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad type: expected 422, got %d", rr.Code)
	}
	if l.Snapshot().Len() != 0 {
		t.Fatalf("rejected entries reached the ledger")
	}

	rr = postForm(srv, "/transactions", salaryForm)
	if rr.Code != http.StatusOK {
		t.Fatalf("create: status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{`"ledger:changed"`, `"form:reset"`, "Transaksi berhasil disimpan!"} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	rr = do(srv, http.MethodGet, "/ui/ledger", "", nil, true)
	body := rr.Body.String()
	for _, want := range []string{"Salary", "15 Januari 2024", "+ Rp 5.000.000", "Pemasukan"} {
		if !strings.Contains(body, want) {
			t.Errorf("ledger partial missing %q", want)
		}
	}
}

func TestCreateTransactionJSON(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(srv, http.MethodPost, "/transactions", "application/json",
		[]byte(`{"date":"2024-01-16","description":"Lunch","amount":20000,"type":"pengeluaran"}`), false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tx core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tx.Description != "Lunch" || tx.Amount != 20000 || tx.Type != core.Expense || tx.ID == 0 {
		t.Errorf("unexpected transaction %+v", tx)
	}

	rr = do(srv, http.MethodPost, "/transactions", "application/json", []byte(`{"date":""}`), false)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing date: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Harap isi tanggal transaksi!") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv, l := newTestServer(t, Config{})
	if _, err := l.Create(context.Background(), core.Candidate{Date: "2024-01-15", Description: "Salary", Amount: "5000000", Type: core.Income}); err != nil {
		t.Fatal(err)
	}
	id := l.Snapshot().Transactions()[0].ID
	path := "/transactions/" + strconv.FormatInt(id, 10) + "/delete"

	rr := postForm(srv, path, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unconfirmed delete: status=%d", rr.Code)
	}
	if l.Snapshot().Len() != 1 {
		t.Fatalf("unconfirmed delete removed the transaction")
	}

	rr = do(srv, http.MethodDelete, path+"?confirmed=true", "", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Transaksi berhasil dihapus!") {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
	if l.Snapshot().Len() != 0 {
		t.Fatalf("transaction not removed")
	}

	rr = postForm(srv, "/transactions/abc/delete", "confirmed=true")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", rr.Code)
	}
}

func TestBackupAndExport(t *testing.T) {
	srv, l := newTestServer(t, Config{})

	rr := do(srv, http.MethodGet, "/backup", "", nil, true)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Tidak ada data transaksi untuk dibackup") {
		t.Errorf("empty backup warning missing: %s", rr.Header().Get("HX-Trigger"))
	}
	rr = do(srv, http.MethodGet, "/export.csv", "", nil, false)
	if rr.Code != http.StatusNotFound {
		t.Errorf("empty export status=%d", rr.Code)
	}

	postForm(srv, "/transactions", salaryForm)

	rr = do(srv, http.MethodGet, "/backup", "", nil, true)
	if rr.Header().Get("HX-Redirect") != "/backup" {
		t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}

	rr = do(srv, http.MethodGet, "/backup", "", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("backup status=%d", rr.Code)
	}
	if !regexp.MustCompile(`attachment; filename="backup-keuangan-\d{4}-\d{2}-\d{2}\.json"`).MatchString(rr.Header().Get("Content-Disposition")) {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
	var txs []core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil || len(txs) != 1 {
		t.Fatalf("backup body: %v %s", err, rr.Body.String())
	}
	if txs[0].ID != l.Snapshot().Transactions()[0].ID {
		t.Errorf("backup id mismatch")
	}

	rr = do(srv, http.MethodGet, "/export.csv", "", nil, false)
	if rr.Header().Get("Content-Type") != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "Tanggal,Keterangan,Jenis,Jumlah (Rp)\n") {
		t.Errorf("csv body = %q", rr.Body.String())
	}
}

func TestExportSheets(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rr := postForm(srv, "/export/sheets", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled sheets: status=%d", rr.Code)
	}

	rows := sheetsmem.New()
	srv, _ = newTestServer(t, Config{SheetsEnabled: true}, services.WithExporter(rows))
	postForm(srv, "/transactions", salaryForm)
	rr = postForm(srv, "/export/sheets", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("sheets export: status=%d", rr.Code)
	}
	if len(rows.Rows()) != 2 {
		t.Errorf("rows written = %d", len(rows.Rows()))
	}
}

func multipartBody(t *testing.T, filename, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile(FieldRestoreFile, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

var tokenRe = regexp.MustCompile(`name="token" value="([^"]+)"`)

func TestRestoreFlow(t *testing.T) {
	srv, l := newTestServer(t, Config{})
	postForm(srv, "/transactions", salaryForm)

	backup := `[{"id":1,"date":"2024-02-01","description":"Bonus","amount":100,"type":"pemasukan","createdAt":"2024-02-01T00:00:00Z"},` +
		`{"id":2,"date":"2024-02-02","description":"Makan","amount":50,"type":"pengeluaran","createdAt":"2024-02-02T00:00:00Z"}]`

	body, ct := multipartBody(t, "backup.json", backup)
	rr := do(srv, http.MethodPost, "/restore", ct, body, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Anda akan mengimpor 2 transaksi. Lanjutkan?") {
		t.Fatalf("prompt missing: %s", rr.Body.String())
	}
	m := tokenRe.FindStringSubmatch(rr.Body.String())
	if m == nil {
		t.Fatal("token missing")
	}
	if l.Snapshot().Len() != 1 {
		t.Fatal("ledger changed before confirmation")
	}

	rr = postForm(srv, "/restore/confirm", "token=wrong")
	if rr.Code != http.StatusConflict {
		t.Fatalf("wrong token status=%d", rr.Code)
	}

	rr = postForm(srv, "/restore/confirm", "token="+m[1])
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Data berhasil dipulihkan!") {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
	if got := l.Snapshot().Len(); got != 2 {
		t.Fatalf("ledger len = %d, want 2", got)
	}

	// the token is single use
	rr = postForm(srv, "/restore/confirm", "token="+m[1])
	if rr.Code != http.StatusConflict {
		t.Fatalf("reused token status=%d", rr.Code)
	}
}

func TestRestoreCancelAndReject(t *testing.T) {
	srv, l := newTestServer(t, Config{})
	postForm(srv, "/transactions", salaryForm)

	body, ct := multipartBody(t, "backup.json", `[{"id":1,"date":"2024-02-01","description":"Bonus","type":"pemasukan"}]`)
	rr := do(srv, http.MethodPost, "/restore", ct, body, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing amount: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Gagal memulihkan data. Pastikan file backup valid.") {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}

	body, ct = multipartBody(t, "", "")
	rr = do(srv, http.MethodPost, "/restore", ct, body, true)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("no file: status=%d", rr.Code)
	}

	body, ct = multipartBody(t, "b.json", `[{"id":9,"date":"2024-02-01","description":"Bonus","amount":1,"type":"pemasukan"}]`)
	rr = do(srv, http.MethodPost, "/restore", ct, body, true)
	m := tokenRe.FindStringSubmatch(rr.Body.String())
	if m == nil {
		t.Fatalf("token missing: %s", rr.Body.String())
	}
	rr = postForm(srv, "/restore/cancel", "token="+m[1])
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status=%d", rr.Code)
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), "ledger:changed") {
		t.Errorf("cancel announced a change")
	}
	if got := l.Snapshot().Transactions()[0].Description; got != "Salary" {
		t.Fatalf("ledger changed after cancel: %q", got)
	}
}

func TestRestoreTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, Config{MaxRestoreBytes: 64})
	body, ct := multipartBody(t, "big.json", "["+strings.Repeat(" ", 1024)+"]")
	rr := do(srv, http.MethodPost, "/restore", ct, body, true)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestAPI(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	postForm(srv, "/transactions", salaryForm)
	postForm(srv, "/transactions", "date=2024-01-16&description=Lunch&amount=20000&type=pengeluaran")

	rr := do(srv, http.MethodGet, "/api/transactions", "", nil, false)
	var txs []core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].Description != "Lunch" {
		t.Fatalf("transactions = %+v", txs)
	}

	rr = do(srv, http.MethodGet, "/api/summary", "", nil, false)
	var sum summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Income != 5000000 || sum.Expense != 20000 || sum.Balance != 4980000 || sum.Count != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Display.Balance != "Rp 4.980.000" || !sum.Display.Positive {
		t.Errorf("display = %+v", sum.Display)
	}

	rr = do(srv, http.MethodGet, "/api/chart", "", nil, false)
	var chart struct {
		Label  string     `json:"label"`
		Values [3]float64 `json:"values"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &chart); err != nil {
		t.Fatal(err)
	}
	if chart.Label != "Jumlah (Rp)" || chart.Values != [3]float64{5000000, 20000, 4980000} {
		t.Errorf("chart = %+v", chart)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitPerMin: 2})
	for i := 0; i < 2; i++ {
		if rr := postForm(srv, "/transactions", salaryForm); rr.Code != http.StatusOK {
			t.Fatalf("post %d status=%d", i+1, rr.Code)
		}
	}
	rr := postForm(srv, "/transactions", salaryForm)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/api/summary", "", nil, false); rr.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rr.Code)
	}
}
