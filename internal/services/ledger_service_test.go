package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"keuangan/internal/amqp"
	"keuangan/internal/core"
	"keuangan/internal/impexp"
	"keuangan/internal/metrics"
	"keuangan/internal/notify"
	sheetsmem "keuangan/internal/sheets/memory"
	"keuangan/internal/storage"
	"keuangan/internal/storage/memory"
)

type recordingPublisher struct {
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

var decline = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })

func fixedNow() time.Time { return time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC) }

func newLedger(t *testing.T, kv storage.KV, opts ...Option) *Ledger {
	t.Helper()
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return NewLedger(context.Background(), storage.NewGateway(kv, ""), opts...)
}

func salary() core.Candidate {
	return core.Candidate{Date: "2024-01-15", Description: "Salary", Amount: "5000000", Type: core.Income}
}

func lunch() core.Candidate {
	return core.Candidate{Date: "2024-01-16", Description: "Lunch", Amount: "20000", Type: core.Expense}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	m := metrics.New()
	l := newLedger(t, memory.New(0), WithPublisher(pub), WithMetrics(m))

	if _, err := l.Create(ctx, salary()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	out, err := l.Create(ctx, lunch())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if out.Snapshot.Len() != 2 {
		t.Fatalf("expected 2 transactions, got %d", out.Snapshot.Len())
	}
	if len(out.Notices) != 1 || out.Notices[0] != notify.Ok(notify.MsgCreated) {
		t.Fatalf("unexpected notices %+v", out.Notices)
	}
	if got := out.Snapshot.Summarize().Balance.IntPart(); got != 4980000 {
		t.Fatalf("balance = %d", got)
	}
	if len(pub.events) != 2 || pub.events[1].Op != amqp.OpCreated || pub.events[1].Count != 2 {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if got := testutil.ToFloat64(m.BalanceTotal); got != 4980000 {
		t.Fatalf("balance gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionsCreated.WithLabelValues(string(core.Expense))); got != 1 {
		t.Fatalf("expense counter = %v", got)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0))

	tests := []struct {
		name string
		in   core.Candidate
		want error
		msg  string
	}{
		{"missing date", core.Candidate{Description: "x", Amount: "1", Type: core.Income}, core.ErrMissingDate, notify.MsgMissingDate},
		{"missing description", core.Candidate{Date: "2024-01-15", Amount: "1", Type: core.Income}, core.ErrMissingDescription, notify.MsgMissingDescription},
		{"zero amount", core.Candidate{Date: "2024-01-15", Description: "x", Amount: "0", Type: core.Income}, core.ErrInvalidAmount, notify.MsgInvalidAmount},
		{"unknown type", core.Candidate{Date: "2024-01-15", Description: "x", Amount: "1", Type: "hadiah"}, core.ErrInvalidType, notify.MsgInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := l.Create(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			if len(out.Notices) != 1 || out.Notices[0] != notify.Fail(tt.msg) {
				t.Fatalf("unexpected notices %+v", out.Notices)
			}
			if out.Snapshot.Len() != 0 {
				t.Fatalf("ledger changed on invalid input")
			}
		})
	}
}

func TestCreatePersistFailureStillSucceeds(t *testing.T) {
	l := newLedger(t, memory.New(16))
	out, err := l.Create(context.Background(), salary())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if out.Snapshot.Len() != 1 {
		t.Fatal("in-memory create was rolled back")
	}
	if len(out.Notices) != 2 || out.Notices[0] != notify.Warn(notify.MsgSaveFailed) || out.Notices[1] != notify.Ok(notify.MsgCreated) {
		t.Fatalf("unexpected notices %+v", out.Notices)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0))
	l.Create(ctx, salary())
	out, _ := l.Create(ctx, lunch())
	id := out.Snapshot.Transactions()[0].ID

	declined, err := l.Delete(ctx, id, decline)
	if err != nil || !declined.Declined || declined.Snapshot.Len() != 2 || len(declined.Notices) != 0 {
		t.Fatalf("declined delete = %+v, %v", declined, err)
	}

	var asked string
	yes := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		asked = prompt
		return true, nil
	})
	done, err := l.Delete(ctx, id, yes)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if asked != PromptDelete {
		t.Fatalf("prompt = %q", asked)
	}
	if done.Snapshot.Len() != 1 || done.Notices[0] != notify.Ok(notify.MsgDeleted) {
		t.Fatalf("unexpected outcome %+v", done)
	}

	_, err = l.Delete(ctx, id, ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("stdin closed")
	}))
	if err == nil {
		t.Fatal("expected confirm error")
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newLedger(t, memory.New(0))
	src.Create(ctx, salary())
	src.Create(ctx, lunch())

	dl, out, err := src.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if dl.Filename != "backup-keuangan-2024-01-16.json" || dl.ContentType != impexp.BackupContentType {
		t.Fatalf("unexpected download %+v", dl)
	}
	if out.Notices[0] != notify.Ok(notify.MsgBackupDone) {
		t.Fatalf("unexpected notices %+v", out.Notices)
	}

	dst := newLedger(t, memory.New(0))
	pending, _, err := dst.PrepareRestore(ctx, dl.Filename, strings.NewReader(string(dl.Data)), impexp.ImportOptions{})
	if err != nil {
		t.Fatalf("PrepareRestore() error = %v", err)
	}
	if pending.Count() != 2 || pending.Prompt() != "Anda akan mengimpor 2 transaksi. Lanjutkan?" {
		t.Fatalf("unexpected pending restore %d %q", pending.Count(), pending.Prompt())
	}
	if dst.Snapshot().Len() != 0 {
		t.Fatal("staging a restore must not touch the ledger")
	}

	declined, err := dst.Restore(ctx, pending, decline)
	if err != nil || !declined.Declined || declined.Snapshot.Len() != 0 {
		t.Fatalf("declined restore = %+v, %v", declined, err)
	}

	restored, err := dst.Restore(ctx, pending, AlwaysConfirm)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !restored.Snapshot.Summarize().Equal(src.Snapshot().Summarize()) {
		t.Fatal("restored totals differ")
	}
	if restored.Notices[0] != notify.Ok(notify.MsgRestoreDone) {
		t.Fatalf("unexpected notices %+v", restored.Notices)
	}
}

func TestPrepareRestoreRejects(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0))
	l.Create(ctx, salary())

	_, out, err := l.PrepareRestore(ctx, "b.json",
		strings.NewReader(`[{"id":1,"date":"2024-01-15","description":"a","type":"pemasukan"}]`), impexp.ImportOptions{})
	if !errors.Is(err, core.ErrIncompleteRecord) {
		t.Fatalf("error = %v, want incomplete record", err)
	}
	if out.Notices[0] != notify.Fail(notify.MsgRestoreFailed) {
		t.Fatalf("unexpected notices %+v", out.Notices)
	}
	if l.Snapshot().Len() != 1 {
		t.Fatal("ledger changed after rejected restore")
	}

	_, out, err = l.PrepareRestore(ctx, "b.json", iotest.ErrReader(errors.New("gone")), impexp.ImportOptions{})
	if !errors.Is(err, core.ErrFileRead) || out.Notices[0] != notify.Fail(notify.MsgFileReadFailed) {
		t.Fatalf("file read failure = %v, %+v", err, out.Notices)
	}
}

func TestExportsOnEmptyLedger(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0), WithExporter(sheetsmem.New()))

	_, out, err := l.Backup(ctx)
	if !errors.Is(err, ErrNothingToExport) || out.Notices[0] != notify.Warn(notify.MsgBackupEmpty) {
		t.Fatalf("backup = %v, %+v", err, out.Notices)
	}
	_, out, err = l.Export(ctx)
	if !errors.Is(err, ErrNothingToExport) || out.Notices[0] != notify.Warn(notify.MsgExportEmpty) {
		t.Fatalf("export = %v, %+v", err, out.Notices)
	}
	_, _, err = l.ExportToSheets(ctx)
	if !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("sheets = %v", err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0))
	l.Create(ctx, salary())

	dl, _, err := l.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if dl.Filename != "export-keuangan-2024-01-16.csv" {
		t.Fatalf("filename = %q", dl.Filename)
	}
	want := "Tanggal,Keterangan,Jenis,Jumlah (Rp)\n\"15 Januari 2024\",\"Salary\",Pemasukan,5000000\n"
	if string(dl.Data) != want {
		t.Fatalf("data = %q", dl.Data)
	}
}

func TestExportToSheets(t *testing.T) {
	ctx := context.Background()

	noSheets := newLedger(t, memory.New(0))
	noSheets.Create(ctx, salary())
	if _, _, err := noSheets.ExportToSheets(ctx); !errors.Is(err, ErrSheetsDisabled) {
		t.Fatalf("error = %v, want ErrSheetsDisabled", err)
	}

	sheet := sheetsmem.New()
	l := newLedger(t, memory.New(0), WithExporter(sheet))
	l.Create(ctx, salary())
	ref, out, err := l.ExportToSheets(ctx)
	if err != nil {
		t.Fatalf("ExportToSheets() error = %v", err)
	}
	if ref == "" || out.Notices[0] != notify.Ok(notify.MsgSheetsDone) {
		t.Fatalf("ref = %q notices = %+v", ref, out.Notices)
	}
	rows := sheet.Rows()
	if len(rows) != 2 || rows[1][1] != "Salary" {
		t.Fatalf("rows = %v", rows)
	}

	sheet.FailWith(errors.New("quota"))
	_, out, err = l.ExportToSheets(ctx)
	if err == nil || out.Notices[0] != notify.Fail(notify.MsgSheetsFailed) {
		t.Fatalf("failing export = %v, %+v", err, out.Notices)
	}
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	l := newLedger(t, memory.New(0), WithPublisher(pub))
	if _, err := l.Create(context.Background(), salary()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected publish attempt")
	}
}

func TestView(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(0))
	if v := l.View(ctx); len(v.Rows) != 1 || !v.Rows[0].Empty {
		t.Fatalf("expected empty view, got %+v", v.Rows)
	}
	l.Create(ctx, salary())
	v := l.View(ctx)
	if v.Count != 1 || v.Rows[0].Amount != "+ Rp 5.000.000" {
		t.Fatalf("unexpected view %+v", v)
	}
	if len(l.Transactions(ctx)) != 1 {
		t.Fatal("Transactions() should return one entry")
	}
}

// blockingPublisher stalls every Publish until release is closed.
type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(context.Context, *amqp.LedgerEvent) error {
	p.entered <- struct{}{}
	<-p.release
	return nil
}

func TestSlowPublishDoesNotBlockLedger(t *testing.T) {
	ctx := context.Background()
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	l := newLedger(t, memory.New(0), WithPublisher(pub))

	created := make(chan Outcome, 1)
	go func() {
		out, _ := l.Create(ctx, salary())
		created <- out
	}()
	<-pub.entered

	counted := make(chan int, 1)
	go func() { counted <- l.View(ctx).Count }()
	select {
	case n := <-counted:
		if n != 1 {
			t.Errorf("count while publishing = %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatal("ledger stayed locked while the event was being published")
	}

	close(pub.release)
	if out := <-created; out.Snapshot.Len() != 1 {
		t.Errorf("Create() len = %d, want 1", out.Snapshot.Len())
	}
}
