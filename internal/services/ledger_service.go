package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"keuangan/internal/amqp"
	"keuangan/internal/core"
	"keuangan/internal/impexp"
	"keuangan/internal/ledger"
	"keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/notify"
	"keuangan/internal/sheets"
	"keuangan/internal/view"
)

// PromptDelete is asked before a transaction is deleted.
const PromptDelete = "Apakah Anda yakin ingin menghapus transaksi ini?"

var (
	// ErrNothingToExport is returned by exports of an empty ledger.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrSheetsDisabled is returned when no spreadsheet is configured.
	ErrSheetsDisabled = errors.New("sheets export not configured")
)

// RestorePrompt is asked before n imported transactions replace the ledger.
func RestorePrompt(n int) string {
	return fmt.Sprintf("Anda akan mengimpor %d transaksi. Lanjutkan?", n)
}

type (
	// Confirmer asks the user a yes/no question.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) (bool, error)
	}

	// ConfirmFunc adapts a function to Confirmer.
	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

	// Publisher sends ledger events.
	Publisher interface {
		Publish(ctx context.Context, ev *amqp.LedgerEvent) error
	}

	// Outcome is the result of one user action: the ledger after it, and what
	// the user should be told.
	Outcome struct {
		Snapshot ledger.Snapshot
		Notices  []notify.Notification
		Declined bool
	}

	// Download is a file produced for the user.
	Download struct {
		Filename    string
		ContentType string
		Data        []byte
	}

	// PendingRestore is a parsed backup waiting for confirmation.
	PendingRestore struct {
		Name         string
		Transactions []core.Transaction
	}
)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm answers yes to every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Count returns the number of transactions the restore would install.
func (p *PendingRestore) Count() int { return len(p.Transactions) }

// Prompt returns the confirmation question for this restore.
func (p *PendingRestore) Prompt() string { return RestorePrompt(p.Count()) }

// Ledger runs user actions against the ledger one at a time.
type Ledger struct {
	mu        sync.Mutex
	store     *ledger.Store
	notices   *notify.Buffer
	metrics   *metrics.Metrics
	publisher Publisher
	exporter  sheets.RowWriter
	now       func() time.Time
	logger    *log.Logger

	// events wait here until the action has released mu
	eventsMu sync.Mutex
	events   []*amqp.LedgerEvent
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithMetrics(m *metrics.Metrics) Option  { return func(l *Ledger) { l.metrics = m } }
func WithPublisher(p Publisher) Option       { return func(l *Ledger) { l.publisher = p } }
func WithExporter(w sheets.RowWriter) Option { return func(l *Ledger) { l.exporter = w } }
func WithClock(now func() time.Time) Option  { return func(l *Ledger) { l.now = now } }
func WithLogger(logger *log.Logger) Option   { return func(l *Ledger) { l.logger = logger } }

// NewLedger opens the ledger from gateway.
func NewLedger(ctx context.Context, gateway ledger.Gateway, opts ...Option) *Ledger {
	l := &Ledger{
		notices: &notify.Buffer{},
		now:     time.Now,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}

	storeOpts := []ledger.Option{
		ledger.WithClock(l.now),
		ledger.WithSink(l.notices),
		ledger.WithLogger(l.logger),
	}
	if l.metrics != nil {
		storeOpts = append(storeOpts, ledger.WithObserver(l.metrics))
	}
	l.store = ledger.Open(ctx, gateway, storeOpts...)
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	l.observe()
	// load problems are logged only
	l.notices.Drain()
	return l
}

// Create validates c and adds it to the ledger.
func (l *Ledger) Create(ctx context.Context, c core.Candidate) (Outcome, error) {
	defer l.timed("create")()
	defer l.flush(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	draft, err := core.Validate(c)
	if err == nil && c.Type != core.Income && c.Type != core.Expense {
		err = &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	if err != nil {
		return l.fail(err, notify.MsgCreateFailed), err
	}

	tx, snap := l.store.Create(ctx, draft)
	l.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).
			WithTransaction(tx.ID, string(tx.Type), tx.Amount, tx.Description).ToSlice()...)
	if l.metrics != nil {
		l.metrics.TransactionsCreated.WithLabelValues(string(tx.Type)).Inc()
	}
	l.observe()
	l.queueEvent(amqp.NewLedgerEvent(amqp.OpCreated, snap.Len(), tx.ID))
	return l.done(snap, notify.Ok(notify.MsgCreated)), nil
}

// Delete removes the transaction with id once confirm agrees.
func (l *Ledger) Delete(ctx context.Context, id int64, confirm Confirmer) (Outcome, error) {
	defer l.timed("delete")()
	defer l.flush(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	ok, err := confirm.Confirm(ctx, PromptDelete)
	if err != nil {
		return l.fail(err, notify.MsgDeleteFailed), fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return Outcome{Snapshot: l.store.Snapshot(), Declined: true}, nil
	}

	snap := l.store.Remove(ctx, id)
	l.logger.InfoContext(ctx, "Transaction deleted", log.FieldTxID, id, log.FieldCount, snap.Len())
	if l.metrics != nil {
		l.metrics.TransactionsDeleted.Inc()
	}
	l.observe()
	l.queueEvent(amqp.NewLedgerEvent(amqp.OpDeleted, snap.Len(), id))
	return l.done(snap, notify.Ok(notify.MsgDeleted)), nil
}

// PrepareRestore reads and checks a backup without touching the ledger.
func (l *Ledger) PrepareRestore(ctx context.Context, name string, r io.Reader, opts impexp.ImportOptions) (*PendingRestore, Outcome, error) {
	data, err := impexp.ReadBackup(name, r)
	if err == nil {
		var txs []core.Transaction
		txs, err = impexp.ImportBackup(data, opts)
		if err == nil {
			l.logger.InfoContext(ctx, "Backup staged for restore", log.FieldFile, name, log.FieldCount, len(txs))
			return &PendingRestore{Name: name, Transactions: txs}, Outcome{Snapshot: l.Snapshot()}, nil
		}
	}

	l.logger.WarnContext(ctx, "Backup rejected",
		log.NewFields().WithOperation(log.OpRestore).WithError(err).ToSlice()...)
	if l.metrics != nil {
		l.metrics.Restores.WithLabelValues("rejected").Inc()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return nil, l.fail(err, notify.MsgRestoreFailed), err
}

// Restore replaces the whole ledger with p once confirm agrees.
func (l *Ledger) Restore(ctx context.Context, p *PendingRestore, confirm Confirmer) (Outcome, error) {
	defer l.timed("restore")()
	defer l.flush(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	ok, err := confirm.Confirm(ctx, p.Prompt())
	if err != nil {
		return l.fail(err, notify.MsgRestoreFailed), fmt.Errorf("confirm restore: %w", err)
	}
	if !ok {
		if l.metrics != nil {
			l.metrics.Restores.WithLabelValues("declined").Inc()
		}
		return Outcome{Snapshot: l.store.Snapshot(), Declined: true}, nil
	}

	snap := l.store.ReplaceAll(ctx, p.Transactions)
	l.logger.InfoContext(ctx, "Ledger restored", log.FieldFile, p.Name, log.FieldCount, snap.Len())
	if l.metrics != nil {
		l.metrics.Restores.WithLabelValues("applied").Inc()
	}
	l.observe()
	l.queueEvent(amqp.NewLedgerEvent(amqp.OpRestored, snap.Len()))
	return l.done(snap, notify.Ok(notify.MsgRestoreDone)), nil
}

// Backup returns the ledger as a JSON backup file.
func (l *Ledger) Backup(ctx context.Context) (Download, Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.store.Snapshot()
	if snap.Empty() {
		return Download{}, Outcome{Snapshot: snap, Notices: []notify.Notification{notify.Warn(notify.MsgBackupEmpty)}}, ErrNothingToExport
	}
	data, err := impexp.ExportBackup(snap.Transactions())
	if err != nil {
		return Download{}, l.fail(err, notify.MsgBackupFailed), err
	}
	l.exported(ctx, "backup", snap.Len())
	return Download{
		Filename:    impexp.BackupFilename(l.now()),
		ContentType: impexp.BackupContentType,
		Data:        data,
	}, l.done(snap, notify.Ok(notify.MsgBackupDone)), nil
}

// Export returns the ledger as a tabular file.
func (l *Ledger) Export(ctx context.Context) (Download, Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.store.Snapshot()
	if snap.Empty() {
		return Download{}, Outcome{Snapshot: snap, Notices: []notify.Notification{notify.Warn(notify.MsgExportEmpty)}}, ErrNothingToExport
	}
	l.exported(ctx, "csv", snap.Len())
	return Download{
		Filename:    impexp.ExportFilename(l.now()),
		ContentType: impexp.TabularContentType,
		Data:        impexp.ExportTabular(snap.Transactions()),
	}, l.done(snap, notify.Ok(notify.MsgExportDone)), nil
}

// ExportToSheets writes the tabular rows to the configured spreadsheet.
func (l *Ledger) ExportToSheets(ctx context.Context) (string, Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.store.Snapshot()
	if l.exporter == nil {
		return "", l.fail(ErrSheetsDisabled, notify.MsgSheetsFailed), ErrSheetsDisabled
	}
	if snap.Empty() {
		return "", Outcome{Snapshot: snap, Notices: []notify.Notification{notify.Warn(notify.MsgExportEmpty)}}, ErrNothingToExport
	}
	ref, err := l.exporter.WriteRows(ctx, impexp.TabularRows(snap.Transactions()))
	if err != nil {
		l.logger.ErrorContext(ctx, "Sheets export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err).ToSlice()...)
		return "", l.fail(err, notify.MsgSheetsFailed), fmt.Errorf("export to sheets: %w", err)
	}
	l.exported(ctx, "sheets", snap.Len())
	return ref, l.done(snap, notify.Ok(notify.MsgSheetsDone)), nil
}

// Reload re-reads the persisted slot, replacing the in-memory ledger. On a
// load error the ledger is left as it was.
func (l *Ledger) Reload(ctx context.Context) (ledger.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, err := l.store.Reload(ctx)
	if err != nil {
		return snap, fmt.Errorf("reload ledger: %w", err)
	}
	l.observe()
	return snap, nil
}

// View projects the current ledger.
func (l *Ledger) View(ctx context.Context) view.View {
	return view.Project(l.Snapshot())
}

// Transactions returns the current transactions, newest first.
func (l *Ledger) Transactions(ctx context.Context) []core.Transaction {
	return l.Snapshot().Transactions()
}

// Snapshot returns the current ledger.
func (l *Ledger) Snapshot() ledger.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Snapshot()
}

// done drains queued notices and appends the action's own.
func (l *Ledger) done(snap ledger.Snapshot, n notify.Notification) Outcome {
	notices := l.notices.Drain()
	return Outcome{Snapshot: snap, Notices: append(notices, n)}
}

func (l *Ledger) fail(err error, fallback string) Outcome {
	return l.done(l.store.Snapshot(), notify.FromError(err, fallback))
}

func (l *Ledger) exported(ctx context.Context, format string, n int) {
	l.logger.InfoContext(ctx, "Ledger exported", log.FieldOperation, log.OpExport, "format", format, log.FieldCount, n)
	if l.metrics != nil {
		l.metrics.Exports.WithLabelValues(format).Inc()
	}
}

func (l *Ledger) observe() {
	if l.metrics != nil {
		l.metrics.LedgerSize.Set(float64(l.store.Len()))
		l.metrics.ObserveSummary(l.store.Summarize())
	}
}

// queueEvent holds ev for flush. Callers hold mu.
func (l *Ledger) queueEvent(ev *amqp.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	l.eventsMu.Lock()
	l.events = append(l.events, ev)
	l.eventsMu.Unlock()
}

// flush sends queued events. It runs after mu is released so a slow broker
// does not hold up other actions.
func (l *Ledger) flush(ctx context.Context) {
	if l.publisher == nil {
		return
	}
	l.eventsMu.Lock()
	events := l.events
	l.events = nil
	l.eventsMu.Unlock()

	for _, ev := range events {
		result := "ok"
		if err := l.publisher.Publish(ctx, ev); err != nil {
			result = "error"
			l.logger.ErrorContext(ctx, "Failed to publish ledger event",
				log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
		}
		if l.metrics != nil {
			l.metrics.EventsPublished.WithLabelValues(result).Inc()
		}
	}
}

func (l *Ledger) timed(action string) func() {
	start := time.Now()
	return func() {
		if l.metrics != nil {
			l.metrics.ActionLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
		}
	}
}
