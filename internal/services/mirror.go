package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"keuangan/internal/amqp"
	"keuangan/internal/log"
)

// MirrorConfig holds configuration for the sheets mirror
type MirrorConfig struct {
	// Debounce is how long to wait after an event before exporting, so a
	// burst of events costs one export (default: 2s)
	Debounce time.Duration

	// Reload re-reads the slot before each export. Set it only when the
	// ledger is not the one taking writes, as in a separate watcher process;
	// a serving ledger already holds the latest state, including changes
	// whose save failed.
	Reload bool
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{Debounce: 2 * time.Second}
}

// Mirror keeps a spreadsheet in step with the persisted ledger. Ledger events
// mark it dirty; the run loop exports the ledger, reloading the slot first
// when configured to.
type Mirror struct {
	ledger *Ledger
	config MirrorConfig
	logger *log.Logger

	dirty  chan struct{}
	synced atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMirror creates a mirror over l, which must have an exporter.
func NewMirror(l *Ledger, config MirrorConfig) *Mirror {
	if config.Debounce <= 0 {
		config.Debounce = DefaultMirrorConfig().Debounce
	}
	return &Mirror{
		ledger: l,
		config: config,
		logger: l.logger.WithComponent(log.ComponentSheets),
		dirty:  make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("mirror is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.runLoop(ctx)

	m.logger.InfoContext(ctx, "Sheets mirror started", "debounce", m.config.Debounce.String())
	return nil
}

// Stop gracefully stops the mirror and waits for completion.
func (m *Mirror) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	close(m.stopCh)

	select {
	case <-m.doneCh:
		m.logger.InfoContext(ctx, "Sheets mirror stopped gracefully")
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Sheets mirror stop timed out")
		return ctx.Err()
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// IsRunning returns whether the mirror is currently running
func (m *Mirror) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Synced returns how many exports have completed.
func (m *Mirror) Synced() int64 { return m.synced.Load() }

// HandleEvent marks the mirror dirty. It matches the amqp consumer handler.
func (m *Mirror) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	m.logger.DebugContext(ctx, "Ledger event received",
		"message_id", ev.MessageID, log.FieldOperation, ev.Op, log.FieldCount, ev.Count)
	m.MarkDirty()
	return nil
}

// MarkDirty schedules an export.
func (m *Mirror) MarkDirty() {
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

func (m *Mirror) runLoop(ctx context.Context) {
	defer close(m.doneCh)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-m.dirty:
		}

		timer := time.NewTimer(m.config.Debounce)
		select {
		case <-m.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		// events during the wait are covered by this export
		select {
		case <-m.dirty:
		default:
		}
		m.sync(ctx)
	}
}

func (m *Mirror) sync(ctx context.Context) {
	if m.config.Reload {
		if _, err := m.ledger.Reload(ctx); err != nil {
			m.logger.WarnContext(ctx, "Reload failed, exporting current ledger", log.FieldError, err)
		}
	}
	ref, out, err := m.ledger.ExportToSheets(ctx)
	switch {
	case errors.Is(err, ErrNothingToExport):
		m.logger.DebugContext(ctx, "Ledger empty, nothing to mirror")
	case err != nil:
		m.logger.ErrorContext(ctx, "Failed to mirror ledger", log.FieldError, err)
	default:
		m.synced.Add(1)
		m.logger.InfoContext(ctx, "Ledger mirrored", "range", ref, log.FieldCount, out.Snapshot.Len())
	}
}
