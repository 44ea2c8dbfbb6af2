// Package ledger owns the canonical, ordered collection of transactions.
//
// The Store is the only writer of the persisted slot. Every mutation is applied
// in memory first and then the whole collection is saved again. A failed save is
// logged and reported as a warning on the notify.Sink; the in-memory change is
// kept, so memory and storage may differ until the next successful save.
package ledger

import (
	"context"
	"time"

	"keuangan/internal/core"
	"keuangan/internal/log"
	"keuangan/internal/notify"
)

// Gateway persists the full collection.
type Gateway interface {
	Load(ctx context.Context) ([]core.Transaction, error)
	Save(ctx context.Context, txs []core.Transaction) error
}

// Observer is told about the outcome of every save.
type Observer interface {
	Saved(n int, err error)
}

// Store holds the ledger. It is not safe for concurrent use; callers serialize
// access (one user action at a time).
type Store struct {
	gateway  Gateway
	items    []core.Transaction
	ids      *IDSource
	now      func() time.Time
	sink     notify.Sink
	observer Observer
	logger   *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for ids and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSink sets where persistence warnings are reported.
func WithSink(sink notify.Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithObserver sets a save observer, used for metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates a Store and initializes it from the gateway. A missing or
// unreadable slot results in an empty ledger; the failure is only logged.
func Open(ctx context.Context, gateway Gateway, opts ...Option) *Store {
	s := &Store{
		gateway: gateway,
		now:     time.Now,
		sink:    notify.Discard,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.ids = NewIDSource(s.now)
	s.Initialize(ctx)
	return s
}

// Initialize reloads the ledger from the gateway and returns the snapshot.
func (s *Store) Initialize(ctx context.Context) Snapshot {
	txs, err := s.gateway.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load ledger, starting empty",
			log.NewFields().WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		txs = nil
	}
	s.items = clone(txs)
	s.observeIDs()
	s.logger.InfoContext(ctx, "Ledger initialized", log.FieldCount, len(s.items))
	return s.Snapshot()
}

// Reload re-reads the slot into memory. Unlike Initialize, a failed load
// keeps the current collection and returns the error.
func (s *Store) Reload(ctx context.Context) (Snapshot, error) {
	txs, err := s.gateway.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to reload ledger, keeping current state",
			log.NewFields().WithOperation(log.OpLoad).WithCount(len(s.items)).WithError(err).ToSlice()...)
		return s.Snapshot(), err
	}
	s.items = clone(txs)
	s.observeIDs()
	s.logger.DebugContext(ctx, "Ledger reloaded", log.FieldCount, len(s.items))
	return s.Snapshot(), nil
}

// Create assigns an id and creation time to a validated draft and adds it.
func (s *Store) Create(ctx context.Context, d core.Draft) (core.Transaction, Snapshot) {
	tx := core.Transaction{
		ID:          s.ids.Next(),
		Date:        d.Date,
		Description: d.Description,
		Amount:      d.Amount,
		Type:        d.Type,
		CreatedAt:   s.now().UTC(),
	}
	return tx, s.Add(ctx, tx)
}

// Add prepends tx and persists. tx must already be validated.
func (s *Store) Add(ctx context.Context, tx core.Transaction) Snapshot {
	items := make([]core.Transaction, 0, len(s.items)+1)
	items = append(items, tx)
	s.items = append(items, s.items...)
	s.ids.Observe(tx.ID)
	s.persist(ctx, log.OpCreate)
	return s.Snapshot()
}

// Remove drops every transaction with id and persists. No match is a no-op on
// the collection.
func (s *Store) Remove(ctx context.Context, id int64) Snapshot {
	kept := s.items[:0:0]
	for _, t := range s.items {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.items = kept
	s.persist(ctx, log.OpDelete)
	return s.Snapshot()
}

// ReplaceAll installs txs verbatim and persists.
func (s *Store) ReplaceAll(ctx context.Context, txs []core.Transaction) Snapshot {
	s.items = clone(txs)
	s.observeIDs()
	s.persist(ctx, log.OpRestore)
	return s.Snapshot()
}

// Summarize folds the current collection into totals.
func (s *Store) Summarize() core.Summary {
	return core.Summarize(s.items)
}

// Snapshot returns an immutable copy of the current collection.
func (s *Store) Snapshot() Snapshot {
	return NewSnapshot(s.items)
}

// Len returns the number of transactions.
func (s *Store) Len() int { return len(s.items) }

func (s *Store) observeIDs() {
	for _, t := range s.items {
		s.ids.Observe(t.ID)
	}
}

func (s *Store) persist(ctx context.Context, op string) {
	err := s.gateway.Save(ctx, s.items)
	if s.observer != nil {
		s.observer.Saved(len(s.items), err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger",
			log.NewFields().WithOperation(op).WithCount(len(s.items)).WithError(err).ToSlice()...)
		s.sink.Notify(notify.FromError(err, notify.MsgSaveFailed))
		return
	}
	s.logger.DebugContext(ctx, "Ledger persisted", log.FieldOperation, op, log.FieldCount, len(s.items))
}
