package ledger

import "keuangan/internal/core"

// Snapshot is an immutable view of the ledger at one point in time.
type Snapshot struct {
	txs []core.Transaction
}

// NewSnapshot copies txs into a snapshot.
func NewSnapshot(txs []core.Transaction) Snapshot {
	return Snapshot{txs: clone(txs)}
}

// Transactions returns a copy of the transactions, newest first.
func (s Snapshot) Transactions() []core.Transaction {
	return clone(s.txs)
}

// Len returns the number of transactions.
func (s Snapshot) Len() int { return len(s.txs) }

// Empty reports whether the snapshot holds no transactions.
func (s Snapshot) Empty() bool { return len(s.txs) == 0 }

// Summarize folds the snapshot into totals.
func (s Snapshot) Summarize() core.Summary { return core.Summarize(s.txs) }

// Find returns the first transaction with id.
func (s Snapshot) Find(id int64) (core.Transaction, bool) {
	for _, t := range s.txs {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func clone(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return out
}
