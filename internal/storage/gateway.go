package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"keuangan/internal/core"
)

// Gateway reads and writes the full transaction collection to one slot of a KV
// store. It only serializes; it does not validate.
type Gateway struct {
	kv  KV
	key string
}

// NewGateway returns a gateway over kv using key, or SlotKey when key is empty.
func NewGateway(kv KV, key string) *Gateway {
	if key == "" {
		key = SlotKey
	}
	return &Gateway{kv: kv, key: key}
}

// Key returns the slot key.
func (g *Gateway) Key() string { return g.key }

// Load returns the persisted transactions. An absent slot yields (nil, nil).
// Unreadable or unparseable content yields an error.
func (g *Gateway) Load(ctx context.Context) ([]core.Transaction, error) {
	raw, ok, err := g.kv.Get(ctx, g.key)
	if err != nil {
		return nil, &core.PersistenceError{Op: "load", Err: err}
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var txs []core.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, &core.PersistenceError{Op: "load", Err: fmt.Errorf("decode slot %q: %w", g.key, err)}
	}
	return txs, nil
}

// Save replaces the slot content with txs.
func (g *Gateway) Save(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return &core.PersistenceError{Op: "save", Err: fmt.Errorf("encode slot %q: %w", g.key, err)}
	}
	if err := g.kv.Put(ctx, g.key, raw); err != nil {
		return &core.PersistenceError{Op: "save", Err: err}
	}
	return nil
}
