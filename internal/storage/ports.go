package storage

import (
	"context"
	"errors"
)

// SlotKey is the key of the single slot holding the whole ledger.
const SlotKey = "financeTrackData"

// ErrQuotaExceeded is returned by stores that cap how much they hold.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is a key-value blob store. Get reports ok=false for a key never written.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}
