package memory

import (
	"context"
	"sync"

	"keuangan/internal/storage"
)

// Store is an in-process KV store. A positive quota caps the total bytes held,
// the way a browser caps local storage.
type Store struct {
	mu    sync.Mutex
	quota int
	items map[string][]byte
}

var _ storage.KV = (*Store)(nil)

// New returns an empty store. quota <= 0 means unlimited.
func New(quota int) *Store {
	return &Store{quota: quota, items: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores a copy of value under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 && s.sizeWithout(key)+len(key)+len(value) > s.quota {
		return storage.ErrQuotaExceeded
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

// SetQuota changes the byte cap. Existing content is kept even if it exceeds it.
func (s *Store) SetQuota(quota int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = quota
}

func (s *Store) sizeWithout(skip string) int {
	n := 0
	for k, v := range s.items {
		if k == skip {
			continue
		}
		n += len(k) + len(v)
	}
	return n
}
