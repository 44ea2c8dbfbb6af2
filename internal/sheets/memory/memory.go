package memory

import (
	"context"
	"fmt"
	"sync"

	ports "keuangan/internal/sheets"
)

var _ ports.RowWriter = (*Store)(nil)

// Store keeps the last written rows in memory.
type Store struct {
	mu     sync.Mutex
	rows   [][]string
	writes int
	err    error
}

func New() *Store {
	return &Store{}
}

// FailWith makes every later write return err; nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// WriteRows replaces the stored rows and returns a synthetic reference.
func (s *Store) WriteRows(_ context.Context, rows [][]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = make([][]string, len(rows))
	for i, r := range rows {
		s.rows[i] = append([]string(nil), r...)
	}
	s.writes++
	return fmt.Sprintf("mem:%d:%d", s.writes, len(rows)), nil
}

// Rows returns a copy of the last written rows.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
