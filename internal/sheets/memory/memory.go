package memory

import (
	"context"
	"sync"

	"cashflow/internal/core"
	ports "cashflow/internal/sheets"
)

var _ ports.SpendLogMirror = (*Store)(nil)

// Store is an in-process mirror, used when no spreadsheet is configured and
// in tests.
type Store struct {
	mu    sync.Mutex
	items map[string]core.DailySpendLog
}

func New(seed ...core.DailySpendLog) *Store {
	s := &Store{items: make(map[string]core.DailySpendLog, len(seed))}
	for _, l := range seed {
		s.items[l.Date.String()] = l
	}
	return s
}

func (s *Store) FetchAll(_ context.Context) ([]core.DailySpendLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DailySpendLog, 0, len(s.items))
	for _, l := range s.items {
		out = append(out, l)
	}
	core.SortSpendLogs(out)
	return out, nil
}

func (s *Store) Upsert(_ context.Context, entry core.DailySpendLog) error {
	if err := entry.Date.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[entry.Date.String()] = entry
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
