package storage

import (
	"context"
	"sync"

	"cashflow/internal/core"
)

// MemoryStore keeps the encoded document in memory. Load always hands out a
// deep copy, like a real backend would.
type MemoryStore struct {
	mu       sync.Mutex
	doc      []byte
	revision int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*core.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return core.NewAppState(), nil
	}
	return decodeState(s.doc)
}

func (s *MemoryStore) Save(_ context.Context, state *core.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return commit(state, s.revision, func(doc []byte, revision int64) error {
		s.doc = doc
		s.revision = revision
		return nil
	})
}
