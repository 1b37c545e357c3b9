// Package storage persists the AppState document. Every backend saves
// atomically and rejects writes based on a stale revision.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cashflow/internal/core"
)

// ErrConflict is returned by Save when the stored revision moved since Load.
var ErrConflict = errors.New("state revision conflict")

// StateStore loads and saves the single persisted document.
type StateStore interface {
	// Load returns a fresh empty state when nothing has been saved yet.
	Load(ctx context.Context) (*core.AppState, error)
	// Save writes state and bumps state.Revision on success.
	Save(ctx context.Context, state *core.AppState) error
}

func encodeState(state *core.AppState) ([]byte, error) {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(b, '\n'), nil
}

func decodeState(b []byte) (*core.AppState, error) {
	var state core.AppState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

// commit encodes state at the next revision and hands the bytes to write.
// state.Revision only advances when write succeeds.
func commit(state *core.AppState, stored int64, write func(doc []byte, revision int64) error) error {
	if state.Revision != stored {
		return fmt.Errorf("%w: loaded %d, stored %d", ErrConflict, state.Revision, stored)
	}
	next := stored + 1
	state.Revision = next
	doc, err := encodeState(state)
	if err == nil {
		err = write(doc, next)
	}
	if err != nil {
		state.Revision = stored
		return err
	}
	return nil
}
