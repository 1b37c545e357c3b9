package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
)

// FileStore keeps the state as an indented JSON file, replaced atomically
// through a temp file in the same directory.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *applog.Logger
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{path: path, logger: applog.Default(applog.ComponentStorage)}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*core.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileStore) load(ctx context.Context) (*core.AppState, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.DebugContext(ctx, "No state file yet, starting empty", "path", s.path)
		return core.NewAppState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return decodeState(b)
}

func (s *FileStore) Save(ctx context.Context, state *core.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	return commit(state, current.Revision, func(doc []byte, _ int64) error {
		return s.writeAtomic(doc)
	})
}

func (s *FileStore) writeAtomic(doc []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
