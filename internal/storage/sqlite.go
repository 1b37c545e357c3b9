package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cashflow/internal/core"
	applog "cashflow/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the document in a single-row app_state table.
type SQLiteStore struct {
	db     *sql.DB
	logger *applog.Logger
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite would answer SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: applog.Default(applog.ComponentStorage)}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*core.AppState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM app_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewAppState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return decodeState([]byte(doc))
}

func (s *SQLiteStore) Save(ctx context.Context, state *core.AppState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM app_state WHERE id = 1`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select revision: %w", err)
	}

	err = commit(state, stored, func(doc []byte, revision int64) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_state (id, revision, document, updated_at)
			VALUES (1, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				revision = excluded.revision,
				document = excluded.document,
				updated_at = excluded.updated_at`,
			revision, string(doc))
		if err != nil {
			return fmt.Errorf("upsert state: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit state: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "State saved to SQLite", "revision", state.Revision)
	return nil
}
