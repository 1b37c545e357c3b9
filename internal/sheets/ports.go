package sheets

import (
	"context"

	"cashflow/internal/core"
)

// Ports for the optional external spend ledger mirror. The local state is
// authoritative; the mirror is best-effort.
type (
	// SpendLogReader returns every log held by the mirror. An error means the
	// mirror is unreachable and callers fall back to local data.
	SpendLogReader interface {
		FetchAll(ctx context.Context) ([]core.DailySpendLog, error)
	}

	// SpendLogWriter inserts or replaces the log for entry.Date.
	SpendLogWriter interface {
		Upsert(ctx context.Context, entry core.DailySpendLog) error
	}

	SpendLogMirror interface {
		SpendLogReader
		SpendLogWriter
	}
)
