package worker

import (
	"context"
	"fmt"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/sheets"
	"cashflow/internal/storage"
)

// SyncWorker mirrors spend logs from the state store into the spreadsheet.
type SyncWorker struct {
	store     storage.StateStore
	mirror    sheets.SpendLogMirror
	batchSize int
	logger    *applog.Logger
}

func NewSyncWorker(store storage.StateStore, mirror sheets.SpendLogMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    applog.Default(applog.ComponentWorker),
	}
}

// HandleSyncMessage upserts the log carried by msg. When the state store
// holds a newer copy for the same date, that copy is pushed instead so a
// late redelivery cannot roll the sheet back.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SpendLogSyncMessage) error {
	entry := msg.Log
	w.logger.InfoContext(ctx, "Processing sync message",
		applog.FieldDate, entry.Date.String(),
		"timestamp", msg.Timestamp)

	state, err := w.store.Load(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Could not read state store, mirroring message as is", applog.FieldError, err)
	} else if stored, ok := state.SpendLogs[entry.Date.String()]; ok && stored.RecordedAt.After(entry.RecordedAt) {
		w.logger.InfoContext(ctx, "Message is older than stored log, pushing stored copy",
			applog.FieldDate, entry.Date.String(),
			"message_recorded_at", entry.RecordedAt,
			"stored_recorded_at", stored.RecordedAt)
		entry = stored
	}

	if err := w.mirror.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert spend log %s: %w", entry.Date, err)
	}
	w.logger.InfoContext(ctx, "Successfully mirrored spend log",
		applog.FieldDate, entry.Date.String(),
		"total", entry.Total(),
		"auto_filled", entry.AutoFilled)
	return nil
}

// ProcessPendingLogs pushes at most one batch of local logs that are missing
// from the mirror or differ from it. It is the backup for lost messages.
func (w *SyncWorker) ProcessPendingLogs(ctx context.Context) (synced int, err error) {
	pending, err := w.pendingLogs(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if len(pending) > w.batchSize {
		pending = pending[:w.batchSize]
	}

	w.logger.InfoContext(ctx, "Processing pending spend logs",
		applog.FieldOperation, applog.OpSync,
		"count", len(pending))
	failed := 0
	for _, entry := range pending {
		if err := w.mirror.Upsert(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror spend log", applog.FieldDate, entry.Date.String(), applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	if failed > 0 {
		return synced, fmt.Errorf("mirror %d of %d spend logs failed", failed, len(pending))
	}
	return synced, nil
}

// StartupSyncCheck runs batches until the mirror has caught up or a batch fails.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	total := 0
	for {
		synced, err := w.ProcessPendingLogs(ctx)
		total += synced
		if err != nil {
			w.logger.ErrorContext(ctx, "Startup sync stopped",
				applog.FieldOperation, applog.OpStartup,
				"synced", total,
				applog.FieldError, err)
			return fmt.Errorf("startup sync: %w", err)
		}
		if synced < w.batchSize {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if total == 0 {
		w.logger.InfoContext(ctx, "No pending spend logs found on startup", applog.FieldOperation, applog.OpStartup)
	} else {
		w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldOperation, applog.OpStartup, "synced", total)
	}
	return nil
}

func (w *SyncWorker) pendingLogs(ctx context.Context) ([]core.DailySpendLog, error) {
	state, err := w.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	remote, err := w.mirror.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch mirror: %w", err)
	}

	mirrored := make(map[string]core.DailySpendLog, len(remote))
	for _, l := range remote {
		mirrored[l.Date.String()] = l
	}

	var out []core.DailySpendLog
	for _, local := range state.SortedSpendLogs() {
		if r, ok := mirrored[local.Date.String()]; ok && sameAmounts(r, local) {
			continue
		}
		out = append(out, local)
	}
	return out, nil
}

// sameAmounts ignores RecordedAt, which the sheet stores at second precision.
func sameAmounts(a, b core.DailySpendLog) bool {
	return a.Breakfast == b.Breakfast &&
		a.Lunch == b.Lunch &&
		a.Dinner == b.Dinner &&
		a.Other == b.Other &&
		a.AutoFilled == b.AutoFilled
}
