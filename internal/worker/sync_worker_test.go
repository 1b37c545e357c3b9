package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/sheets/memory"
	"cashflow/internal/storage"
)

func seedStore(t *testing.T, logs ...core.DailySpendLog) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, l := range logs {
		state.SpendLogs[l.Date.String()] = l
	}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return store
}

func spendLog(day int, lunch int64) core.DailySpendLog {
	return core.DailySpendLog{
		Date:       core.NewDate(2024, 1, day),
		Lunch:      lunch,
		RecordedAt: time.Date(2024, 1, day, 16, 0, 0, 0, time.UTC),
	}
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	stored := spendLog(26, 300)
	store := seedStore(t, stored)

	tests := []struct {
		name      string
		msg       core.DailySpendLog
		wantLunch int64
	}{
		{name: "newer message wins", msg: core.DailySpendLog{Date: stored.Date, Lunch: 500, RecordedAt: stored.RecordedAt.Add(time.Hour)}, wantLunch: 500},
		{name: "stale message replaced by stored copy", msg: core.DailySpendLog{Date: stored.Date, Lunch: 100, RecordedAt: stored.RecordedAt.Add(-time.Hour)}, wantLunch: 300},
		{name: "date unknown to store", msg: spendLog(27, 80), wantLunch: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mirror := memory.New()
			w := NewSyncWorker(store, mirror, 10)
			if err := w.HandleSyncMessage(ctx, &amqp.SpendLogSyncMessage{Log: tt.msg}); err != nil {
				t.Fatalf("HandleSyncMessage() error = %v", err)
			}
			logs, _ := mirror.FetchAll(ctx)
			if len(logs) != 1 || logs[0].Lunch != tt.wantLunch {
				t.Errorf("mirror = %+v, want one log with lunch %d", logs, tt.wantLunch)
			}
		})
	}
}

type failingMirror struct {
	*memory.Store
}

func (failingMirror) Upsert(context.Context, core.DailySpendLog) error {
	return errors.New("quota exceeded")
}

func TestHandleSyncMessage_MirrorErrorIsReturned(t *testing.T) {
	w := NewSyncWorker(seedStore(t), failingMirror{memory.New()}, 10)
	if err := w.HandleSyncMessage(context.Background(), &amqp.SpendLogSyncMessage{Log: spendLog(26, 1)}); err == nil {
		t.Fatal("HandleSyncMessage() should surface mirror errors so the message is requeued")
	}
}

func TestProcessPendingLogs(t *testing.T) {
	ctx := context.Background()
	same := spendLog(24, 100)
	changed := spendLog(25, 200)
	store := seedStore(t, same, changed, spendLog(26, 300), spendLog(27, 400))

	stale := changed
	stale.Lunch = 150
	mirror := memory.New(same, stale)
	w := NewSyncWorker(store, mirror, 2)

	synced, err := w.ProcessPendingLogs(ctx)
	if err != nil {
		t.Fatalf("ProcessPendingLogs() error = %v", err)
	}
	if synced != 2 {
		t.Errorf("first pass synced = %d, want batch size 2", synced)
	}

	synced, err = w.ProcessPendingLogs(ctx)
	if err != nil {
		t.Fatalf("ProcessPendingLogs() error = %v", err)
	}
	if synced != 1 {
		t.Errorf("second pass synced = %d, want 1", synced)
	}
	if mirror.Len() != 4 {
		t.Errorf("mirror has %d logs, want 4", mirror.Len())
	}

	synced, err = w.ProcessPendingLogs(ctx)
	if err != nil || synced != 0 {
		t.Errorf("third pass = (%d, %v), want nothing left", synced, err)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, spendLog(21, 1), spendLog(22, 2), spendLog(23, 3), spendLog(24, 4), spendLog(25, 5))
	mirror := memory.New()

	if err := NewSyncWorker(store, mirror, 2).StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if mirror.Len() != 5 {
		t.Errorf("mirror has %d logs, want 5", mirror.Len())
	}
}

func TestStartupSyncCheck_StopsOnFailure(t *testing.T) {
	store := seedStore(t, spendLog(21, 1))
	err := NewSyncWorker(store, failingMirror{memory.New()}, 2).StartupSyncCheck(context.Background())
	if err == nil {
		t.Fatal("StartupSyncCheck() should report a failing mirror")
	}
}
