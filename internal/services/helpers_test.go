package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/storage"
)

func testConfig() core.AppConfig {
	cycle := core.DefaultCycleSettings()
	cycle.Timezone = "UTC"
	return core.AppConfig{
		FixedBills: core.FixedBills{
			Rent:                 10000,
			TiffinDailyCost:      80,
			TiffinWeekdayCount:   22,
			TiffinSaturdayCount:  4,
			ElectricityAmount:    1500,
			ElectricityDueMonths: []int{2, 4, 6, 8, 10, 12},
		},
		IncomeSources: []core.IncomeSource{
			{Day: 25, Amount: 40000, Description: "Salary"},
			{Day: 5, Amount: 5000, Description: "Freelance"},
		},
		DailyDefaults: core.DailyDefaults{
			Weekday:  map[string]int64{"breakfast": 50, "lunch": 100, "dinner": 150},
			Saturday: map[string]int64{"breakfast": 50, "dinner": 200},
			Sunday:   map[string]int64{"brunch": 400},
		},
		Cycle: cycle,
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	m     *CycleManager
	store *storage.MemoryStore
	clock *testClock
}

func newFixture(t *testing.T, now time.Time, opts ...Option) *fixture {
	t.Helper()
	clock := &testClock{now: now}
	store := storage.NewMemoryStore()
	m, err := NewCycleManager(store, testConfig(), append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("NewCycleManager() error = %v", err)
	}
	return &fixture{m: m, store: store, clock: clock}
}

// startJan25 opens the standard test cycle: 50000 on 2024-01-25, goal 40170.
func (f *fixture) startJan25(t *testing.T) *core.CycleState {
	t.Helper()
	c, err := f.m.StartCycle(context.Background(), 50000, core.NewDate(2024, 1, 25), nil)
	if err != nil {
		t.Fatalf("StartCycle() error = %v", err)
	}
	return c
}

func (f *fixture) state(t *testing.T) *core.AppState {
	t.Helper()
	s, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

type recordingMirror struct {
	mu       sync.Mutex
	upserts  []core.DailySpendLog
	remote   []core.DailySpendLog
	fetchErr error
	writeErr error
}

func (r *recordingMirror) FetchAll(context.Context) ([]core.DailySpendLog, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.remote, nil
}

func (r *recordingMirror) Upsert(_ context.Context, l core.DailySpendLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, l)
	return r.writeErr
}

var errMirrorDown = errors.New("mirror down")
