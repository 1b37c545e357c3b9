// Package services holds the cycle state machine and the flows built on it:
// the spend-log ledger, status queries and the daily check-in.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/finance"
	applog "cashflow/internal/log"
	"cashflow/internal/sheets"
	"cashflow/internal/storage"
)

const (
	additionalIncomeDescription = "Additional income"
	autoExtraNote               = "Auto extra"
)

// errNoChange lets an update callback skip the save.
var errNoChange = errors.New("no change")

// CycleManager serializes every load-mutate-save round trip on the state
// document. Domain configuration is immutable; default overrides live in
// the state and are layered on top per call.
type CycleManager struct {
	store storage.StateStore
	cfg   core.AppConfig
	loc   *time.Location
	now   func() time.Time

	mirrorReader sheets.SpendLogReader
	mirrorWriter sheets.SpendLogWriter
	logger       *applog.Logger

	mu sync.Mutex
}

type Option func(*CycleManager)

func WithClock(now func() time.Time) Option {
	return func(m *CycleManager) { m.now = now }
}

// WithSpendLogReader enables merging mirrored spend logs into reads.
func WithSpendLogReader(r sheets.SpendLogReader) Option {
	return func(m *CycleManager) { m.mirrorReader = r }
}

// WithSpendLogWriter enables best-effort mirroring of spend log writes.
func WithSpendLogWriter(w sheets.SpendLogWriter) Option {
	return func(m *CycleManager) { m.mirrorWriter = w }
}

func NewCycleManager(store storage.StateStore, cfg core.AppConfig, opts ...Option) (*CycleManager, error) {
	loc, err := cfg.Cycle.Location()
	if err != nil {
		return nil, err
	}
	m := &CycleManager{
		store:  store,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		logger: applog.Default(applog.ComponentCycle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *CycleManager) Config() core.AppConfig   { return m.cfg }
func (m *CycleManager) Location() *time.Location { return m.loc }

// Now is the current instant in the configured timezone.
func (m *CycleManager) Now() time.Time { return m.now().In(m.loc) }

// Today is the calendar date in the configured timezone.
func (m *CycleManager) Today() core.Date { return core.DateOf(m.Now()) }

func (m *CycleManager) update(ctx context.Context, fn func(*core.AppState) error) (*core.AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := fn(state); err != nil {
		if errors.Is(err, errNoChange) {
			return state, nil
		}
		return nil, err
	}
	if err := m.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return state, nil
}

func (m *CycleManager) view(ctx context.Context) (*core.AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

func (m *CycleManager) defaultsFor(state *core.AppState) core.DailyDefaults {
	return m.cfg.DailyDefaults.WithOverrides(state.Overrides)
}

func (m *CycleManager) buildCycle(state *core.AppState, start core.Date, opts ...finance.Option) *core.CycleState {
	comp := finance.BuildCycleComputation(start, m.cfg, m.defaultsFor(state), opts...)
	return comp.State(m.cfg.Cycle.Timezone)
}

// StartCycle replaces any cycle with a fresh one starting at start, using
// amount as the opening balance.
func (m *CycleManager) StartCycle(ctx context.Context, amount int64, start core.Date, userID *int64) (*core.CycleState, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("start cycle: %w", err)
	}
	state, err := m.update(ctx, func(s *core.AppState) error {
		s.Cycle = m.buildCycle(s, start, finance.WithOpeningBalance(amount))
		s.ClearPendingDefault()
		if userID != nil {
			s.UserID = userID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "Cycle started",
		"start", state.Cycle.Start.String(),
		"end", state.Cycle.End.String(),
		"opening_balance", amount,
		"daily_goal", state.Cycle.DailyWallet.Goal)
	return state.Cycle, nil
}

// CycleStartFor returns the start of the anchored cycle that covers d.
func (m *CycleManager) CycleStartFor(d core.Date) core.Date {
	return core.ResolveCycleStart(d, m.cfg.AnchorDay(), m.cfg.Cycle.LengthDays)
}

// EnsureCycleForDate returns the cycle covering today, replacing a stored
// cycle whose start no longer matches. Unspent balance is not carried over.
// When today is one of the days folded into the stored cycle ahead of the
// next anchor, the stored cycle is extended to cover it.
func (m *CycleManager) EnsureCycleForDate(ctx context.Context, today core.Date, userID *int64) (*core.CycleState, error) {
	start := m.CycleStartFor(today)
	replaced, extended := false, 0
	state, err := m.update(ctx, func(s *core.AppState) error {
		changed := false
		if s.Cycle != nil && s.Cycle.Start.Equal(start) {
			extended = finance.ExtendCycle(s.Cycle, today, m.defaultsFor(s))
			changed = extended > 0
		} else {
			s.Cycle = m.buildCycle(s, start)
			s.ClearPendingDefault()
			replaced, changed = true, true
		}
		if userID != nil && (replaced || s.UserID == nil) {
			s.UserID = userID
			changed = true
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch {
	case replaced:
		m.logger.InfoContext(ctx, "Cycle rolled over", "start", start.String(), "today", today.String())
	case extended > 0:
		m.logger.InfoContext(ctx, "Cycle extended to next anchor",
			"start", start.String(),
			"end", state.Cycle.End.String(),
			"days_added", extended)
	}
	return state.Cycle, nil
}

// GetCycle returns the stored cycle or ErrNoActiveCycle.
func (m *CycleManager) GetCycle(ctx context.Context) (*core.CycleState, error) {
	state, err := m.view(ctx)
	if err != nil {
		return nil, err
	}
	if state.Cycle == nil {
		return nil, core.ErrNoActiveCycle
	}
	return state.Cycle, nil
}

// UserID returns the stored user id, if any.
func (m *CycleManager) UserID(ctx context.Context) (*int64, error) {
	state, err := m.view(ctx)
	if err != nil {
		return nil, err
	}
	return state.UserID, nil
}

// LogExtraSpend debits amount on the date ts falls on in the configured timezone.
func (m *CycleManager) LogExtraSpend(ctx context.Context, amount int64, note string, ts time.Time) (*core.CycleState, error) {
	ts = ts.In(m.loc)
	state, err := m.update(ctx, func(s *core.AppState) error {
		if s.Cycle == nil {
			return core.ErrNoActiveCycle
		}
		record := s.Cycle.Record(core.DateOf(ts))
		record.Extras = append(record.Extras, core.ExtraSpendEntry{
			Amount:    amount,
			Note:      strings.TrimSpace(note),
			Timestamp: ts,
		})
		s.Cycle.PutRecord(record)
		s.Cycle.DailyWallet.Debit(amount)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("log extra spend: %w", err)
	}
	m.logger.InfoContext(ctx, "Extra spend logged",
		applog.FieldDate, core.DateOf(ts).String(),
		applog.FieldAmount, amount,
		"balance", state.Cycle.DailyWallet.Balance)
	return state.Cycle, nil
}

// ApplyDailyDefaults records the projected default spend for target. Only
// the difference from what was already applied is debited, so repeating
// the call is harmless. A non-zero extra is always appended and debited.
// Any pending auto-close marker is cleared.
func (m *CycleManager) ApplyDailyDefaults(ctx context.Context, target core.Date, extra int64, note string, autoClosed bool) (*core.CycleState, error) {
	note = strings.TrimSpace(note)
	var delta int64
	state, err := m.update(ctx, func(s *core.AppState) error {
		if s.Cycle == nil {
			return core.ErrNoActiveCycle
		}
		c := s.Cycle
		amount := c.DefaultTotalFor(target)
		record := c.Record(target)
		delta = amount - record.DefaultsApplied
		record.DefaultsApplied = amount
		record.AutoClosed = autoClosed
		if note != "" {
			record.Note = note
		}
		if extra != 0 {
			extraNote := note
			if autoClosed && extraNote == "" {
				extraNote = autoExtraNote
			}
			record.Extras = append(record.Extras, core.ExtraSpendEntry{
				Amount:    extra,
				Note:      extraNote,
				Timestamp: m.Now(),
			})
			c.DailyWallet.Debit(extra)
		}
		if delta > 0 {
			c.DailyWallet.Debit(delta)
		}
		c.PutRecord(record)
		s.ClearPendingDefault()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply daily defaults: %w", err)
	}
	m.logger.InfoContext(ctx, "Daily defaults applied",
		applog.FieldDate, target.String(),
		"delta", max(delta, 0),
		"extra", extra,
		"auto_closed", autoClosed,
		"balance", state.Cycle.DailyWallet.Balance)
	return state.Cycle, nil
}

// RegisterIncome sets the income on date to amount, adding an entry when
// none exists, and moves goal and balance by the change.
func (m *CycleManager) RegisterIncome(ctx context.Context, amount int64, date core.Date) (*core.CycleState, error) {
	state, err := m.update(ctx, func(s *core.AppState) error {
		if s.Cycle == nil {
			return core.ErrNoActiveCycle
		}
		c := s.Cycle
		for i := range c.Incomes {
			if !c.Incomes[i].Date.Equal(date) {
				continue
			}
			previous := c.Incomes[i].EffectiveAmount()
			c.Incomes[i].SetAmount(amount)
			c.DailyWallet.AdjustIncome(amount - previous)
			return nil
		}
		entry := core.IncomeEntry{Date: date, Description: additionalIncomeDescription}
		entry.SetAmount(amount)
		c.Incomes = append(c.Incomes, entry)
		c.SortIncomes()
		c.DailyWallet.AdjustIncome(amount)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register income: %w", err)
	}
	m.logger.InfoContext(ctx, "Income registered",
		applog.FieldDate, date.String(),
		applog.FieldAmount, amount,
		"goal", state.Cycle.DailyWallet.Goal)
	return state.Cycle, nil
}

// MarkPendingDefault records the scheduled auto-close for target, replacing
// any earlier one.
func (m *CycleManager) MarkPendingDefault(ctx context.Context, target core.Date, token string, fireAt time.Time) error {
	_, err := m.update(ctx, func(s *core.AppState) error {
		if s.Cycle == nil {
			return core.ErrNoActiveCycle
		}
		s.SetPending(core.PendingAction{
			Kind:       core.PendingDefaultAutoClose,
			TargetDate: target,
			Amount:     s.Cycle.DefaultTotalFor(target),
			Token:      token,
			FireAt:     fireAt,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark pending default: %w", err)
	}
	return nil
}

// ClearPendingDefault drops the auto-close marker and reports whether one existed.
func (m *CycleManager) ClearPendingDefault(ctx context.Context) (bool, error) {
	removed := false
	_, err := m.update(ctx, func(s *core.AppState) error {
		if removed = s.ClearPendingDefault(); !removed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clear pending default: %w", err)
	}
	return removed, nil
}

func (m *CycleManager) PendingDefault(ctx context.Context) (core.PendingAction, bool, error) {
	state, err := m.view(ctx)
	if err != nil {
		return core.PendingAction{}, false, err
	}
	p, ok := state.PendingDefault()
	return p, ok, nil
}

// PendingActions returns every persisted pending marker.
func (m *CycleManager) PendingActions(ctx context.Context) ([]core.PendingAction, error) {
	state, err := m.view(ctx)
	if err != nil {
		return nil, err
	}
	return state.Pending, nil
}

// UpdateDailyDefault persists a "category.item" override. Cycles already
// computed keep their per-date totals; the override applies to the next one.
func (m *CycleManager) UpdateDailyDefault(ctx context.Context, category, item string, amount int64) (core.DailyDefaults, error) {
	c, err := core.ParseCategory(category)
	if err != nil {
		return core.DailyDefaults{}, err
	}
	item = strings.ToLower(strings.TrimSpace(item))
	if item == "" {
		return core.DailyDefaults{}, fmt.Errorf("%w: empty item", core.ErrInvalidOverrideKey)
	}
	state, err := m.update(ctx, func(s *core.AppState) error {
		s.Overrides[core.OverrideKey(c, item)] = amount
		return nil
	})
	if err != nil {
		return core.DailyDefaults{}, fmt.Errorf("update daily default: %w", err)
	}
	m.logger.InfoContext(ctx, "Daily default updated", "category", string(c), "item", item, applog.FieldAmount, amount)
	return m.defaultsFor(state), nil
}

// Defaults returns the base defaults with persisted overrides applied.
func (m *CycleManager) Defaults(ctx context.Context) (core.DailyDefaults, error) {
	state, err := m.view(ctx)
	if err != nil {
		return core.DailyDefaults{}, err
	}
	return m.defaultsFor(state), nil
}
