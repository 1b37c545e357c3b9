package services

import (
	"context"
	"fmt"
	"time"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
)

// LogDailySpend upserts the per-meal spend for date and clears that date's
// pending auto-fill. The mirror write is best-effort.
func (m *CycleManager) LogDailySpend(ctx context.Context, date core.Date, breakfast, lunch, dinner, other int64, autoFilled bool) (core.DailySpendLog, error) {
	if err := date.Validate(); err != nil {
		return core.DailySpendLog{}, fmt.Errorf("log daily spend: %w", err)
	}
	if date.After(m.Today()) {
		return core.DailySpendLog{}, fmt.Errorf("log daily spend %s: %w", date, core.ErrFutureDate)
	}

	entry := core.DailySpendLog{
		Date:       date,
		Breakfast:  breakfast,
		Lunch:      lunch,
		Dinner:     dinner,
		Other:      other,
		AutoFilled: autoFilled,
		RecordedAt: m.Now(),
	}
	_, err := m.update(ctx, func(s *core.AppState) error {
		s.SpendLogs[date.String()] = entry
		s.ClearPendingSpend(date)
		return nil
	})
	if err != nil {
		return core.DailySpendLog{}, fmt.Errorf("log daily spend: %w", err)
	}
	m.logger.InfoContext(ctx, "Daily spend logged",
		applog.FieldDate, date.String(),
		"total", entry.Total(),
		"auto_filled", autoFilled)

	m.mirror(ctx, entry)
	return entry, nil
}

// EnsureDefaultSpendLog writes the default table for date unless a log
// already exists. It reports whether it created one.
func (m *CycleManager) EnsureDefaultSpendLog(ctx context.Context, date core.Date) (core.DailySpendLog, bool, error) {
	var entry core.DailySpendLog
	created := false
	_, err := m.update(ctx, func(s *core.AppState) error {
		if existing, ok := s.SpendLogs[date.String()]; ok {
			entry = existing
			return errNoChange
		}
		entry = defaultSpendLog(date, m.defaultsFor(s), m.Now())
		s.SpendLogs[date.String()] = entry
		created = true
		return nil
	})
	if err != nil {
		return core.DailySpendLog{}, false, fmt.Errorf("ensure default spend log: %w", err)
	}
	if created {
		m.logger.InfoContext(ctx, "Default spend log recorded", applog.FieldDate, date.String(), "total", entry.Total())
		m.mirror(ctx, entry)
	}
	return entry, created, nil
}

// defaultSpendLog fills the three meals from the date's table and puts
// everything else under other.
func defaultSpendLog(date core.Date, defaults core.DailyDefaults, now time.Time) core.DailySpendLog {
	total, breakdown := defaults.CostForDate(date)
	entry := core.DailySpendLog{
		Date:       date,
		Breakfast:  breakdown["breakfast"],
		Lunch:      breakdown["lunch"],
		Dinner:     breakdown["dinner"],
		AutoFilled: true,
		RecordedAt: now,
	}
	entry.Other = total - entry.Breakfast - entry.Lunch - entry.Dinner
	return entry
}

func (m *CycleManager) MarkPendingSpend(ctx context.Context, date core.Date, token string, fireAt time.Time) error {
	_, err := m.update(ctx, func(s *core.AppState) error {
		s.SetPending(core.PendingAction{
			Kind:       core.PendingSpendAutoFill,
			TargetDate: date,
			Token:      token,
			FireAt:     fireAt,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark pending spend: %w", err)
	}
	return nil
}

func (m *CycleManager) ClearPendingSpend(ctx context.Context, date core.Date) (bool, error) {
	removed := false
	_, err := m.update(ctx, func(s *core.AppState) error {
		if removed = s.ClearPendingSpend(date); !removed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clear pending spend: %w", err)
	}
	return removed, nil
}

func (m *CycleManager) PendingSpend(ctx context.Context, date core.Date) (core.PendingAction, bool, error) {
	state, err := m.view(ctx)
	if err != nil {
		return core.PendingAction{}, false, err
	}
	p, ok := state.PendingSpend(date)
	return p, ok, nil
}

// SpendLogs returns the local logs overlaid with the mirror's, mirror
// winning per date. An unreachable mirror leaves the local logs.
func (m *CycleManager) SpendLogs(ctx context.Context) ([]core.DailySpendLog, error) {
	state, err := m.view(ctx)
	if err != nil {
		return nil, err
	}
	return m.mergeMirror(ctx, state.SpendLogs), nil
}

func (m *CycleManager) mergeMirror(ctx context.Context, local map[string]core.DailySpendLog) []core.DailySpendLog {
	merged := make(map[string]core.DailySpendLog, len(local))
	for k, v := range local {
		merged[k] = v
	}
	if m.mirrorReader != nil {
		remote, err := m.mirrorReader.FetchAll(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "Spend log mirror unavailable, using local logs", applog.FieldError, err)
		}
		for _, l := range remote {
			merged[l.Date.String()] = l
		}
	}

	out := make([]core.DailySpendLog, 0, len(merged))
	for _, l := range merged {
		out = append(out, l)
	}
	core.SortSpendLogs(out)
	return out
}

func (m *CycleManager) mirror(ctx context.Context, entry core.DailySpendLog) {
	if m.mirrorWriter == nil {
		return
	}
	if err := m.mirrorWriter.Upsert(ctx, entry); err != nil {
		m.logger.WarnContext(ctx, "Failed to mirror spend log", applog.FieldDate, entry.Date.String(), applog.FieldError, err)
	}
}
