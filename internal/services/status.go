package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/finance"
)

type (
	LineItem struct {
		Item   string `json:"item"`
		Label  string `json:"label"`
		Amount int64  `json:"amount"`
	}

	TodayDefault struct {
		Category core.Category `json:"category"`
		Total    int64         `json:"total"`
		Items    []LineItem    `json:"items"`
	}

	// MonthSpend totals the spend logs of one calendar month.
	MonthSpend struct {
		Label string `json:"label"`
		Year  int    `json:"year"`
		Month int    `json:"month"`
		Total int64  `json:"total"`
		Days  int    `json:"days"`
	}

	// SpendingSummary holds completed months plus the current month up to
	// yesterday. Today is left out because it may still change.
	SpendingSummary struct {
		History      []MonthSpend `json:"history"`
		CurrentMonth MonthSpend   `json:"current_month"`
	}

	StatusSnapshot struct {
		Today                  core.Date             `json:"today"`
		Cycle                  *core.CycleState      `json:"cycle"`
		DaysLeft               int                   `json:"days_left"`
		AveragePerRemainingDay int64                 `json:"average_per_remaining_day"`
		Wiggle                 int64                 `json:"wiggle"`
		TodayDefault           TodayDefault          `json:"today_default"`
		ThroughDueDate         finance.RequiredFunds `json:"through_due_date"`
		ThroughTenth           finance.RequiredFunds `json:"through_tenth"`
		Spending               SpendingSummary       `json:"spending"`
		Pending                []core.PendingAction  `json:"pending"`
	}
)

// GetStatusSnapshot makes sure a cycle covers today and reports where the
// wallet stands against today's defaults and the upcoming bills.
func (m *CycleManager) GetStatusSnapshot(ctx context.Context, today core.Date, userID *int64) (*StatusSnapshot, error) {
	cycle, err := m.EnsureCycleForDate(ctx, today, userID)
	if err != nil {
		return nil, fmt.Errorf("status snapshot: %w", err)
	}
	state, err := m.view(ctx)
	if err != nil {
		return nil, fmt.Errorf("status snapshot: %w", err)
	}
	defaults := m.defaultsFor(state)

	daysLeft := cycle.DaysLeft(today)
	average := cycle.DailyWallet.Balance / int64(max(daysLeft, 1))
	todayDefault := todayDefaultFor(today, defaults)
	throughDue, throughTenth := finance.ComputeRequiredWindows(today, m.cfg, defaults)

	return &StatusSnapshot{
		Today:                  today,
		Cycle:                  cycle,
		DaysLeft:               daysLeft,
		AveragePerRemainingDay: average,
		Wiggle:                 max(0, average-todayDefault.Total),
		TodayDefault:           todayDefault,
		ThroughDueDate:         throughDue,
		ThroughTenth:           throughTenth,
		Spending:               summarizeSpending(m.mergeMirror(ctx, state.SpendLogs), today),
		Pending:                state.Pending,
	}, nil
}

func todayDefaultFor(today core.Date, defaults core.DailyDefaults) TodayDefault {
	total, breakdown := defaults.CostForDate(today)
	items := make([]LineItem, 0, len(breakdown))
	for _, name := range core.ItemNames(breakdown) {
		items = append(items, LineItem{
			Item:   name,
			Label:  finance.ItemLabel(name),
			Amount: breakdown[name],
		})
	}
	return TodayDefault{
		Category: core.CategoryFor(today),
		Total:    total,
		Items:    items,
	}
}

type monthKey struct {
	year  int
	month time.Month
}

func summarizeSpending(logs []core.DailySpendLog, today core.Date) SpendingSummary {
	current := monthKey{today.Year(), today.Month()}
	yesterday := today.AddDays(-1)

	byMonth := make(map[monthKey]*MonthSpend)
	var order []monthKey
	summary := SpendingSummary{CurrentMonth: newMonthSpend(current)}

	// logs arrive sorted, so months are discovered in order
	for _, l := range logs {
		key := monthKey{l.Date.Year(), l.Date.Month()}
		switch {
		case key == current:
			if l.Date.After(yesterday) {
				continue
			}
			summary.CurrentMonth.Total += l.Total()
			summary.CurrentMonth.Days++
		case l.Date.Before(today):
			ms, ok := byMonth[key]
			if !ok {
				m := newMonthSpend(key)
				ms = &m
				byMonth[key] = ms
				order = append(order, key)
			}
			ms.Total += l.Total()
			ms.Days++
		}
	}

	summary.History = make([]MonthSpend, 0, len(order))
	for _, key := range order {
		summary.History = append(summary.History, *byMonth[key])
	}
	return summary
}

func newMonthSpend(k monthKey) MonthSpend {
	first := time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC)
	return MonthSpend{
		Label: strings.ToUpper(first.Format("Jan 2006")),
		Year:  k.year,
		Month: int(k.month),
	}
}
