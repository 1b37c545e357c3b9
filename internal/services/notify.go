package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cashflow/internal/core"
)

type NotificationKind string

const (
	NotifyCheckin        NotificationKind = "checkin"
	NotifyAutoClosed     NotificationKind = "auto_closed"
	NotifyAutoFilled     NotificationKind = "auto_filled"
	NotifyTiffinReminder NotificationKind = "tiffin_reminder"
)

type Notification struct {
	Kind     NotificationKind
	UserID   *int64
	Message  string
	Snapshot *StatusSnapshot
}

// Notifier delivers check-in messages to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications as structured log lines.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"kind", string(n.Kind)}
	if n.UserID != nil {
		attrs = append(attrs, "user_id", *n.UserID)
	}
	logger.InfoContext(ctx, n.Message, attrs...)
	return nil
}

func displayDate(d core.Date) string {
	return strings.ToUpper(d.Format("02-Jan-06"))
}

// formatCheckin renders the evening prompt.
func formatCheckin(s *StatusSnapshot, autoApply, autoFill int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Check-in for %s\n", displayDate(s.Today))
	if s.Cycle != nil {
		fmt.Fprintf(&b, "Wallet balance: %s (%d days left, %s per day)\n",
			core.FormatAmount(s.Cycle.DailyWallet.Balance), s.DaysLeft, core.FormatAmount(s.AveragePerRemainingDay))
	}
	fmt.Fprintf(&b, "Today's defaults: %s, wiggle room %s\n",
		core.FormatAmount(s.TodayDefault.Total), core.FormatAmount(s.Wiggle))
	fmt.Fprintf(&b, "Money to hold till %s: %s\n", displayDate(s.ThroughDueDate.End), core.FormatAmount(s.ThroughDueDate.Total))
	fmt.Fprintf(&b, "Money to hold till %s: %s\n", displayDate(s.ThroughTenth.End), core.FormatAmount(s.ThroughTenth.Total))
	fmt.Fprintf(&b, "Confirm within %d minutes to log extras, otherwise defaults are applied.\n", autoApply)
	fmt.Fprintf(&b, "Log today's meals within %d minutes, otherwise defaults are recorded.", autoFill)
	return b.String()
}

func formatSpendLog(l core.DailySpendLog) string {
	return fmt.Sprintf("Breakfast %s, Lunch %s, Dinner %s, Other %s",
		core.FormatAmount(l.Breakfast), core.FormatAmount(l.Lunch),
		core.FormatAmount(l.Dinner), core.FormatAmount(l.Other))
}
