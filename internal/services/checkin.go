package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/scheduler"
)

const (
	jobCheckin        = "daily_checkin"
	jobTiffinReminder = "tiffin_reminder"
	jobAutoClose      = "auto_close_defaults"
	jobAutoFill       = "auto_fill_spend_log"

	autoClosedNote = "Auto closed"
)

// Scheduler is the timer collaborator. Tokens it returns are persisted on
// pending actions and used to cancel them.
type Scheduler interface {
	ScheduleRecurring(name, spec string, job scheduler.Job) (string, error)
	ScheduleOnce(name string, at time.Time, job scheduler.Job) (string, error)
	Cancel(token string) bool
	CancelByName(name string) int
	Pending(token string) bool
}

// CheckinService drives the evening check-in and its fallbacks.
type CheckinService struct {
	cycles   *CycleManager
	sched    Scheduler
	notifier Notifier
	logger   *applog.Logger

	checkinHour, checkinMinute   int
	reminderHour, reminderMinute int
	reminder                     bool
	autoApplyAfter               time.Duration
	autoFillAfter                time.Duration
}

func NewCheckinService(cycles *CycleManager, sched Scheduler, notifier Notifier) (*CheckinService, error) {
	settings := cycles.Config().Cycle
	h, m, err := core.ParseClock(settings.CheckinTime)
	if err != nil {
		return nil, fmt.Errorf("checkin time: %w", err)
	}
	s := &CheckinService{
		cycles:         cycles,
		sched:          sched,
		notifier:       notifier,
		logger:         applog.Default(applog.ComponentCheckin),
		checkinHour:    h,
		checkinMinute:  m,
		autoApplyAfter: time.Duration(settings.AutoApplyDefaultsAfterMinutes) * time.Minute,
		autoFillAfter:  time.Duration(settings.SpendAutoFillAfterMinutes) * time.Minute,
	}
	if settings.TiffinReminderTime != "" {
		s.reminderHour, s.reminderMinute, err = core.ParseClock(settings.TiffinReminderTime)
		if err != nil {
			return nil, fmt.Errorf("tiffin reminder time: %w", err)
		}
		s.reminder = true
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	return s, nil
}

// Start registers the daily jobs and re-arms persisted pending actions.
// Calling it again replaces the daily jobs rather than doubling them.
func (s *CheckinService) Start(ctx context.Context) error {
	for _, name := range []string{jobCheckin, jobTiffinReminder} {
		if n := s.sched.CancelByName(name); n > 0 {
			s.logger.InfoContext(ctx, "Replacing daily job", "job", name, "previous", n)
		}
	}

	spec := fmt.Sprintf("%d %d * * *", s.checkinMinute, s.checkinHour)
	if _, err := s.sched.ScheduleRecurring(jobCheckin, spec, func(ctx context.Context) {
		if err := s.RunCheckin(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Daily check-in failed", applog.FieldError, err)
		}
	}); err != nil {
		return err
	}

	if s.reminder {
		spec := fmt.Sprintf("%d %d * * 1-6", s.reminderMinute, s.reminderHour)
		if _, err := s.sched.ScheduleRecurring(jobTiffinReminder, spec, s.tiffinReminder); err != nil {
			return err
		}
	}
	return s.Restore(ctx)
}

// RunCheckin sends the status prompt for today and arms the auto-close and
// auto-fill fallbacks, replacing any still armed for today.
func (s *CheckinService) RunCheckin(ctx context.Context) error {
	today := s.cycles.Today()
	snap, err := s.cycles.GetStatusSnapshot(ctx, today, nil)
	if err != nil {
		return fmt.Errorf("run checkin: %w", err)
	}
	userID, err := s.cycles.UserID(ctx)
	if err != nil {
		return fmt.Errorf("run checkin: %w", err)
	}
	settings := s.cycles.Config().Cycle
	s.notify(ctx, Notification{
		Kind:     NotifyCheckin,
		UserID:   userID,
		Message:  formatCheckin(snap, settings.AutoApplyDefaultsAfterMinutes, settings.SpendAutoFillAfterMinutes),
		Snapshot: snap,
	})

	if err := s.armAutoClose(ctx, today, s.cycles.Now().Add(s.autoApplyAfter)); err != nil {
		return fmt.Errorf("run checkin: %w", err)
	}
	fillAt := today.At(s.checkinHour, s.checkinMinute, s.cycles.Location()).Add(s.autoFillAfter)
	if err := s.armAutoFill(ctx, today, fillAt); err != nil {
		return fmt.Errorf("run checkin: %w", err)
	}
	s.logger.InfoContext(ctx, "Check-in sent", applog.FieldDate, today.String(), "days_left", snap.DaysLeft)
	return nil
}

func (s *CheckinService) armAutoClose(ctx context.Context, date core.Date, at time.Time) error {
	if p, ok, err := s.cycles.PendingDefault(ctx); err != nil {
		return err
	} else if ok {
		s.sched.Cancel(p.Token)
	}
	token, err := s.sched.ScheduleOnce(jobAutoClose, at, func(ctx context.Context) { s.autoClose(ctx, date) })
	if err != nil {
		return err
	}
	if err := s.cycles.MarkPendingDefault(ctx, date, token, at); err != nil {
		s.sched.Cancel(token)
		return err
	}
	return nil
}

func (s *CheckinService) armAutoFill(ctx context.Context, date core.Date, at time.Time) error {
	if p, ok, err := s.cycles.PendingSpend(ctx, date); err != nil {
		return err
	} else if ok {
		s.sched.Cancel(p.Token)
	}
	token, err := s.sched.ScheduleOnce(jobAutoFill, at, func(ctx context.Context) { s.autoFill(ctx, date) })
	if err != nil {
		return err
	}
	if err := s.cycles.MarkPendingSpend(ctx, date, token, at); err != nil {
		s.sched.Cancel(token)
		return err
	}
	return nil
}

// Confirm closes the pending check-in with the user's extras.
func (s *CheckinService) Confirm(ctx context.Context, extra int64, note string) (*core.CycleState, error) {
	p, ok, err := s.cycles.PendingDefault(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrNoPendingCheckin
	}
	s.sched.Cancel(p.Token)
	return s.cycles.ApplyDailyDefaults(ctx, p.TargetDate, extra, note, false)
}

// LogSpend records the day's meals and disarms that date's auto-fill.
func (s *CheckinService) LogSpend(ctx context.Context, date core.Date, breakfast, lunch, dinner, other int64) (core.DailySpendLog, error) {
	p, pending, err := s.cycles.PendingSpend(ctx, date)
	if err != nil {
		return core.DailySpendLog{}, err
	}
	entry, err := s.cycles.LogDailySpend(ctx, date, breakfast, lunch, dinner, other, false)
	if err != nil {
		return core.DailySpendLog{}, err
	}
	if pending {
		s.sched.Cancel(p.Token)
	}
	return entry, nil
}

func (s *CheckinService) autoClose(ctx context.Context, date core.Date) {
	p, ok, err := s.cycles.PendingDefault(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto-close failed to read pending state", applog.FieldDate, date.String(), applog.FieldError, err)
		return
	}
	if !ok || !p.TargetDate.Equal(date) {
		s.logger.InfoContext(ctx, "Auto-close skipped, check-in no longer pending", applog.FieldDate, date.String())
		return
	}

	cycle, err := s.cycles.GetCycle(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto-close failed to read cycle", applog.FieldDate, date.String(), applog.FieldError, err)
		return
	}
	if cycle.Record(date).DefaultsApplied >= cycle.DefaultTotalFor(date) {
		if _, err := s.cycles.ClearPendingDefault(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to clear pending default", applog.FieldError, err)
		}
		s.logger.InfoContext(ctx, "Auto-close skipped, defaults already applied", applog.FieldDate, date.String())
		return
	}

	if _, err := s.cycles.ApplyDailyDefaults(ctx, date, 0, autoClosedNote, true); err != nil {
		s.logger.ErrorContext(ctx, "Auto-close failed", applog.FieldDate, date.String(), applog.FieldError, err)
		return
	}
	s.notifyUser(ctx, NotifyAutoClosed, "Check-in window expired. Default spends applied with zero extras.")
}

func (s *CheckinService) autoFill(ctx context.Context, date core.Date) {
	entry, created, err := s.cycles.EnsureDefaultSpendLog(ctx, date)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto-fill failed", applog.FieldDate, date.String(), applog.FieldError, err)
		return
	}
	if _, err := s.cycles.ClearPendingSpend(ctx, date); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear pending spend", applog.FieldDate, date.String(), applog.FieldError, err)
	}
	if created {
		s.notifyUser(ctx, NotifyAutoFilled, "No spend log received. Recorded defaults: "+formatSpendLog(entry))
	}
}

func (s *CheckinService) tiffinReminder(ctx context.Context) {
	s.notifyUser(ctx, NotifyTiffinReminder, "Reminder: choose today's tiffin.")
}

// Restore re-arms pending actions persisted by a previous process. Actions
// whose fire time has passed run now; ones still armed here are left alone.
func (s *CheckinService) Restore(ctx context.Context) error {
	pending, err := s.cycles.PendingActions(ctx)
	if err != nil {
		return fmt.Errorf("restore pending actions: %w", err)
	}
	now := s.cycles.Now()

	var errs []error
	for _, p := range pending {
		due := !p.FireAt.After(now)
		if !due && s.sched.Pending(p.Token) {
			continue
		}
		s.logger.InfoContext(ctx, "Restoring pending action",
			"kind", string(p.Kind),
			applog.FieldDate, p.TargetDate.String(),
			"fire_at", p.FireAt,
			"overdue", due)

		switch p.Kind {
		case core.PendingDefaultAutoClose:
			if due {
				s.autoClose(ctx, p.TargetDate)
				continue
			}
			if err := s.armAutoClose(ctx, p.TargetDate, p.FireAt); err != nil {
				errs = append(errs, err)
			}
		case core.PendingSpendAutoFill:
			if due {
				s.autoFill(ctx, p.TargetDate)
				continue
			}
			if err := s.armAutoFill(ctx, p.TargetDate, p.FireAt); err != nil {
				errs = append(errs, err)
			}
		default:
			s.logger.WarnContext(ctx, "Unknown pending action kind", "kind", string(p.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore pending actions: %w", errors.Join(errs...))
	}
	return nil
}

func (s *CheckinService) notifyUser(ctx context.Context, kind NotificationKind, msg string) {
	userID, err := s.cycles.UserID(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read user id for notification", applog.FieldError, err)
	}
	s.notify(ctx, Notification{Kind: kind, UserID: userID, Message: msg})
}

func (s *CheckinService) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "Failed to deliver notification", "kind", string(n.Kind), applog.FieldError, err)
	}
}
