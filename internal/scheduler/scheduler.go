// Package scheduler runs recurring and one-shot jobs on a robfig/cron
// runner. Every job gets an opaque token that cancels it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	applog "cashflow/internal/log"
)

var ErrEmptyName = errors.New("job name required")

// Job is the callback a scheduled entry runs.
type Job func(ctx context.Context)

type entry struct {
	name string
	id   cron.EntryID
}

// Scheduler wraps a cron runner in a fixed location.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]entry

	logger *applog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now for one-shot clamping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := applog.Default(applog.ComponentScheduler)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		loc:     loc,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]entry),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Location() *time.Location { return s.loc }

// ScheduleRecurring registers job under a standard five-field cron spec.
func (s *Scheduler) ScheduleRecurring(name, spec string, job Job) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	token := uuid.NewString()
	id, err := s.cron.AddFunc(spec, s.wrap(name, token, job, false))
	if err != nil {
		return "", fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.track(token, name, id)
	s.logger.Info("Scheduled recurring job", "job", name, "spec", spec, applog.FieldToken, token)
	return token, nil
}

// ScheduleOnce runs job once at the given time. A time already in the past
// fires one second from now. The entry removes itself after running.
func (s *Scheduler) ScheduleOnce(name string, at time.Time, job Job) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if earliest := s.now().Add(time.Second); at.Before(earliest) {
		at = earliest
	}
	token := uuid.NewString()
	id := s.cron.Schedule(&onceSchedule{at: at.In(s.loc)}, cron.FuncJob(s.wrap(name, token, job, true)))
	s.track(token, name, id)
	s.logger.Info("Scheduled one-shot job", "job", name, "at", at.In(s.loc).Format(time.RFC3339), applog.FieldToken, token)
	return token, nil
}

// Cancel removes the job behind token. It reports whether one was found.
func (s *Scheduler) Cancel(token string) bool {
	s.mu.Lock()
	e, ok := s.entries[token]
	delete(s.entries, token)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	s.logger.Info("Cancelled job", "job", e.name, applog.FieldToken, token)
	return true
}

// CancelByName removes every job registered under name.
func (s *Scheduler) CancelByName(name string) int {
	s.mu.Lock()
	var tokens []string
	for token, e := range s.entries {
		if e.name == name {
			tokens = append(tokens, token)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, token := range tokens {
		if s.Cancel(token) {
			n++
		}
	}
	return n
}

// Pending reports whether token still refers to a live job.
func (s *Scheduler) Pending(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[token]
	return ok
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "location", s.loc.String())
}

// Stop halts the runner and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) track(token, name string, id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = entry{name: name, id: id}
}

func (s *Scheduler) wrap(name, token string, job Job, once bool) func() {
	return func() {
		if once {
			s.mu.Lock()
			e, ok := s.entries[token]
			delete(s.entries, token)
			s.mu.Unlock()
			if !ok {
				return
			}
			s.cron.Remove(e.id)
		}
		s.logger.Debug("Running job", "job", name, applog.FieldToken, token)
		job(s.ctx)
	}
}

// onceSchedule fires at a single instant.
type onceSchedule struct {
	at time.Time
}

func (o *onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// cronLogger routes cron's internal logging to the scheduler logger.
type cronLogger struct {
	logger *applog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{applog.FieldError, err}, keysAndValues...)...)
}
