// Package scheduler fires at most one reminder per slot per calendar day by polling the clock.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

// Store is the persisted state a check reads and writes.
type Store interface {
	GetPermission() constants.PermissionState
	GetReminderConfig() models.ReminderConfig
	GetSentLog() models.SentLog
	SaveSentLog(models.SentLog) error
}

// Notifier displays a reminder with the given title. The body is chosen by the notifier.
type Notifier interface {
	Notify(ctx context.Context, title string) error
}

type Options struct {
	Interval time.Duration
	// Window is how many minutes, starting at the target minute, a slot stays eligible.
	Window int
	Now    func() time.Time
}

type Scheduler struct {
	store    Store
	notifier Notifier
	interval time.Duration
	window   int
	now      func() time.Time

	// checkMu serializes checks so a slow notifier cannot let two ticks fire the same slot.
	checkMu sync.Mutex

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
	// first tracks the immediate check, which cron does not run.
	first *sync.WaitGroup
}

func New(store Store, notifier Notifier, opts Options) *Scheduler {
	s := &Scheduler{
		store:    store,
		notifier: notifier,
		interval: opts.Interval,
		window:   opts.Window,
		now:      opts.Now,
	}
	if s.interval <= 0 {
		s.interval = constants.DefaultPollInterval
	}
	if s.window < 1 {
		s.window = constants.DefaultMatchWindowMin
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// InWindow reports whether current falls in [target, target+window). Both are minutes since midnight.
func InWindow(current, target, window int) bool {
	return current >= target && current < target+window
}

// Check runs one poll at now and returns the slots that fired.
func (s *Scheduler) Check(ctx context.Context, now time.Time) ([]constants.Slot, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	if s.store.GetPermission() != constants.PermissionGranted {
		return nil, nil
	}

	cfg := s.store.GetReminderConfig()
	sent := s.store.GetSentLog()

	today := now.Format(constants.DateFormat)
	if sent.Date != today {
		sent = models.NewSentLog(today)
		if err := s.store.SaveSentLog(sent); err != nil {
			return nil, fmt.Errorf("failed to reset sent log: %w", err)
		}
		logger.Debug("Reminder log reset", "date", today)
	}

	current := now.Hour()*60 + now.Minute()
	var fired []constants.Slot
	for _, slot := range constants.Slots {
		rs := cfg.Slot(slot)
		if !rs.Enabled || sent.IsSent(slot) {
			continue
		}
		target, err := models.ParseMinutes(rs.Time)
		if err != nil {
			logger.Warn("Skipping reminder with invalid time", "slot", slot, "time", rs.Time)
			continue
		}
		if !InWindow(current, target, s.window) {
			continue
		}

		if err := s.notifier.Notify(ctx, models.SlotTitle(slot)); err != nil {
			logger.Warn("Failed to show reminder", "slot", slot, "error", err)
		}

		sent.MarkSent(slot)
		if err := s.store.SaveSentLog(sent); err != nil {
			return fired, fmt.Errorf("failed to record %s reminder: %w", slot, err)
		}
		fired = append(fired, slot)
		logger.Info("Reminder fired", "slot", slot, "date", today)
	}
	return fired, nil
}

// Start checks once immediately and then on every interval until ctx ends or Stop is called.
// Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := rcron.New(rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger)))
	c.Schedule(rcron.Every(s.interval), rcron.FuncJob(func() { s.tick(runCtx) }))
	c.Start()

	first := new(sync.WaitGroup)
	first.Add(1)
	s.cron = c
	s.cancel = cancel
	s.first = first
	logger.Debug("Reminder scheduler started", "interval", s.interval, "window", s.window)

	go func() {
		defer first.Done()
		s.tick(runCtx)
	}()
	go func() {
		<-runCtx.Done()
		s.wait(c, first)
	}()
}

// Restart stops any running poll and starts a new one so changed settings take effect.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

// Stop cancels the poll and waits for a check in progress, so no reminder fires after it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel, first := s.cron, s.cancel, s.first
	s.cron, s.cancel, s.first = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		s.wait(c, first)
		logger.Debug("Reminder scheduler stopped")
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *Scheduler) wait(c *rcron.Cron, first *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		first.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for reminder check to finish")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Check(ctx, s.now()); err != nil {
		logger.Error("Reminder check failed", "error", err)
	}
}
