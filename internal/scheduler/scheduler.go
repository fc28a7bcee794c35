// Package scheduler drives the recurring background passes: the open-jobs
// sweep, the profile sweep, the match-score pass and the notification run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dhiway/jobstack-bap/internal/config"
)

// startDelay postpones the first one-shot run so the HTTP server and the
// downstream connections are up before any sweep fires.
const startDelay = 5 * time.Second

type Scheduler struct {
	cron *cron.Cron

	sweepJobs    func(context.Context)
	syncProfiles func(context.Context)
	matchPass    func()
	notify       func(context.Context)
}

func New(sweepJobs, syncProfiles func(context.Context), matchPass func(), notify func(context.Context)) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		sweepJobs:    sweepJobs,
		syncProfiles: syncProfiles,
		matchPass:    matchPass,
		notify:       notify,
	}
}

// Start registers every configured pass and launches the cron loop. Each
// interval pass also runs once shortly after startup so a fresh deployment
// does not wait a full period for data.
func (s *Scheduler) Start(ctx context.Context, cfg *config.Config) error {
	if secs := cfg.Cron.FetchJobs.Seconds; secs > 0 {
		if _, err := s.cron.AddFunc(everySeconds(secs), func() { s.sweepJobs(ctx) }); err != nil {
			return fmt.Errorf("schedule job sweep: %w", err)
		}
		s.runSoon(ctx, "job sweep", func() { s.sweepJobs(ctx) })
	}

	if secs := cfg.Cron.FetchProfiles.Seconds; secs > 0 {
		if _, err := s.cron.AddFunc(everySeconds(secs), func() { s.syncProfiles(ctx) }); err != nil {
			return fmt.Errorf("schedule profile sync: %w", err)
		}
		s.runSoon(ctx, "profile sync", func() { s.syncProfiles(ctx) })
	}

	if secs := cfg.Cron.ComputeMatchScores.Seconds; secs > 0 {
		if _, err := s.cron.AddFunc(everySeconds(secs), s.matchPass); err != nil {
			return fmt.Errorf("schedule match pass: %w", err)
		}
		s.runSoon(ctx, "match pass", s.matchPass)
	}

	notifyExpr, err := notificationExpr(cfg.Cron.Notification.Schedule)
	if err != nil {
		return err
	}
	if notifyExpr != "" {
		if _, err := s.cron.AddFunc(notifyExpr, func() { s.notify(ctx) }); err != nil {
			return fmt.Errorf("schedule notification: %w", err)
		}
		slog.Info("notification pass scheduled", "expr", notifyExpr)
	}

	s.cron.Start()
	slog.Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight runs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runSoon(ctx context.Context, name string, fn func()) {
	go func() {
		select {
		case <-time.After(startDelay):
			slog.Info("startup pass", "name", name)
			fn()
		case <-ctx.Done():
		}
	}()
}

// everySeconds builds a six-field spec firing every n seconds. A step in
// the seconds field only cycles within a minute, so intervals of a minute
// or more move to the minutes field; a sub-minute remainder is dropped.
func everySeconds(n int) string {
	if n < 60 {
		return fmt.Sprintf("*/%d * * * * *", n)
	}
	return fmt.Sprintf("0 */%d * * * *", n/60)
}

// notificationExpr renders the weekly/monthly slot into a six-field spec.
// An empty schedule type disables the pass.
func notificationExpr(sched config.NotificationSchedule) (string, error) {
	switch sched.Type {
	case "":
		return "", nil
	case "weekly":
		weekday := 0
		if sched.Weekday != nil {
			weekday = *sched.Weekday
		}
		if weekday < 0 || weekday > 6 {
			return "", fmt.Errorf("notification schedule: weekday %d out of range", weekday)
		}
		return fmt.Sprintf("%d %d %d * * %d", sched.Seconds, sched.Minute, sched.Hour, weekday), nil
	case "monthly":
		day := 1
		if sched.Day != nil {
			day = *sched.Day
		}
		if day < 1 || day > 31 {
			return "", fmt.Errorf("notification schedule: day %d out of range", day)
		}
		return fmt.Sprintf("%d %d %d %d * *", sched.Seconds, sched.Minute, sched.Hour, day), nil
	default:
		return "", fmt.Errorf("notification schedule: unknown type %q", sched.Type)
	}
}
