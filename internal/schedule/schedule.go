// Package schedule runs a job once a day at a fixed local time of day.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// NextRun returns the first hour:minute strictly after now, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// NextMidnight returns the start of the day after now.
func NextMidnight(now time.Time) time.Time {
	return NextRun(now, 0, 0)
}

// Job is one scheduled execution; now is the wake-up time.
type Job func(ctx context.Context, now time.Time)

// Loop sleeps until the next run time, runs the job and repeats.
type Loop struct {
	Hour   int
	Minute int
	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Log    *slog.Logger
}

// Run blocks until ctx is cancelled. Jobs run sequentially.
func (l *Loop) Run(ctx context.Context, job Job) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := l.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	for {
		current := now()
		next := NextRun(current, l.Hour, l.Minute)
		log.Info("waiting for next run", "at", next.Format(time.RFC3339), "in", next.Sub(current).Round(time.Second))
		if err := sleep(ctx, next.Sub(current)); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		job(ctx, now())
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
