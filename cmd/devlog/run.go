package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devlog/internal/bootstrap"
	"devlog/internal/config"
	"devlog/internal/pipeline"
	"devlog/internal/publish"
	"devlog/internal/render"
	"devlog/internal/schedule"
	"devlog/internal/server"
	"devlog/internal/snapshot"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daily loop until interrupted",
		Long: `Sleep until the configured time of day (schedule.at, default 00:00), back up
every project, summarize what changed since yesterday and update the changelog.
The loop repeats until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

func newOnceCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one cycle now",
		Long: `Run a single cycle immediately: back up today's snapshot, diff yesterday's
snapshot against the live projects, summarize, update and publish the changelog.

Examples:
  devlog once
  devlog once --date 2024-05-02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := resolveDate(date, time.Now())
			if err != nil {
				return err
			}
			return a.runOnce(cmd.Context(), now)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Treat this day (YYYY-MM-DD) as today")
	return cmd
}

// resolveDate parses a YYYY-MM-DD override in local time, keeping now's clock.
func resolveDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(snapshot.DateLayout, value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", value)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		now.Hour(), now.Minute(), now.Second(), 0, now.Location()), nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *app) runOnce(ctx context.Context, now time.Time) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signalContext(ctx)
	defer stop()

	res, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer a.closeBuild(context.Background(), res)

	a.checkGit(ctx, res)
	result, err := res.Pipeline.RunCycle(ctx, now)
	a.printCycle(result)
	return err
}

func (a *app) runDaemon(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	hour, minute, err := config.ParseClock(a.cfg.Schedule.At)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(ctx)
	defer stop()

	res, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer a.closeBuild(context.Background(), res)
	a.checkGit(ctx, res)

	if addr := strings.TrimSpace(a.cfg.Server.Addr); addr != "" {
		srv := server.New(addr, res.Changelog, historyOf(res), a.log.With("component", "server"))
		go func() {
			if err := srv.Start(ctx); err != nil {
				a.log.Error("status server stopped", "error", err)
			}
		}()
	}

	a.log.Info("devlog started",
		"projects", len(a.cfg.Projects),
		"backup_root", a.cfg.BackupRoot,
		"changelog", a.cfg.Changelog.Path,
		"at", fmt.Sprintf("%02d:%02d", hour, minute))

	loop := &schedule.Loop{Hour: hour, Minute: minute, Log: a.log.With("component", "schedule")}
	err = loop.Run(ctx, func(ctx context.Context, now time.Time) {
		if result, err := res.Pipeline.RunCycle(ctx, now); err != nil {
			a.log.Error("cycle failed", "run_id", result.RunID, "date", result.Date, "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		a.log.Info("devlog stopped")
		return nil
	}
	return err
}

func (a *app) checkGit(ctx context.Context, res *bootstrap.BuildResult) {
	gp, ok := res.Publisher.(*publish.GitPublisher)
	if !ok {
		return
	}
	if available, version := gp.Check(ctx); available {
		a.log.Debug("git detected", "version", version)
	} else {
		a.log.Warn("git not available; changelog will be written but not published")
	}
}

func (a *app) printCycle(res pipeline.CycleResult) {
	a.kv("Run", res.RunID)
	a.kv("Date", res.Date)
	a.kv("Status", render.Status(res.Status, a.theme))
	switch {
	case res.Backup.Skipped:
		a.kv("Backup", "already taken, skipped")
	default:
		a.kv("Backup", fmt.Sprintf("%d project(s), %d failure(s)", len(res.Backup.Snapshots), len(res.Backup.Failures)))
	}
	a.kv("Changed", len(res.Changes))
	for _, e := range res.Entries {
		a.println("  " + e.Project + ": " + e.Summary)
	}
	if res.SummaryErrors > 0 {
		a.kv("Summary errors", res.SummaryErrors)
	}
	a.kv("Changelog written", res.ChangelogWritten)
	a.kv("Published", res.Published)
	a.kv("Duration", res.Duration.Round(time.Millisecond))
}
