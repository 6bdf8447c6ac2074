package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"devlog/internal/changelog"
	"devlog/internal/diff"
	"devlog/internal/execx"
	"devlog/internal/render"
	"devlog/internal/snapshot"
	"devlog/internal/storage"

	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take today's snapshot without summarizing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			now, err := resolveDate(date, time.Now())
			if err != nil {
				return err
			}
			store, err := snapshot.NewStore(a.cfg.BackupRoot, a.log.With("component", "snapshot"))
			if err != nil {
				return err
			}
			res, err := store.Backup(a.cfg.Projects, now)
			if err != nil {
				return err
			}
			a.kv("Date", res.Date)
			a.kv("Directory", res.Dir)
			if res.Skipped {
				a.println("backup already exists, nothing copied")
				return nil
			}
			for _, s := range res.Snapshots {
				a.println(fmt.Sprintf("  %s: %d file(s), %d byte(s)", s.Project, s.Files, s.Bytes))
			}
			for _, f := range res.Failures {
				a.println(a.theme.ErrorStyle.Render(fmt.Sprintf("  %s: %v", f.Project, f.Err)))
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d project(s) failed to back up", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Snapshot day (YYYY-MM-DD), defaults to today")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var (
		date     string
		raw      bool
		maxLines int
	)
	cmd := &cobra.Command{
		Use:   "diff [project] | diff <old-dir> <new-dir>",
		Short: "Preview what changed since yesterday's snapshot",
		Long: `Show the diff the next cycle would summarize.

With no argument every project is compared with yesterday's snapshot; a single
argument limits the preview to that project (by name or path). Two arguments
compare two arbitrary directories.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine := diff.NewEngine(
				execx.NewExecRunner(a.cfg.Command.TimeoutMS, a.cfg.Command.OutputLimitBytes),
				a.cfg.Diff, a.log.With("component", "diff"))

			if len(args) == 2 {
				report, err := engine.Diff(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				a.printReport(args[1], report, raw, maxLines)
				return nil
			}

			now, err := resolveDate(date, time.Now())
			if err != nil {
				return err
			}
			projects, err := selectProjects(a.cfg.Projects, args)
			if err != nil {
				return err
			}
			return a.previewProjects(ctx, engine, projects, now, raw, maxLines)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Treat this day (YYYY-MM-DD) as today")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the diff without colors")
	cmd.Flags().IntVar(&maxLines, "max-lines", 500, "Cut each diff after this many lines (0 = no limit)")
	return cmd
}

// selectProjects picks the configured projects named by args (all when empty).
func selectProjects(projects, args []string) ([]string, error) {
	if len(args) == 0 {
		if len(projects) == 0 {
			return nil, errors.New("no projects configured")
		}
		return projects, nil
	}
	want := strings.TrimSpace(args[0])
	for _, p := range projects {
		if p == want || snapshot.ProjectName(p) == want {
			return []string{p}, nil
		}
	}
	return nil, fmt.Errorf("project %q is not configured", want)
}

func (a *app) previewProjects(ctx context.Context, engine *diff.Engine, projects []string, now time.Time, raw bool, maxLines int) error {
	store, err := snapshot.NewStore(a.cfg.BackupRoot, a.log.With("component", "snapshot"))
	if err != nil {
		return err
	}
	yesterday := now.AddDate(0, 0, -1)
	if !store.Exists(yesterday) {
		return fmt.Errorf("no snapshot for %s under %s", snapshot.FormatDate(yesterday), store.Root())
	}
	for _, project := range projects {
		name := snapshot.ProjectName(project)
		if !store.HasProject(yesterday, name) {
			a.println(a.theme.WarningStyle.Render(name + ": no previous snapshot"))
			continue
		}
		report, err := engine.Diff(ctx, store.ProjectPath(yesterday, name), project)
		if err != nil {
			a.println(a.theme.ErrorStyle.Render(fmt.Sprintf("%s: %v", name, err)))
			continue
		}
		a.printReport(name, report, raw, maxLines)
	}
	return nil
}

func (a *app) printReport(name string, report *diff.Report, raw bool, maxLines int) {
	a.println(a.theme.TitleStyle.Render("== " + name))
	if report.Empty() {
		a.println(a.theme.MutedStyle.Render("no changes"))
		return
	}
	text, _ := diff.Truncate(report.String(), maxLines, a.cfg.Diff.MaxOutputBytes)
	if raw {
		a.println(text)
		return
	}
	a.println(render.Diff(text, a.theme))
}

func newChangelogCmd(a *app) *cobra.Command {
	var (
		raw   bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Show the changelog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := changelog.NewWriter(a.cfg.Changelog, a.log.With("component", "changelog"))
			doc, err := w.Read()
			if err != nil {
				return err
			}
			if strings.TrimSpace(doc) == "" {
				a.println(a.theme.MutedStyle.Render("changelog is empty: " + w.Path()))
				return nil
			}
			if raw {
				_, _ = fmt.Fprint(a.stdout, doc)
				return nil
			}
			a.println(changelog.Render(doc, width))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the Markdown source")
	cmd.Flags().IntVar(&width, "width", 100, "Wrap width for rendered output")
	return cmd
}

func (a *app) openStore() (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded cycles, or the entries of one cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return a.printRun(store, args[0])
			}
			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.println("no runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tENTRIES\tERRORS\tPUBLISHED\tSTARTED")
			for _, r := range runs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
					r.ID, r.Date, r.Status, r.Entries, r.SummaryErrors, r.Published, r.StartedAt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "last", "n", 10, "Number of runs to show")
	return cmd
}

func (a *app) printRun(store storage.Store, id string) error {
	run, err := store.LoadRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return err
	}
	a.kv("Run", run.ID)
	a.kv("Date", run.Date)
	a.kv("Status", render.Status(run.Status, a.theme))
	if run.Error != "" {
		a.kv("Error", run.Error)
	}
	entries, err := store.ListEntries(run.ID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s [%s, %d bytes]: %s", e.Project, e.DiffSource, e.DiffBytes, e.Summary)
		if e.SummaryFailed {
			line = a.theme.ErrorStyle.Render(line)
		}
		a.println(line)
	}
	return nil
}

func newSnapshotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots [date]",
		Short: "List snapshot days, or the projects captured on one day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.printSnapshotDay(args[0])
			}
			store, err := snapshot.NewStore(a.cfg.BackupRoot, a.log.With("component", "snapshot"))
			if err != nil {
				return err
			}
			days, err := store.List()
			if err != nil {
				return err
			}
			if len(days) == 0 {
				a.println("no snapshots under " + store.Root())
				return nil
			}
			for _, d := range days {
				a.println(d)
			}
			return nil
		},
	}
}

func (a *app) printSnapshotDay(date string) error {
	if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	snaps, err := store.ListSnapshots(date)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		a.println("no snapshots recorded for " + date)
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROJECT\tFILES\tBYTES\tFINGERPRINT\tPATH")
	for _, s := range snaps {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.Project, s.Files, s.Bytes, s.Fingerprint, s.Path)
	}
	return tw.Flush()
}
