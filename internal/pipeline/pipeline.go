// Package pipeline runs one daily cycle: snapshot every project, diff each
// one against yesterday's snapshot, summarize the differences, prepend them
// to the changelog and publish it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devlog/internal/changelog"
	"devlog/internal/diff"
	"devlog/internal/publish"
	"devlog/internal/snapshot"
	"devlog/internal/storage"
	"devlog/internal/summary"
	"devlog/internal/telemetry"
)

// Differ compares a previous snapshot with a current tree.
type Differ interface {
	Diff(ctx context.Context, previousPath, currentPath string) (*diff.Report, error)
}

// ChangelogWriter persists a batch of rows.
type ChangelogWriter interface {
	Update(entries []changelog.Entry) error
	Path() string
}

// Deps are the collaborators of a Pipeline. Store and Metrics are optional.
type Deps struct {
	Projects   []string
	Snapshots  *snapshot.Store
	Differ     Differ
	Summarizer summary.Summarizer
	Changelog  ChangelogWriter
	Publisher  publish.Publisher
	Store      storage.Store
	Metrics    telemetry.Recorder
	Log        *slog.Logger
}

// Pipeline wires the daily cycle together.
type Pipeline struct {
	projects   []string
	snapshots  *snapshot.Store
	differ     Differ
	summarizer summary.Summarizer
	changelog  ChangelogWriter
	publisher  publish.Publisher
	store      storage.Store
	metrics    telemetry.Recorder
	log        *slog.Logger
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		projects:   append([]string(nil), d.Projects...),
		snapshots:  d.Snapshots,
		differ:     d.Differ,
		summarizer: d.Summarizer,
		changelog:  d.Changelog,
		publisher:  d.Publisher,
		store:      d.Store,
		metrics:    d.Metrics,
		log:        d.Log,
	}
	if p.metrics == nil {
		p.metrics = telemetry.NewNoOp()
	}
	if p.publisher == nil {
		p.publisher = publish.NewNoop(d.Log)
	}
	if p.log == nil {
		p.log = slog.New(slog.DiscardHandler)
	}
	return p
}

// ProjectChange is a project whose live tree differs from yesterday's copy.
type ProjectChange struct {
	Project string
	Path    string
	Report  *diff.Report
}

// CycleResult describes what one cycle did.
type CycleResult struct {
	RunID            string
	Date             string
	Status           string
	Backup           snapshot.BackupResult
	Changes          []ProjectChange
	Entries          []changelog.Entry
	SummaryErrors    int
	ChangelogWritten bool
	Published        bool
	Duration         time.Duration
}

// DetectChanges diffs every project against its copy in yesterday's
// snapshot. A missing snapshot day or project is a warning, not an error.
func (p *Pipeline) DetectChanges(ctx context.Context, today time.Time) []ProjectChange {
	yesterday := today.AddDate(0, 0, -1)
	if !p.snapshots.Exists(yesterday) {
		p.log.Warn("no backup found for yesterday, skipping change detection",
			"dir", p.snapshots.DayDir(yesterday))
		return nil
	}

	var changes []ProjectChange
	for _, project := range p.projects {
		name := snapshot.ProjectName(project)
		if !p.snapshots.HasProject(yesterday, name) {
			p.log.Warn("no previous backup for project, skipping", "project", name)
			continue
		}
		report, err := p.differ.Diff(ctx, p.snapshots.ProjectPath(yesterday, name), project)
		if err != nil {
			p.log.Error("diff failed", "project", name, "error", err)
			continue
		}
		if report == nil {
			p.log.Info("no changes detected", "project", name)
			continue
		}
		changes = append(changes, ProjectChange{Project: name, Path: project, Report: report})
	}
	return changes
}

// RunCycle performs the daily cycle for the day containing now. Failures are
// logged and isolated; the returned error reports a changelog that could not
// be written.
func (p *Pipeline) RunCycle(ctx context.Context, now time.Time) (CycleResult, error) {
	started := time.Now()
	res := CycleResult{Date: snapshot.FormatDate(now), Status: storage.RunOK}
	run := p.startRun(res.Date)
	res.RunID = run.ID

	backup, err := p.snapshots.Backup(p.projects, now)
	if err != nil {
		p.log.Error("backup failed", "date", res.Date, "error", err)
		res.Status = storage.RunPartial
	}
	res.Backup = backup
	if len(backup.Failures) > 0 {
		res.Status = storage.RunPartial
	}
	p.recordSnapshots(backup)

	res.Changes = p.DetectChanges(ctx, now)
	for _, change := range res.Changes {
		text := change.Report.String()
		sum, ok := summary.SummarizeOrPlaceholder(ctx, p.summarizer, text, p.log.With("project", change.Project))
		if !ok {
			res.SummaryErrors++
			res.Status = storage.RunPartial
		}
		res.Entries = append(res.Entries, changelog.Entry{Date: res.Date, Project: change.Project, Summary: sum})
		p.recordEntry(run.ID, res.Date, change, sum, !ok)
	}

	var cycleErr error
	if len(res.Entries) > 0 {
		if err := p.changelog.Update(res.Entries); err != nil {
			p.log.Error("error updating changelog", "path", p.changelog.Path(), "error", err)
			res.Status = storage.RunFailed
			cycleErr = fmt.Errorf("update changelog: %w", err)
		} else {
			res.ChangelogWritten = true
			res.Published = p.publish(ctx, res.Date)
			if !res.Published && res.Status == storage.RunOK {
				res.Status = storage.RunPartial
			}
		}
	}

	res.Duration = time.Since(started)
	p.finishRun(run, res, cycleErr)
	p.metrics.RecordCycle(ctx, telemetry.CycleStats{
		Date:           res.Date,
		Status:         res.Status,
		Projects:       len(p.projects),
		Entries:        len(res.Entries),
		SummaryErrors:  res.SummaryErrors,
		BackupFailures: len(backup.Failures),
		Duration:       res.Duration,
	})
	p.log.Info("cycle finished",
		"date", res.Date,
		"status", res.Status,
		"entries", len(res.Entries),
		"duration", res.Duration.Round(time.Millisecond))
	return res, cycleErr
}

func (p *Pipeline) publish(ctx context.Context, date string) bool {
	out, err := p.publisher.Publish(ctx, p.changelog.Path(), date)
	if err != nil {
		p.log.Error("error committing changes", "error", err)
		return false
	}
	if len(out.Steps) == 0 {
		// publishing disabled
		return true
	}
	return out.OK()
}

func (p *Pipeline) startRun(date string) storage.RunRecord {
	if p.store == nil {
		return storage.RunRecord{Date: date}
	}
	run, err := p.store.StartRun(date)
	if err != nil {
		p.log.Warn("history unavailable", "error", err)
		return storage.RunRecord{Date: date}
	}
	return run
}

func (p *Pipeline) finishRun(run storage.RunRecord, res CycleResult, cycleErr error) {
	if p.store == nil || run.ID == "" {
		return
	}
	run.Status = res.Status
	run.Projects = len(p.projects)
	run.Entries = len(res.Entries)
	run.SummaryErrors = res.SummaryErrors
	run.BackupFailures = len(res.Backup.Failures)
	run.Published = res.Published && res.ChangelogWritten
	if cycleErr != nil {
		run.Error = cycleErr.Error()
	}
	if err := p.store.FinishRun(run); err != nil {
		p.log.Warn("record run failed", "run", run.ID, "error", err)
	}
}

func (p *Pipeline) recordSnapshots(backup snapshot.BackupResult) {
	if p.store == nil {
		return
	}
	for _, s := range backup.Snapshots {
		err := p.store.RecordSnapshot(storage.SnapshotRecord{
			Date:        s.Date,
			Project:     s.Project,
			Source:      s.Source,
			Path:        s.Path,
			Files:       s.Files,
			Bytes:       s.Bytes,
			Fingerprint: s.Fingerprint,
		})
		if err != nil {
			p.log.Warn("record snapshot failed", "project", s.Project, "error", err)
		}
	}
}

func (p *Pipeline) recordEntry(runID, date string, change ProjectChange, sum string, failed bool) {
	if p.store == nil || runID == "" {
		return
	}
	_, err := p.store.AddEntry(storage.EntryRecord{
		RunID:         runID,
		Date:          date,
		Project:       change.Project,
		Summary:       sum,
		SummaryFailed: failed,
		DiffSource:    change.Report.Source,
		DiffBytes:     len(change.Report.String()),
	})
	if err != nil {
		p.log.Warn("record entry failed", "project", change.Project, "error", err)
	}
}
