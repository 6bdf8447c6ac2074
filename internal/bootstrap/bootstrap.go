package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devlog/internal/changelog"
	"devlog/internal/config"
	"devlog/internal/diff"
	"devlog/internal/execx"
	"devlog/internal/pipeline"
	"devlog/internal/provider"
	"devlog/internal/publish"
	"devlog/internal/snapshot"
	"devlog/internal/storage"
	"devlog/internal/summary"
	"devlog/internal/telemetry"
)

// BuildResult 构建完成的组件集合，供命令行使用
// BuildResult holds the wired components used by the CLI
type BuildResult struct {
	Config     config.Config
	Runner     execx.Runner
	Snapshots  *snapshot.Store
	Differ     *diff.Engine
	Provider   *provider.OpenAIProvider
	Summarizer summary.Summarizer
	Changelog  *changelog.Writer
	Publisher  publish.Publisher
	Store      *storage.SQLiteStore
	Metrics    telemetry.Recorder
	Pipeline   *pipeline.Pipeline
}

// Build 按依赖顺序初始化组件；调用方负责 Close
// Build initializes components in dependency order; the caller must call Close
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*BuildResult, error) {
	if log == nil {
		log = slog.Default()
	}

	snapshots, err := snapshot.NewStore(cfg.BackupRoot, log.With("component", "snapshot"))
	if err != nil {
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	if strings.TrimSpace(cfg.Changelog.Path) == "" {
		return nil, errors.New("changelog path is empty")
	}

	runner := execx.NewExecRunner(cfg.Command.TimeoutMS, cfg.Command.OutputLimitBytes)
	differ := diff.NewEngine(runner, cfg.Diff, log.With("component", "diff"))

	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		log.Warn("no API key configured; summaries will fall back to the error placeholder",
			"hint", "set DEVLOG_API_KEY or provider.api_key")
	}
	prov := provider.NewOpenAIProvider(cfg.Provider)
	summarizer := summary.NewModelSummarizer(prov, cfg.Summary, nil, log.With("component", "summary"))

	writer := changelog.NewWriter(cfg.Changelog, log.With("component", "changelog"))
	publisher := publish.New(runner, cfg.Publish, log.With("component", "publish"))

	metrics, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		log.Warn("metrics disabled", "error", err)
		metrics = telemetry.NewNoOp()
	}

	res := &BuildResult{
		Config:     cfg,
		Runner:     runner,
		Snapshots:  snapshots,
		Differ:     differ,
		Provider:   prov,
		Summarizer: summarizer,
		Changelog:  writer,
		Publisher:  publisher,
		Metrics:    metrics,
	}

	deps := pipeline.Deps{
		Projects:   cfg.Projects,
		Snapshots:  snapshots,
		Differ:     differ,
		Summarizer: summarizer,
		Changelog:  writer,
		Publisher:  publisher,
		Metrics:    metrics,
		Log:        log.With("component", "pipeline"),
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		log.Warn("run history disabled", "path", cfg.DBPath(), "error", err)
	} else {
		res.Store = store
		deps.Store = store
	}
	res.Pipeline = pipeline.New(deps)
	return res, nil
}

// Close 释放数据库和指标导出器
// Close releases the database and flushes metrics
func (r *BuildResult) Close(ctx context.Context) error {
	var errs []error
	if r.Metrics != nil {
		if err := r.Metrics.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close metrics: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
