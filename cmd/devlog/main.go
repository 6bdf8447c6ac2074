package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"devlog/internal/bootstrap"
	"devlog/internal/config"
	"devlog/internal/logging"
	"devlog/internal/render"
	"devlog/internal/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "devlog: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	stdout io.Writer
	stderr io.Writer
	theme  render.Theme

	cfg config.Config
	log *logging.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, theme: pickTheme()}

	root := &cobra.Command{
		Use:   "devlog",
		Short: "Daily project snapshots with an LLM-written changelog",
		Long: `devlog copies every watched project once a day, diffs yesterday's copy
against the live tree, asks a language model to summarize each diff and
prepends the summaries to a Markdown changelog that is committed and pushed.

Without a subcommand devlog runs the daily loop.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.load() },
		PersistentPostRun: func(cmd *cobra.Command, _ []string) { _ = a.log.Close() },
		RunE:              func(cmd *cobra.Command, _ []string) error { return a.runDaemon(cmd.Context()) },
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config JSON/JSONC/YAML")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(a),
		newOnceCmd(a),
		newBackupCmd(a),
		newDiffCmd(a),
		newChangelogCmd(a),
		newHistoryCmd(a),
		newSnapshotsCmd(a),
		newModelsCmd(a),
		newInitCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl := strings.TrimSpace(a.logLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Log, a.stderr)
	return nil
}

// pickTheme honors the NO_COLOR convention.
func pickTheme() render.Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return render.PlainTheme()
	}
	return render.DarkTheme()
}

// build wires the full component graph; callers must close the result.
func (a *app) build(ctx context.Context) (*bootstrap.BuildResult, error) {
	res, err := bootstrap.Build(ctx, a.cfg, a.log.Logger)
	if err != nil {
		return nil, fmt.Errorf("init components: %w", err)
	}
	return res, nil
}

func (a *app) closeBuild(ctx context.Context, res *bootstrap.BuildResult) {
	if res == nil {
		return
	}
	if err := res.Close(ctx); err != nil {
		a.log.Warn("close components", "error", err)
	}
}

// historyOf avoids handing the server a typed nil store.
func historyOf(res *bootstrap.BuildResult) server.History {
	if res == nil || res.Store == nil {
		return nil
	}
	return res.Store
}

func (a *app) println(args ...any) {
	_, _ = fmt.Fprintln(a.stdout, args...)
}

func (a *app) kv(label string, value any) {
	a.println(render.KeyValue(label, value, a.theme))
}
