package main

import (
	"fmt"
	"sort"
	"strings"

	"devlog/internal/config"
	"devlog/internal/provider"

	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models offered by the provider",
		Long: `List the models the configured OpenAI-compatible endpoint offers. The model
used for summaries is marked with '*'.

Examples:
  devlog models
  devlog models --set gpt-4o   # persist provider.model in ./devlog.config.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if set = strings.TrimSpace(set); set != "" {
				if err := config.WriteProviderModel(".", set); err != nil {
					return fmt.Errorf("save model: %w", err)
				}
				a.println("provider.model set to " + set + " in " + config.ProjectConfigFile)
				return nil
			}

			p := provider.NewOpenAIProvider(a.cfg.Provider)
			models, err := p.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			for _, id := range modelIDs(models, p.CurrentModel()) {
				marker := "  "
				if id == p.CurrentModel() {
					marker = "* "
				}
				a.println(marker + id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "Write provider.model to the project config instead of listing")
	return cmd
}

// modelIDs returns sorted unique ids, with current included even when the
// endpoint does not report it.
func modelIDs(models []provider.ModelInfo, current string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(models)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, m := range models {
		add(m.ID)
	}
	add(current)
	sort.Strings(out)
	return out
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default devlog.config.json",
		Args:  cobra.MaximumNArgs(1),
		// The config may not exist yet, so skip loading it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			path, created, err := config.InitProjectConfigScaffold(dir)
			if err != nil {
				return err
			}
			if created {
				a.println("wrote " + path)
			} else {
				a.println(path + " already exists, left unchanged")
			}
			return nil
		},
	}
}
