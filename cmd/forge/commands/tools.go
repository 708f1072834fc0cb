package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/pkg/catalog"
	"github.com/opsforge/opsforge/pkg/config"
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Tool catalog introspection",
		Long: `Inspect the tool catalog.

The active tool set is the built-in tools merged with definitions from
the catalog directories in OPSFORGE_CATALOG_DIRS, later directories
winning name collisions.`,
	}

	cmd.AddCommand(newToolsListCommand())
	cmd.AddCommand(newToolsShowCommand())
	cmd.AddCommand(newToolsReloadCommand())

	return cmd
}

// newToolRegistry loads the catalog without the execution stack; the
// tools commands do not need the store or the monitor.
func newToolRegistry(ctx context.Context) (*catalog.Registry, catalog.ReloadReport, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, catalog.ReloadReport{}, err
	}

	registry := catalog.NewRegistry(cfg.Catalog.Dirs, nil, nil, log.Logger)
	report, err := registry.Reload(ctx)
	if err != nil {
		return nil, catalog.ReloadReport{}, fmt.Errorf("failed to load tool catalog: %w", err)
	}
	return registry, report, nil
}

func newToolsListCommand() *cobra.Command {
	var (
		platform string
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active tool set",
		Example: `  # List every tool
  forge tools list

  # List linux patching tools
  forge tools list --platform linux --category patching`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := newToolRegistry(cmd.Context())
			if err != nil {
				return err
			}

			tools := registry.List(platform, category)
			if jsonOutput {
				return printJSON(tools)
			}

			fmt.Printf("%-28s %-14s %-10s %-10s %s\n", "NAME", "CATEGORY", "PLATFORM", "SOURCE", "SERVICE")
			for _, def := range tools {
				fmt.Printf("%-28s %-14s %-10s %-10s %s\n",
					def.Name, def.Category, def.Platform, def.Source, def.Service)
			}
			fmt.Printf("\n%d tools\n", len(tools))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform (windows, linux, unix, network)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")

	return cmd
}

func newToolsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one tool definition",
		Example: `  # Show the restart_service definition
  forge tools show restart_service`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := newToolRegistry(cmd.Context())
			if err != nil {
				return err
			}

			def, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("tool %s not found", args[0])
			}
			return printJSON(def)
		},
	}

	return cmd
}

func newToolsReloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the tool set and report the result",
		Long: `Rebuild the tool set from the built-ins and the catalog directories.

Useful as a catalog validation step: the report counts loaded and
skipped definitions and lists required tools that are missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, report, err := newToolRegistry(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(report)
			}

			fmt.Printf("Builtins:   %d\n", report.Builtins)
			fmt.Printf("Catalog:    %d\n", report.CatalogTools)
			fmt.Printf("Skipped:    %d\n", report.SkippedFiles)
			fmt.Printf("Overridden: %d\n", report.Overridden)
			fmt.Printf("Duration:   %s\n", report.Duration)
			if len(report.MissingRequired) > 0 {
				fmt.Printf("Missing:    %v\n", report.MissingRequired)
				return fmt.Errorf("%d required tools missing from the catalog", len(report.MissingRequired))
			}
			return nil
		},
	}

	return cmd
}
