package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonOutput bool

	// version is the bare version string, used as the service version in
	// telemetry.
	version = "dev"
)

// Execute runs the root command.
func Execute(ctx context.Context, ver, commit, buildDate string) error {
	version = ver
	rootCmd := newRootCommand(ver, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "OpsForge - IT operations automation runtime",
		Long: `OpsForge executes multi-step operational plans against managed
infrastructure.

Features:
  - Sequential plan execution with per-step isolation
  - Tool catalog merged from built-ins and catalog directories
  - Asset inventory with connection profile resolution
  - Downstream service health monitoring behind circuit breakers
  - Rego admission policies gating destructive plans
  - Encrypted credential fields with key rotation

Configuration is environment-driven with the OPSFORGE_ prefix.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newToolsCommand())
	rootCmd.AddCommand(newAssetsCommand())
	rootCmd.AddCommand(newSecretsCommand())

	return rootCmd
}

// printJSON writes a value to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
