package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsforge/opsforge/pkg/engine"
)

func newRunCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a plan file",
		Long: `Execute a plan from a JSON or YAML file.

A plan is an ordered list of steps. Each step names a catalog tool and
carries its inputs; string inputs may reference earlier step outputs
with {{variable}} templates. Steps run sequentially, a failing step
does not abort the rest of the plan, and the terminal result reports
every step outcome.

The exit code is non-zero when the plan does not complete.`,
		Example: `  # Execute a remediation plan
  forge run restart-web.json

  # Execute a YAML plan and print the full result as JSON
  forge run patch-fleet.yaml --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := output
			if jsonOutput {
				format = "json"
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown output format %q, expected text or json", format)
			}

			plan, err := loadPlanFile(args[0])
			if err != nil {
				return err
			}
			if plan.Name == "" {
				plan.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			result := a.runner.Execute(ctx, plan)

			if err := printPlanResult(result, format); err != nil {
				return err
			}
			if result.Status != engine.ExecutionStatusCompleted {
				msg := string(result.Status)
				if result.ErrorMessage != nil {
					msg = *result.ErrorMessage
				}
				return fmt.Errorf("plan %s: %s", result.PlanName, msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text or json")

	return cmd
}

// loadPlanFile reads a plan request from a JSON or YAML file. YAML
// documents go through a JSON round trip so both forms share the same
// field names.
func loadPlanFile(path string) (engine.PlanRequest, error) {
	var plan engine.PlanRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return plan, fmt.Errorf("failed to read plan file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return plan, fmt.Errorf("failed to parse YAML plan: %w", err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return plan, fmt.Errorf("failed to convert YAML plan: %w", err)
		}
		if err := json.Unmarshal(raw, &plan); err != nil {
			return plan, fmt.Errorf("failed to parse plan: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &plan); err != nil {
			return plan, fmt.Errorf("failed to parse JSON plan: %w", err)
		}
	}

	return plan, nil
}

// printPlanResult writes the result to stdout in the requested format.
func printPlanResult(result *engine.PlanResult, format string) error {
	if format == "json" {
		return printJSON(result)
	}

	fmt.Printf("Execution: %s\n", result.ExecutionID)
	if result.PlanName != "" {
		fmt.Printf("Plan:      %s\n", result.PlanName)
	}
	fmt.Printf("Status:    %s\n", result.Status)
	fmt.Printf("Steps:     %d total, %d succeeded, %d failed\n",
		result.Summary.TotalSteps, result.Summary.SuccessfulSteps, result.Summary.FailedSteps)
	fmt.Printf("Duration:  %s\n", result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))
	if result.ErrorMessage != nil {
		fmt.Printf("Error:     %s\n", *result.ErrorMessage)
	}

	for _, sr := range result.StepResults {
		if sr.LoopIndex != nil && sr.LoopTotal != nil {
			fmt.Printf("  [%d %d/%d] %-24s %s\n", sr.StepIndex, *sr.LoopIndex+1, *sr.LoopTotal, sr.Tool, sr.Status)
		} else {
			fmt.Printf("  [%d] %-24s %s\n", sr.StepIndex, sr.Tool, sr.Status)
		}
		if sr.Error != nil {
			fmt.Printf("      %s\n", *sr.Error)
		}
	}
	return nil
}
