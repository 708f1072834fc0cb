package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsforge/opsforge/pkg/engine"
)

// ExecutionHistory adapts the persistence layer to the engine history
// interface, recording terminal plan results.
type ExecutionHistory struct {
	store Store
}

// NewExecutionHistory creates a history recorder backed by the given store.
func NewExecutionHistory(store Store) *ExecutionHistory {
	return &ExecutionHistory{store: store}
}

// SaveExecution persists one terminal plan result with all of its step
// results, including every fan-out iteration.
func (h *ExecutionHistory) SaveExecution(ctx context.Context, result engine.PlanResult) error {
	execution := &Execution{
		ID:              result.ExecutionID,
		PlanName:        result.PlanName,
		Status:          string(result.Status),
		TotalSteps:      result.Summary.TotalSteps,
		SuccessfulSteps: result.Summary.SuccessfulSteps,
		FailedSteps:     result.Summary.FailedSteps,
		Error:           result.ErrorMessage,
		StartedAt:       result.StartedAt,
		CreatedAt:       time.Now().UTC(),
	}
	if !result.CompletedAt.IsZero() {
		completed := result.CompletedAt
		execution.CompletedAt = &completed
	}

	steps := make([]*StepRecord, 0, len(result.StepResults))
	for _, sr := range result.StepResults {
		output := "{}"
		if sr.Output != nil {
			raw, err := json.Marshal(sr.Output)
			if err != nil {
				return fmt.Errorf("failed to encode step output: %w", err)
			}
			output = string(raw)
		}
		steps = append(steps, &StepRecord{
			ExecutionID: result.ExecutionID,
			StepIndex:   sr.StepIndex,
			Tool:        sr.Tool,
			Status:      string(sr.Status),
			Output:      output,
			Error:       sr.Error,
			LoopIndex:   sr.LoopIndex,
			LoopTotal:   sr.LoopTotal,
			StartedAt:   sr.StartedAt,
			CompletedAt: sr.CompletedAt,
		})
	}

	if err := h.store.SaveExecution(ctx, execution, steps); err != nil {
		return fmt.Errorf("failed to save execution history: %w", err)
	}

	return nil
}
