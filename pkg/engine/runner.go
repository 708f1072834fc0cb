package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/opsforge/pkg/catalog"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

// errNoSteps is the exact plan-level message for an empty plan.
const errNoSteps = "No steps in plan"

// Runner executes plans sequentially. Each step is resolved against the
// execution context, expanded when it fans out, validated against the tool
// registry and dispatched; its result feeds the context before the next
// step runs. A step failure never aborts the remaining steps.
type Runner struct {
	catalog Catalog
	invoker ToolInvoker
	policy  AdmissionPolicy
	history History
	tel     *telemetry.Telemetry
	logger  *telemetry.Logger
}

// NewRunner creates a plan runner. policy, history and tel may be nil;
// the corresponding behavior is skipped.
func NewRunner(
	cat Catalog,
	invoker ToolInvoker,
	policy AdmissionPolicy,
	history History,
	tel *telemetry.Telemetry,
) *Runner {
	var logger *telemetry.Logger
	if tel != nil && tel.Logger != nil {
		logger = tel.Logger.NewComponentLogger("runner")
	} else {
		logger = telemetry.FromContext(context.Background())
	}
	return &Runner{
		catalog: cat,
		invoker: invoker,
		policy:  policy,
		history: history,
		tel:     tel,
		logger:  logger,
	}
}

// Execute runs a plan to completion and returns its terminal result. All
// failures, including rejection before the first step, are reported in the
// result rather than as an error. The returned result is never nil.
func (r *Runner) Execute(ctx context.Context, plan PlanRequest) *PlanResult {
	executionID := plan.ExecutionID
	if executionID == "" {
		executionID = uuid.New().String()
	}
	logger := r.logger.WithExecutionID(executionID)

	result := &PlanResult{
		ExecutionID: executionID,
		PlanName:    plan.Name,
		Status:      ExecutionStatusRunning,
		StepResults: []StepResult{},
		StartedAt:   time.Now().UTC(),
	}

	if r.tel != nil {
		ctx = r.tel.WithContext(ctx)
	}

	if len(plan.Steps) == 0 {
		logger.Warn("rejecting plan without steps")
		return r.finish(ctx, result, errNoSteps)
	}

	ctx = telemetry.WithExecutionContext(ctx, executionID, plan.Name, len(plan.Steps))

	if r.policy != nil {
		if err := r.policy.Admit(ctx, plan); err != nil {
			logger.WithError(err).Warn("plan denied by admission policy")
			if r.tel != nil {
				r.tel.Metrics.RecordError(string(ClassOf(err)), ErrCodePolicyDenied)
				_ = r.tel.Events.PublishPolicyViolation(executionID, plan.Name, err.Error())
			}
			telemetry.EndExecutionContext(ctx, executionID, string(ExecutionStatusFailed), err)
			return r.finish(ctx, result, err.Error())
		}
	}

	ectx := NewContext(executionID, logger)
	logger.WithField("steps", len(plan.Steps)).WithField("plan", plan.Name).
		Info("starting plan execution")

	cancelled := false
	for i, step := range plan.Steps {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		def, found := r.catalog.Get(step.Tool)
		concrete := r.expandStep(ectx, step, i)

		iteration := make([]StepResult, 0, len(concrete))
		for _, expanded := range concrete {
			iteration = append(iteration, r.invokeStep(ctx, executionID, expanded, def, found))
		}
		result.StepResults = append(result.StepResults, iteration...)

		assetTool := found && def.Category == catalog.CategoryInventory
		r.recordStep(ectx, i, step, iteration, assetTool)
	}

	total := len(result.StepResults)
	failed := 0
	for _, sr := range result.StepResults {
		if sr.Status == StepStatusFailed {
			failed++
		}
	}
	result.Summary = Summary{
		TotalSteps:      total,
		SuccessfulSteps: total - failed,
		FailedSteps:     failed,
	}
	result.CompletedAt = time.Now().UTC()

	var execErr error
	switch {
	case cancelled:
		result.Status = ExecutionStatusCancelled
		msg := fmt.Sprintf("execution cancelled after %d of %d steps", total, len(plan.Steps))
		result.ErrorMessage = &msg
		execErr = errors.New(msg)
	case failed > 0:
		result.Status = ExecutionStatusFailed
		msg := fmt.Sprintf("%d of %d steps failed", failed, total)
		result.ErrorMessage = &msg
		execErr = errors.New(msg)
	default:
		result.Status = ExecutionStatusCompleted
	}

	logger.WithField("status", string(result.Status)).
		WithField("steps", total).
		WithField("failed", failed).
		Info("plan execution finished")
	telemetry.EndExecutionContext(ctx, executionID, string(result.Status), execErr)
	r.saveHistory(ctx, result)
	return result
}

// finish terminates an execution that was rejected before any step ran.
func (r *Runner) finish(ctx context.Context, result *PlanResult, message string) *PlanResult {
	result.Status = ExecutionStatusFailed
	result.ErrorMessage = &message
	result.CompletedAt = time.Now().UTC()
	r.saveHistory(ctx, result)
	return result
}

// expandStep turns one plan step into its concrete steps: fan-out items
// when the step loops, otherwise the step itself with inputs resolved
// against the execution context.
func (r *Runner) expandStep(ectx *Context, step Step, index int) []ExpandedStep {
	logger := r.logger.WithExecutionID(ectx.ExecutionID).WithStepIndex(index).WithTool(step.Tool)

	if spec, ok := ectx.DetectLoop(step); ok {
		expanded, err := ectx.ExpandLoop(step, index, spec)
		if err == nil {
			logger.WithField("items", len(spec.Items)).
				WithField("expanded", len(expanded)).
				WithField("loop_variable", spec.Variable).
				Info("expanded fan-out step")
			if r.tel != nil {
				r.tel.Metrics.RecordLoopExpansion(step.Tool, len(expanded))
			}
			return expanded
		}
		logger.WithError(err).Warn("fan-out expansion failed, keeping the original step")
	}

	resolved, missing := ectx.ResolveInputs(step.Inputs)
	for _, ref := range missing {
		logger.WithField("reference", ref).Warn("unresolved template reference")
	}
	if len(missing) > 0 && r.tel != nil {
		r.tel.Metrics.RecordUnresolvedReferences(step.Tool, len(missing))
	}
	return []ExpandedStep{{Index: index, Tool: step.Tool, Inputs: resolved}}
}

// invokeStep dispatches one concrete step and returns its result.
func (r *Runner) invokeStep(ctx context.Context, executionID string, step ExpandedStep, def catalog.ToolDefinition, found bool) StepResult {
	result := StepResult{
		StepIndex: step.Index,
		Tool:      step.Tool,
		StartedAt: time.Now().UTC(),
		LoopIndex: step.LoopIndex,
		LoopTotal: step.LoopTotal,
	}

	stepCtx := telemetry.WithStepContext(ctx, executionID, step.Index, step.Tool)

	var invokeErr error
	if !found {
		invokeErr = NewNotFoundError(fmt.Sprintf("tool not found: %s", step.Tool), nil).
			WithResource(step.Tool).
			WithOperation("dispatch")
	} else {
		var output map[string]interface{}
		output, invokeErr = r.invoker.Invoke(stepCtx, step, def)
		result.Output = output
	}

	result.CompletedAt = time.Now().UTC()
	if invokeErr != nil {
		result.Status = StepStatusFailed
		msg := invokeErr.Error()
		result.Error = &msg
		if r.tel != nil {
			r.tel.Metrics.RecordError(string(ClassOf(invokeErr)), errCodeOf(invokeErr))
		}
	} else {
		result.Status = StepStatusCompleted
	}

	telemetry.EndStepContext(stepCtx, executionID, step.Index, step.Tool, string(result.Status), invokeErr)
	return result
}

// recordStep stores the step outcome in the execution context and derives
// variables from it. Fan-out iterations aggregate into one result for the
// original plan index so the write-once rule holds per index.
func (r *Runner) recordStep(ectx *Context, index int, step Step, iterations []StepResult, assetTool bool) {
	if len(iterations) == 0 {
		return
	}
	aggregated := aggregateIterations(index, step.Tool, iterations)
	if err := ectx.StoreStepResult(index, aggregated); err != nil {
		r.logger.WithExecutionID(ectx.ExecutionID).WithStepIndex(index).
			WithError(err).Error("failed to store step result")
		return
	}
	ectx.ExtractVariables(aggregated, assetTool)
}

// aggregateIterations folds the results of one plan step into a single
// record. A lone non-loop result passes through unchanged; fan-out
// iterations fold into a summary output, failed when any iteration failed.
func aggregateIterations(index int, tool string, iterations []StepResult) StepResult {
	if len(iterations) == 1 && iterations[0].LoopIndex == nil {
		return iterations[0]
	}

	failed := 0
	entries := make([]interface{}, 0, len(iterations))
	for _, it := range iterations {
		entry := map[string]interface{}{"status": string(it.Status)}
		if it.LoopIndex != nil {
			entry["loopIndex"] = *it.LoopIndex
		}
		if it.Output != nil {
			entry["output"] = it.Output
		}
		if it.Error != nil {
			entry["error"] = *it.Error
		}
		entries = append(entries, entry)
		if it.Status == StepStatusFailed {
			failed++
		}
	}

	aggregated := StepResult{
		StepIndex:   index,
		Tool:        tool,
		Status:      StepStatusCompleted,
		StartedAt:   iterations[0].StartedAt,
		CompletedAt: iterations[len(iterations)-1].CompletedAt,
		Output: map[string]interface{}{
			"iterations": len(iterations),
			"failed":     failed,
			"results":    entries,
		},
	}
	if failed > 0 {
		aggregated.Status = StepStatusFailed
		msg := fmt.Sprintf("%d of %d iterations failed", failed, len(iterations))
		aggregated.Error = &msg
	}
	return aggregated
}

// saveHistory persists a terminal result when a history store is configured.
func (r *Runner) saveHistory(ctx context.Context, result *PlanResult) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveExecution(ctx, *result); err != nil {
		r.logger.WithExecutionID(result.ExecutionID).
			WithError(err).Error("failed to save execution history")
	}
}

// errCodeOf extracts the error code for metrics labels.
func errCodeOf(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code != "" {
		return re.Code
	}
	return ErrCodeInternal
}
