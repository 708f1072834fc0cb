package engine

import (
	"time"
)

// Step is a single unit of work in a plan. A step names a catalog tool and
// carries a free-form inputs map whose string values may contain
// {{variable}} references resolved against the execution context.
type Step struct {
	// Tool is the catalog name of the tool to invoke.
	Tool string `json:"tool"`

	// Inputs are the tool inputs. String values may contain template
	// references; maps and lists are resolved recursively.
	Inputs map[string]interface{} `json:"inputs,omitempty"`

	// Description is an optional operator-facing description of the step.
	Description string `json:"description,omitempty"`
}

// PlanRequest is an ordered list of steps submitted for execution.
type PlanRequest struct {
	// ExecutionID is an optional caller-supplied execution identifier.
	// When empty, the runner generates a UUID.
	ExecutionID string `json:"executionId,omitempty"`

	// Name is the human-readable plan name, used in logs and metrics.
	Name string `json:"name,omitempty"`

	// Steps are executed sequentially in order.
	Steps []Step `json:"steps"`
}

// StepResult records the outcome of a single concrete step invocation.
type StepResult struct {
	// StepIndex is the index of the step in the original plan.
	StepIndex int `json:"stepIndex"`

	// Tool is the catalog name of the tool that was invoked.
	Tool string `json:"tool"`

	// Status is the terminal status of the invocation.
	Status StepStatus `json:"status"`

	// Output is the tool output on success, or partial output on failure.
	Output map[string]interface{} `json:"output,omitempty"`

	// Error is the failure message when Status is failed.
	Error *string `json:"error,omitempty"`

	// StartedAt is when the invocation began.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the invocation finished.
	CompletedAt time.Time `json:"completedAt"`

	// LoopIndex is the zero-based iteration number for fan-out steps.
	LoopIndex *int `json:"loopIndex,omitempty"`

	// LoopTotal is the total iteration count for fan-out steps.
	LoopTotal *int `json:"loopTotal,omitempty"`
}

// Summary aggregates step outcomes for a finished plan.
type Summary struct {
	// TotalSteps is the number of concrete steps that were attempted.
	TotalSteps int `json:"totalSteps"`

	// SuccessfulSteps is the number of steps that completed.
	SuccessfulSteps int `json:"successfulSteps"`

	// FailedSteps is the number of steps that failed.
	FailedSteps int `json:"failedSteps"`
}

// PlanResult is the terminal outcome of a plan execution.
type PlanResult struct {
	// ExecutionID identifies the execution this result belongs to.
	ExecutionID string `json:"executionId"`

	// PlanName echoes the plan name the request carried.
	PlanName string `json:"planName,omitempty"`

	// Status is completed when every step succeeded, failed otherwise.
	Status ExecutionStatus `json:"status"`

	// Summary aggregates the step outcomes.
	Summary Summary `json:"result"`

	// StepResults lists every concrete step invocation in execution order.
	// Fan-out iterations each appear once with LoopIndex and LoopTotal set.
	StepResults []StepResult `json:"stepResults"`

	// StartedAt is when the execution began.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the execution finished.
	CompletedAt time.Time `json:"completedAt"`

	// ErrorMessage summarises the failure when Status is failed.
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// ExpandedStep is a concrete step ready for dispatch: inputs fully resolved
// and, for fan-out steps, bound to a single target.
type ExpandedStep struct {
	// Index is the index of the originating step in the plan.
	Index int `json:"index"`

	// Tool is the catalog name of the tool to invoke.
	Tool string `json:"tool"`

	// Inputs are the fully resolved tool inputs.
	Inputs map[string]interface{} `json:"inputs"`

	// LoopIndex is the zero-based iteration number when this step was
	// produced by fan-out expansion.
	LoopIndex *int `json:"loopIndex,omitempty"`

	// LoopTotal is the total iteration count when this step was produced
	// by fan-out expansion.
	LoopTotal *int `json:"loopTotal,omitempty"`
}

// LoopSpec describes a detected fan-out: the source variable supplying the
// items and the input key that held the templated target list.
type LoopSpec struct {
	// Variable is the context variable name the items came from.
	Variable string `json:"variable"`

	// ListKey is the step input key holding the templated target list,
	// either "target_hosts" or "targets".
	ListKey string `json:"listKey"`

	// Items are the fan-out source items, one expanded step per item.
	Items []interface{} `json:"-"`
}
