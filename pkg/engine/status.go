package engine

import (
	"encoding/json"
	"fmt"
)

// ExecutionStatus represents the lifecycle state of a plan execution.
type ExecutionStatus string

const (
	// ExecutionStatusPending indicates the execution has been accepted but not started.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning indicates steps are currently being executed.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusCompleted indicates every step finished successfully.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusFailed indicates at least one step failed or the plan
	// was rejected before any step ran.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusCancelled indicates the execution was cancelled before completion.
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive returns true if the execution is in progress.
func (s ExecutionStatus) IsActive() bool {
	return s == ExecutionStatusRunning
}

// Validate checks if the status value is valid.
func (s ExecutionStatus) Validate() error {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning,
		ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid execution status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := ExecutionStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}

// StepStatus represents the outcome state of a single step invocation.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"

	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed indicates the step returned an error.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step was not executed, for example a
	// fan-out item dropped because its expansion failed.
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal returns true if the status represents a final state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// IsActive returns true if the step is in progress.
func (s StepStatus) IsActive() bool {
	return s == StepStatusRunning
}

// Validate checks if the status value is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusPending, StepStatusRunning,
		StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := StepStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}
