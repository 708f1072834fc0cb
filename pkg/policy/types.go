package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block plan execution.
	SeverityError Severity = "error"

	// SeverityCritical is for severe violations that block plan execution.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity denies a plan.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents an admission rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not
	// carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata such as the source file.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single admission rule firing against a plan.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Tool is the tool name the violation refers to, when step-scoped.
	Tool string `json:"tool,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Decision represents the outcome of evaluating a plan against the
// loaded policies.
type Decision struct {
	// Allowed indicates if the plan may execute.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that do not block execution.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation occurred.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PolicyInput represents the input document handed to Rego.
type PolicyInput struct {
	// ExecutionID identifies the execution being admitted.
	ExecutionID string `json:"execution_id,omitempty"`

	// Plan is the plan being evaluated.
	Plan PlanDocument `json:"plan"`

	// Environment is the environment the runtime executes in.
	Environment string `json:"environment,omitempty"`

	// Requester is the user or system that submitted the plan.
	Requester string `json:"requester,omitempty"`

	// Config carries the tunable parameters the built-in policies read.
	Config ConfigDocument `json:"config"`
}

// PlanDocument is the plan shape policies inspect.
type PlanDocument struct {
	// Name is the plan name.
	Name string `json:"name"`

	// Steps are the plan steps in execution order.
	Steps []StepDocument `json:"steps"`
}

// StepDocument is a single plan step as policies see it.
type StepDocument struct {
	// Tool is the catalog name of the tool the step invokes.
	Tool string `json:"tool"`

	// Inputs are the raw step inputs, before template resolution.
	Inputs map[string]interface{} `json:"inputs,omitempty"`
}

// ConfigDocument carries engine configuration into the Rego input so
// built-in policies can read it under input.config.
type ConfigDocument struct {
	// DestructiveTools lists tool names that may never run.
	DestructiveTools []string `json:"destructive_tools"`

	// MaxSteps caps the number of steps in a plan. Zero disables the cap.
	MaxSteps int `json:"max_steps"`
}

// Bundle represents a collection of related policies loaded from a
// single JSON file.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`
}
