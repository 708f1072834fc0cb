package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in admission policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		blockedToolsPolicy(),
		stepCapPolicy(),
		productionApprovalPolicy(),
	}
}

// blockedToolsPolicy denies plans containing tools named on the
// configured blocklist.
func blockedToolsPolicy() Policy {
	return Policy{
		Name:        "blocked-tools",
		Description: "Denies plans that invoke tools named on the destructive tool blocklist",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "builtin"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package opsforge.admission

import rego.v1

# Tools on the blocklist may never appear in a plan
deny contains violation if {
	some step in input.plan.steps
	some blocked in input.config.destructive_tools
	step.tool == blocked

	violation := {
		"message": sprintf("tool %s is blocked by policy", [step.tool]),
		"severity": "error",
		"tool": step.tool,
	}
}
`,
	}
}

// stepCapPolicy denies plans exceeding the configured step cap.
func stepCapPolicy() Policy {
	return Policy{
		Name:        "step-cap",
		Description: "Denies plans whose step count exceeds the configured maximum",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits", "builtin"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package opsforge.admission

import rego.v1

# A zero cap disables the check
deny contains violation if {
	input.config.max_steps > 0
	count(input.plan.steps) > input.config.max_steps

	violation := {
		"message": sprintf("plan has %d steps, exceeding the cap of %d", [count(input.plan.steps), input.config.max_steps]),
		"severity": "error",
	}
}
`,
	}
}

// productionApprovalPolicy denies steps that target production
// environment assets without an explicit approval input.
func productionApprovalPolicy() Policy {
	return Policy{
		Name:        "production-approval",
		Description: "Denies steps targeting production assets unless the step carries approved: true",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "builtin"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package opsforge.admission

import rego.v1

targets_production(step) if {
	step.inputs.environment == "production"
}

targets_production(step) if {
	step.inputs.asset_query.environment == "production"
}

deny contains violation if {
	some step in input.plan.steps
	targets_production(step)
	not step.inputs.approved == true

	violation := {
		"message": sprintf("step using tool %s targets production without approval", [step.tool]),
		"severity": "error",
		"tool": step.tool,
	}
}
`,
	}
}
