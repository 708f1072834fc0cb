// Package policy provides Rego-based plan admission for OpsForge.
//
// Plans are evaluated against a set of Open Policy Agent (OPA) policies
// before the first step runs. A policy contributes violations through
// its deny rules; any violation with error or critical severity rejects
// the plan.
//
// # Usage
//
// Creating an engine and gating a plan:
//
//	gate, err := policy.NewEngine(policy.Config{
//	    Environment: "production",
//	    Blocklist:   []string{"wipe_disk"},
//	    MaxSteps:    50,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//
//	decision, err := gate.EvaluatePlan(ctx, gate.InputForPlan(plan))
//	if err != nil {
//	    return err
//	}
//	if !decision.Allowed {
//	    for _, violation := range decision.Violations {
//	        fmt.Printf("policy %s: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// The engine also implements the runner's AdmissionPolicy interface, so
// it can be passed directly to engine.NewRunner. A nil engine admits
// every plan.
//
// # Built-in Policies
//
// Three policies are compiled at construction:
//
//  1. blocked-tools - Denies plans invoking tools on the configured blocklist
//  2. step-cap - Denies plans exceeding the configured step count
//  3. production-approval - Denies steps targeting production assets without approved: true
//
// Built-in policies read their parameters from input.config, which
// InputForPlan fills from the engine Config.
//
// # Custom Policies
//
// Custom policies are written in Rego and loaded from files or
// directories. They inspect the plan under input.plan:
//
//	package opsforge.admission
//
//	import rego.v1
//
//	# Reboots need a maintenance window
//	deny contains violation if {
//	    some step in input.plan.steps
//	    step.tool == "reboot_host"
//	    not step.inputs.maintenance_window
//
//	    violation := {
//	        "message": sprintf("step using tool %s requires a maintenance window", [step.tool]),
//	        "severity": "error",
//	        "tool": step.tool,
//	    }
//	}
//
// Deny rules may yield either a plain string or a map with message,
// severity, and tool keys. Files that fail to parse are logged and
// skipped so one broken policy does not take the directory down.
//
// # Hot Reload
//
// The loader can watch policy paths and swap the engine's policy set
// when files change:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return gate.ReplacePolicies(ctx, policies)
//	})
//
// Reload events are debounced, and the built-in policies always survive
// a reload.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed but don't block plans
//   - error: Issues that reject the plan
//   - critical: Severe issues that reject the plan
//
// Policies are compiled once with OPA's PreparedEvalQuery and reused
// for every evaluation.
package policy
