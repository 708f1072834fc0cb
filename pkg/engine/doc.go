// Package engine provides the execution core of the opsforge runtime.
//
// # Overview
//
// opsforge executes operator-submitted automation plans against a fleet of
// managed assets. A plan is an ordered list of steps; each step names a
// catalog tool and carries a free-form inputs map. The runner drives every
// step through the same pipeline:
//
//  1. Detect - Check whether the step fans out over discovered assets
//  2. Expand - Produce one concrete step per fan-out item, or resolve the
//     step inputs against the execution context
//  3. Dispatch - Route the concrete step to its invoker (service or inventory)
//  4. Record - Store the step result and derive context variables from it
//
// The pipeline repeats per step; results of earlier steps feed the template
// resolution of later ones. A step failure never aborts the remaining steps.
//
// # Core Domain Types
//
//   - PlanRequest: An ordered list of steps submitted for execution
//   - Step: One tool invocation, possibly containing template references
//   - ExpandedStep: A concrete step with resolved inputs, ready for dispatch
//   - StepResult: The terminal outcome of one concrete step invocation
//   - PlanResult: The terminal outcome of a whole execution
//   - Context: Per-execution state (variables and step results)
//   - LoopSpec: A detected fan-out (source variable, list key, items)
//
// # Template Resolution
//
// Step inputs may reference execution variables with {{name}},
// {{name[i]}} and {{name[i].field}} spans. References are parsed by a
// small recursive-descent parser; unresolvable references stay verbatim in
// the output and are reported through Resolution.Missing so failures are
// visible rather than silently swallowed:
//
//	res := ectx.ResolveString("restart {{hostnames[0]}}")
//	if !res.Complete {
//	    // res.Missing lists the references that did not resolve
//	}
//
// # Fan-Out Expansion
//
// A step whose target list input (target_hosts or targets) contains a
// templated entry expands into one concrete step per discovered asset:
//
//	step := Step{Tool: "restart_service", Inputs: map[string]interface{}{
//	    "target_hosts": []interface{}{"{{hostname}}"},
//	    "service":      "nginx",
//	}}
//	if spec, ok := ectx.DetectLoop(step); ok {
//	    expanded, err := ectx.ExpandLoop(step, 0, spec)
//	    // one ExpandedStep per asset, target_hosts collapsed to target_host
//	}
//
// Each item expands in an isolated child context so items never observe
// each other's variables. Fan-out binds to the canonical assets variable
// unless the step names another list variable via a loop_over input.
//
// # Dispatch
//
// Concrete steps are routed by their tool definition. Tools bound to a
// downstream service go through a ServiceCaller (circuit-breaker protected
// HTTP, implemented by pkg/discovery); inventory tools are served by the
// local resolver (pkg/inventory). The Dispatcher composes both behind the
// ToolInvoker interface.
//
// # Error Classification
//
// Errors are classified through RuntimeError for handling and reporting:
// validation, not_found, ambiguous, unavailable, decryption, catalog,
// policy and internal. Use the helper predicates to branch on a class:
//
//	if engine.IsAmbiguous(err) {
//	    // ask the caller to disambiguate
//	}
//
// # Example Usage
//
//	runner := engine.NewRunner(registry, dispatcher, policyGate, history, tel)
//	result := runner.Execute(ctx, engine.PlanRequest{
//	    Name: "patch-web-fleet",
//	    Steps: []engine.Step{
//	        {Tool: "asset_query", Inputs: map[string]interface{}{"os": "linux"}},
//	        {Tool: "restart_service", Inputs: map[string]interface{}{
//	            "target_hosts": []interface{}{"{{hostname}}"},
//	            "service":      "nginx",
//	        }},
//	    },
//	})
//	if result.Status == engine.ExecutionStatusFailed {
//	    // result.ErrorMessage summarises the failure
//	}
//
// # Thread Safety
//
// Context is safe for concurrent use; fan-out expansion reads parent
// variables from a bounded worker pool. The Runner itself executes steps
// sequentially and may be shared across goroutines as long as each call
// uses its own PlanRequest.
package engine
