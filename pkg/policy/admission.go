package policy

import (
	"context"
	"fmt"

	"github.com/opsforge/opsforge/pkg/engine"
)

// InputForPlan converts a runner plan request into the policy input
// document, attaching the engine configuration for built-in policies.
func (e *Engine) InputForPlan(plan engine.PlanRequest) PolicyInput {
	doc := PlanDocument{
		Name:  plan.Name,
		Steps: make([]StepDocument, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		doc.Steps = append(doc.Steps, StepDocument{
			Tool:   step.Tool,
			Inputs: step.Inputs,
		})
	}

	return PolicyInput{
		ExecutionID: plan.ExecutionID,
		Plan:        doc,
		Environment: e.cfg.Environment,
		Config: ConfigDocument{
			DestructiveTools: e.cfg.Blocklist,
			MaxSteps:         e.cfg.MaxSteps,
		},
	}
}

// Admit implements the runner's admission gate. A nil engine admits
// every plan. A denied plan fails with a policy error carrying the
// first violation message.
func (e *Engine) Admit(ctx context.Context, plan engine.PlanRequest) error {
	if e == nil {
		return nil
	}

	decision, err := e.EvaluatePlan(ctx, e.InputForPlan(plan))
	if err != nil {
		return engine.NewPolicyError("failed to evaluate admission policies", err)
	}
	if decision.Allowed {
		return nil
	}

	first := decision.Violations[0]
	return engine.NewPolicyError(
		fmt.Sprintf("plan rejected by policy: %s", first.Message), nil).
		WithDetail("policy", first.Policy).
		WithDetail("violations", len(decision.Violations))
}
