package policy_test

import (
	"context"
	"fmt"

	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/policy"
	"github.com/rs/zerolog"
)

func ExampleEngine_Admit() {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	gate, err := policy.NewEngine(policy.Config{Blocklist: []string{"wipe_disk"}}, logger)
	if err != nil {
		fmt.Println(err)
		return
	}

	plan := engine.PlanRequest{
		Name: "cleanup",
		Steps: []engine.Step{
			{Tool: "wipe_disk", Inputs: map[string]interface{}{"host": "db-01"}},
		},
	}

	fmt.Println(gate.Admit(context.Background(), plan))
	// Output:
	// [policy] plan rejected by policy: tool wipe_disk is blocked by policy
}

func ExampleEngine_EvaluatePlan() {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	gate, err := policy.NewEngine(policy.Config{MaxSteps: 1}, logger)
	if err != nil {
		fmt.Println(err)
		return
	}

	plan := engine.PlanRequest{
		Name: "patch-fleet",
		Steps: []engine.Step{
			{Tool: "stage_patches"},
			{Tool: "apply_patches"},
		},
	}

	decision, err := gate.EvaluatePlan(context.Background(), gate.InputForPlan(plan))
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(decision.Allowed)
	fmt.Println(decision.Violations[0].Message)
	// Output:
	// false
	// plan has 2 steps, exceeding the cap of 1
}
