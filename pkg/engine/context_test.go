package engine

import (
	"testing"
	"time"
)

func TestNewContext_GeneratesExecutionID(t *testing.T) {
	ctx := NewContext("", nil)
	if ctx.ExecutionID == "" {
		t.Fatal("Expected a generated execution ID")
	}

	ctx = NewContext("exec-42", nil)
	if ctx.ExecutionID != "exec-42" {
		t.Errorf("Expected caller-supplied ID to win, got %q", ctx.ExecutionID)
	}
}

func TestStoreStepResult_WriteOnce(t *testing.T) {
	ctx := NewContext("exec-1", nil)

	first := StepResult{StepIndex: 0, Tool: "asset_query", Status: StepStatusCompleted}
	if err := ctx.StoreStepResult(0, first); err != nil {
		t.Fatalf("Failed to store first result: %v", err)
	}

	second := StepResult{StepIndex: 0, Tool: "asset_query", Status: StepStatusFailed}
	err := ctx.StoreStepResult(0, second)
	if err == nil {
		t.Fatal("Expected storing a second result for the same index to fail")
	}
	if !IsValidation(err) {
		t.Errorf("Expected a validation error, got %v", err)
	}

	stored, ok := ctx.GetStepResult(0)
	if !ok {
		t.Fatal("Expected the first result to remain stored")
	}
	if stored.Status != StepStatusCompleted {
		t.Errorf("Expected the first value to stay untouched, got status %q", stored.Status)
	}
}

func TestExtractVariables_AssetShape(t *testing.T) {
	ctx := NewContext("exec-1", nil)

	output := map[string]interface{}{
		"assets": []interface{}{
			map[string]interface{}{"hostname": "web-01.corp.local", "ip_address": "10.0.0.1"},
			map[string]interface{}{"hostname": "web-02.corp.local", "ip_address": "10.0.0.2"},
			map[string]interface{}{"hostname": "", "ip_address": "10.0.0.3"},
		},
		"count": 3,
	}
	result := StepResult{StepIndex: 0, Tool: "asset_query", Status: StepStatusCompleted, Output: output}
	ctx.ExtractVariables(result, true)

	count, _ := ctx.GetVariable(VarAssetCount)
	if count != 3 {
		t.Errorf("Expected assetCount 3, got %v", count)
	}

	hostnames, _ := ctx.GetVariable(VarHostnames)
	names, ok := hostnames.([]string)
	if !ok {
		t.Fatalf("Expected hostnames to be []string, got %T", hostnames)
	}
	if len(names) != 2 || names[0] != "web-01.corp.local" || names[1] != "web-02.corp.local" {
		t.Errorf("Expected non-empty hostnames in order, got %v", names)
	}

	ips, _ := ctx.GetVariable(VarIPAddresses)
	addrs, ok := ips.([]string)
	if !ok {
		t.Fatalf("Expected ipAddresses to be []string, got %T", ips)
	}
	if len(addrs) != 3 || addrs[2] != "10.0.0.3" {
		t.Errorf("Expected all three IP addresses, got %v", addrs)
	}

	raw, ok := ctx.GetVariable("step_0_result")
	if !ok {
		t.Fatal("Expected the raw output under step_0_result")
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		t.Errorf("Expected the raw output map, got %T", raw)
	}
}

func TestExtractVariables_DefaultsForAssetTool(t *testing.T) {
	ctx := NewContext("exec-1", nil)

	result := StepResult{
		StepIndex: 0,
		Tool:      "asset_count",
		Status:    StepStatusCompleted,
		Output:    map[string]interface{}{"count": 0},
	}
	ctx.ExtractVariables(result, true)

	assets, ok := ctx.GetVariable(VarAssets)
	if !ok {
		t.Fatal("Expected assets to be set to a default")
	}
	if list, ok := assets.([]interface{}); !ok || len(list) != 0 {
		t.Errorf("Expected an empty asset list, got %v", assets)
	}
	if count, _ := ctx.GetVariable(VarAssetCount); count != 0 {
		t.Errorf("Expected assetCount 0, got %v", count)
	}
	if names, _ := ctx.GetVariable(VarHostnames); len(names.([]string)) != 0 {
		t.Errorf("Expected empty hostnames, got %v", names)
	}
}

func TestExtractVariables_NonAssetToolKeepsDerived(t *testing.T) {
	ctx := NewContext("exec-1", nil)

	discovery := StepResult{
		StepIndex: 0,
		Tool:      "asset_query",
		Status:    StepStatusCompleted,
		Output: map[string]interface{}{
			"assets": []interface{}{
				map[string]interface{}{"hostname": "db-01", "ip_address": "10.0.1.1"},
			},
		},
	}
	ctx.ExtractVariables(discovery, true)

	ping := StepResult{
		StepIndex: 1,
		Tool:      "ping_host",
		Status:    StepStatusCompleted,
		Output:    map[string]interface{}{"reachable": true},
	}
	ctx.ExtractVariables(ping, false)

	if count, _ := ctx.GetVariable(VarAssetCount); count != 1 {
		t.Errorf("A non-asset tool must not clobber assetCount, got %v", count)
	}
	if _, ok := ctx.GetVariable("step_1_result"); !ok {
		t.Error("Expected the raw output of the second step to be recorded")
	}
}

func TestChild_Isolation(t *testing.T) {
	parent := NewContext("exec-1", nil)
	parent.SetVariable("shared", "from-parent")

	child := parent.Child()
	if v, _ := child.GetVariable("shared"); v != "from-parent" {
		t.Errorf("Expected the child to see parent variables, got %v", v)
	}

	child.SetVariable("shared", "from-child")
	child.SetVariable("private", 1)

	if v, _ := parent.GetVariable("shared"); v != "from-parent" {
		t.Errorf("Child writes must not reach the parent, got %v", v)
	}
	if _, ok := parent.GetVariable("private"); ok {
		t.Error("Child-only variables must not appear in the parent")
	}
	if child.ExecutionID != parent.ExecutionID {
		t.Error("A child context keeps the parent execution ID")
	}
}

func TestGetStepResult_Missing(t *testing.T) {
	ctx := NewContext("exec-1", nil)
	if _, ok := ctx.GetStepResult(7); ok {
		t.Error("Expected no result for an unused index")
	}
	if n := ctx.StepResultCount(); n != 0 {
		t.Errorf("Expected zero stored results, got %d", n)
	}
}

func TestStoreStepResult_TimestampsSurvive(t *testing.T) {
	ctx := NewContext("exec-1", nil)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(3 * time.Second)

	result := StepResult{
		StepIndex:   2,
		Tool:        "execute_command",
		Status:      StepStatusCompleted,
		StartedAt:   started,
		CompletedAt: completed,
	}
	if err := ctx.StoreStepResult(2, result); err != nil {
		t.Fatalf("Failed to store result: %v", err)
	}

	stored, _ := ctx.GetStepResult(2)
	if !stored.StartedAt.Equal(started) || !stored.CompletedAt.Equal(completed) {
		t.Error("Expected timestamps to round-trip through the context")
	}
}
