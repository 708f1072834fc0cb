package engine

import (
	"strings"
	"testing"
)

func discoveryContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext("exec-1", nil)
	ctx.ExtractVariables(StepResult{
		StepIndex: 0,
		Tool:      "asset_query",
		Status:    StepStatusCompleted,
		Output: map[string]interface{}{
			"assets": []interface{}{
				map[string]interface{}{"hostname": "a", "ip_address": "10.0.0.1", "os": "linux"},
				map[string]interface{}{"hostname": "b", "ip_address": "10.0.0.2", "os": "windows"},
			},
		},
	}, true)
	return ctx
}

func TestResolveString_Forms(t *testing.T) {
	ctx := discoveryContext(t)
	ctx.SetVariable("greeting", "hello")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"direct lookup", "{{greeting}} world", "hello world"},
		{"list index", "first host: {{hostnames[0]}}", "first host: a"},
		{"index and field", "os of second: {{assets[1].os}}", "os of second: windows"},
		{"count", "{{assetCount}} assets", "2 assets"},
		{"two references", "{{hostnames[0]}} and {{hostnames[1]}}", "a and b"},
		{"no placeholders", "plain text", "plain text"},
		{"spaces inside braces", "{{ greeting }}", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ctx.ResolveString(tt.in)
			if res.Value != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, res.Value)
			}
			if !res.Complete {
				t.Errorf("Expected complete resolution, missing %v", res.Missing)
			}
		})
	}
}

func TestResolveString_IdempotentWithoutReferences(t *testing.T) {
	ctx := NewContext("exec-1", nil)
	texts := []string{"", "no refs here", "half open {{ but no close", "json: {\"a\": 1}"}
	for _, text := range texts {
		if got := ctx.ResolveString(text).Value; got != text {
			t.Errorf("Expected %q to pass through unchanged, got %q", text, got)
		}
	}
}

func TestResolveString_UnresolvedStaysVerbatim(t *testing.T) {
	ctx := discoveryContext(t)

	tests := []struct {
		name string
		in   string
	}{
		{"unknown variable", "host: {{nonexistent}}"},
		{"index out of range", "host: {{hostnames[5]}}"},
		{"missing field", "value: {{assets[0].rack}}"},
		{"malformed reference", "value: {{assets[x]}}"},
		{"field on scalar", "value: {{assetCount.value}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ctx.ResolveString(tt.in)
			if res.Value != tt.in {
				t.Errorf("Expected unresolved text to stay verbatim, got %q", res.Value)
			}
			if res.Complete {
				t.Error("Expected Complete to be false")
			}
			if len(res.Missing) != 1 {
				t.Errorf("Expected one missing reference, got %v", res.Missing)
			}
		})
	}
}

func TestResolveString_MixedResolvedAndMissing(t *testing.T) {
	ctx := discoveryContext(t)

	res := ctx.ResolveString("{{hostnames[0]}} then {{unknown}} then {{hostnames[1]}}")
	if res.Value != "a then {{unknown}} then b" {
		t.Errorf("Expected partial resolution, got %q", res.Value)
	}
	if res.Complete {
		t.Error("Expected Complete to be false")
	}
	if len(res.Missing) != 1 || res.Missing[0] != "unknown" {
		t.Errorf("Expected missing [unknown], got %v", res.Missing)
	}
}

func TestResolveString_CompositeRendersAsJSON(t *testing.T) {
	ctx := discoveryContext(t)

	res := ctx.ResolveString("first: {{assets[0]}}")
	if !strings.Contains(res.Value, `"hostname":"a"`) {
		t.Errorf("Expected compact JSON rendering, got %q", res.Value)
	}
	if strings.Contains(res.Value, "\n") {
		t.Error("Expected compact JSON without newlines")
	}

	res = ctx.ResolveString("all: {{hostnames}}")
	if res.Value != `all: ["a","b"]` {
		t.Errorf("Expected JSON list rendering, got %q", res.Value)
	}
}

func TestResolveValue_Recursive(t *testing.T) {
	ctx := discoveryContext(t)

	input := map[string]interface{}{
		"command": "ping {{hostnames[0]}}",
		"nested": map[string]interface{}{
			"target": "{{ipAddresses[1]}}",
			"count":  4,
		},
		"list":    []interface{}{"{{hostnames[0]}}", 7, true},
		"untyped": 12.5,
	}

	resolved, missing := ctx.ResolveValue(input)
	if len(missing) != 0 {
		t.Fatalf("Expected full resolution, missing %v", missing)
	}

	out := resolved.(map[string]interface{})
	if out["command"] != "ping a" {
		t.Errorf("Expected resolved command, got %v", out["command"])
	}
	nested := out["nested"].(map[string]interface{})
	if nested["target"] != "10.0.0.2" {
		t.Errorf("Expected nested resolution, got %v", nested["target"])
	}
	if nested["count"] != 4 {
		t.Errorf("Non-string leaves must pass through, got %v", nested["count"])
	}
	list := out["list"].([]interface{})
	if list[0] != "a" || list[1] != 7 || list[2] != true {
		t.Errorf("Expected element-wise resolution, got %v", list)
	}
	if out["untyped"] != 12.5 {
		t.Errorf("Expected float leaf unchanged, got %v", out["untyped"])
	}
}

func TestResolveValue_ReportsAllMissing(t *testing.T) {
	ctx := NewContext("exec-1", nil)

	input := map[string]interface{}{
		"a": "{{missing_one}}",
		"b": []interface{}{"{{missing_two}}"},
	}
	_, missing := ctx.ResolveValue(input)
	if len(missing) != 2 {
		t.Errorf("Expected two missing references, got %v", missing)
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		name    string
		steps   int
	}{
		{"assets", false, "assets", 0},
		{"assets[0]", false, "assets", 1},
		{"assets[12].ip_address", false, "assets", 2},
		{"step_0_result", false, "step_0_result", 0},
		{"a.b.c", false, "a", 2},
		{"", true, "", 0},
		{"[0]", true, "", 0},
		{"assets[", true, "", 0},
		{"assets[x]", true, "", 0},
		{"assets[0", true, "", 0},
		{"assets.", true, "", 0},
		{"assets[0]extra", true, "", 0},
		{"0assets", true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, err := parseReference(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected parse error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to parse %q: %v", tt.in, err)
			}
			if path.name != tt.name {
				t.Errorf("Expected name %q, got %q", tt.name, path.name)
			}
			if len(path.steps) != tt.steps {
				t.Errorf("Expected %d accessors, got %d", tt.steps, len(path.steps))
			}
		})
	}
}

func TestRenderValue_Scalars(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"text", "text"},
		{42, "42"},
		{int64(9), "9"},
		{float64(5985), "5985"},
		{1.5, "1.5"},
		{true, "true"},
		{nil, "null"},
	}
	for _, tt := range tests {
		if got := renderValue(tt.in); got != tt.want {
			t.Errorf("renderValue(%v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
