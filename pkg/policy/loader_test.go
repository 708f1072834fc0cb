package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLoader(t *testing.T) *Loader {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewLoader(logger)
}

// testRego returns a minimal valid admission policy in the given package.
func testRego(pkg string) string {
	return "package " + pkg + "\n\nimport rego.v1\n\ndeny contains msg if {\n\tinput.plan.name == \"never\"\n\tmsg := \"denied\"\n}\n"
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "no-reboots.rego")

	regoContent := `# Reboots require a change ticket
package opsforge.admission

import rego.v1

deny contains msg if {
	some step in input.plan.steps
	step.tool == "reboot_host"
	msg := "reboots require a change ticket"
}
`
	if err := os.WriteFile(policyFile, []byte(regoContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-reboots" {
		t.Errorf("Expected name 'no-reboots', got '%s'", policy.Name)
	}
	if policy.Description != "Reboots require a change ticket" {
		t.Errorf("Unexpected description: '%s'", policy.Description)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected default severity error, got '%s'", policy.Severity)
	}
	if policy.Metadata["source"] != policyFile {
		t.Errorf("Expected source metadata %s, got %v", policyFile, policy.Metadata["source"])
	}
}

func TestLoadFromFile_RegoParseError(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "broken.rego")
	if err := os.WriteFile(policyFile, []byte("this is not rego"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unparseable rego")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "audit.json")

	policy := Policy{
		Name:        "audit-note",
		Description: "Plans are audited",
		Rego:        testRego("opsforge.custom"),
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"audit"},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != policy.Name {
		t.Errorf("Expected name '%s', got '%s'", policy.Name, loaded.Name)
	}
	if loaded.Description != policy.Description {
		t.Errorf("Expected description '%s', got '%s'", policy.Description, loaded.Description)
	}
	if loaded.Severity != policy.Severity {
		t.Errorf("Expected severity '%s', got '%s'", policy.Severity, loaded.Severity)
	}
}

func TestLoadFromFile_JSONDefaults(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "minimal.json")
	if err := os.WriteFile(policyFile, []byte(`{"name": "minimal", "rego": "package opsforge.custom"}`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if loaded.Severity != SeverityError {
		t.Errorf("Expected default severity error, got '%s'", loaded.Severity)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestLoadFromFile_JSONMissingName(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "unnamed.json")
	if err := os.WriteFile(policyFile, []byte(`{"rego": "package opsforge.custom"}`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for JSON policy without a name")
	}
}

func TestLoadDir(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "team-a")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	files := map[string]string{
		"cap.rego":            testRego("opsforge.admission"),
		"team-a/reboots.rego": testRego("opsforge.admission"),
		"README.md":           "# Policies",
		"broken.rego":         "not rego at all",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}

	loaded, err := loader.LoadDir(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	// The broken file and the README are skipped, the subdirectory is not.
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(loaded))
	}
	names := map[string]bool{}
	for _, p := range loaded {
		names[p.Name] = true
	}
	if !names["cap"] || !names["reboots"] {
		t.Errorf("Unexpected policy names: %v", names)
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()

	dir1 := filepath.Join(tmpDir, "dir1")
	if err := os.Mkdir(dir1, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "one.rego"), []byte(testRego("opsforge.admission")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	file1 := filepath.Join(tmpDir, "two.rego")
	if err := os.WriteFile(file1, []byte(testRego("opsforge.custom")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir1, file1})
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(loaded))
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	loader := testLoader(t)

	if _, err := loader.loadFromPath(context.Background(), "/nonexistent/path"); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	bundleFile := filepath.Join(tmpDir, "bundle.json")

	bundle := Bundle{
		Name:        "safety",
		Version:     "1.0.0",
		Description: "Safety policies",
		Policies: []Policy{
			{Name: "one", Rego: testRego("opsforge.admission"), Severity: SeverityError, Enabled: true},
			{Name: "two", Rego: testRego("opsforge.custom"), Severity: SeverityWarning, Enabled: true},
		},
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("Failed to marshal bundle: %v", err)
	}
	if err := os.WriteFile(bundleFile, data, 0644); err != nil {
		t.Fatalf("Failed to write bundle file: %v", err)
	}

	loaded, err := loader.LoadBundle(context.Background(), bundleFile)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}

	if loaded.Name != bundle.Name {
		t.Errorf("Expected bundle name '%s', got '%s'", bundle.Name, loaded.Name)
	}
	if loaded.Version != bundle.Version {
		t.Errorf("Expected version '%s', got '%s'", bundle.Version, loaded.Version)
	}
	if len(loaded.Policies) != len(bundle.Policies) {
		t.Errorf("Expected %d policies, got %d", len(bundle.Policies), len(loaded.Policies))
	}
}

func TestExtractDescription(t *testing.T) {
	loader := testLoader(t)

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name: "single line comment",
			content: `# Reboots require approval
package opsforge.admission`,
			expected: "Reboots require approval",
		},
		{
			name: "multi line comments",
			content: `# Reboots require approval
# outside maintenance windows
package opsforge.admission`,
			expected: "Reboots require approval outside maintenance windows",
		},
		{
			name: "no comments",
			content: `package opsforge.admission
deny contains msg if { false }`,
			expected: "",
		},
		{
			name: "comments with empty lines",
			content: `# First line
#
# Second line
package opsforge.admission`,
			expected: "First line Second line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loader.extractDescription(tt.content)
			if result != tt.expected {
				t.Errorf("Expected description '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "cached.rego")
	if err := os.WriteFile(policyFile, []byte(testRego("opsforge.admission")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if len(loader.cache) != 1 {
		t.Errorf("Expected 1 cache entry, got %d", len(loader.cache))
	}

	loader.ClearCache()

	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "policy.txt")
	if err := os.WriteFile(policyFile, []byte("not a policy"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "cap.rego")
	if err := os.WriteFile(policyFile, []byte(testRego("opsforge.admission")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 1)
	err := loader.Watch(ctx, []string{tmpDir}, func(policies []Policy) error {
		select {
		case reloaded <- policies:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}

	updated := "# Updated policy\n" + testRego("opsforge.admission")
	if err := os.WriteFile(policyFile, []byte(updated), 0644); err != nil {
		t.Fatalf("Failed to update policy file: %v", err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 1 {
			t.Fatalf("Expected 1 reloaded policy, got %d", len(policies))
		}
		if !strings.Contains(policies[0].Rego, "# Updated policy") {
			t.Error("Expected reloaded policy to carry the updated content")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for policy reload")
	}
}
