package catalog

// Tool sources. The registry assigns the source; definition files cannot
// claim one.
const (
	// SourceLocal marks built-in tools compiled into the binary.
	SourceLocal = "local"

	// SourcePipeline marks tools loaded from catalog directories.
	SourcePipeline = "pipeline"
)

// Tool categories.
const (
	// CategoryInventory marks tools served by the local asset resolver.
	CategoryInventory = "inventory"

	// CategoryOperations marks tools executed against managed assets
	// through a downstream service.
	CategoryOperations = "operations"
)

// Tool platforms.
const (
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformUnix    = "unix"
	PlatformNetwork = "network"
	PlatformAll     = "all"
)

// ToolParameter describes one input accepted by a tool.
type ToolParameter struct {
	// Name is the input key.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Type is the expected value type (string, int, bool, list, map).
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Description is the operator-facing parameter description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Required marks inputs the tool cannot run without.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Default is the value used when the input is absent.
	Default interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// ToolDefinition describes a tool the runner can dispatch. Definitions come
// from the built-in set or from YAML/JSON files in catalog directories.
type ToolDefinition struct {
	// Name is the unique tool name steps refer to.
	Name string `yaml:"name" json:"name" validate:"required"`

	// DisplayName is the human-readable tool name.
	DisplayName string `yaml:"display_name,omitempty" json:"displayName,omitempty"`

	// Description is the operator-facing tool description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Category groups tools for listing and routing. Inventory tools are
	// served locally; other categories need a Service binding.
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Platform restricts the tool to an OS family. An empty value or
	// "all" matches every platform.
	Platform string `yaml:"platform,omitempty" json:"platform,omitempty" validate:"omitempty,oneof=windows linux unix network all"`

	// Source records where the definition came from: local for built-ins,
	// pipeline for catalog files. Assigned by the registry.
	Source string `yaml:"-" json:"source"`

	// Service is the downstream service that executes this tool. Empty
	// for locally served tools.
	Service string `yaml:"service,omitempty" json:"service,omitempty"`

	// Endpoint is the path on Service the tool is invoked at. Defaults to
	// /api/v1/tools/<name> when empty.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// TimeoutSeconds bounds one invocation; zero means no tool-level bound.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeoutSeconds,omitempty" validate:"omitempty,min=0"`

	// Parameters documents the inputs the tool accepts.
	Parameters []ToolParameter `yaml:"parameters,omitempty" json:"parameters,omitempty" validate:"omitempty,dive"`
}

// MatchesPlatform reports whether the tool serves the given platform
// filter. An empty filter matches every tool; a tool with platform "all"
// or no platform matches every filter.
func (d ToolDefinition) MatchesPlatform(platform string) bool {
	if platform == "" || d.Platform == "" || d.Platform == PlatformAll {
		return true
	}
	return d.Platform == platform
}

// MatchesCategory reports whether the tool belongs to the given category
// filter. An empty filter matches every tool.
func (d ToolDefinition) MatchesCategory(category string) bool {
	return category == "" || d.Category == category
}
