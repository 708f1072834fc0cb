package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/telemetry"
)

// Snapshot is an immutable view of the active tool set. Lookups against one
// snapshot are mutually consistent even while a reload swaps in a new set.
type Snapshot struct {
	tools map[string]ToolDefinition
	names []string
}

// Get returns the named tool definition.
func (s *Snapshot) Get(name string) (ToolDefinition, bool) {
	def, ok := s.tools[name]
	return def, ok
}

// Has reports whether the named tool exists.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.tools[name]
	return ok
}

// Len returns the number of tools in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.tools)
}

// List returns the tools matching the platform and category filters, sorted
// by name. Empty filters match everything; a tool with platform "all"
// matches any platform filter.
func (s *Snapshot) List(platform, category string) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(s.names))
	for _, name := range s.names {
		def := s.tools[name]
		if def.MatchesPlatform(platform) && def.MatchesCategory(category) {
			out = append(out, def)
		}
	}
	return out
}

func newSnapshot(tools map[string]ToolDefinition) *Snapshot {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Snapshot{tools: tools, names: names}
}

// ReloadReport summarises one catalog rebuild.
type ReloadReport struct {
	// Builtins is the number of built-in tools seeded into the set.
	Builtins int `json:"builtins"`

	// CatalogTools is the number of definitions merged from catalog files.
	CatalogTools int `json:"catalogTools"`

	// SkippedFiles counts malformed files that were skipped.
	SkippedFiles int `json:"skippedFiles"`

	// Overridden counts name collisions where a later definition won.
	Overridden int `json:"overridden"`

	// MissingRequired lists required tool names absent from the final set.
	MissingRequired []string `json:"missingRequired,omitempty"`

	// Duration is how long the rebuild took.
	Duration time.Duration `json:"duration"`
}

// Registry owns the active tool set: built-ins merged with the catalog
// directories, rebuilt from scratch on every reload and swapped in
// atomically so readers never observe a partial set.
type Registry struct {
	dirs     []string
	required []string
	active   atomic.Pointer[Snapshot]
	validate *validator.Validate
	metrics  *telemetry.Metrics
	events   *telemetry.EventPublisher
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
}

// NewRegistry creates a registry over the given catalog directories, seeded
// with the built-in tools. Call Reload to merge the directories in.
// metrics and events may be nil.
func NewRegistry(dirs []string, metrics *telemetry.Metrics, events *telemetry.EventPublisher, logger zerolog.Logger) *Registry {
	r := &Registry{
		dirs:     dirs,
		required: RequiredTools(),
		validate: validator.New(),
		metrics:  metrics,
		events:   events,
		logger:   logger.With().Str("component", "catalog").Logger(),
	}

	tools := make(map[string]ToolDefinition)
	for _, def := range BuiltinTools() {
		def.Source = SourceLocal
		tools[def.Name] = def
	}
	r.active.Store(newSnapshot(tools))
	return r
}

// Reload rebuilds the active tool set from scratch: built-ins first, then
// every catalog directory in configuration order, merged by name with
// later-directory-wins. Malformed files are skipped and counted; missing
// required tools are reported but never fail the reload. The finished set
// replaces the active one atomically. The only error is context
// cancellation mid-scan.
func (r *Registry) Reload(ctx context.Context) (ReloadReport, error) {
	start := time.Now()
	var report ReloadReport

	tools := make(map[string]ToolDefinition)
	for _, def := range BuiltinTools() {
		def.Source = SourceLocal
		tools[def.Name] = def
	}
	report.Builtins = len(tools)

	for _, dir := range r.dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		defs, skipped, err := r.loadDirectory(dir)
		report.SkippedFiles += skipped
		if err != nil {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to scan catalog directory")
			if r.metrics != nil {
				r.metrics.RecordCatalogReload("error", nil, 0)
			}
			continue
		}
		for _, def := range defs {
			if prev, exists := tools[def.Name]; exists {
				report.Overridden++
				r.logger.Warn().
					Str("tool", def.Name).
					Str("previous_source", prev.Source).
					Str("dir", dir).
					Msg("Tool definition overridden")
			}
			tools[def.Name] = def
			report.CatalogTools++
		}
	}

	for _, name := range r.required {
		if _, ok := tools[name]; !ok {
			report.MissingRequired = append(report.MissingRequired, name)
		}
	}
	if len(report.MissingRequired) > 0 {
		r.logger.Error().
			Strs("tools", report.MissingRequired).
			Msg("Required tools missing after reload")
	}

	r.active.Store(newSnapshot(tools))
	report.Duration = time.Since(start)

	bySource := make(map[string]int)
	for _, def := range tools {
		bySource[def.Source]++
	}
	if r.metrics != nil {
		r.metrics.RecordCatalogReload("success", bySource, report.SkippedFiles)
	}
	if r.events != nil {
		_ = r.events.PublishCatalogReloaded(len(tools), report.SkippedFiles)
	}

	r.logger.Info().
		Int("tools", len(tools)).
		Int("builtins", report.Builtins).
		Int("catalog", report.CatalogTools).
		Int("skipped", report.SkippedFiles).
		Int("overridden", report.Overridden).
		Dur("duration", report.Duration).
		Msg("Catalog reloaded")

	return report, nil
}

// Get returns the named tool from the active set.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	return r.active.Load().Get(name)
}

// Has reports whether the named tool exists in the active set.
func (r *Registry) Has(name string) bool {
	return r.active.Load().Has(name)
}

// List returns the active tools matching the platform and category filters.
func (r *Registry) List(platform, category string) []ToolDefinition {
	return r.active.Load().List(platform, category)
}

// Snapshot returns the active tool set for consistent multi-lookup use.
func (r *Registry) Snapshot() *Snapshot {
	return r.active.Load()
}

// RequiredReport returns the required tool names missing from the active set.
func (r *Registry) RequiredReport() []string {
	set := r.active.Load()
	var missing []string
	for _, name := range r.required {
		if !set.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
