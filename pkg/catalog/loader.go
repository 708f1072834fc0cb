package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadDirectory parses every tool definition file under dir recursively.
// WalkDir visits entries in lexical order, so merge order within a
// directory is deterministic. Malformed files are skipped with a logged
// warning and counted; only a failed walk aborts the directory.
func (r *Registry) loadDirectory(dir string) ([]ToolDefinition, int, error) {
	var defs []ToolDefinition
	skipped := 0

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		def, err := r.loadFile(path)
		if err != nil {
			skipped++
			r.logger.Warn().Err(err).Str("path", path).
				Msg("Skipping malformed tool definition")
			return nil
		}
		defs = append(defs, *def)
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("failed to walk catalog directory: %w", err)
	}
	return defs, skipped, nil
}

// loadFile parses one tool definition file. The source is always assigned
// by the loader; a file cannot claim the local source.
func (r *Registry) loadFile(path string) (*ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var def ToolDefinition
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse JSON tool definition: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse YAML tool definition: %w", err)
		}
	}
	def.Source = SourcePipeline

	if err := r.validate.Struct(def); err != nil {
		return nil, fmt.Errorf("invalid tool definition: %w", err)
	}
	return &def, nil
}
