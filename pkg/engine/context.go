package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/opsforge/opsforge/pkg/telemetry"
)

// Variable names derived from asset-query step outputs.
const (
	// VarAssets holds the most recent list of discovered assets.
	VarAssets = "assets"

	// VarAssetCount holds the size of the most recent asset list.
	VarAssetCount = "assetCount"

	// VarHostnames holds the non-empty hostnames of the discovered assets.
	VarHostnames = "hostnames"

	// VarIPAddresses holds the non-empty IP addresses of the discovered assets.
	VarIPAddresses = "ipAddresses"
)

// Context holds the mutable state of one plan execution: derived variables
// and the step results stored so far. All methods are safe for concurrent
// use; fan-out expansion reads parent variables from worker goroutines.
type Context struct {
	// ExecutionID identifies the execution this context belongs to.
	ExecutionID string

	mu          sync.RWMutex
	variables   map[string]interface{}
	stepResults map[int]StepResult
	logger      *telemetry.Logger
}

// NewContext creates an execution context. An empty executionID is replaced
// with a generated UUID.
func NewContext(executionID string, logger *telemetry.Logger) *Context {
	if executionID == "" {
		executionID = uuid.New().String()
	}
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Context{
		ExecutionID: executionID,
		variables:   make(map[string]interface{}),
		stepResults: make(map[int]StepResult),
		logger:      logger.WithExecutionID(executionID),
	}
}

// SetVariable stores a named variable, replacing any previous value.
func (c *Context) SetVariable(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// GetVariable returns the named variable and whether it is set.
func (c *Context) GetVariable(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// Variables returns a shallow copy of the current variable map.
func (c *Context) Variables() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// StoreStepResult records the result for a plan step index. Results are
// write-once: a second store for the same index fails and leaves the first
// value untouched.
func (c *Context) StoreStepResult(index int, result StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stepResults[index]; exists {
		return NewValidationError(
			fmt.Sprintf("result already stored for step %d", index), nil).
			WithCode(ErrCodeDuplicateResult).
			WithOperation("store_step_result")
	}
	c.stepResults[index] = result
	return nil
}

// GetStepResult returns the stored result for a plan step index.
func (c *Context) GetStepResult(index int) (StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.stepResults[index]
	return r, ok
}

// StepResultCount returns the number of stored step results.
func (c *Context) StepResultCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stepResults)
}

// ExtractVariables derives context variables from a step result. The raw
// output is always recorded under step_<index>_result. Outputs carrying an
// asset list additionally set the assets, assetCount, hostnames and
// ipAddresses variables. When the output has no asset list and the step's
// tool is an asset tool, the four variables are set to empty defaults so
// later template resolution never fails on unset names; non-asset tools
// leave previously derived variables untouched.
func (c *Context) ExtractVariables(result StepResult, assetTool bool) {
	c.SetVariable(fmt.Sprintf("step_%d_result", result.StepIndex), result.Output)

	if out, ok := decodeAssetQuery(result.Output); ok {
		c.SetVariable(VarAssets, out.Assets)
		c.SetVariable(VarAssetCount, out.Count)
		c.SetVariable(VarHostnames, out.Hostnames())
		c.SetVariable(VarIPAddresses, out.IPAddresses())
		c.logger.WithStepIndex(result.StepIndex).
			WithField("asset_count", out.Count).
			Debug("extracted asset variables from step output")
		return
	}

	if assetTool {
		c.SetVariable(VarAssets, []interface{}{})
		c.SetVariable(VarAssetCount, 0)
		c.SetVariable(VarHostnames, []string{})
		c.SetVariable(VarIPAddresses, []string{})
		c.logger.WithStepIndex(result.StepIndex).
			Debug("asset tool produced no asset list, set empty defaults")
	}
}

// Child creates an isolated copy of the context for one fan-out iteration:
// same execution ID, variables copied, step results not shared. Writes to
// the child never reach the parent.
func (c *Context) Child() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vars := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}
	return &Context{
		ExecutionID: c.ExecutionID,
		variables:   vars,
		stepResults: make(map[int]StepResult),
		logger:      c.logger,
	}
}
