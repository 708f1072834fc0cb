package engine

import (
	"context"

	"github.com/opsforge/opsforge/pkg/catalog"
)

// Catalog is the registry view the runner needs: tool lookup against a
// consistent snapshot.
type Catalog interface {
	// Get returns the named tool definition and whether it exists.
	Get(name string) (catalog.ToolDefinition, bool)
}

// ToolInvoker executes one concrete step against its tool definition.
type ToolInvoker interface {
	// Invoke runs the step and returns the tool output.
	Invoke(ctx context.Context, step ExpandedStep, def catalog.ToolDefinition) (map[string]interface{}, error)
}

// ServiceCaller issues circuit-breaker protected HTTP calls to downstream
// services. Implemented by the discovery monitor.
type ServiceCaller interface {
	// CallService sends body as JSON to a named service and decodes the
	// JSON response into out when out is non-nil. Calls against a service
	// whose breaker is open fail without a network attempt.
	CallService(ctx context.Context, service, method, path string, body, out interface{}) error
}

// AdmissionPolicy gates plans before the first step runs. Implemented by
// the policy engine.
type AdmissionPolicy interface {
	// Admit returns a policy error when the plan is denied.
	Admit(ctx context.Context, plan PlanRequest) error
}

// History persists finished executions. Implemented by the stores package.
type History interface {
	// SaveExecution records a terminal plan result.
	SaveExecution(ctx context.Context, result PlanResult) error
}
