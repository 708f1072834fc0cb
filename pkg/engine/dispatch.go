package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/opsforge/opsforge/pkg/catalog"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

// ServiceInvoker executes service-bound tools through a ServiceCaller. The
// request body carries the tool name and resolved inputs; the decoded JSON
// response body becomes the step output.
type ServiceInvoker struct {
	caller ServiceCaller
	logger *telemetry.Logger
}

// NewServiceInvoker creates an invoker for service-bound tools.
func NewServiceInvoker(caller ServiceCaller, logger *telemetry.Logger) *ServiceInvoker {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &ServiceInvoker{caller: caller, logger: logger}
}

// Invoke implements ToolInvoker.
func (si *ServiceInvoker) Invoke(ctx context.Context, step ExpandedStep, def catalog.ToolDefinition) (map[string]interface{}, error) {
	if def.Service == "" {
		return nil, NewValidationError(
			fmt.Sprintf("tool %s is not bound to a service", def.Name), nil).
			WithResource(def.Name).
			WithOperation("invoke")
	}

	path := def.Endpoint
	if path == "" {
		path = "/api/v1/tools/" + def.Name
	}
	if def.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	body := map[string]interface{}{
		"tool":   def.Name,
		"inputs": step.Inputs,
	}
	var out map[string]interface{}
	if err := si.caller.CallService(ctx, def.Service, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("failed to call service %s for tool %s: %w", def.Service, def.Name, err)
	}
	return out, nil
}

// Dispatcher routes concrete steps to the invoker that owns their tool:
// service-bound tools to the service invoker, inventory tools to the
// inventory invoker. A tool with no routable backend is a configuration
// error surfaced in the step result.
type Dispatcher struct {
	service   ToolInvoker
	inventory ToolInvoker
	logger    *telemetry.Logger
}

// NewDispatcher creates a dispatcher over the given invokers. Either
// invoker may be nil when that backend is not configured.
func NewDispatcher(service, inventory ToolInvoker, logger *telemetry.Logger) *Dispatcher {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Dispatcher{service: service, inventory: inventory, logger: logger}
}

// Invoke implements ToolInvoker.
func (d *Dispatcher) Invoke(ctx context.Context, step ExpandedStep, def catalog.ToolDefinition) (map[string]interface{}, error) {
	switch {
	case def.Service != "" && d.service != nil:
		return d.service.Invoke(ctx, step, def)
	case def.Category == catalog.CategoryInventory && d.inventory != nil:
		return d.inventory.Invoke(ctx, step, def)
	default:
		return nil, NewValidationError(
			fmt.Sprintf("tool %s has no routable backend", def.Name), nil).
			WithCode(ErrCodeToolNotRoutable).
			WithResource(def.Name).
			WithOperation("dispatch")
	}
}
