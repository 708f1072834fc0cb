package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single runtime occurrence: an execution milestone, a step
// outcome, a service state change, or an error. Events carry enough
// correlation fields to tie them back to executions and services.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Source names the component that raised the event, such as
	// "engine", "monitor", or "catalog".
	Source string `json:"source"`

	ExecutionID string `json:"execution_id,omitempty"`
	StepIndex   int    `json:"step_index,omitempty"`
	Service     string `json:"service,omitempty"`

	Message string `json:"message"`
	Level   string `json:"level"`

	// Data holds type-specific payload fields.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types raised by the runtime.
const (
	EventTypeExecutionStarted    = "execution.started"
	EventTypeExecutionCompleted  = "execution.completed"
	EventTypeExecutionFailed     = "execution.failed"
	EventTypeStepStarted         = "step.started"
	EventTypeStepCompleted       = "step.completed"
	EventTypeStepFailed          = "step.failed"
	EventTypeServiceStateChanged = "service.state_changed"
	EventTypeCatalogReloaded     = "catalog.reloaded"
	EventTypePolicyViolation     = "policy.violation"
	EventTypeError               = "error"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber receives delivered events.
type EventSubscriber func(event Event)

// EventFilter reports whether an event passes. Filters returning false
// drop the event for their scope.
type EventFilter func(event Event) bool

// EventPublisher fans runtime events out to subscribers, either inline
// or through a buffered batch pipeline.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher builds a publisher from cfg. A disabled config
// yields a no-op publisher whose methods all succeed.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish routes an event to subscribers. Missing ID and timestamp are
// filled in. In async mode a full buffer drops the event and returns
// an error; synchronous mode delivers inline.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishExecutionStarted publishes an execution started event.
func (ep *EventPublisher) PublishExecutionStarted(executionID, plan string, steps int) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionStarted,
		Source:      "engine",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s started for plan %q", executionID, plan),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"plan":  plan,
			"steps": steps,
		},
	})
}

// PublishExecutionCompleted publishes an execution completed event.
func (ep *EventPublisher) PublishExecutionCompleted(executionID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionCompleted,
		Source:      "engine",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s completed with status: %s", executionID, status),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishExecutionFailed publishes an execution failed event.
func (ep *EventPublisher) PublishExecutionFailed(executionID, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionFailed,
		Source:      "engine",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s failed: %s", executionID, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishStepStarted publishes a step started event.
func (ep *EventPublisher) PublishStepStarted(executionID string, stepIndex int, tool string) error {
	return ep.Publish(Event{
		Type:        EventTypeStepStarted,
		Source:      "engine",
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Message:     fmt.Sprintf("Step %d started: %s", stepIndex, tool),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"tool": tool,
		},
	})
}

// PublishStepCompleted publishes a step completed event.
func (ep *EventPublisher) PublishStepCompleted(executionID string, stepIndex int, tool string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeStepCompleted,
		Source:      "engine",
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Message:     fmt.Sprintf("Step %d completed: %s", stepIndex, tool),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"tool":     tool,
			"duration": duration.Seconds(),
		},
	})
}

// PublishStepFailed publishes a step failed event.
func (ep *EventPublisher) PublishStepFailed(executionID string, stepIndex int, tool, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeStepFailed,
		Source:      "engine",
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Message:     fmt.Sprintf("Step %d failed: %s: %s", stepIndex, tool, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"tool":   tool,
			"reason": reason,
		},
	})
}

// PublishServiceStateChanged publishes a service health state change event.
func (ep *EventPublisher) PublishServiceStateChanged(service, oldState, newState string) error {
	return ep.Publish(Event{
		Type:    EventTypeServiceStateChanged,
		Source:  "monitor",
		Service: service,
		Message: fmt.Sprintf("Service %s changed from %s to %s", service, oldState, newState),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"old_state": oldState,
			"new_state": newState,
		},
	})
}

// PublishCatalogReloaded publishes a catalog reload event.
func (ep *EventPublisher) PublishCatalogReloaded(tools, skipped int) error {
	return ep.Publish(Event{
		Type:    EventTypeCatalogReloaded,
		Source:  "catalog",
		Message: fmt.Sprintf("Catalog reloaded: %d tools registered, %d files skipped", tools, skipped),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"tools":   tools,
			"skipped": skipped,
		},
	})
}

// PublishPolicyViolation publishes a plan admission policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(executionID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypePolicyViolation,
		Source:      "policy",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Policy violation on execution %s: %s - %s", executionID, policyName, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe registers a subscriber. A nil filter receives every event
// that passes the global filters.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter installs a global filter applied before buffering.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents drains the buffer into batches. A batch is delivered
// when it reaches MaxBatchSize or when FlushInterval elapses, so a
// trickle of events never sits in memory indefinitely.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	// A nil tick channel blocks forever, disabling interval flushes
	// when no interval is configured.
	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-tick:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain events that were buffered before cancellation,
			// then deliver the final partial batch.
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						ep.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent hands an event to each subscriber whose filter accepts
// it. Subscribers run on their own goroutines so a slow one cannot
// stall delivery.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		go entry.subscriber(event)
	}
}

// Shutdown stops the pipeline and waits for buffered events to be
// handed off, up to the deadline on ctx.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel passes events at minLevel or above.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType passes events whose type is in the given set.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByExecutionID passes events belonging to one execution.
func FilterByExecutionID(executionID string) EventFilter {
	return func(event Event) bool {
		return event.ExecutionID == executionID
	}
}

// FilterByService passes events about one downstream service.
func FilterByService(service string) EventFilter {
	return func(event Event) bool {
		return event.Service == service
	}
}
