package engine

import (
	"fmt"
	"strings"
	"sync"
)

// loopListKeys are the step input keys that can hold a templated target
// list, in detection order.
var loopListKeys = []string{"target_hosts", "targets"}

// loopOverKey is the step input naming an explicit fan-out source variable.
// Without it, fan-out binds to the canonical assets variable.
const loopOverKey = "loop_over"

// defaultExpandWorkers bounds the fan-out expansion worker pool.
const defaultExpandWorkers = 8

// singularTargetKey returns the scalar key a target list collapses to.
func singularTargetKey(listKey string) string {
	switch listKey {
	case "target_hosts":
		return "target_host"
	case "targets":
		return "target"
	default:
		return listKey
	}
}

// DetectLoop reports whether a step fans out. A step is a fan-out candidate
// when a target list input (target_hosts or targets) contains at least one
// templated entry and the fan-out source variable holds a non-empty list.
// The source is the assets variable unless the step names another list
// variable via a loop_over input. One source item produces one concrete step.
func (c *Context) DetectLoop(step Step) (LoopSpec, bool) {
	if step.Inputs == nil {
		return LoopSpec{}, false
	}

	listKey := ""
	for _, key := range loopListKeys {
		raw, ok := step.Inputs[key]
		if !ok {
			continue
		}
		entries, ok := asList(raw)
		if !ok || !hasTemplatedEntry(entries) {
			continue
		}
		listKey = key
		break
	}
	if listKey == "" {
		return LoopSpec{}, false
	}

	variable := VarAssets
	if name, ok := step.Inputs[loopOverKey].(string); ok && name != "" {
		variable = name
	}
	raw, ok := c.GetVariable(variable)
	if !ok {
		return LoopSpec{}, false
	}
	items, ok := asList(raw)
	if !ok || len(items) == 0 {
		return LoopSpec{}, false
	}

	return LoopSpec{Variable: variable, ListKey: listKey, Items: items}, true
}

func hasTemplatedEntry(entries []interface{}) bool {
	for _, entry := range entries {
		if s, ok := entry.(string); ok && strings.Contains(s, "{{") {
			return true
		}
	}
	return false
}

// ExpandLoop produces one concrete step per fan-out item. Items expand
// concurrently through a bounded worker pool; each gets an isolated child
// context seeded with the item's fields (map items contribute every key,
// scalar items bind item) plus loopIndex and loopTotal. The templated
// target list collapses to the first entry that resolved for the item, under
// the singular key, and the list key is removed. An item that fails to
// expand is logged and skipped; the error return is reserved for a whole
// expansion producing nothing, which callers handle by falling back to the
// original step.
func (c *Context) ExpandLoop(step Step, index int, spec LoopSpec) ([]ExpandedStep, error) {
	total := len(spec.Items)
	if total == 0 {
		return nil, NewValidationError("fan-out source is empty", nil).
			WithOperation("expand_loop")
	}

	// One slot per item so workers never contend and order is preserved.
	results := make([]*ExpandedStep, total)

	workerCount := defaultExpandWorkers
	if total < workerCount {
		workerCount = total
	}
	workQueue := make(chan int, total)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workQueue {
				expanded, err := c.expandItem(step, index, spec, i)
				if err != nil {
					c.logger.WithStepIndex(index).
						WithField("loop_index", i).
						WithField("loop_variable", spec.Variable).
						WithError(err).
						Warn("skipping fan-out item")
					continue
				}
				results[i] = expanded
			}
		}()
	}

	for i := 0; i < total; i++ {
		workQueue <- i
	}
	close(workQueue)
	wg.Wait()

	steps := make([]ExpandedStep, 0, total)
	for _, expanded := range results {
		if expanded != nil {
			steps = append(steps, *expanded)
		}
	}
	if len(steps) == 0 {
		return nil, NewValidationError(
			fmt.Sprintf("none of %d fan-out items expanded", total), nil).
			WithOperation("expand_loop")
	}
	return steps, nil
}

// expandItem expands one fan-out item into a concrete step.
func (c *Context) expandItem(step Step, index int, spec LoopSpec, itemIndex int) (*ExpandedStep, error) {
	child := c.Child()
	switch item := spec.Items[itemIndex].(type) {
	case map[string]interface{}:
		for k, v := range item {
			child.SetVariable(k, v)
		}
	default:
		child.SetVariable("item", item)
	}
	total := len(spec.Items)
	child.SetVariable("loopIndex", itemIndex)
	child.SetVariable("loopTotal", total)

	resolved, _ := child.ResolveInputs(step.Inputs)

	entries, ok := asList(resolved[spec.ListKey])
	if !ok {
		return nil, fmt.Errorf("input %q is not a list", spec.ListKey)
	}
	target := ""
	for _, entry := range entries {
		s := renderValue(entry)
		if s == "" || strings.Contains(s, "{{") {
			continue
		}
		target = s
		break
	}
	if target == "" {
		return nil, fmt.Errorf("no entry of %q resolved for this item", spec.ListKey)
	}

	inputs := make(map[string]interface{}, len(resolved))
	for k, v := range resolved {
		if k == spec.ListKey || k == loopOverKey {
			continue
		}
		inputs[k] = v
	}
	inputs[singularTargetKey(spec.ListKey)] = target

	loopIndex := itemIndex
	loopTotal := total
	return &ExpandedStep{
		Index:     index,
		Tool:      step.Tool,
		Inputs:    inputs,
		LoopIndex: &loopIndex,
		LoopTotal: &loopTotal,
	}, nil
}
