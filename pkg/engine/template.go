package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resolution is the outcome of resolving template references in a string.
// Unresolvable references stay verbatim in Value so failures are visible in
// the produced text rather than silently swallowed.
type Resolution struct {
	// Value is the text with every resolvable reference substituted.
	Value string

	// Complete is true when every reference resolved.
	Complete bool

	// Missing lists the references that did not resolve, in order of
	// appearance. Callers log one warning per entry.
	Missing []string
}

// refStepKind discriminates the typed accessors of a parsed reference.
type refStepKind int

const (
	refIndex refStepKind = iota
	refField
)

// refStep is one accessor in a parsed reference path.
type refStep struct {
	kind  refStepKind
	index int
	field string
}

// refPath is a parsed template reference: a variable name followed by typed
// accessors, per the grammar IDENT ('[' INT ']')? ('.' IDENT)*.
type refPath struct {
	name  string
	steps []refStep
}

// ResolveString substitutes every {{reference}} span in text. Supported
// reference forms are {{name}}, {{name[i]}} and {{name[i].field}}, with
// field chains walking nested maps. Scalars render with fmt, composite
// values as compact JSON. Unknown variables, out-of-range indexes, missing
// fields and malformed references are left verbatim and reported in
// Resolution.Missing. Text without references passes through unchanged.
func (c *Context) ResolveString(text string) Resolution {
	if !strings.Contains(text, "{{") {
		return Resolution{Value: text, Complete: true}
	}

	var b strings.Builder
	var missing []string
	rest := text
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])

		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			// Unterminated span, keep the remainder as-is.
			b.WriteString(rest[start:])
			break
		}

		span := rest[start : start+2+end+2]
		ref := strings.TrimSpace(rest[start+2 : start+2+end])
		rest = rest[start+2+end+2:]

		path, err := parseReference(ref)
		if err != nil {
			missing = append(missing, ref)
			b.WriteString(span)
			continue
		}
		value, ok := c.lookupReference(path)
		if !ok {
			missing = append(missing, ref)
			b.WriteString(span)
			continue
		}
		b.WriteString(renderValue(value))
	}

	return Resolution{
		Value:    b.String(),
		Complete: len(missing) == 0,
		Missing:  missing,
	}
}

// ResolveValue resolves template references recursively: strings through
// ResolveString, maps and lists element-wise. Non-string leaves pass
// through untouched. The returned slice lists every unresolved reference.
func (c *Context) ResolveValue(value interface{}) (interface{}, []string) {
	switch v := value.(type) {
	case string:
		r := c.ResolveString(v)
		return r.Value, r.Missing

	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		var missing []string
		for k, item := range v {
			resolved, m := c.ResolveValue(item)
			out[k] = resolved
			missing = append(missing, m...)
		}
		return out, missing

	case []interface{}:
		out := make([]interface{}, len(v))
		var missing []string
		for i, item := range v {
			resolved, m := c.ResolveValue(item)
			out[i] = resolved
			missing = append(missing, m...)
		}
		return out, missing

	case []string:
		out := make([]string, len(v))
		var missing []string
		for i, item := range v {
			r := c.ResolveString(item)
			out[i] = r.Value
			missing = append(missing, r.Missing...)
		}
		return out, missing

	default:
		return value, nil
	}
}

// ResolveInputs resolves a step inputs map, returning the resolved copy and
// every unresolved reference.
func (c *Context) ResolveInputs(inputs map[string]interface{}) (map[string]interface{}, []string) {
	if inputs == nil {
		return nil, nil
	}
	resolved, missing := c.ResolveValue(inputs)
	out, ok := resolved.(map[string]interface{})
	if !ok {
		return inputs, missing
	}
	return out, missing
}

// lookupReference walks a parsed reference path against the context
// variables. Any failed accessor makes the whole reference unresolved.
func (c *Context) lookupReference(path refPath) (interface{}, bool) {
	value, ok := c.GetVariable(path.name)
	if !ok {
		return nil, false
	}
	for _, step := range path.steps {
		switch step.kind {
		case refIndex:
			list, ok := asList(value)
			if !ok || step.index < 0 || step.index >= len(list) {
				return nil, false
			}
			value = list[step.index]
		case refField:
			m, ok := value.(map[string]interface{})
			if !ok {
				return nil, false
			}
			value, ok = m[step.field]
			if !ok {
				return nil, false
			}
		}
	}
	return value, true
}

// asList normalises the list types that appear in context variables.
func asList(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

// renderValue formats a resolved value for substitution into text.
func renderValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return "null"
	case map[string]interface{}, []interface{}, []string, []map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseReference parses a template reference per the grammar
// IDENT ('[' INT ']')? ('.' IDENT)*.
func parseReference(s string) (refPath, error) {
	p := &refParser{input: s}

	name, err := p.ident()
	if err != nil {
		return refPath{}, err
	}
	path := refPath{name: name}

	if p.peek() == '[' {
		p.pos++
		index, err := p.integer()
		if err != nil {
			return refPath{}, err
		}
		if p.peek() != ']' {
			return refPath{}, fmt.Errorf("expected ']' at position %d in %q", p.pos, s)
		}
		p.pos++
		path.steps = append(path.steps, refStep{kind: refIndex, index: index})
	}

	for p.peek() == '.' {
		p.pos++
		field, err := p.ident()
		if err != nil {
			return refPath{}, err
		}
		path.steps = append(path.steps, refStep{kind: refField, field: field})
	}

	if p.pos != len(p.input) {
		return refPath{}, fmt.Errorf("unexpected character %q at position %d in %q",
			p.input[p.pos], p.pos, s)
	}
	return path, nil
}

// refParser is a single-pass scanner over a reference string.
type refParser struct {
	input string
	pos   int
}

func (p *refParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *refParser) ident() (string, error) {
	start := p.pos
	if !isIdentStart(p.peek()) {
		return "", fmt.Errorf("expected identifier at position %d in %q", p.pos, p.input)
	}
	p.pos++
	for isIdentPart(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos], nil
}

func (p *refParser) integer() (int, error) {
	start := p.pos
	for p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected index at position %d in %q", p.pos, p.input)
	}
	n := 0
	for _, ch := range p.input[start:p.pos] {
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
