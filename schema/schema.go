// Package schema validates tool-call arguments against per-tool JSON
// Schemas.
//
// Schemas are compiled once at registry construction; validation runs on
// every dispatch before any backend is touched. Validation failures carry the
// offending field names so the caller can correct the call without reading a
// validator stack trace.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// FieldError reports arguments that failed validation.
type FieldError struct {
	// Fields are the offending argument names, sorted and deduplicated.
	Fields []string

	// Detail is the underlying validator message.
	Detail string
}

// Error implements error.
func (e *FieldError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid arguments: %s", e.Detail)
	}
	return fmt.Sprintf("invalid arguments %v: %s", e.Fields, e.Detail)
}

// Parse decodes a raw schema document into a jsonschema.Schema without
// resolving it, for callers that advertise schemas rather than validate with
// them. A nil document parses to a permissive object schema.
func Parse(raw map[string]any) (*jsonschema.Schema, error) {
	if raw == nil {
		raw = map[string]any{"type": "object"}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(encoded, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// Compiled is a resolved schema ready for repeated validation.
type Compiled struct {
	resolved *jsonschema.Resolved
	required []string
	props    map[string]struct{}
}

// Compile resolves a raw JSON Schema document. A nil schema compiles to a
// validator that accepts any object.
func Compile(raw map[string]any) (*Compiled, error) {
	if raw == nil {
		return &Compiled{}, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(encoded, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	c := &Compiled{resolved: resolved}
	if req, ok := raw["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				c.required = append(c.required, name)
			}
		}
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		c.props = make(map[string]struct{}, len(props))
		for name := range props {
			c.props[name] = struct{}{}
		}
	}
	return c, nil
}

// Validate checks args against the compiled schema. On failure it returns a
// *FieldError naming the offending fields.
func (c *Compiled) Validate(args map[string]any) error {
	if c.resolved == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	err := c.resolved.Validate(args)
	if err == nil {
		return nil
	}

	return &FieldError{Fields: c.offenders(args), Detail: err.Error()}
}

// offenders names the fields most likely at fault: missing required
// properties plus properties outside the declared set. When neither applies
// (a type or enum violation), the declared properties present in args are
// reported.
func (c *Compiled) offenders(args map[string]any) []string {
	set := make(map[string]struct{})

	for _, name := range c.required {
		if _, present := args[name]; !present {
			set[name] = struct{}{}
		}
	}
	if c.props != nil {
		for name := range args {
			if _, declared := c.props[name]; !declared {
				set[name] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		for name := range args {
			if _, declared := c.props[name]; declared || c.props == nil {
				set[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
