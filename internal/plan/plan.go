// Package plan loads declarative transformation plans.
//
// A plan names a source schema, an optional target schema and the ordered
// steps whose attribute edits are replayed against a lineage mapping.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"gopkg.in/yaml.v3"
)

// Plan is a parsed transformation plan.
type Plan struct {
	Name   string
	Source core.Schema
	Target core.Schema
	Steps  []Step
}

// HasTarget reports whether the plan declared a target schema.
func (p *Plan) HasTarget() bool {
	return p.Target.Len() > 0
}

// Step is one transformation and the attribute edits it causes.
type Step struct {
	Name string
	// Carry registers an identity edit for every live attribute the step
	// does not name, so untouched attributes advance with the step.
	Carry bool
	Edits []Edit
}

// Edit turns the live attribute named From into To. A nil To deletes it.
type Edit struct {
	From string
	To   *core.Attribute
}

// IsDelete reports whether the edit removes its source attribute.
func (e Edit) IsDelete() bool {
	return e.To == nil
}

// ValidationError reports an invalid plan field.
type ValidationError struct {
	Step    int // -1 for plan-level fields
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("plan %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("plan step %d %s: %s", e.Step+1, e.Field, e.Message)
}

// attributeYAML accepts either `id` or `{name: id, type: integer}`.
type attributeYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func (a *attributeYAML) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		a.Name = n.Value
		return nil
	}
	type plain attributeYAML
	return n.Decode((*plain)(a))
}

type editYAML struct {
	From string         `yaml:"from"`
	To   *attributeYAML `yaml:"to"`
}

type stepYAML struct {
	Name  string     `yaml:"name"`
	Carry bool       `yaml:"carry"`
	Edits []editYAML `yaml:"edits"`
}

type planYAML struct {
	Name   string          `yaml:"name"`
	Source []attributeYAML `yaml:"source"`
	Target []attributeYAML `yaml:"target"`
	Steps  []stepYAML      `yaml:"steps"`
}

// Load reads and parses a plan file. The plan name defaults to the file
// name without its extension.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return p, nil
}

// Parse parses plan YAML. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw planYAML
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Step: -1, Field: "source", Message: "plan is empty"}
		}
		return nil, fmt.Errorf("invalid plan YAML: %w", err)
	}

	return raw.toPlan()
}

func (raw *planYAML) toPlan() (*Plan, error) {
	if len(raw.Source) == 0 {
		return nil, &ValidationError{Step: -1, Field: "source", Message: "at least one attribute is required"}
	}

	source, err := toSchema(raw.Source, "source")
	if err != nil {
		return nil, err
	}
	target, err := toSchema(raw.Target, "target")
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Name:   raw.Name,
		Source: source,
		Target: target,
		Steps:  make([]Step, 0, len(raw.Steps)),
	}

	for i, st := range raw.Steps {
		step := Step{Name: st.Name, Carry: st.Carry}
		if step.Name == "" {
			step.Name = fmt.Sprintf("step-%d", i+1)
		}
		if len(st.Edits) == 0 && !st.Carry {
			return nil, &ValidationError{Step: i, Field: "edits", Message: "a step needs edits or carry: true"}
		}

		for j, e := range st.Edits {
			if e.From == "" {
				return nil, &ValidationError{Step: i, Field: fmt.Sprintf("edits[%d].from", j), Message: "required"}
			}
			edit := Edit{From: e.From}
			if e.To != nil {
				to, err := toAttribute(*e.To)
				if err != nil {
					return nil, &ValidationError{Step: i, Field: fmt.Sprintf("edits[%d].to", j), Message: err.Error()}
				}
				edit.To = &to
			}
			step.Edits = append(step.Edits, edit)
		}
		p.Steps = append(p.Steps, step)
	}

	return p, nil
}

func toSchema(attrs []attributeYAML, field string) (core.Schema, error) {
	out := make([]core.Attribute, 0, len(attrs))
	for i, a := range attrs {
		attr, err := toAttribute(a)
		if err != nil {
			return core.Schema{}, &ValidationError{Step: -1, Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
		}
		out = append(out, attr)
	}

	s, err := core.NewSchema(out...)
	if err != nil {
		return core.Schema{}, &ValidationError{Step: -1, Field: field, Message: err.Error()}
	}
	return s, nil
}

func toAttribute(a attributeYAML) (core.Attribute, error) {
	if a.Name == "" {
		return core.Attribute{}, errors.New("attribute name is required")
	}
	typ, ok := core.ParseDataType(a.Type)
	if !ok {
		return core.Attribute{}, fmt.Errorf("unknown data type %q", a.Type)
	}
	return core.NewAttribute(a.Name, typ), nil
}
