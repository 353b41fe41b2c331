package core

import (
	"fmt"
	"strings"
)

// Attribute is a named, typed column. Two attributes are equal when both
// name and type match; use Schema.Lookup for name-only resolution.
type Attribute struct {
	Name string   `json:"name" yaml:"name"`
	Type DataType `json:"type" yaml:"type"`
}

// NewAttribute creates an attribute. An empty type becomes DataTypeUnknown.
func NewAttribute(name string, typ DataType) Attribute {
	if typ == "" {
		typ = DataTypeUnknown
	}
	return Attribute{Name: name, Type: typ}
}

// String renders the attribute as name:type.
func (a Attribute) String() string {
	return a.Name + ":" + a.Type.String()
}

// DuplicateAttributeError is returned when a schema would contain the same
// attribute name twice.
type DuplicateAttributeError struct {
	Name string
}

func (e *DuplicateAttributeError) Error() string {
	return fmt.Sprintf("duplicate attribute %q in schema", e.Name)
}

// Schema is an ordered set of attributes with unique names.
// A Schema is immutable; the zero value is the empty schema.
type Schema struct {
	attrs []Attribute
	index map[string]int
}

// NewSchema builds a schema from the given attributes in order.
func NewSchema(attrs ...Attribute) (Schema, error) {
	s := Schema{
		attrs: make([]Attribute, 0, len(attrs)),
		index: make(map[string]int, len(attrs)),
	}
	for _, a := range attrs {
		if _, exists := s.index[a.Name]; exists {
			return Schema{}, &DuplicateAttributeError{Name: a.Name}
		}
		s.index[a.Name] = len(s.attrs)
		s.attrs = append(s.attrs, NewAttribute(a.Name, a.Type))
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on duplicate names.
func MustSchema(attrs ...Attribute) Schema {
	s, err := NewSchema(attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Attributes returns a copy of the attributes in schema order.
func (s Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Len returns the number of attributes.
func (s Schema) Len() int {
	return len(s.attrs)
}

// Names returns the attribute names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Index returns the position of the named attribute, or -1.
func (s Schema) Index(name string) int {
	if idx, ok := s.index[name]; ok {
		return idx
	}
	return -1
}

// Lookup returns the attribute with the given name.
func (s Schema) Lookup(name string) (Attribute, bool) {
	idx := s.Index(name)
	if idx < 0 {
		return Attribute{}, false
	}
	return s.attrs[idx], true
}

// Contains reports whether the exact attribute (name and type) is present.
func (s Schema) Contains(a Attribute) bool {
	got, ok := s.Lookup(a.Name)
	return ok && got == a
}

// Equal reports whether both schemas hold the same attributes, ignoring order.
func (s Schema) Equal(other Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, a := range s.attrs {
		if !other.Contains(a) {
			return false
		}
	}
	return true
}

// Diff returns the attributes present in next but not in s (added) and
// those present in s but not in next (removed). A type change shows up as
// one removal and one addition.
func (s Schema) Diff(next Schema) (added, removed []Attribute) {
	for _, a := range next.attrs {
		if !s.Contains(a) {
			added = append(added, a)
		}
	}
	for _, a := range s.attrs {
		if !next.Contains(a) {
			removed = append(removed, a)
		}
	}
	return added, removed
}

// String renders the schema as [a:string, b:integer].
func (s Schema) String() string {
	parts := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		parts[i] = a.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
