package testutil

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/schemamap/pkg/core"
)

// Attr parses "name" or "name:type" into an attribute.
// It panics on an unknown type name.
func Attr(spec string) core.Attribute {
	name, typ, found := strings.Cut(spec, ":")
	if !found {
		return core.NewAttribute(name, core.DataTypeString)
	}
	dt, ok := core.ParseDataType(typ)
	if !ok {
		panic("unknown data type " + typ)
	}
	return core.NewAttribute(name, dt)
}

// Attrs parses each spec with Attr.
func Attrs(specs ...string) []core.Attribute {
	out := make([]core.Attribute, len(specs))
	for i, s := range specs {
		out[i] = Attr(s)
	}
	return out
}

// Schema builds a schema from attribute specs and fails the test on
// duplicate names.
func Schema(t testing.TB, specs ...string) core.Schema {
	t.Helper()
	s, err := core.NewSchema(Attrs(specs...)...)
	if err != nil {
		t.Fatalf("invalid test schema %v: %v", specs, err)
	}
	return s
}
