package lineage

import "github.com/leapstack-labs/schemamap/pkg/core"

// Mapping holds the source, current and target schemas of a transformation
// sequence and delegates lineage bookkeeping to its Forest.
//
// Mapping has no internal locking. It must be owned by a single writer and
// passed explicitly through the step loop that drives it.
type Mapping struct {
	source  core.Schema
	current core.Schema
	target  core.Schema
	forest  *Forest
}

// New creates a mapping whose current schema starts as source.
func New(source core.Schema) *Mapping {
	return NewWithTarget(source, core.Schema{})
}

// NewWithTarget creates a mapping with a known target schema.
func NewWithTarget(source, target core.Schema) *Mapping {
	return &Mapping{
		source:  source,
		current: source,
		target:  target,
		forest:  NewForest(source),
	}
}

// Source returns the schema the mapping was built from.
func (m *Mapping) Source() core.Schema { return m.source }

// Current returns the most recently committed schema.
func (m *Mapping) Current() core.Schema { return m.current }

// Target returns the desired end schema, if one was given.
func (m *Mapping) Target() core.Schema { return m.target }

// Forest returns the lineage forest. It is shared with every snapshot.
func (m *Mapping) Forest() *Forest { return m.forest }

// HasMapped reports whether the current schema already equals the target.
func (m *Mapping) HasMapped() bool {
	return m.current.Equal(m.target)
}

// RegisterEdit records that the transformation in progress turned source
// into target. A nil target records a deletion.
func (m *Mapping) RegisterEdit(source core.Attribute, target *core.Attribute) error {
	return m.forest.Attach(source, target)
}

// RegisterEdits records every edit of one transformation. Either all of them
// are registered or, on error, none is.
func (m *Mapping) RegisterEdits(edits []Edit) error {
	return m.forest.AttachAll(edits)
}

// RunUpdatePass confirms the nodes attached since the last pass and returns
// how many were confirmed.
func (m *Mapping) RunUpdatePass() int {
	return m.forest.UpdatePass()
}

// CommitCurrentSchema recomputes the current schema from the live frontier.
// On error the current schema is left unchanged.
func (m *Mapping) CommitCurrentSchema() (core.Schema, error) {
	s, err := m.forest.Commit()
	if err != nil {
		return m.current, err
	}
	m.current = s
	return s, nil
}

// SetCurrentSchema replaces the current schema without consulting the
// forest. Provenance queries are unaffected.
func (m *Mapping) SetCurrentSchema(s core.Schema) {
	m.current = s
}

// TargetsOf returns the attributes derived directly from source.
func (m *Mapping) TargetsOf(source core.Attribute) ([]core.Attribute, bool) {
	return m.forest.TargetsOf(source)
}

// TargetsOfName returns the attributes derived from any attribute named name.
func (m *Mapping) TargetsOfName(name string) ([]core.Attribute, bool) {
	return m.forest.TargetsOfName(name)
}

// SourcesOf returns the attributes target was derived from directly.
func (m *Mapping) SourcesOf(target core.Attribute) ([]core.Attribute, bool) {
	return m.forest.SourcesOf(target)
}

// SourcesOfName returns the attributes any attribute named name was derived from.
func (m *Mapping) SourcesOfName(name string) ([]core.Attribute, bool) {
	return m.forest.SourcesOfName(name)
}

// Live returns the live attribute with the given name.
func (m *Mapping) Live(name string) (core.Attribute, bool) {
	return m.forest.Live(name)
}

// Frontier returns the attributes on the live frontier, including tracks
// that lag behind the current schema.
func (m *Mapping) Frontier() []core.Attribute {
	nodes := m.forest.Frontier()
	out := make([]core.Attribute, len(nodes))
	for i, n := range nodes {
		out[i] = n.Attribute
	}
	return out
}

// Snapshot returns a view whose source schema is this mapping's current
// schema. The forest is shared by reference, so edits made through either
// mapping are visible through both.
func (m *Mapping) Snapshot() *Mapping {
	return &Mapping{
		source:  m.current,
		current: m.current,
		target:  m.target,
		forest:  m.forest,
	}
}
