// Package lineage tracks how the attributes of a source schema evolve as a
// sequence of tabular transformations is applied.
//
// Every source attribute owns a tree of versioned nodes. A node is one
// attribute at one layer, where the layer is the index of the transformation
// step that produced it. Tracks advance only when an edit is registered for
// them; a track that stops advancing falls behind the maximum layer and drops
// out of the current schema, which is how deletions are expressed.
//
// # Step protocol
//
// For each applied transformation the caller:
//
//  1. calls RegisterEdit once per affected attribute (nil target deletes it),
//  2. calls RunUpdatePass to confirm the newly attached nodes,
//  3. calls CommitCurrentSchema to materialize the current schema.
//
// A Mapping has a single writer. Provenance queries (TargetsOf, SourcesOf and
// their name variants) are read-only and may run concurrently with each other,
// never with a mutation.
//
// # Basic Usage
//
//	src := core.MustSchema(core.NewAttribute("id", core.DataTypeString))
//	m := lineage.New(src)
//
//	id := core.NewAttribute("id", core.DataTypeInteger)
//	if err := m.RegisterEdit(src.Attributes()[0], &id); err != nil {
//	    return err
//	}
//	m.RunUpdatePass()
//	current, err := m.CommitCurrentSchema()
package lineage
