package lineage

import (
	"fmt"

	"github.com/leapstack-labs/schemamap/pkg/core"
)

// Forest holds one tree per source attribute. Nodes are append-only: they are
// never removed or re-parented.
type Forest struct {
	nodes []node
	roots []NodeID
	index map[nodeKey]NodeID

	// Bookkeeping for the round in progress, reset by Commit.
	pendingDeletes  map[NodeID]struct{}
	pendingAttached int

	// dropped holds tails deleted in a round where another track advanced.
	// They stay on the frontier but never reach the current schema again.
	dropped map[NodeID]struct{}

	// emptied is set when a round deleted every current attribute without
	// advancing any track. It stays set until a later round attaches a node.
	emptied bool
	layer   int

	// Flattened source -> targets view, rebuilt by Commit.
	targets map[core.Attribute][]core.Attribute
	keys    []core.Attribute
}

// NewForest creates one updated root node per attribute of source, in
// schema order.
func NewForest(source core.Schema) *Forest {
	attrs := source.Attributes()
	f := &Forest{
		nodes:          make([]node, 0, len(attrs)),
		roots:          make([]NodeID, 0, len(attrs)),
		index:          make(map[nodeKey]NodeID, len(attrs)),
		pendingDeletes: make(map[NodeID]struct{}),
		dropped:        make(map[NodeID]struct{}),
	}
	for _, a := range attrs {
		id := f.addNode(a, 0, NoParent)
		f.nodes[id].updated = true
		f.roots = append(f.roots, id)
	}
	f.reindex()
	return f
}

// addNode appends a node to the arena and links it under parent.
func (f *Forest) addNode(attr core.Attribute, layer int, parent NodeID) NodeID {
	id := NodeID(len(f.nodes))
	root := id
	if parent != NoParent {
		root = f.nodes[parent].root
	}
	f.nodes = append(f.nodes, node{
		attr:   attr,
		layer:  layer,
		parent: parent,
		root:   root,
	})
	f.index[nodeKey{attr: attr, layer: layer}] = id
	if parent != NoParent {
		f.nodes[parent].children = append(f.nodes[parent].children, id)
	}
	return id
}

// link attaches attr under parent at the next layer, enforcing the tree
// invariants. The second result is false when the identical edge already
// exists.
func (f *Forest) link(parent NodeID, attr core.Attribute) (NodeID, bool, error) {
	layer := f.nodes[parent].layer + 1
	// Only reachable if the layer counter overflows.
	if layer <= f.nodes[parent].layer {
		return 0, false, &InvariantError{Attribute: attr, Layer: layer, Reason: "layer must exceed parent layer"}
	}

	if existing, ok := f.index[nodeKey{attr: attr, layer: layer}]; ok {
		owner := f.nodes[existing].parent
		if owner == parent {
			return existing, false, nil
		}
		return 0, false, f.ownerConflict(attr, layer, owner)
	}

	return f.addNode(attr, layer, parent), true, nil
}

func (f *Forest) ownerConflict(attr core.Attribute, layer int, owner NodeID) *InvariantError {
	reason := "already a root"
	if owner != NoParent {
		reason = fmt.Sprintf("already derived from %s", f.nodes[owner].attr)
	}
	return &InvariantError{Attribute: attr, Layer: layer, Reason: reason}
}

// frontier returns the live tails of every track, in root order and then
// breadth-first order within each tree.
func (f *Forest) frontier() []NodeID {
	var out []NodeID
	for _, r := range f.roots {
		out = append(out, f.tails(r, updatedChild)...)
	}
	return out
}

// findLive returns the frontier tail holding attr. When several tails hold
// the same attribute, the one at the highest layer wins; ties go to the
// earlier root.
func (f *Forest) findLive(attr core.Attribute) (NodeID, bool) {
	attr = normalize(attr)
	found := NodeID(-1)
	for _, id := range f.frontier() {
		if f.nodes[id].attr != attr {
			continue
		}
		if found == -1 || f.nodes[id].layer > f.nodes[found].layer {
			found = id
		}
	}
	return found, found != -1
}

// Attach registers one edit of the transformation in progress.
// A nil target records that source was deleted: no node is appended and the
// track simply stops advancing. Otherwise target is appended as a child of
// the frontier node holding source; several targets for one source model a
// split. Attach never modifies the forest when it returns an error.
func (f *Forest) Attach(source core.Attribute, target *core.Attribute) error {
	source = normalize(source)
	parent, ok := f.findLive(source)
	if !ok {
		return &LookupError{Attribute: source}
	}

	if target == nil {
		f.pendingDeletes[parent] = struct{}{}
		return nil
	}

	_, created, err := f.link(parent, normalize(*target))
	if err != nil {
		return err
	}
	if created {
		f.pendingAttached++
	}
	return nil
}

// Edit is one registration for AttachAll. A nil Target is a deletion.
type Edit struct {
	Source core.Attribute
	Target *core.Attribute
}

// AttachAll registers edits as one unit. Every edit is checked against the
// frontier and the tree invariants first, so on error nothing is attached.
func (f *Forest) AttachAll(edits []Edit) error {
	planned := make(map[nodeKey]NodeID, len(edits))
	for _, e := range edits {
		source := normalize(e.Source)
		parent, ok := f.findLive(source)
		if !ok {
			return &LookupError{Attribute: source}
		}
		if e.Target == nil {
			continue
		}

		key := nodeKey{attr: normalize(*e.Target), layer: f.nodes[parent].layer + 1}
		if existing, ok := f.index[key]; ok {
			if owner := f.nodes[existing].parent; owner != parent {
				return f.ownerConflict(key.attr, key.layer, owner)
			}
			continue
		}
		if owner, ok := planned[key]; ok && owner != parent {
			return f.ownerConflict(key.attr, key.layer, owner)
		}
		planned[key] = parent
	}

	for _, e := range edits {
		if err := f.Attach(e.Source, e.Target); err != nil {
			return err
		}
	}
	return nil
}

// normalize gives attributes built without a type the same identity as
// those produced by core.NewAttribute.
func normalize(a core.Attribute) core.Attribute {
	return core.NewAttribute(a.Name, a.Type)
}

// UpdatePass walks every tree regardless of confirmation state and marks each
// unconfirmed leaf as updated, making nodes attached since the last pass part
// of the live frontier. It returns the number of nodes marked.
func (f *Forest) UpdatePass() int {
	marked := 0
	for _, r := range f.roots {
		for _, id := range f.tails(r, anyChild) {
			if !f.nodes[id].updated {
				f.nodes[id].updated = true
				marked++
			}
		}
	}
	return marked
}

// Commit materializes the current schema from the frontier tails that sit at
// the maximum layer. Tracks lagging behind that layer are excluded, and so
// are tails deleted in a round where some other track advanced.
//
// A round that deleted every attribute of the maximum layer without
// attaching any node commits the empty schema.
func (f *Forest) Commit() (core.Schema, error) {
	if f.pendingAttached > 0 {
		for id := range f.pendingDeletes {
			f.dropped[id] = struct{}{}
		}
	}

	live := f.frontier()

	maxLayer := -1
	for _, id := range live {
		if f.nodes[id].layer > maxLayer {
			maxLayer = f.nodes[id].layer
		}
	}

	top := make([]NodeID, 0, len(live))
	for _, id := range live {
		if _, ok := f.dropped[id]; ok {
			continue
		}
		if f.nodes[id].layer == maxLayer {
			top = append(top, id)
		}
	}

	switch {
	case f.pendingAttached > 0:
		f.emptied = false
	case len(f.pendingDeletes) > 0 && len(top) > 0 && f.allPendingDelete(top):
		f.emptied = true
	}
	f.pendingAttached = 0
	f.pendingDeletes = make(map[NodeID]struct{})

	f.reindex()

	if f.emptied || len(top) == 0 {
		return core.Schema{}, nil
	}

	attrs := make([]core.Attribute, 0, len(top))
	seen := make(map[string]core.Attribute, len(top))
	for _, id := range top {
		a := f.nodes[id].attr
		if prev, ok := seen[a.Name]; ok {
			if prev == a {
				continue
			}
			return core.Schema{}, &InvariantError{
				Attribute: a,
				Layer:     maxLayer,
				Reason:    fmt.Sprintf("conflicts with %s in the current schema", prev),
			}
		}
		seen[a.Name] = a
		attrs = append(attrs, a)
	}

	schema, err := core.NewSchema(attrs...)
	if err != nil {
		return core.Schema{}, err
	}
	f.layer = maxLayer
	return schema, nil
}

func (f *Forest) allPendingDelete(ids []NodeID) bool {
	for _, id := range ids {
		if _, ok := f.pendingDeletes[id]; !ok {
			return false
		}
	}
	return true
}

// reindex rebuilds the flattened source -> targets view from every confirmed
// edge. Keys and targets keep arena order, which is creation order.
func (f *Forest) reindex() {
	f.targets = make(map[core.Attribute][]core.Attribute, len(f.nodes))
	f.keys = f.keys[:0]

	for i := range f.nodes {
		n := &f.nodes[i]
		if !n.updated {
			continue
		}
		f.addKey(n.attr)
		if n.parent != NoParent {
			src := f.nodes[n.parent].attr
			if !containsAttr(f.targets[src], n.attr) {
				f.targets[src] = append(f.targets[src], n.attr)
			}
		}
	}
}

func (f *Forest) addKey(a core.Attribute) {
	if _, ok := f.targets[a]; ok {
		return
	}
	f.targets[a] = []core.Attribute{}
	f.keys = append(f.keys, a)
}

// TargetsOf returns the attributes derived directly from source. The second
// result is false when source never appeared in the forest; an attribute that
// exists but produced nothing yields an empty, non-nil slice.
func (f *Forest) TargetsOf(source core.Attribute) ([]core.Attribute, bool) {
	targets, ok := f.targets[normalize(source)]
	if !ok {
		return nil, false
	}
	return append([]core.Attribute{}, targets...), true
}

// TargetsOfName is TargetsOf matching the source by name only. Targets of
// every attribute version carrying that name are merged.
func (f *Forest) TargetsOfName(name string) ([]core.Attribute, bool) {
	var out []core.Attribute
	found := false
	for _, k := range f.keys {
		if k.Name != name {
			continue
		}
		found = true
		for _, t := range f.targets[k] {
			if !containsAttr(out, t) {
				out = append(out, t)
			}
		}
	}
	if !found {
		return nil, false
	}
	if out == nil {
		out = []core.Attribute{}
	}
	return out, true
}

// SourcesOf returns every attribute that target was derived from directly.
// The second result is false when no attribute produced target.
func (f *Forest) SourcesOf(target core.Attribute) ([]core.Attribute, bool) {
	target = normalize(target)
	return f.sourcesWhere(func(a core.Attribute) bool { return a == target })
}

// SourcesOfName is SourcesOf matching the target by name only.
func (f *Forest) SourcesOfName(name string) ([]core.Attribute, bool) {
	return f.sourcesWhere(func(a core.Attribute) bool { return a.Name == name })
}

func (f *Forest) sourcesWhere(match func(core.Attribute) bool) ([]core.Attribute, bool) {
	var out []core.Attribute
	for _, k := range f.keys {
		for _, t := range f.targets[k] {
			if match(t) {
				out = append(out, k)
				break
			}
		}
	}
	return out, len(out) > 0
}

// Frontier returns the live tails of every track.
func (f *Forest) Frontier() []NodeInfo {
	ids := f.frontier()
	out := make([]NodeInfo, len(ids))
	for i, id := range ids {
		out[i] = f.info(id)
	}
	return out
}

// Live returns the live attribute with the given name, preferring the most
// advanced track.
func (f *Forest) Live(name string) (core.Attribute, bool) {
	var best *node
	for _, id := range f.frontier() {
		n := &f.nodes[id]
		if n.attr.Name == name && (best == nil || n.layer > best.layer) {
			best = n
		}
	}
	if best == nil {
		return core.Attribute{}, false
	}
	return best.attr, true
}

// IsLive reports whether attr sits on the live frontier.
func (f *Forest) IsLive(attr core.Attribute) bool {
	_, ok := f.findLive(attr)
	return ok
}

// MaxLayer returns the layer of the most recently committed schema.
func (f *Forest) MaxLayer() int {
	return f.layer
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Roots returns the root node of every track in source schema order.
func (f *Forest) Roots() []NodeInfo {
	out := make([]NodeInfo, len(f.roots))
	for i, id := range f.roots {
		out[i] = f.info(id)
	}
	return out
}

// Nodes returns a copy of every node in creation order.
func (f *Forest) Nodes() []NodeInfo {
	out := make([]NodeInfo, len(f.nodes))
	for i := range f.nodes {
		out[i] = f.info(NodeID(i))
	}
	return out
}

// Validate checks the structural invariants of the whole forest: every
// non-root node has exactly one parent, each child sits exactly one layer
// below its parent, and no node is confirmed before its parent.
func (f *Forest) Validate() error {
	owners := make([]int, len(f.nodes))

	for i := range f.nodes {
		id := NodeID(i)
		n := &f.nodes[i]

		if n.parent == NoParent && n.layer != 0 {
			return &InvariantError{Attribute: n.attr, Layer: n.layer, Reason: "root must be at layer 0"}
		}

		for _, c := range n.children {
			child := &f.nodes[c]
			owners[c]++
			if child.parent != id {
				return &InvariantError{Attribute: child.attr, Layer: child.layer, Reason: "child does not point back to its parent"}
			}
			if child.layer != n.layer+1 {
				return &InvariantError{Attribute: child.attr, Layer: child.layer, Reason: fmt.Sprintf("parent is at layer %d", n.layer)}
			}
			if child.updated && !n.updated {
				return &InvariantError{Attribute: child.attr, Layer: child.layer, Reason: "updated before its parent"}
			}
		}
	}

	for i, count := range owners {
		n := &f.nodes[i]
		want := 1
		if n.parent == NoParent {
			want = 0
		}
		if count != want {
			return &InvariantError{Attribute: n.attr, Layer: n.layer, Reason: fmt.Sprintf("has %d parents", count)}
		}
	}
	return nil
}

func containsAttr(list []core.Attribute, a core.Attribute) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
