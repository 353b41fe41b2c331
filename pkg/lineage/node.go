package lineage

import "github.com/leapstack-labs/schemamap/pkg/core"

// NodeID addresses a node in the forest arena.
type NodeID int

// NoParent is the parent of every root node.
const NoParent NodeID = -1

// node is one version of one attribute at one layer.
type node struct {
	attr     core.Attribute
	layer    int
	parent   NodeID
	root     NodeID
	children []NodeID
	updated  bool
}

// nodeKey is the identity of a node: the same attribute at two layers is two
// distinct nodes.
type nodeKey struct {
	attr  core.Attribute
	layer int
}

// NodeInfo is a read-only copy of a forest node.
type NodeInfo struct {
	ID        NodeID         `json:"id"`
	Parent    NodeID         `json:"parent"`
	Root      NodeID         `json:"root"`
	Attribute core.Attribute `json:"attribute"`
	Layer     int            `json:"layer"`
	Updated   bool           `json:"updated"`
	Children  []NodeID       `json:"children,omitempty"`
}

// IsRoot reports whether the node is the root of a track.
func (n NodeInfo) IsRoot() bool {
	return n.Parent == NoParent
}

// info copies the node at id.
func (f *Forest) info(id NodeID) NodeInfo {
	n := &f.nodes[id]
	out := NodeInfo{
		ID:        id,
		Parent:    n.parent,
		Root:      n.root,
		Attribute: n.attr,
		Layer:     n.layer,
		Updated:   n.updated,
	}
	if len(n.children) > 0 {
		out.Children = append([]NodeID(nil), n.children...)
	}
	return out
}

// childFilter selects the children a traversal descends into.
type childFilter func(n *node) bool

// anyChild follows every edge, whether confirmed or not.
func anyChild(*node) bool { return true }

// updatedChild follows only edges confirmed by an update pass.
func updatedChild(n *node) bool { return n.updated }

// tails walks the tree under root breadth-first, descending only into
// children accepted by follow, and returns the nodes where the walk stops.
// With anyChild those are the true leaves; with updatedChild they are the
// live frontier. The root itself must be accepted or nothing is returned.
func (f *Forest) tails(root NodeID, follow childFilter) []NodeID {
	if !follow(&f.nodes[root]) {
		return nil
	}

	var out []NodeID
	queue := []NodeID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		advanced := false
		for _, c := range f.nodes[id].children {
			if follow(&f.nodes[c]) {
				queue = append(queue, c)
				advanced = true
			}
		}
		if !advanced {
			out = append(out, id)
		}
	}
	return out
}
