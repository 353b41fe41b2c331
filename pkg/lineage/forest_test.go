package lineage

import (
	"testing"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForest_NewForest(t *testing.T) {
	a, b := str("A"), str("B")
	f := NewForest(core.MustSchema(a, b))

	require.Equal(t, 2, f.Len())
	roots := f.Roots()
	require.Len(t, roots, 2)
	for i, want := range []core.Attribute{a, b} {
		assert.Equal(t, want, roots[i].Attribute)
		assert.True(t, roots[i].IsRoot())
		assert.True(t, roots[i].Updated)
		assert.Equal(t, 0, roots[i].Layer)
		assert.Equal(t, roots[i].ID, roots[i].Root)
	}
	assert.NoError(t, f.Validate())
}

func TestForest_AttachedNodesWaitForUpdatePass(t *testing.T) {
	a, a1 := str("A"), str("A1")
	f := NewForest(core.MustSchema(a))

	require.NoError(t, f.Attach(a, ptr(a1)))
	assert.Equal(t, 2, f.Len())
	assert.False(t, f.IsLive(a1), "unconfirmed node is not on the frontier")
	assert.True(t, f.IsLive(a))

	// Attaching the same edge twice adds nothing.
	require.NoError(t, f.Attach(a, ptr(a1)))
	assert.Equal(t, 2, f.Len())

	assert.Equal(t, 1, f.UpdatePass())
	assert.True(t, f.IsLive(a1))
	assert.False(t, f.IsLive(a), "A is now interior")
	assert.Equal(t, 0, f.UpdatePass(), "second pass marks nothing")
	assert.NoError(t, f.Validate())
}

func TestForest_TailsFollowFilter(t *testing.T) {
	a, a1, a2 := str("A"), str("A1"), str("A2")
	f := NewForest(core.MustSchema(a))
	require.NoError(t, f.Attach(a, ptr(a1)))
	require.NoError(t, f.Attach(a, ptr(a2)))

	root := f.roots[0]
	assert.Equal(t, []NodeID{root}, f.tails(root, updatedChild))
	assert.Equal(t, []NodeID{1, 2}, f.tails(root, anyChild))
}

func TestForest_AttachErrorLeavesForestUntouched(t *testing.T) {
	a, b, x := str("A"), str("B"), str("X")
	f := NewForest(core.MustSchema(a, b))
	before := f.Nodes()

	err := f.Attach(str("missing"), ptr(x))
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "missing", lookupErr.Attribute.Name)

	// X at layer 1 under A, then again under B.
	require.NoError(t, f.Attach(a, ptr(x)))
	err = f.Attach(b, ptr(x))
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 1, invErr.Layer)
	assert.Contains(t, invErr.Error(), "already derived from A:string")

	assert.Len(t, f.Nodes(), len(before)+1)
	assert.NoError(t, f.Validate())
}

func TestForest_AttachAll(t *testing.T) {
	a, b, x, y := str("A"), str("B"), str("X"), str("Y")

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *Forest)
		edits   []Edit
		wantErr error
	}{
		{
			name:    "conflict within the batch",
			edits:   []Edit{{Source: a, Target: ptr(y)}, {Source: a, Target: ptr(x)}, {Source: b, Target: ptr(x)}},
			wantErr: ErrInvariant,
		},
		{
			name:    "conflict with an attached node",
			setup:   func(t *testing.T, f *Forest) { require.NoError(t, f.Attach(a, ptr(x))) },
			edits:   []Edit{{Source: b, Target: ptr(y)}, {Source: b, Target: ptr(x)}},
			wantErr: ErrInvariant,
		},
		{
			name:    "unknown source after a valid edit",
			edits:   []Edit{{Source: a, Target: ptr(x)}, {Source: str("missing")}},
			wantErr: ErrNotLive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForest(core.MustSchema(a, b))
			if tt.setup != nil {
				tt.setup(t, f)
			}
			before := f.Nodes()

			err := f.AttachAll(tt.edits)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, f.Nodes(), "nothing attached")
		})
	}

	t.Run("success", func(t *testing.T) {
		f := NewForest(core.MustSchema(a, b))
		require.NoError(t, f.AttachAll([]Edit{
			{Source: a, Target: ptr(x)},
			{Source: a, Target: ptr(y)},
			{Source: b},
		}))
		assert.Equal(t, 4, f.Len())
		assert.Equal(t, 2, f.UpdatePass())
	})
}

func TestForest_NodesAreCopies(t *testing.T) {
	a, a1 := str("A"), str("A1")
	f := NewForest(core.MustSchema(a))
	require.NoError(t, f.Attach(a, ptr(a1)))
	f.UpdatePass()

	nodes := f.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, []NodeID{1}, nodes[0].Children)
	assert.Equal(t, NodeID(0), nodes[1].Parent)

	nodes[0].Children[0] = 99
	assert.Equal(t, []NodeID{1}, f.Nodes()[0].Children)
}

func TestForest_ValidateDetectsCorruption(t *testing.T) {
	a, a1 := str("A"), str("A1")
	f := NewForest(core.MustSchema(a))
	require.NoError(t, f.Attach(a, ptr(a1)))
	f.UpdatePass()

	f.nodes[1].layer = 3
	err := f.Validate()
	require.ErrorIs(t, err, ErrInvariant)
	assert.Contains(t, err.Error(), "parent is at layer 0")
}
