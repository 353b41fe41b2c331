package lineage

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/schemamap/pkg/core"
)

// ErrNotLive is returned when an edit names a source attribute that is not a
// tail of the live frontier.
var ErrNotLive = errors.New("source attribute not present in current mapping frontier")

// ErrInvariant is returned when an edit would break the tree structure of the
// forest. It indicates a sequencing bug in the caller.
var ErrInvariant = errors.New("lineage invariant violated")

// LookupError reports the attribute that could not be found on the frontier.
type LookupError struct {
	Attribute core.Attribute
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotLive.Error(), e.Attribute)
}

// Unwrap returns ErrNotLive.
func (e *LookupError) Unwrap() error {
	return ErrNotLive
}

// InvariantError describes a rejected structural change.
type InvariantError struct {
	Attribute core.Attribute
	Layer     int
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s at layer %d: %s", ErrInvariant.Error(), e.Attribute, e.Layer, e.Reason)
}

// Unwrap returns ErrInvariant.
func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
