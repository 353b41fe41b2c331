package pipeline

import (
	"fmt"

	"github.com/leapstack-labs/schemamap/pkg/core"
)

// Direction selects which way Trace walks the lineage.
type Direction string

// Trace directions.
const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Both     Direction = "both"
)

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Forward, Backward, Both:
		return d, nil
	case "":
		return Both, nil
	default:
		return "", fmt.Errorf("invalid direction %q (valid: forward, backward, both)", s)
	}
}

// Hop is one edge reached by Trace.
type Hop struct {
	Direction Direction      `json:"direction"`
	Depth     int            `json:"depth"`
	From      core.Attribute `json:"from"`
	To        core.Attribute `json:"to"`
}

// Trace walks the lineage of every attribute named name. Forward hops run
// from an attribute to what was derived from it; backward hops run from an
// attribute to what it was derived from. The second result is false when no
// attribute with that name ever existed.
func (p *Pipeline) Trace(name string, dir Direction) ([]Hop, bool) {
	versions := p.nameVersions(name)
	if len(versions) == 0 {
		return nil, false
	}

	var hops []Hop
	if dir == Forward || dir == Both {
		hops = append(hops, p.walk(versions, Forward)...)
	}
	if dir == Backward || dir == Both {
		hops = append(hops, p.walk(versions, Backward)...)
	}
	return hops, true
}

// walk runs a breadth-first search from start. Every edge is reported once,
// so identity edges do not loop.
func (p *Pipeline) walk(start []core.Attribute, dir Direction) []Hop {
	type edge struct{ from, to core.Attribute }

	next := p.mapping.TargetsOf
	if dir == Backward {
		next = p.mapping.SourcesOf
	}

	var queue []core.Attribute
	depth := map[core.Attribute]int{}
	for _, a := range start {
		queue = append(queue, a)
		depth[a] = 0
	}

	var hops []Hop
	seen := map[edge]struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbours, _ := next(cur)
		for _, n := range neighbours {
			e := edge{from: cur, to: n}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			hops = append(hops, Hop{Direction: dir, Depth: depth[cur] + 1, From: cur, To: n})

			if _, ok := depth[n]; !ok {
				depth[n] = depth[cur] + 1
				queue = append(queue, n)
			}
		}
	}
	return hops
}

// nameVersions returns every attribute version carrying name, in the order
// the forest first saw them.
func (p *Pipeline) nameVersions(name string) []core.Attribute {
	var out []core.Attribute
	for _, n := range p.mapping.Forest().Nodes() {
		if n.Updated && n.Attribute.Name == name && !containsAttr(out, n.Attribute) {
			out = append(out, n.Attribute)
		}
	}
	return out
}
