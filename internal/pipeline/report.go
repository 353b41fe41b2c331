package pipeline

import (
	"context"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// reportConcurrency bounds the goroutines used by Report.
const reportConcurrency = 8

// Provenance explains where one attribute of the current schema came from.
type Provenance struct {
	Attribute core.Attribute `json:"attribute"`
	// Sources are the attributes it was derived from directly.
	Sources []core.Attribute `json:"sources"`
	// Origins are the source schema attributes at the root of its tracks.
	Origins []core.Attribute `json:"origins"`
	// Path is the root-to-tail chain of its most advanced track.
	Path []core.Attribute `json:"path"`
}

// Report computes the provenance of every attribute of the current schema.
// It only reads the mapping, so it must not overlap with Apply or Run.
func (p *Pipeline) Report(ctx context.Context) ([]Provenance, error) {
	current := p.mapping.Current().Attributes()
	forest := p.mapping.Forest()
	nodes := forest.Nodes()
	frontier := forest.Frontier()

	out := make([]Provenance, len(current))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reportConcurrency)

	for i, attr := range current {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = provenanceOf(p.mapping, nodes, frontier, attr)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func provenanceOf(m *lineage.Mapping, nodes, frontier []lineage.NodeInfo, attr core.Attribute) Provenance {
	prov := Provenance{Attribute: attr}

	if sources, ok := m.SourcesOf(attr); ok {
		prov.Sources = sources
	} else {
		prov.Sources = []core.Attribute{}
	}

	var best *lineage.NodeInfo
	for i := range frontier {
		tail := &frontier[i]
		if tail.Attribute != attr {
			continue
		}
		origin := nodes[tail.Root].Attribute
		if !containsAttr(prov.Origins, origin) {
			prov.Origins = append(prov.Origins, origin)
		}
		if best == nil || tail.Layer > best.Layer {
			best = tail
		}
	}

	if best != nil {
		prov.Path = pathTo(nodes, best.ID)
	}
	return prov
}

// pathTo returns the attributes from the root of id's track down to id.
func pathTo(nodes []lineage.NodeInfo, id lineage.NodeID) []core.Attribute {
	var rev []core.Attribute
	for cur := id; cur != lineage.NoParent; cur = nodes[cur].Parent {
		rev = append(rev, nodes[cur].Attribute)
	}
	path := make([]core.Attribute, len(rev))
	for i, a := range rev {
		path[len(rev)-1-i] = a
	}
	return path
}

func containsAttr(list []core.Attribute, a core.Attribute) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
