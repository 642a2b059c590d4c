package cluster

import (
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/refset"
	"github.com/stretchr/testify/assert"
)

// sliceProvider serves a fixed record list, optionally failing after it.
type sliceProvider struct {
	source graph.SourceID
	recs   []graph.Record
	err    error
}

func (p *sliceProvider) Source() graph.SourceID { return p.source }

func (p *sliceProvider) Records() iter.Seq2[graph.Record, error] {
	return func(yield func(graph.Record, error) bool) {
		for _, rec := range p.recs {
			if !yield(rec, nil) {
				return
			}
		}
		if p.err != nil {
			yield(graph.Record{}, p.err)
		}
	}
}

var errBroken = errors.New("broken provider")

// withLinks appends links to explicit records.
func withLinks(rec graph.Record, links ...graph.FormKey) graph.Record {
	rec.Links = append(rec.Links, links...)
	return rec
}

// makeRecord creates a record of origin with links to one record in each of
// the given sources.
func makeRecord(local uint32, origin graph.SourceID, links ...graph.SourceID) graph.Record {
	rec := graph.Record{Key: graph.FormKey{Local: local, Source: origin}}
	for _, l := range links {
		rec.Links = append(rec.Links, graph.FormKey{Local: 1, Source: l})
	}
	return rec
}

// sources returns n source names "<prefix>_<i>.esm".
func sources(prefix string, n int) []graph.SourceID {
	out := make([]graph.SourceID, n)
	for i := range out {
		out[i] = graph.SourceID(fmt.Sprintf("%s_%d.esm", prefix, i))
	}
	return out
}

// binPackInput builds five self-originated records referencing seven distinct
// masters each, then five referencing three.
func binPackInput(input graph.SourceID) *sliceProvider {
	p := &sliceProvider{source: input}
	local := uint32(0x800)
	for i := 0; i < 5; i++ {
		p.recs = append(p.recs, makeRecord(local, input, sources(fmt.Sprintf("Wide%d", i), 7)...))
		local++
	}
	for i := 0; i < 5; i++ {
		p.recs = append(p.recs, makeRecord(local, input, sources(fmt.Sprintf("Narrow%d", i), 3)...))
		local++
	}
	return p
}

// assertClusterInvariants checks the limit and that every record's masters
// are declared by its cluster.
func assertClusterInvariants(t *testing.T, res *Result, limit int) {
	t.Helper()
	u := refset.NewUniverse()
	seen := make(map[graph.FormKey]int)
	for i, c := range res.Clusters {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.Masters.Count(), limit, "cluster %d exceeds limit", i)
		for _, rec := range c.Records {
			seen[rec.Key]++
			set := Extract(rec, res.Source, u)
			assert.Zero(t, set.MissingFrom(c.Masters), "record %s has undeclared masters in cluster %d", rec.Key, i)
			assert.False(t, c.Masters.Contains(res.Source) && i == 0, "cluster 0 declares the input")
			if i > 0 && LinksInput(rec, res.Source) {
				assert.True(t, c.Masters.Contains(res.Source), "record %s links into the input from cluster %d", rec.Key, i)
			}
		}
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "record %s placed %d times", k, n)
	}
}
