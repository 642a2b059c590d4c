// Package report renders the outcome of partitioning runs: a plain text
// summary and Mermaid flowcharts of output units and the masters they declare.
package report

import (
	"fmt"
	"strings"

	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/materialize"
	"github.com/olehluchkiv/mastersort/internal/partition"
)

// Unit summarizes one output unit.
type Unit struct {
	Name      graph.SourceID
	Masters   []graph.SourceID
	New       int
	Overrides int
}

// Summary describes the partition of one input plugin.
type Summary struct {
	Source    graph.SourceID
	Limit     int
	Units     []Unit
	CacheHits int
}

// FromResult builds a summary from a partition result.
func FromResult[T materialize.Target](res *partition.Result[T], limit int) Summary {
	s := Summary{
		Source:    res.Source,
		Limit:     limit,
		CacheHits: res.Stats.CacheHits,
	}
	for _, u := range res.Units {
		s.Units = append(s.Units, Unit{
			Name:      u.Name,
			Masters:   u.Masters,
			New:       u.New,
			Overrides: u.Overrides,
		})
	}
	return s
}

// Text renders a human-readable summary, one line per unit.
func Text(summaries []Summary) string {
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s -> %d unit(s), limit %d\n", s.Source, len(s.Units), s.Limit)
		for _, u := range s.Units {
			fmt.Fprintf(&b, "  %s: %d new, %d overrides, %d/%d masters\n",
				u.Name, u.New, u.Overrides, len(u.Masters), s.Limit)
		}
	}
	return b.String()
}
