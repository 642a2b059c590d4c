// Package materialize turns clusters into output plugins through a Target
// that owns record storage and local id allocation.
package materialize

import (
	"fmt"
	"strconv"

	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/olehluchkiv/mastersort/internal/graph"
)

// Target receives the records of one output unit.
type Target interface {
	// Duplicate adds rec as a new record of the target and returns its key.
	// keepLocalID asks the target to reuse rec's local id.
	Duplicate(rec graph.Record, keepLocalID bool) (graph.FormKey, error)
	// Override registers rec, unchanged, as an override inside the target.
	Override(rec graph.Record) error
}

// Options controls materialization.
type Options struct {
	// KeepLocalIDs reuses the original local id of self-originated records in
	// the primary unit. When false they get fresh ids there too.
	KeepLocalIDs bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{KeepLocalIDs: true}
}

// Unit is one materialized output plugin.
type Unit[T Target] struct {
	Index   int
	Name    graph.SourceID
	Masters []graph.SourceID
	Target  T
	// Renamed maps each self-originated input key to the key it received.
	Renamed   map[graph.FormKey]graph.FormKey
	New       int
	Overrides int
}

// UnitName names the output of cluster index: the input name for the primary
// cluster, "<base>_<index+1><ext>" for the others.
func UnitName(input graph.SourceID, index int) graph.SourceID {
	if index == 0 {
		return input
	}
	return graph.SourceID(input.Base() + "_" + strconv.Itoa(index+1) + input.Ext())
}

// Materialize creates one target per cluster, in cluster order, and fills it.
// Self-originated records are duplicated as new records; all other records are
// registered as overrides and keep their key.
func Materialize[T Target](clusters []*cluster.Cluster, input graph.SourceID, newTarget func(graph.SourceID) (T, error), opts Options) ([]Unit[T], error) {
	units := make([]Unit[T], 0, len(clusters))
	for i, c := range clusters {
		name := UnitName(input, i)
		target, err := newTarget(name)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}

		unit := Unit[T]{
			Index:   i,
			Name:    name,
			Masters: c.MasterList(),
			Target:  target,
			Renamed: make(map[graph.FormKey]graph.FormKey),
		}
		keep := opts.KeepLocalIDs && i == 0

		for _, rec := range c.Records {
			if graph.Classify(rec, input) == graph.SelfOriginated {
				key, err := target.Duplicate(rec, keep)
				if err != nil {
					return nil, fmt.Errorf("%s: duplicating %s: %w", name, rec.Key, err)
				}
				unit.Renamed[rec.Key] = key
				unit.New++
				continue
			}
			if err := target.Override(rec); err != nil {
				return nil, fmt.Errorf("%s: overriding %s: %w", name, rec.Key, err)
			}
			unit.Overrides++
		}
		units = append(units, unit)
	}
	return units, nil
}

