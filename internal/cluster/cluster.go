// Package cluster splits the records of one plugin into clusters, each of
// which references at most a fixed number of master plugins.
package cluster

import (
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/refset"
)

// Cluster is one future output plugin: the masters it must declare and the
// records it will contain, in assignment order.
type Cluster struct {
	Index   int
	Masters refset.Set
	Records []graph.Record
}

func newCluster(index int, seed refset.Set) *Cluster {
	return &Cluster{Index: index, Masters: seed.Clone()}
}

// Fits reports whether adding set keeps the cluster within limit.
func (c *Cluster) Fits(set refset.Set, limit int) bool {
	return c.Masters.Count()+set.MissingFrom(c.Masters) <= limit
}

// MasterList returns the cluster's masters sorted by name.
func (c *Cluster) MasterList() []graph.SourceID {
	return c.Masters.Members()
}

func (c *Cluster) add(rec graph.Record, set refset.Set) {
	c.Masters.UnionWith(set)
	c.Records = append(c.Records, rec)
}
