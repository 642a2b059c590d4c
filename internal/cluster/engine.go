package cluster

import (
	"fmt"

	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/refset"
)

// schedule is the fixed pass order. Self-originated records are placed before
// any override is considered: pinned ones are constrained to cluster 0, and
// overrides must see cluster capacities that already include them.
var schedule = []graph.OriginClass{graph.SelfOriginated, graph.Override}

// Stats describes one Generate run.
type Stats struct {
	Records         int
	SelfOriginated  int
	Overrides       int
	Pinned          int // self-originated records held in cluster 0
	CacheHits       int // records placed through the reference-set cache
	Scans           int // records placed by scanning clusters
	ClustersCreated int
}

// Result holds the clusters of one plugin. Clusters[0] is the primary cluster.
type Result struct {
	Source   graph.SourceID
	Clusters []*Cluster
	Stats    Stats
}

// Engine assigns records to clusters with a deterministic greedy first-fit.
// It performs no I/O; an Engine may be shared by concurrent runs.
type Engine struct {
	opts Options
}

// New creates an engine. The limit must be at least 1.
func New(opts Options) (*Engine, error) {
	if opts.Limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, opts.Limit)
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// Generate reads every record of p and assigns it to a cluster. An input
// without records yields a single empty primary cluster.
func (e *Engine) Generate(p graph.Provider) (*Result, error) {
	recs, err := collect(p)
	if err != nil {
		return nil, err
	}

	r := &run{
		input: p.Source(),
		opts:  e.opts,
		u:     refset.NewUniverse(),
		cache: refset.NewMap[*Cluster](),
	}
	r.stats.Records = len(recs)
	if e.opts.Placement == PlaceAny {
		r.linked = linkedKeys(recs, r.input)
	}

	for _, pass := range schedule {
		for _, rec := range r.order(recs, pass) {
			set := Extract(rec, r.input, r.u)
			withInput := set
			if LinksInput(rec, r.input) {
				withInput = set.Clone()
				withInput.Add(r.input)
			}

			var err error
			switch {
			case pass == graph.Override:
				r.stats.Overrides++
				err = r.placeFirstFit(rec, set, withInput)
			case r.pinned(rec):
				r.stats.SelfOriginated++
				r.stats.Pinned++
				err = r.placePrimary(rec, set, withInput)
			default:
				r.stats.SelfOriginated++
				err = r.placeFirstFit(rec, set, withInput)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if len(r.clusters) == 0 {
		r.clusters = append(r.clusters, newCluster(0, r.u.NewSet()))
		r.stats.ClustersCreated++
	}

	return &Result{Source: r.input, Clusters: r.clusters, Stats: r.stats}, nil
}

func collect(p graph.Provider) ([]graph.Record, error) {
	var recs []graph.Record
	for rec, err := range p.Records() {
		if err != nil {
			return nil, fmt.Errorf("reading records of %s: %w", p.Source(), err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// run is the mutable state of one Generate call.
type run struct {
	input    graph.SourceID
	opts     Options
	u        *refset.Universe
	clusters []*Cluster
	cache    *refset.Map[*Cluster]
	linked   map[graph.FormKey]struct{}
	stats    Stats
}

// linkedKeys collects the input records that some record links to.
func linkedKeys(recs []graph.Record, input graph.SourceID) map[graph.FormKey]struct{} {
	out := make(map[graph.FormKey]struct{})
	for _, rec := range recs {
		for _, link := range rec.Links {
			if link.Source == input {
				out[link] = struct{}{}
			}
		}
	}
	return out
}

// pinned reports whether a self-originated record must stay in cluster 0.
// Under PlaceAny a record may only move when no record links to it and it
// links to no input record, since moving it changes its key and links are
// not rewritten.
func (r *run) pinned(rec graph.Record) bool {
	if r.opts.Placement == PlacePrimary {
		return true
	}
	if _, ok := r.linked[rec.Key]; ok {
		return true
	}
	return LinksInput(rec, r.input)
}

// order returns the records of one pass. Pinned self-originated records come
// first so cluster 0 capacity goes to them before any movable record.
func (r *run) order(recs []graph.Record, pass graph.OriginClass) []graph.Record {
	var first, rest []graph.Record
	for _, rec := range recs {
		if graph.Classify(rec, r.input) != pass {
			continue
		}
		if pass == graph.SelfOriginated && r.pinned(rec) {
			first = append(first, rec)
		} else {
			rest = append(rest, rec)
		}
	}
	return append(first, rest...)
}

// charge is what rec costs in c. A secondary cluster must also declare the
// input when rec links into it.
func charge(c *Cluster, set, withInput refset.Set) refset.Set {
	if c.Index == 0 {
		return set
	}
	return withInput
}

// placePrimary puts a self-originated record into cluster 0. There is no
// fallback: moving the record would change its local id.
func (r *run) placePrimary(rec graph.Record, set, withInput refset.Set) error {
	if len(r.clusters) == 0 {
		if set.Count() > r.opts.Limit {
			return r.overflow(rec, set, refset.Set{})
		}
		r.clusters = append(r.clusters, newCluster(0, set))
		r.stats.ClustersCreated++
	}

	primary := r.clusters[0]
	if !primary.Fits(set, r.opts.Limit) {
		return r.overflow(rec, set, primary.Masters)
	}
	primary.add(rec, set)
	r.cache.Put(withInput, primary)
	return nil
}

// placeFirstFit puts a record into the first cluster that can take its masters,
// creating a new cluster when none can. The cache is keyed by withInput, so
// records that link into the input never share an entry with records that
// do not.
func (r *run) placeFirstFit(rec graph.Record, set, withInput refset.Set) error {
	// A cached cluster already holds every member rec is charged there:
	// masters only grow.
	if c, ok := r.cache.Get(withInput); ok {
		r.stats.CacheHits++
		c.add(rec, charge(c, set, withInput))
		return nil
	}

	r.stats.Scans++
	var target *Cluster
	for _, c := range r.clusters {
		if c.Fits(charge(c, set, withInput), r.opts.Limit) {
			target = c
			break
		}
	}

	if target == nil {
		need := set
		if len(r.clusters) > 0 {
			need = withInput
		}
		if need.Count() > r.opts.Limit {
			return r.overflow(rec, need, refset.Set{})
		}
		target = newCluster(len(r.clusters), need)
		r.clusters = append(r.clusters, target)
		r.stats.ClustersCreated++
	}

	target.add(rec, charge(target, set, withInput))
	r.cache.Put(withInput, target)
	return nil
}

func (r *run) overflow(rec graph.Record, set, accumulated refset.Set) error {
	masters := set.Clone()
	masters.UnionWith(accumulated)
	return &TooManyMastersError{
		Source:  r.input,
		Record:  rec.Key,
		Masters: masters.Members(),
		Limit:   r.opts.Limit,
	}
}
