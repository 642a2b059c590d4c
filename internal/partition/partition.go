// Package partition splits plugins whose records reference too many masters
// into several output plugins that each stay within the limit.
package partition

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/materialize"
	"golang.org/x/sync/errgroup"
)

// Options controls a partitioning run.
type Options struct {
	Cluster     cluster.Options
	Materialize materialize.Options
	Jobs        int // concurrent runs in PartitionAll; 0 means GOMAXPROCS
	Logger      *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Cluster:     cluster.DefaultOptions(),
		Materialize: materialize.DefaultOptions(),
	}
}

// Result is the partition of one input plugin.
type Result[T materialize.Target] struct {
	RunID   string
	Source  graph.SourceID
	Units   []materialize.Unit[T]
	Stats   cluster.Stats
	Elapsed time.Duration
}

// NewPlugin is a target constructor producing in-memory plugins.
func NewPlugin(name graph.SourceID) (*graph.Plugin, error) {
	return graph.NewPlugin(name), nil
}

// Partition clusters the records of p and materializes every cluster through
// newTarget. Either the whole partition succeeds or an error is returned.
func Partition[T materialize.Target](p graph.Provider, newTarget func(graph.SourceID) (T, error), opts Options) (*Result[T], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := uuid.NewString()
	logger = logger.With("component", "partition", "run_id", runID, "source", string(p.Source()))

	engine, err := cluster.New(opts.Cluster)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Debug("partition started", "limit", opts.Cluster.Limit, "placement", opts.Cluster.Placement.String())

	clustered, err := engine.Generate(p)
	if err != nil {
		logger.Error("clustering failed", "error", err)
		return nil, fmt.Errorf("partitioning %s: %w", p.Source(), err)
	}

	units, err := materialize.Materialize(clustered.Clusters, clustered.Source, newTarget, opts.Materialize)
	if err != nil {
		logger.Error("materialization failed", "error", err)
		return nil, fmt.Errorf("materializing %s: %w", p.Source(), err)
	}

	elapsed := time.Since(start)
	logger.Info("partition complete",
		"records", clustered.Stats.Records,
		"self_originated", clustered.Stats.SelfOriginated,
		"overrides", clustered.Stats.Overrides,
		"cache_hits", clustered.Stats.CacheHits,
		"units", len(units),
		"elapsed", elapsed)

	return &Result[T]{
		RunID:   runID,
		Source:  clustered.Source,
		Units:   units,
		Stats:   clustered.Stats,
		Elapsed: elapsed,
	}, nil
}

// PartitionAll partitions independent plugins concurrently. Results keep the
// order of providers. The first failure cancels the runs not yet started and
// is returned. newTarget must be safe for concurrent use.
func PartitionAll[T materialize.Target](ctx context.Context, providers []graph.Provider, newTarget func(graph.SourceID) (T, error), opts Options) ([]*Result[T], error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result[T], len(providers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, p := range providers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Partition(p, newTarget, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
