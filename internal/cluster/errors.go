package cluster

import (
	"errors"
	"fmt"

	"github.com/olehluchkiv/mastersort/internal/graph"
)

var (
	// ErrInvalidLimit is returned when the master limit is not positive.
	ErrInvalidLimit = errors.New("master limit must be positive")

	// ErrTooManyMasters matches every *TooManyMastersError via errors.Is.
	ErrTooManyMasters = errors.New("too many masters")
)

// TooManyMastersError reports a record whose masters cannot fit in any cluster
// it is allowed to occupy. The run that produced it has no valid partition.
type TooManyMastersError struct {
	Source  graph.SourceID   // plugin being partitioned
	Record  graph.FormKey    // record that did not fit
	Masters []graph.SourceID // accumulated masters including the record's own, sorted
	Limit   int
}

func (e *TooManyMastersError) Error() string {
	return fmt.Sprintf("generated forms of %s have too many masters and cannot fit into one cluster: %d > %d (record %s)",
		e.Source, len(e.Masters), e.Limit, e.Record)
}

// Is makes errors.Is(err, ErrTooManyMasters) hold.
func (e *TooManyMastersError) Is(target error) bool {
	return target == ErrTooManyMasters
}
