package cluster

import (
	"fmt"
	"strings"
)

// DefaultLimit is the number of masters a plugin file may declare.
const DefaultLimit = 255

// Placement controls where self-originated records may go.
type Placement int

const (
	// PlacePrimary keeps every self-originated record in cluster 0 so its
	// local id never changes. Overflowing cluster 0 is fatal.
	PlacePrimary Placement = iota
	// PlaceAny packs self-originated records first-fit like overrides.
	// Records that land outside cluster 0 receive new local ids.
	PlaceAny
)

func (p Placement) String() string {
	switch p {
	case PlacePrimary:
		return "primary"
	case PlaceAny:
		return "any"
	default:
		return fmt.Sprintf("Placement(%d)", int(p))
	}
}

// ParsePlacement parses "primary" or "any".
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "":
		return PlacePrimary, nil
	case "any":
		return PlaceAny, nil
	default:
		return PlacePrimary, fmt.Errorf("unknown placement: %s (valid: primary, any)", s)
	}
}

// Options controls clustering.
type Options struct {
	Limit     int // max masters per cluster; default 255
	Placement Placement
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{Limit: DefaultLimit, Placement: PlacePrimary}
}
