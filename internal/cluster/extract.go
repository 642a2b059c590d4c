package cluster

import (
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/refset"
)

// Extract returns the masters rec needs: its own origin when it overrides a
// record of another plugin, plus the origin of every record it links to.
// Links into the input plugin are left out; the primary unit carries the
// input's name and never declares itself. Links are not followed; only
// direct file references count.
func Extract(rec graph.Record, input graph.SourceID, u *refset.Universe) refset.Set {
	set := u.NewSet()
	if rec.Origin() != input {
		set.Add(rec.Origin())
	}
	for _, link := range rec.Links {
		if link.Source != input {
			set.Add(link.Source)
		}
	}
	return set
}

// LinksInput reports whether rec links to a record of the input plugin. Such a
// record needs the input as a master in every unit but the primary one.
func LinksInput(rec graph.Record, input graph.SourceID) bool {
	for _, link := range rec.Links {
		if link.Source == input {
			return true
		}
	}
	return false
}
