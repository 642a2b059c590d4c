package refset

import (
	"github.com/cespare/xxhash/v2"
	"github.com/olehluchkiv/mastersort/internal/graph"
)

// Universe interns source identifiers into dense indexes so sets can be kept
// in compressed bitmaps. A Universe belongs to one partitioning run and is not
// safe for concurrent use.
type Universe struct {
	index  map[graph.SourceID]uint32
	names  []graph.SourceID
	hashes []uint64
}

// NewUniverse creates an empty universe.
func NewUniverse() *Universe {
	return &Universe{index: make(map[graph.SourceID]uint32)}
}

// Intern returns the index of id, assigning the next free one on first sight.
func (u *Universe) Intern(id graph.SourceID) uint32 {
	if idx, ok := u.index[id]; ok {
		return idx
	}
	idx := uint32(len(u.names))
	u.index[id] = idx
	u.names = append(u.names, id)
	u.hashes = append(u.hashes, xxhash.Sum64String(string(id)))
	return idx
}

// Lookup returns the index of id without interning it.
func (u *Universe) Lookup(id graph.SourceID) (uint32, bool) {
	idx, ok := u.index[id]
	return idx, ok
}

// Name returns the source identifier stored at idx.
func (u *Universe) Name(idx uint32) graph.SourceID {
	return u.names[idx]
}

// Len returns the number of interned identifiers.
func (u *Universe) Len() int {
	return len(u.names)
}

// NewSet creates a set holding ids.
func (u *Universe) NewSet(ids ...graph.SourceID) Set {
	s := Set{u: u, rb: newBitmap()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}
