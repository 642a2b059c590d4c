// Package refset implements canonical reference sets: order-independent sets
// of source identifiers with content equality and a content hash, so that two
// sets with the same members can key the same map entry.
package refset

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/olehluchkiv/mastersort/internal/graph"
)

// Set is a set of source identifiers drawn from a Universe. Set values share
// their storage: copying a Set and mutating the copy mutates the original, use
// Clone for an independent set.
type Set struct {
	u  *Universe
	rb *roaring.Bitmap
}

func newBitmap() *roaring.Bitmap {
	return roaring.New()
}

// Universe returns the universe the set draws from.
func (s Set) Universe() *Universe { return s.u }

// Add inserts id.
func (s Set) Add(id graph.SourceID) {
	s.rb.Add(s.u.Intern(id))
}

// Contains reports whether id is a member.
func (s Set) Contains(id graph.SourceID) bool {
	if s.rb == nil {
		return false
	}
	idx, ok := s.u.Lookup(id)
	return ok && s.rb.Contains(idx)
}

// Count returns the number of members.
func (s Set) Count() int {
	if s.rb == nil {
		return 0
	}
	return int(s.rb.GetCardinality())
}

// UnionWith adds every member of other to s.
func (s Set) UnionWith(other Set) {
	if other.rb == nil {
		return
	}
	if s.u == other.u {
		s.rb.Or(other.rb)
		return
	}
	for _, id := range other.names() {
		s.Add(id)
	}
}

// Except returns the members of s that are absent from other.
func (s Set) Except(other Set) Set {
	out := Set{u: s.u, rb: newBitmap()}
	if s.rb == nil {
		return out
	}
	if other.rb == nil {
		out.rb = s.rb.Clone()
		return out
	}
	if s.u == other.u {
		out.rb = roaring.AndNot(s.rb, other.rb)
		return out
	}
	for _, id := range s.names() {
		if !other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// MissingFrom returns how many members of s are absent from other, without
// materializing the difference.
func (s Set) MissingFrom(other Set) int {
	if s.rb == nil {
		return 0
	}
	if other.rb == nil {
		return s.Count()
	}
	if s.u == other.u {
		return s.Count() - int(s.rb.AndCardinality(other.rb))
	}
	return s.Except(other).Count()
}

// Equal reports whether both sets have the same members.
func (s Set) Equal(other Set) bool {
	if s.Count() != other.Count() {
		return false
	}
	if s.Count() == 0 {
		return true
	}
	if s.u == other.u {
		return s.rb.Equals(other.rb)
	}
	for _, id := range s.names() {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Hash returns a content hash. It accumulates a mixed hash of every member
// with a commutative sum, so it does not depend on insertion order or on the
// universe's interning order.
func (s Set) Hash() uint64 {
	var sum uint64
	if s.rb != nil {
		it := s.rb.Iterator()
		for it.HasNext() {
			sum += mix(s.u.hashes[it.Next()])
		}
	}
	return sum ^ mix(uint64(s.Count()))
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	if s.rb == nil {
		return Set{u: s.u, rb: newBitmap()}
	}
	return Set{u: s.u, rb: s.rb.Clone()}
}

// Members returns the members sorted by name.
func (s Set) Members() []graph.SourceID {
	out := s.names()
	slices.Sort(out)
	return out
}

// names returns the members in index order.
func (s Set) names() []graph.SourceID {
	if s.rb == nil {
		return nil
	}
	out := make([]graph.SourceID, 0, s.Count())
	it := s.rb.Iterator()
	for it.HasNext() {
		out = append(out, s.u.Name(it.Next()))
	}
	return out
}

// mix is the splitmix64 finalizer; it spreads member hashes before summing so
// related inputs do not cancel out.
func mix(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}
