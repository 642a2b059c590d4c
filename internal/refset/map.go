package refset

type entry[V any] struct {
	key Set
	val V
}

// Map is keyed by set content: any two sets with the same members address the
// same entry. Hash collisions are resolved with Equal.
type Map[V any] struct {
	buckets map[uint64][]entry[V]
	n       int
}

// NewMap creates an empty map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{buckets: make(map[uint64][]entry[V])}
}

// Get returns the value stored under a set equal to key.
func (m *Map[V]) Get(key Set) (V, bool) {
	for _, e := range m.buckets[key.Hash()] {
		if e.key.Equal(key) {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// Put stores v under key, replacing the value of an equal key. The key is
// cloned, so later changes to it do not move the entry.
func (m *Map[V]) Put(key Set, v V) {
	h := key.Hash()
	bucket := m.buckets[h]
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			bucket[i].val = v
			return
		}
	}
	m.buckets[h] = append(bucket, entry[V]{key: key.Clone(), val: v})
	m.n++
}

// Len returns the number of distinct keys.
func (m *Map[V]) Len() int {
	return m.n
}
