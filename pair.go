package spatial

// Pair is an unordered pair of colliding entities. A is the entity that was
// inserted first.
type Pair[E comparable] struct {
	A, B E
}

type pairKey struct {
	a, b uint64
}

// pairSet remembers which pairs a SpatialHash already reported while
// walking cells, so a pair sharing several cells is emitted once.
type pairSet struct {
	seen map[pairKey]struct{}
}

func newPairSet(capacity int) *pairSet {
	return &pairSet{seen: make(map[pairKey]struct{}, capacity)}
}

// insert returns false if the pair of sequence numbers was already added.
// The order of a and b does not matter.
func (set *pairSet) insert(a, b uint64) bool {
	if b < a {
		a, b = b, a
	}
	key := pairKey{a, b}
	if _, ok := set.seen[key]; ok {
		return false
	}
	set.seen[key] = struct{}{}
	return true
}

func makePair[E comparable](a, b *entry[E]) Pair[E] {
	if b.seq < a.seq {
		a, b = b, a
	}
	return Pair[E]{a.obj, b.obj}
}
