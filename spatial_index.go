package spatial

import "github.com/setanarut/vec"

// QueryFunc is called for every entity a query finds. Returning false stops
// the query. It must not mutate the index it was passed to.
type QueryFunc[E comparable] func(e E) bool

// SpatialIndexIterator is called for every tracked entity with its last
// registered bounding box.
type SpatialIndexIterator[E comparable] func(e E, bb BB)

// SpatialIndexer is the capability shared by QuadTree and SpatialHash.
//
// Entities are opaque handles owned by the caller. An index never owns them
// and cannot tell when one has been destroyed: entities must be removed
// before the caller discards them.
type SpatialIndexer[E comparable] interface {
	// Count returns the number of entities currently stored in the index.
	Count() int

	// Empty reports whether Count is zero.
	Empty() bool

	// Each iterates over every entity in insertion order.
	Each(f SpatialIndexIterator[E])

	// Contains reports whether e is tracked.
	Contains(e E) bool

	// BBOf returns the last bounding box registered for e.
	BBOf(e E) (BB, bool)

	// Insert registers e at bb. Inserting an entity that is already tracked
	// behaves like Update.
	Insert(e E, bb BB)

	// Remove untracks e. Removing an unknown entity does nothing.
	Remove(e E)

	// Update moves e to bb. Updating an unknown entity does nothing.
	Update(e E, bb BB)

	// Query returns every entity whose bounding box intersects bb.
	Query(bb BB) []E

	// QueryPoint returns every entity whose bounding box contains p.
	QueryPoint(p vec.Vec2) []E

	// QueryFunc calls f for every entity whose bounding box intersects bb,
	// without building a result slice.
	QueryFunc(bb BB, f QueryFunc[E])

	// QueryPointFunc calls f for every entity whose bounding box contains p.
	QueryPointFunc(p vec.Vec2, f QueryFunc[E])

	// QueryCollisions returns every pair of distinct entities whose bounding
	// boxes intersect. Each unordered pair is reported once.
	QueryCollisions() []Pair[E]

	// Clear untracks every entity.
	Clear()

	// Reindex rebuilds the internal layout from the tracked bounding boxes.
	// Tracked entities and query results do not change.
	Reindex()

	// Strategy returns the kind of structure the index is.
	Strategy() Strategy
}

// entry is the population record kept for every tracked entity.
type entry[E comparable] struct {
	obj E
	bb  BB
	// seq orders entities by insertion and makes pair keys canonical.
	seq uint64
	// stamp marks the entry as visited by the current query.
	stamp uint64
}

func collect[E comparable](query func(f QueryFunc[E])) []E {
	var results []E
	query(func(e E) bool {
		results = append(results, e)
		return true
	})
	return results
}
