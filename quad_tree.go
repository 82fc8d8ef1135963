package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/setanarut/vec"
)

// QuadTreeOption configures a QuadTree.
type QuadTreeOption func(*quadTreeConfig)

type quadTreeConfig struct {
	maxObjects int
	maxLevels  int
}

// WithMaxObjects sets how many objects a leaf holds before splitting.
func WithMaxObjects(n int) QuadTreeOption {
	return func(c *quadTreeConfig) {
		c.maxObjects = n
	}
}

// WithMaxLevels sets the depth at which nodes stop splitting.
func WithMaxLevels(n int) QuadTreeOption {
	return func(c *quadTreeConfig) {
		c.maxLevels = n
	}
}

// QuadTree is a bounded depth quad subdivision of fixed world bounds.
//
// Objects live in the deepest node whose bounds contain them. Objects that
// straddle or touch the split lines of a node stay at that node, and objects
// outside the world bounds stay at the root.
type QuadTree[E comparable] struct {
	worldBounds BB
	maxObjects  int
	maxLevels   int

	root    *quadNode[E]
	entries map[E]*entry[E]
	seq     uint64

	// pooledNodes is a free list of recycled nodes linked through parent.
	pooledNodes *quadNode[E]
}

// quadNode is a node of a QuadTree. Leaves have no children; internal nodes
// have exactly four.
type quadNode[E comparable] struct {
	bounds   BB
	depth    int
	objects  []*entry[E]
	children *[4]*quadNode[E]
	parent   *quadNode[E]
}

// NewQuadTree returns an empty tree over worldBounds, which must have a
// positive area.
func NewQuadTree[E comparable](worldBounds BB, opts ...QuadTreeOption) (*QuadTree[E], error) {
	conf := quadTreeConfig{
		maxObjects: DefaultMaxObjects,
		maxLevels:  DefaultMaxLevels,
	}
	for _, opt := range opts {
		opt(&conf)
	}

	if err := validWorldBounds(worldBounds); err != nil {
		return nil, err
	}
	if conf.maxObjects <= 0 {
		return nil, errors.New("invalid max objects").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_objects", conf.maxObjects)
	}
	if conf.maxLevels < 0 {
		return nil, errors.New("invalid max levels").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_levels", conf.maxLevels)
	}

	tree := &QuadTree[E]{
		worldBounds: worldBounds,
		maxObjects:  conf.maxObjects,
		maxLevels:   conf.maxLevels,
		entries:     make(map[E]*entry[E]),
	}
	tree.root = tree.newNode(worldBounds, 0, nil)
	return tree, nil
}

func validWorldBounds(bb BB) error {
	if !bb.Valid() || bb.Width() <= 0 || bb.Height() <= 0 {
		return errors.New("invalid world bounds").
			WithType(ErrTypeInvalidConfig).
			WithTag("bounds", bb.String())
	}
	return nil
}

func (tree *QuadTree[E]) Strategy() Strategy {
	return StrategyTree
}

func (tree *QuadTree[E]) WorldBounds() BB {
	return tree.worldBounds
}

// SetWorldBounds replaces the bounds of the root and reinserts every entity.
// Bounds without a positive area are rejected and the current bounds kept.
func (tree *QuadTree[E]) SetWorldBounds(bb BB) error {
	if err := validWorldBounds(bb); err != nil {
		return err
	}

	tree.worldBounds = bb
	tree.Reindex()
	return nil
}

func (tree *QuadTree[E]) Count() int {
	return len(tree.entries)
}

func (tree *QuadTree[E]) Empty() bool {
	return len(tree.entries) == 0
}

func (tree *QuadTree[E]) Contains(e E) bool {
	_, ok := tree.entries[e]
	return ok
}

func (tree *QuadTree[E]) BBOf(e E) (BB, bool) {
	if ent, ok := tree.entries[e]; ok {
		return ent.bb, true
	}
	return BB{}, false
}

func (tree *QuadTree[E]) Each(f SpatialIndexIterator[E]) {
	for _, ent := range sortedEntries(tree.entries) {
		f(ent.obj, ent.bb)
	}
}

func (tree *QuadTree[E]) Insert(e E, bb BB) {
	if _, ok := tree.entries[e]; ok {
		tree.Update(e, bb)
		return
	}

	tree.seq++
	ent := &entry[E]{obj: e, bb: bb, seq: tree.seq}
	tree.entries[e] = ent
	tree.insertIntoNode(tree.root, ent)
}

func (tree *QuadTree[E]) insertIntoNode(node *quadNode[E], ent *entry[E]) {
	for node.children != nil {
		child := node.childFor(ent.bb)
		if child == nil {
			break
		}
		node = child
	}

	node.objects = append(node.objects, ent)

	if node.children == nil && len(node.objects) > tree.maxObjects && node.depth < tree.maxLevels {
		tree.split(node)
	}
}

// childFor returns the child that bb belongs in, or nil if bb touches a
// split line or is not inside the node. Objects in different children are
// separated by a split line, so they can never intersect.
func (node *quadNode[E]) childFor(bb BB) *quadNode[E] {
	if node.children == nil || !node.bounds.Contains(bb) {
		return nil
	}

	// The split lines are read back from the first child so placement
	// agrees exactly with the child bounds.
	midX, midY := node.children[0].bounds.R, node.children[0].bounds.T
	left := bb.R < midX
	right := bb.L > midX
	bottom := bb.T < midY
	top := bb.B > midY

	switch {
	case bottom && left:
		return node.children[0]
	case bottom && right:
		return node.children[1]
	case top && left:
		return node.children[2]
	case top && right:
		return node.children[3]
	}
	return nil
}

func (tree *QuadTree[E]) split(node *quadNode[E]) {
	quads := node.bounds.Quadrants()
	node.children = &[4]*quadNode[E]{}
	for i, bounds := range quads {
		node.children[i] = tree.newNode(bounds, node.depth+1, node)
	}

	objects := node.objects
	node.objects = objects[:0]
	for _, ent := range objects {
		if child := node.childFor(ent.bb); child != nil {
			tree.insertIntoNode(child, ent)
		} else {
			node.objects = append(node.objects, ent)
		}
	}
	clear(objects[len(node.objects):])
}

func (tree *QuadTree[E]) Remove(e E) {
	ent, ok := tree.entries[e]
	if !ok {
		return
	}

	delete(tree.entries, e)
	tree.removeFromNode(tree.root, ent)
}

// removeFromNode follows the path that the recorded bounding box of ent
// takes from node downwards. Splits only move objects along that path.
func (tree *QuadTree[E]) removeFromNode(node *quadNode[E], ent *entry[E]) bool {
	for ; node != nil; node = node.childFor(ent.bb) {
		for i, obj := range node.objects {
			if obj != ent {
				continue
			}
			last := len(node.objects) - 1
			node.objects[i] = node.objects[last]
			node.objects[last] = nil
			node.objects = node.objects[:last]
			return true
		}
	}
	return false
}

func (tree *QuadTree[E]) Update(e E, bb BB) {
	ent, ok := tree.entries[e]
	if !ok {
		return
	}

	tree.removeFromNode(tree.root, ent)
	ent.bb = bb
	tree.insertIntoNode(tree.root, ent)
}

func (tree *QuadTree[E]) Query(bb BB) []E {
	return collect(func(f QueryFunc[E]) {
		tree.QueryFunc(bb, f)
	})
}

func (tree *QuadTree[E]) QueryFunc(bb BB, f QueryFunc[E]) {
	tree.root.subtreeQuery(bb, f, true)
}

// subtreeQuery calls f for the objects of the subtree intersecting bb and
// returns false once f asks to stop. The bounds of the root are not used
// for pruning since out of bounds objects are stored there.
func (subtree *quadNode[E]) subtreeQuery(bb BB, f QueryFunc[E], root bool) bool {
	if !root && !subtree.bounds.Intersects(bb) {
		return true
	}

	for _, ent := range subtree.objects {
		if ent.bb.Intersects(bb) && !f(ent.obj) {
			return false
		}
	}

	if subtree.children != nil {
		for _, child := range subtree.children {
			if !child.subtreeQuery(bb, f, false) {
				return false
			}
		}
	}
	return true
}

func (tree *QuadTree[E]) QueryPoint(p vec.Vec2) []E {
	return collect(func(f QueryFunc[E]) {
		tree.QueryPointFunc(p, f)
	})
}

func (tree *QuadTree[E]) QueryPointFunc(p vec.Vec2, f QueryFunc[E]) {
	tree.root.subtreePointQuery(p, f, true)
}

func (subtree *quadNode[E]) subtreePointQuery(p vec.Vec2, f QueryFunc[E], root bool) bool {
	if !root && !subtree.bounds.ContainsVect(p) {
		return true
	}

	for _, ent := range subtree.objects {
		if ent.bb.ContainsVect(p) && !f(ent.obj) {
			return false
		}
	}

	if subtree.children != nil {
		for _, child := range subtree.children {
			if !child.subtreePointQuery(p, f, false) {
				return false
			}
		}
	}
	return true
}

// QueryCollisions tests the objects of every node against each other and
// against the objects of its ancestors. Every pair is tested once, at the
// deepest node holding one of the two objects.
func (tree *QuadTree[E]) QueryCollisions() []Pair[E] {
	var pairs []Pair[E]
	tree.root.markSubtree(nil, &pairs)
	return pairs
}

func (subtree *quadNode[E]) markSubtree(ancestors []*entry[E], pairs *[]Pair[E]) {
	for i, a := range subtree.objects {
		for _, b := range ancestors {
			if a.bb.Intersects(b.bb) {
				*pairs = append(*pairs, makePair(a, b))
			}
		}
		for _, b := range subtree.objects[i+1:] {
			if a.bb.Intersects(b.bb) {
				*pairs = append(*pairs, makePair(a, b))
			}
		}
	}

	if subtree.children == nil {
		return
	}

	ancestors = append(ancestors, subtree.objects...)
	for _, child := range subtree.children {
		child.markSubtree(ancestors, pairs)
	}
}

func (tree *QuadTree[E]) Clear() {
	tree.recycleSubtree(tree.root)
	tree.root = tree.newNode(tree.worldBounds, 0, nil)
	clear(tree.entries)
}

func (tree *QuadTree[E]) Reindex() {
	tree.recycleSubtree(tree.root)
	tree.root = tree.newNode(tree.worldBounds, 0, nil)
	for _, ent := range sortedEntries(tree.entries) {
		tree.insertIntoNode(tree.root, ent)
	}
}

// Depth returns the depth of the deepest node.
func (tree *QuadTree[E]) Depth() int {
	return tree.root.maxDepth()
}

func (node *quadNode[E]) maxDepth() int {
	depth := node.depth
	if node.children != nil {
		for _, child := range node.children {
			depth = max(depth, child.maxDepth())
		}
	}
	return depth
}

// NodeCount returns the number of nodes in the tree.
func (tree *QuadTree[E]) NodeCount() int {
	return tree.root.count()
}

func (node *quadNode[E]) count() int {
	n := 1
	if node.children != nil {
		for _, child := range node.children {
			n += child.count()
		}
	}
	return n
}

func (tree *QuadTree[E]) newNode(bounds BB, depth int, parent *quadNode[E]) *quadNode[E] {
	node := tree.nodeFromPool()
	node.bounds = bounds
	node.depth = depth
	node.parent = parent
	return node
}

func (tree *QuadTree[E]) nodeFromPool() *quadNode[E] {
	node := tree.pooledNodes

	if node != nil {
		tree.pooledNodes = node.parent
		node.parent = nil
		return node
	}

	// Pool is exhausted make more
	for i := 0; i < pooledBufferSize; i++ {
		tree.recycleNode(&quadNode[E]{})
	}

	return &quadNode[E]{}
}

func (tree *QuadTree[E]) recycleNode(node *quadNode[E]) {
	clear(node.objects)
	node.objects = node.objects[:0]
	node.children = nil
	node.parent = tree.pooledNodes
	tree.pooledNodes = node
}

func (tree *QuadTree[E]) recycleSubtree(node *quadNode[E]) {
	if node.children != nil {
		for _, child := range node.children {
			tree.recycleSubtree(child)
		}
	}
	tree.recycleNode(node)
}
