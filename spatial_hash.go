package spatial

import (
	"cmp"
	"math"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/setanarut/vec"
)

// CellKey identifies a SpatialHash cell.
type CellKey struct {
	X, Y int64
}

// maxEntryCells is the number of cells above which an entity is kept in
// the oversized set instead of joining every covered cell.
const maxEntryCells = 1024

// SpatialHash is a uniform hash grid. An entity is a member of every cell
// its bounding box overlaps, so boxes of any size are supported and the grid
// has no world bounds. Entities covering more than maxEntryCells cells are
// kept aside and tested by every query.
type SpatialHash[E comparable] struct {
	celldim   float64
	cells     map[CellKey][]*entry[E]
	entries   map[E]*entry[E]
	oversized map[*entry[E]]struct{}

	seq   uint64
	stamp uint64
}

// NewSpatialHash returns an empty grid with square cells of side cellSize.
func NewSpatialHash[E comparable](cellSize float64) (*SpatialHash[E], error) {
	if !validCellSize(cellSize) {
		return nil, errors.New("invalid cell size").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_size", cellSize)
	}

	return &SpatialHash[E]{
		celldim:   cellSize,
		cells:     make(map[CellKey][]*entry[E]),
		entries:   make(map[E]*entry[E]),
		oversized: make(map[*entry[E]]struct{}),
	}, nil
}

func validCellSize(cellSize float64) bool {
	return cellSize > 0 && !math.IsInf(cellSize, 0)
}

func (hash *SpatialHash[E]) Strategy() Strategy {
	return StrategyGrid
}

// CellSize returns the side length of a cell.
func (hash *SpatialHash[E]) CellSize() float64 {
	return hash.celldim
}

// SetCellSize changes the side length of a cell and rehashes every entity.
// A non-positive or infinite size is rejected and the current size kept.
func (hash *SpatialHash[E]) SetCellSize(cellSize float64) error {
	if !validCellSize(cellSize) {
		return errors.New("invalid cell size").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_size", cellSize)
	}
	if cellSize == hash.celldim {
		return nil
	}

	hash.celldim = cellSize
	hash.Reindex()
	return nil
}

// CellKeyFor returns the key of the cell containing the point (x, y).
func (hash *SpatialHash[E]) CellKeyFor(x, y float64) CellKey {
	return CellKey{
		X: int64(math.Floor(x / hash.celldim)),
		Y: int64(math.Floor(y / hash.celldim)),
	}
}

// cellRange returns the first and last cell keys covered by bb, inclusive.
func (hash *SpatialHash[E]) cellRange(bb BB) (CellKey, CellKey) {
	return hash.CellKeyFor(bb.L, bb.B), hash.CellKeyFor(bb.R, bb.T)
}

// cellSpan returns the number of cells between lo and hi, inclusive.
func cellSpan(lo, hi CellKey) float64 {
	return (float64(hi.X) - float64(lo.X) + 1) * (float64(hi.Y) - float64(lo.Y) + 1)
}

func (key CellKey) within(lo, hi CellKey) bool {
	return lo.X <= key.X && key.X <= hi.X && lo.Y <= key.Y && key.Y <= hi.Y
}

// CellCount returns the number of occupied cells.
func (hash *SpatialHash[E]) CellCount() int {
	return len(hash.cells)
}

func (hash *SpatialHash[E]) Count() int {
	return len(hash.entries)
}

func (hash *SpatialHash[E]) Empty() bool {
	return len(hash.entries) == 0
}

func (hash *SpatialHash[E]) Contains(e E) bool {
	_, ok := hash.entries[e]
	return ok
}

func (hash *SpatialHash[E]) BBOf(e E) (BB, bool) {
	if ent, ok := hash.entries[e]; ok {
		return ent.bb, true
	}
	return BB{}, false
}

func (hash *SpatialHash[E]) Each(f SpatialIndexIterator[E]) {
	for _, ent := range sortedEntries(hash.entries) {
		f(ent.obj, ent.bb)
	}
}

func (hash *SpatialHash[E]) Insert(e E, bb BB) {
	if _, ok := hash.entries[e]; ok {
		hash.Update(e, bb)
		return
	}

	hash.seq++
	ent := &entry[E]{obj: e, bb: bb, seq: hash.seq}
	hash.entries[e] = ent
	hash.hashEntry(ent)
}

func (hash *SpatialHash[E]) Remove(e E) {
	ent, ok := hash.entries[e]
	if !ok {
		return
	}

	hash.unhashEntry(ent)
	delete(hash.entries, e)
}

func (hash *SpatialHash[E]) Update(e E, bb BB) {
	ent, ok := hash.entries[e]
	if !ok {
		return
	}

	oldMin, oldMax := hash.cellRange(ent.bb)
	newMin, newMax := hash.cellRange(bb)
	if oldMin == newMin && oldMax == newMax {
		ent.bb = bb
		return
	}

	hash.unhashEntry(ent)
	ent.bb = bb
	hash.hashEntry(ent)
}

func (hash *SpatialHash[E]) hashEntry(ent *entry[E]) {
	lo, hi := hash.cellRange(ent.bb)
	if cellSpan(lo, hi) > maxEntryCells {
		hash.oversized[ent] = struct{}{}
		return
	}

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			key := CellKey{x, y}
			hash.cells[key] = append(hash.cells[key], ent)
		}
	}
}

// unhashEntry leaves every cell computed from the recorded bounding box.
func (hash *SpatialHash[E]) unhashEntry(ent *entry[E]) {
	lo, hi := hash.cellRange(ent.bb)
	if cellSpan(lo, hi) > maxEntryCells {
		delete(hash.oversized, ent)
		return
	}

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			key := CellKey{x, y}
			bin := hash.cells[key]
			for i := range bin {
				if bin[i] != ent {
					continue
				}
				last := len(bin) - 1
				bin[i] = bin[last]
				bin[last] = nil
				bin = bin[:last]
				break
			}
			if len(bin) == 0 {
				delete(hash.cells, key)
			} else {
				hash.cells[key] = bin
			}
		}
	}
}

func (hash *SpatialHash[E]) Query(bb BB) []E {
	return collect(func(f QueryFunc[E]) {
		hash.QueryFunc(bb, f)
	})
}

func (hash *SpatialHash[E]) QueryFunc(bb BB, f QueryFunc[E]) {
	hash.stamp++
	stamp := hash.stamp

	visit := func(bin []*entry[E]) bool {
		for _, ent := range bin {
			// Entities spanning several cells are tested once.
			if ent.stamp == stamp {
				continue
			}
			ent.stamp = stamp

			if ent.bb.Intersects(bb) && !f(ent.obj) {
				return false
			}
		}
		return true
	}

	for ent := range hash.oversized {
		if ent.bb.Intersects(bb) && !f(ent.obj) {
			return
		}
	}

	lo, hi := hash.cellRange(bb)

	// Regions wider than the occupied cells walk the occupied cells.
	if cellSpan(lo, hi) > float64(len(hash.cells)) {
		for key, bin := range hash.cells {
			if key.within(lo, hi) && !visit(bin) {
				return
			}
		}
		return
	}

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			if !visit(hash.cells[CellKey{x, y}]) {
				return
			}
		}
	}
}

func (hash *SpatialHash[E]) QueryPoint(p vec.Vec2) []E {
	return collect(func(f QueryFunc[E]) {
		hash.QueryPointFunc(p, f)
	})
}

func (hash *SpatialHash[E]) QueryPointFunc(p vec.Vec2, f QueryFunc[E]) {
	for _, ent := range hash.cells[hash.CellKeyFor(p.X, p.Y)] {
		if ent.bb.ContainsVect(p) && !f(ent.obj) {
			return
		}
	}
	for ent := range hash.oversized {
		if ent.bb.ContainsVect(p) && !f(ent.obj) {
			return
		}
	}
}

func (hash *SpatialHash[E]) QueryCollisions() []Pair[E] {
	var pairs []Pair[E]
	seen := newPairSet(len(hash.entries))

	for _, bin := range hash.cells {
		for i, a := range bin {
			for _, b := range bin[i+1:] {
				if !a.bb.Intersects(b.bb) {
					continue
				}
				if seen.insert(a.seq, b.seq) {
					pairs = append(pairs, makePair(a, b))
				}
			}
		}
	}

	for a := range hash.oversized {
		for _, b := range hash.entries {
			if a == b || !a.bb.Intersects(b.bb) {
				continue
			}
			if seen.insert(a.seq, b.seq) {
				pairs = append(pairs, makePair(a, b))
			}
		}
	}

	return pairs
}

func (hash *SpatialHash[E]) Clear() {
	clear(hash.cells)
	clear(hash.entries)
	clear(hash.oversized)
}

func (hash *SpatialHash[E]) Reindex() {
	clear(hash.cells)
	clear(hash.oversized)
	for _, ent := range sortedEntries(hash.entries) {
		hash.hashEntry(ent)
	}
}

func sortedEntries[E comparable](entries map[E]*entry[E]) []*entry[E] {
	sorted := make([]*entry[E], 0, len(entries))
	for _, ent := range entries {
		sorted = append(sorted, ent)
	}
	slices.SortFunc(sorted, func(a, b *entry[E]) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return sorted
}
