package spatial

import (
	"fmt"
	"math"

	"github.com/setanarut/vec"
)

// BB is an axis-aligned 2D bounding box. (left, bottom, right, top)
//
// All tests on BB use closed intervals: boxes that only touch along an edge
// intersect, and a point on the boundary is contained.
type BB struct {
	L, B, R, T float64
}

// NewBB is convenience constructor for BB structs.
func NewBB(l, b, r, t float64) BB {
	return BB{
		L: l,
		B: b,
		R: r,
		T: t,
	}
}

// NewBBForRect constructs a BB from an origin and a size.
func NewBBForRect(x, y, width, height float64) BB {
	return BB{
		L: x,
		B: y,
		R: x + width,
		T: y + height,
	}
}

// NewBBForExtents constructs a BB centered on a point with the given extents (half sizes).
func NewBBForExtents(c vec.Vec2, hw, hh float64) BB {
	return BB{
		L: c.X - hw,
		B: c.Y - hh,
		R: c.X + hw,
		T: c.Y + hh,
	}
}

// NewBBForPoint constructs a zero area BB at p.
func NewBBForPoint(p vec.Vec2) BB {
	return BB{p.X, p.Y, p.X, p.Y}
}

func (bb BB) String() string {
	return fmt.Sprintf("%v %v %v %v", bb.L, bb.B, bb.R, bb.T)
}

// Rect returns the origin and size of the bounding box.
func (bb BB) Rect() (x, y, width, height float64) {
	return bb.L, bb.B, bb.R - bb.L, bb.T - bb.B
}

func (bb BB) Width() float64 {
	return bb.R - bb.L
}

func (bb BB) Height() float64 {
	return bb.T - bb.B
}

// Valid returns true if every coordinate is finite and the extents are not
// negative. A zero area box is valid.
func (bb BB) Valid() bool {
	for _, f := range [...]float64{bb.L, bb.B, bb.R, bb.T} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return bb.L <= bb.R && bb.B <= bb.T
}

// Intersects returns true if a and b intersect.
func (bb BB) Intersects(b BB) bool {
	return bb.L <= b.R && b.L <= bb.R && bb.B <= b.T && b.B <= bb.T
}

// Contains returns true if other lies completely within bb.
func (bb BB) Contains(other BB) bool {
	return bb.L <= other.L && bb.R >= other.R && bb.B <= other.B && bb.T >= other.T
}

// ContainsVect returns true if bb contains v.
func (bb BB) ContainsVect(v vec.Vec2) bool {
	return bb.L <= v.X && bb.R >= v.X && bb.B <= v.Y && bb.T >= v.Y
}

// Quadrants splits bb into four equal boxes, ordered
// bottom-left, bottom-right, top-left, top-right.
func (bb BB) Quadrants() [4]BB {
	midX := bb.L + (bb.R-bb.L)/2
	midY := bb.B + (bb.T-bb.B)/2
	return [4]BB{
		{bb.L, bb.B, midX, midY},
		{midX, bb.B, bb.R, midY},
		{bb.L, midY, midX, bb.T},
		{midX, midY, bb.R, bb.T},
	}
}
