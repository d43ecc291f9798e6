package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rect is an axis-aligned rectangle. Both edges are inclusive.
type Rect struct {
	Min, Max r2.Vec
}

// NewRect builds a rectangle from two corners in any order
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Min: r2.Vec{X: min(x0, x1), Y: min(y0, y1)},
		Max: r2.Vec{X: max(x0, x1), Y: max(y0, y1)},
	}
}

// RectAround returns the square centered on c reaching halfExtent in each direction
func RectAround(c r2.Vec, halfExtent float64) Rect {
	return NewRect(c.X-halfExtent, c.Y-halfExtent, c.X+halfExtent, c.Y+halfExtent)
}

// Width returns the horizontal size
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical size
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the midpoint of the rectangle
func (r Rect) Center() r2.Vec {
	return r2.Vec{
		X: r.Min.X + r.Width()/2,
		Y: r.Min.Y + r.Height()/2,
	}
}

// Contains reports whether p lies inside r or on its edge
func (r Rect) Contains(p r2.Vec) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Intersects reports whether the two rectangles share at least one point
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g]-[%g,%g]", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}
