package geometry

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidBox is returned by Validate for boxes with non-positive extent.
var ErrInvalidBox = errors.New("invalid box")

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Point is a 2D pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Validate reports whether b satisfies X1 < X2 and Y1 < Y2.
func (b Box) Validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d)", ErrInvalidBox, b.X1, b.Y1, b.X2, b.Y2)
	}
	return nil
}

// Valid is the boolean form of Validate.
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Width returns X2 - X1.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels, or 0 for an invalid box.
func (b Box) Area() int {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// FromRect converts an image.Rectangle to a Box.
func FromRect(r image.Rectangle) Box {
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Union returns the smallest box enclosing both a and b.
func Union(a, b Box) Box {
	return Box{
		X1: min(a.X1, b.X1),
		Y1: min(a.Y1, b.Y1),
		X2: max(a.X2, b.X2),
		Y2: max(a.Y2, b.Y2),
	}
}

// Clip restricts b to the rectangle (0,0)-(width,height).
// The result may be invalid if b lies entirely outside.
func (b Box) Clip(width, height int) Box {
	return Box{
		X1: max(b.X1, 0),
		Y1: max(b.Y1, 0),
		X2: min(b.X2, width),
		Y2: min(b.Y2, height),
	}
}

// Contains reports whether inner lies within outer, edges inclusive.
func Contains(outer, inner Box) bool {
	if !outer.Valid() || !inner.Valid() {
		return false
	}
	return inner.X1 >= outer.X1 && inner.Y1 >= outer.Y1 &&
		inner.X2 <= outer.X2 && inner.Y2 <= outer.Y2
}

// IntersectionArea returns the overlapping area of a and b.
func IntersectionArea(a, b Box) int {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns intersection over union in [0,1]; 0 for disjoint or invalid boxes.
func IoU(a, b Box) float64 {
	if !a.Valid() || !b.Valid() {
		return 0
	}
	inter := IntersectionArea(a, b)
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	return float64(inter) / float64(union)
}

// VerticalOverlap reports whether the y-ranges of a and b intersect.
// Boxes that only touch at an edge do not overlap.
func VerticalOverlap(a, b Box) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Y1 < b.Y2 && b.Y1 < a.Y2
}

// HorizontalOverlap reports whether the x-ranges of a and b intersect.
func HorizontalOverlap(a, b Box) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.X1 < b.X2 && b.X1 < a.X2
}

// SpanOverlap returns the length of [a1,a2) ∩ [b1,b2), or 0.
func SpanOverlap(a1, a2, b1, b2 int) int {
	return max(0, min(a2, b2)-max(a1, b1))
}
