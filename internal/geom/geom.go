// Package geom holds the point and box types shared by the locators and the
// input channels, and the mapping from page-local to screen coordinates.
package geom

import "fmt"

// Point is a position in pixels. Whether it is page-local or screen-absolute
// depends on where it came from; PageToScreen is the only conversion.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p multiplied by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Lerp interpolates between p (t=0) and q (t=1).
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.0f, %.0f)", p.X, p.Y)
}

// Size is a width/height pair, used for viewports.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundingBox is a rectangle in page-local pixel space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box has a positive area.
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return b.Anchor(0.5, 0.5)
}

// Anchor returns the point at the given fractions of the box's width and height.
// Anchor(0.5, 0.5) is the center.
func (b BoundingBox) Anchor(fx, fy float64) Point {
	return Point{X: b.X + b.Width*fx, Y: b.Y + b.Height*fy}
}

// Contains reports whether p lies inside the box (edges inclusive).
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.0f,%.0f %.0fx%.0f]", b.X, b.Y, b.Width, b.Height)
}
