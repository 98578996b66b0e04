// Package locator finds the on-page position of a challenge widget.
//
// Two strategies exist: Structural queries the rendered document, Visual
// searches a screenshot for a small checkbox-like square. Both report boxes
// in page-local CSS pixels.
package locator

import (
	"context"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// Result is the outcome of a locate call: either a box or nothing.
type Result struct {
	found    bool
	box      geom.BoundingBox
	strategy string
}

// Found returns a positive result. A box with non-positive size is treated as
// not found.
func Found(box geom.BoundingBox, strategy string) Result {
	if !box.Valid() {
		return NotFound()
	}
	return Result{found: true, box: box, strategy: strategy}
}

// NotFound returns the empty result.
func NotFound() Result {
	return Result{}
}

// OK reports whether a target was found.
func (r Result) OK() bool { return r.found }

// Box returns the located bounding box. It is the zero box when !OK().
func (r Result) Box() geom.BoundingBox { return r.box }

// Strategy names the strategy that produced the result.
func (r Result) Strategy() string { return r.strategy }

// Target returns the point to click inside the box.
func (r Result) Target(a Anchor) geom.Point {
	return r.box.Anchor(a.X, a.Y)
}

// Anchor is a click position expressed as fractions of a box's size.
type Anchor struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
}

// CenterAnchor is the middle of the box.
var CenterAnchor = Anchor{X: 0.5, Y: 0.5}

// Strategy is one way of locating the target.
type Strategy interface {
	Name() string
	Locate(ctx context.Context) (Result, error)
}
