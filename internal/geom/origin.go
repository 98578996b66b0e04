package geom

import "fmt"

// ScreenOrigin is the absolute screen position of the automated page's
// top-left corner. It is registered once per window and never changes; the
// zero value means "not registered".
type ScreenOrigin struct {
	x, y       int
	registered bool
}

// NewScreenOrigin registers an origin at screen position (x, y).
func NewScreenOrigin(x, y int) ScreenOrigin {
	return ScreenOrigin{x: x, y: y, registered: true}
}

// X returns the horizontal screen offset.
func (o ScreenOrigin) X() int { return o.x }

// Y returns the vertical screen offset.
func (o ScreenOrigin) Y() int { return o.y }

// Registered reports whether the origin was set through NewScreenOrigin.
func (o ScreenOrigin) Registered() bool { return o.registered }

func (o ScreenOrigin) String() string {
	if !o.registered {
		return "unregistered"
	}
	return fmt.Sprintf("(%d, %d)", o.x, o.y)
}

// PageToScreen maps a page-local point to absolute screen coordinates.
func PageToScreen(o ScreenOrigin, p Point) Point {
	return Point{X: float64(o.x) + p.X, Y: float64(o.y) + p.Y}
}
