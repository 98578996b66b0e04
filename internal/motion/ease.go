package motion

import (
	"time"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// EaseInOutQuad maps t in [0,1] onto an accelerate-then-decelerate curve.
// Inputs outside [0,1] are clamped.
func EaseInOutQuad(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 2 * t * t
	default:
		return -1 + (4-2*t)*t
	}
}

// Eased returns a straight-line path from start to end whose progress follows
// EaseInOutQuad over duration, sampled every tick. The path has at least two
// steps and ends exactly at end.
func Eased(start, end geom.Point, duration, tick time.Duration) Path {
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	steps := int(duration/tick) + 1
	if steps < 2 {
		steps = 2
	}

	path := make(Path, steps)
	for i := range steps {
		t := float64(i) / float64(steps-1)
		pt := start.Lerp(end, EaseInOutQuad(t))
		if i == steps-1 {
			pt = end
		}
		var delay time.Duration
		if i < steps-1 {
			delay = tick
		}
		path[i] = Step{Point: pt, Delay: delay}
	}
	path[0].Point = start
	return path
}
