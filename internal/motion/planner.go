// Package motion synthesizes human-like pointer trajectories and click timing.
package motion

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// DefaultSteps is the number of points in a planned path when none is given.
const DefaultSteps = 20

// Step is one point of a path and the pause to take after moving to it.
type Step struct {
	Point geom.Point
	Delay time.Duration
}

// Path is an ordered trajectory. A planned path always has at least two steps,
// the first at the start point and the last at the end point.
type Path []Step

// Start returns the first point, or the zero point for an empty path.
func (p Path) Start() geom.Point {
	if len(p) == 0 {
		return geom.Point{}
	}
	return p[0].Point
}

// End returns the last point, or the zero point for an empty path.
func (p Path) End() geom.Point {
	if len(p) == 0 {
		return geom.Point{}
	}
	return p[len(p)-1].Point
}

// Duration returns the sum of all step delays.
func (p Path) Duration() time.Duration {
	var d time.Duration
	for _, s := range p {
		d += s.Delay
	}
	return d
}

// Range is an inclusive duration interval sampled uniformly.
type Range struct {
	Min time.Duration `mapstructure:"min" yaml:"min" json:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max" json:"max"`
}

// Contains reports whether d lies in the range.
func (r Range) Contains(d time.Duration) bool {
	return d >= r.Min && d <= r.Max
}

// Config holds the tunable constants of the planner.
type Config struct {
	// Jitter is the maximum absolute offset, per axis, applied to each control point.
	Jitter float64
	// FastShare is the fraction of the path that uses FastDelay; the rest uses SlowDelay.
	FastShare float64
	FastDelay Range
	SlowDelay Range
	Timing    Timing
}

// DefaultConfig returns the planner settings used in production.
func DefaultConfig() Config {
	return Config{
		Jitter:    50,
		FastShare: 0.75,
		FastDelay: Range{Min: 5 * time.Millisecond, Max: 15 * time.Millisecond},
		SlowDelay: Range{Min: 20 * time.Millisecond, Max: 40 * time.Millisecond},
		Timing:    DefaultTiming(),
	}
}

// Planner generates paths and click timings. It is safe for concurrent use.
type Planner struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Planner.
type Option func(*Planner)

// WithConfig replaces the planner constants.
func WithConfig(cfg Config) Option {
	return func(p *Planner) {
		p.cfg = cfg
	}
}

// WithSeed makes the planner deterministic. Intended for tests.
func WithSeed(seed uint64) Option {
	return func(p *Planner) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewPlanner creates a planner seeded from the runtime's random source.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		cfg: DefaultConfig(),
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the planner constants.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan returns a cubic Bézier path from start to end with steps points.
// Values below 2 are raised to 2. Control points sit at 30% and 70% of the
// straight segment, each displaced by up to Jitter pixels per axis. Every
// call draws fresh randomness.
func (p *Planner) Plan(start, end geom.Point, steps int) Path {
	if steps < 2 {
		steps = 2
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c1 := start.Lerp(end, 0.3).Add(p.jitter())
	c2 := start.Lerp(end, 0.7).Add(p.jitter())

	fast := int(float64(steps) * p.cfg.FastShare)
	path := make(Path, steps)
	for i := range steps {
		t := float64(i) / float64(steps-1)
		pt := bezier(start, c1, c2, end, t)
		switch i {
		case 0:
			pt = start
		case steps - 1:
			pt = end
		}

		delay := p.cfg.SlowDelay
		if i < fast {
			delay = p.cfg.FastDelay
		}
		path[i] = Step{Point: pt, Delay: p.between(delay)}
	}
	return path
}

// Between samples a duration uniformly from r.
func (p *Planner) Between(r Range) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.between(r)
}

// PointIn returns a uniformly random point inside the given size, keeping
// margin pixels away from each edge. If the size is too small for the
// margin the center is returned.
func (p *Planner) PointIn(size geom.Size, margin float64) geom.Point {
	w, h := float64(size.Width), float64(size.Height)
	if w-2*margin <= 0 || h-2*margin <= 0 {
		return geom.Pt(w/2, h/2)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return geom.Pt(
		margin+p.rng.Float64()*(w-2*margin),
		margin+p.rng.Float64()*(h-2*margin),
	)
}

func (p *Planner) jitter() geom.Point {
	j := p.cfg.Jitter
	return geom.Pt((p.rng.Float64()*2-1)*j, (p.rng.Float64()*2-1)*j)
}

func (p *Planner) between(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(p.rng.Int64N(int64(r.Max-r.Min)+1))
}

func bezier(p0, p1, p2, p3 geom.Point, t float64) geom.Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return geom.Pt(
		a*p0.X+b*p1.X+c*p2.X+d*p3.X,
		a*p0.Y+b*p1.Y+c*p2.Y+d*p3.Y,
	)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b geom.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
