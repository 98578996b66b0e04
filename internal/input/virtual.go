package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmylchreest/farewatch/internal/clock"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/internal/motion"
)

// Mouse dispatches synthetic pointer events inside the page.
type Mouse interface {
	MouseMove(ctx context.Context, p geom.Point) error
	MouseDown(ctx context.Context, p geom.Point) error
	MouseUp(ctx context.Context, p geom.Point) error
}

// startMargin keeps the random initial pointer position away from the edges.
const startMargin = 100

// Virtual moves the browser's synthetic pointer along planned curves.
type Virtual struct {
	mouse   Mouse
	planner *motion.Planner
	timing  motion.Timing
	steps   int
	sleep   clock.SleepFunc

	mu  sync.Mutex
	pos geom.Point
}

// VirtualOption configures a Virtual executor.
type VirtualOption func(*Virtual)

// WithVirtualPlanner sets the motion planner.
func WithVirtualPlanner(p *motion.Planner) VirtualOption {
	return func(v *Virtual) { v.planner = p }
}

// WithVirtualTiming sets the click pauses.
func WithVirtualTiming(t motion.Timing) VirtualOption {
	return func(v *Virtual) { v.timing = t }
}

// WithSteps sets the number of points per movement.
func WithSteps(n int) VirtualOption {
	return func(v *Virtual) { v.steps = n }
}

// WithVirtualSleep replaces the wait function.
func WithVirtualSleep(s clock.SleepFunc) VirtualOption {
	return func(v *Virtual) { v.sleep = s }
}

// NewVirtual creates a virtual executor. The pointer starts at a random point
// of the viewport.
func NewVirtual(mouse Mouse, viewport geom.Size, opts ...VirtualOption) *Virtual {
	v := &Virtual{
		mouse:   mouse,
		planner: motion.NewPlanner(),
		timing:  motion.DefaultTiming(),
		steps:   motion.DefaultSteps,
		sleep:   clock.Sleep,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.pos = v.planner.PointIn(viewport, startMargin)
	return v
}

// Channel implements Executor.
func (v *Virtual) Channel() string { return ChannelVirtual }

// Position returns the tracked pointer position.
func (v *Virtual) Position() geom.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

// MoveTo implements Executor.
func (v *Virtual) MoveTo(ctx context.Context, p geom.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.moveTo(ctx, p)
}

// Click implements Executor.
func (v *Virtual) Click(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.click(ctx)
}

// Tap implements Executor.
func (v *Virtual) Tap(ctx context.Context, p geom.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.moveTo(ctx, p); err != nil {
		return err
	}
	return v.click(ctx)
}

func (v *Virtual) moveTo(ctx context.Context, p geom.Point) error {
	path := v.planner.Plan(v.pos, p, v.steps)
	logger.DebugContext(ctx, "virtual pointer move", "from", v.pos.String(), "to", p.String(), "steps", len(path))

	for _, step := range path {
		if err := v.mouse.MouseMove(ctx, step.Point); err != nil {
			return fmt.Errorf("mouse move: %w", err)
		}
		v.pos = step.Point
		if err := v.sleep(ctx, step.Delay); err != nil {
			return err
		}
	}
	return nil
}

func (v *Virtual) click(ctx context.Context) error {
	pauses := v.planner.Click(v.timing)

	if err := v.sleep(ctx, pauses.PreClick); err != nil {
		return err
	}
	if err := v.mouse.MouseDown(ctx, v.pos); err != nil {
		return fmt.Errorf("mouse down: %w", err)
	}
	if err := v.sleep(ctx, pauses.Hold); err != nil {
		// Never leave the button pressed.
		_ = v.mouse.MouseUp(context.WithoutCancel(ctx), v.pos)
		return err
	}
	if err := v.mouse.MouseUp(ctx, v.pos); err != nil {
		return fmt.Errorf("mouse up: %w", err)
	}
	logger.DebugContext(ctx, "virtual click", "at", v.pos.String(), "hold", pauses.Hold)
	return v.sleep(ctx, pauses.PostClick)
}
