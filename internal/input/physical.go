package input

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jmylchreest/farewatch/internal/clock"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/internal/motion"
)

// pointerMu serializes every physical pointer operation in the process.
var pointerMu sync.Mutex

// Pointer drives the operating system's pointer in absolute screen coordinates.
type Pointer interface {
	Position(ctx context.Context) (geom.Point, error)
	MoveAbs(ctx context.Context, p geom.Point) error
	Down(ctx context.Context) error
	Up(ctx context.Context) error
}

// PhysicalConfig tunes the physical executor.
type PhysicalConfig struct {
	// MoveDuration is the length of an eased movement.
	MoveDuration time.Duration
	// Tick is the interval between pointer updates during a movement.
	Tick time.Duration
	// Settle is the pause after arriving, before the click timing starts.
	Settle motion.Range
	Timing motion.Timing
}

// DefaultPhysicalConfig returns the settings for a real pointer.
func DefaultPhysicalConfig() PhysicalConfig {
	return PhysicalConfig{
		MoveDuration: 500 * time.Millisecond,
		Tick:         10 * time.Millisecond,
		Settle:       motion.Range{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		Timing:       motion.PhysicalTiming(),
	}
}

// Physical moves the real OS pointer. Page-local targets are translated with
// the screen origin captured at construction.
type Physical struct {
	pointer Pointer
	origin  geom.ScreenOrigin
	cfg     PhysicalConfig
	planner *motion.Planner
	sleep   clock.SleepFunc
}

// PhysicalOption configures a Physical executor.
type PhysicalOption func(*Physical)

// WithPhysicalConfig replaces the physical settings.
func WithPhysicalConfig(cfg PhysicalConfig) PhysicalOption {
	return func(p *Physical) { p.cfg = cfg }
}

// WithPhysicalSleep replaces the wait function.
func WithPhysicalSleep(s clock.SleepFunc) PhysicalOption {
	return func(p *Physical) { p.sleep = s }
}

// WithPhysicalPlanner sets the source of randomized pauses.
func WithPhysicalPlanner(pl *motion.Planner) PhysicalOption {
	return func(p *Physical) { p.planner = pl }
}

// NewPhysical creates a physical executor. It fails with ErrOriginNotRegistered
// when origin is the zero value.
func NewPhysical(pointer Pointer, origin geom.ScreenOrigin, opts ...PhysicalOption) (*Physical, error) {
	if !origin.Registered() {
		return nil, ErrOriginNotRegistered
	}
	if pointer == nil {
		return nil, ErrChannelUnavailable
	}
	p := &Physical{
		pointer: pointer,
		origin:  origin,
		cfg:     DefaultPhysicalConfig(),
		planner: motion.NewPlanner(),
		sleep:   clock.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Channel implements Executor.
func (p *Physical) Channel() string { return ChannelPhysical }

// Origin returns the screen origin used for translation.
func (p *Physical) Origin() geom.ScreenOrigin { return p.origin }

// MoveScreen moves the pointer to an absolute screen point over duration.
func (p *Physical) MoveScreen(ctx context.Context, target geom.Point, duration time.Duration) error {
	pointerMu.Lock()
	defer pointerMu.Unlock()
	return p.moveScreen(ctx, target, duration)
}

// MoveTo implements Executor.
func (p *Physical) MoveTo(ctx context.Context, pt geom.Point) error {
	return p.MoveScreen(ctx, geom.PageToScreen(p.origin, pt), p.cfg.MoveDuration)
}

// Click implements Executor.
func (p *Physical) Click(ctx context.Context) error {
	pointerMu.Lock()
	defer pointerMu.Unlock()
	return p.click(ctx)
}

// Tap implements Executor. The pointer lock is held for the whole gesture.
func (p *Physical) Tap(ctx context.Context, pt geom.Point) error {
	pointerMu.Lock()
	defer pointerMu.Unlock()

	screen := geom.PageToScreen(p.origin, pt)
	logger.DebugContext(ctx, "physical tap", "page", pt.String(), "screen", screen.String(), "origin", p.origin.String())
	if err := p.moveScreen(ctx, screen, p.cfg.MoveDuration); err != nil {
		return err
	}
	return p.click(ctx)
}

func (p *Physical) moveScreen(ctx context.Context, target geom.Point, duration time.Duration) error {
	from, err := p.pointer.Position(ctx)
	if err != nil {
		return fmt.Errorf("read pointer position: %w", err)
	}
	logger.DebugContext(ctx, "moving pointer", "from", from.String(), "to", target.String(),
		"distance", math.Round(motion.Distance(from, target)))

	for _, step := range motion.Eased(from, target, duration, p.cfg.Tick) {
		if err := p.pointer.MoveAbs(ctx, step.Point); err != nil {
			return fmt.Errorf("move pointer: %w", err)
		}
		if err := p.sleep(ctx, step.Delay); err != nil {
			return err
		}
	}
	return p.sleep(ctx, p.planner.Between(p.cfg.Settle))
}

func (p *Physical) click(ctx context.Context) error {
	pauses := p.planner.Click(p.cfg.Timing)

	if err := p.sleep(ctx, pauses.PreClick); err != nil {
		return err
	}
	if err := p.pointer.Down(ctx); err != nil {
		return fmt.Errorf("button down: %w", err)
	}
	if err := p.sleep(ctx, pauses.Hold); err != nil {
		_ = p.pointer.Up(context.WithoutCancel(ctx))
		return err
	}
	if err := p.pointer.Up(ctx); err != nil {
		return fmt.Errorf("button up: %w", err)
	}
	return p.sleep(ctx, pauses.PostClick)
}
