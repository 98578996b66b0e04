package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/input"
	"github.com/jmylchreest/farewatch/internal/logger"
)

// defaultWindowTitle matches Chrome and Chromium window titles for xdotool search.
const defaultWindowTitle = "Chrom"

// lazyExecutor builds its channel on first use, so a route without a
// challenge never touches the OS pointer. A build failure is returned from
// every call.
type lazyExecutor struct {
	channel string
	build   func(ctx context.Context) (input.Executor, error)

	mu   sync.Mutex
	exec input.Executor
	err  error
	done bool
}

func (l *lazyExecutor) get(ctx context.Context) (input.Executor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.exec, l.err = l.build(ctx)
		// A cancelled build is retried on the next call.
		l.done = ctx.Err() == nil
	}
	return l.exec, l.err
}

func (l *lazyExecutor) Channel() string { return l.channel }

func (l *lazyExecutor) MoveTo(ctx context.Context, p geom.Point) error {
	e, err := l.get(ctx)
	if err != nil {
		return err
	}
	return e.MoveTo(ctx, p)
}

func (l *lazyExecutor) Click(ctx context.Context) error {
	e, err := l.get(ctx)
	if err != nil {
		return err
	}
	return e.Click(ctx)
}

func (l *lazyExecutor) Tap(ctx context.Context, p geom.Point) error {
	e, err := l.get(ctx)
	if err != nil {
		return err
	}
	return e.Tap(ctx, p)
}

// executor returns the input channel selected by the profile, or nil for
// the passive channel.
func (r *Runner) executor(page Page) input.Executor {
	switch r.profile.Channel {
	case config.ChannelVirtual:
		return &lazyExecutor{channel: input.ChannelVirtual, build: func(ctx context.Context) (input.Executor, error) {
			return r.virtual(ctx, page), nil
		}}
	case config.ChannelPhysical:
		return &lazyExecutor{channel: input.ChannelPhysical, build: func(ctx context.Context) (input.Executor, error) {
			return r.physical(ctx, page)
		}}
	default:
		return nil
	}
}

func (r *Runner) virtual(ctx context.Context, page Page) *input.Virtual {
	viewport, err := page.Viewport(ctx)
	if err != nil || viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = geom.Size{Width: r.profile.Window.Width, Height: r.profile.Window.Height}
		logger.DebugContext(ctx, "viewport unavailable, using window size", "size", fmt.Sprintf("%dx%d", viewport.Width, viewport.Height), "error", err)
	}
	opts := []input.VirtualOption{input.WithVirtualSleep(r.sleep)}
	if r.planner != nil {
		opts = append(opts, input.WithVirtualPlanner(r.planner))
	}
	return input.NewVirtual(page, viewport, opts...)
}

func (r *Runner) physical(ctx context.Context, page Page) (*input.Physical, error) {
	pointer, err := r.pointer()
	if err != nil {
		return nil, err
	}
	origin, err := r.screenOrigin(ctx, page, pointer)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "physical channel ready", "origin", origin.String(), "mode", r.profile.Origin.Mode)

	opts := []input.PhysicalOption{input.WithPhysicalSleep(r.sleep)}
	if r.planner != nil {
		opts = append(opts, input.WithPhysicalPlanner(r.planner))
	}
	return input.NewPhysical(pointer, origin, opts...)
}

// screenOrigin registers where the page sits on screen, per the profile's
// origin mode.
func (r *Runner) screenOrigin(ctx context.Context, page Page, pointer OSPointer) (geom.ScreenOrigin, error) {
	o := r.profile.Origin
	switch o.Mode {
	case config.OriginFixed:
		return geom.NewScreenOrigin(o.X, o.Y), nil
	case config.OriginWindow:
		title := o.WindowTitle
		if title == "" {
			title = defaultWindowTitle
		}
		return pointer.WindowOrigin(ctx, title, geom.Pt(float64(o.X), float64(o.Y)))
	default:
		origin, err := page.Origin(ctx)
		if err != nil {
			return geom.ScreenOrigin{}, fmt.Errorf("%w: %w", input.ErrOriginNotRegistered, err)
		}
		return origin, nil
	}
}
