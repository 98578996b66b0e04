package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/farewatch/internal/clock"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/input"
	"github.com/jmylchreest/farewatch/internal/locator"
	"github.com/jmylchreest/farewatch/internal/logger"
)

// Config tunes a Resolver.
type Config struct {
	// Settle is the pause between the click and the first completion check.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
	// PollInterval is the pause between completion checks.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Timeout bounds the completion wait. The number of checks is
	// Timeout/PollInterval rounded up, at least one.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Anchor picks the click point inside a located box.
	Anchor locator.Anchor `mapstructure:"anchor" yaml:"anchor"`
}

// DefaultConfig returns the resolver timings.
func DefaultConfig() Config {
	return Config{
		Settle:       3 * time.Second,
		PollInterval: time.Second,
		Timeout:      30 * time.Second,
		Anchor:       locator.CenterAnchor,
	}
}

// MaxPolls returns the number of completion checks implied by the config.
func (c Config) MaxPolls() int {
	if c.PollInterval <= 0 {
		return 1
	}
	n := int((c.Timeout + c.PollInterval - 1) / c.PollInterval)
	return max(n, 1)
}

// Outcome is the result of one Resolve call.
type Outcome struct {
	State State
	// Signal is the token kind that identified the challenge.
	Signal Signal
	// Strategy names the locator that found the widget, if any.
	Strategy string
	// Target is the page-local point that was clicked.
	Target geom.Point
	// Polls is the number of completion checks performed.
	Polls int
	// Err explains a non-clear terminal state. It is nil for Absent and Resolved.
	Err error
}

// Attempted reports whether bypass input was sent.
func (o Outcome) Attempted() bool {
	return o.Strategy != ""
}

// Resolver performs at most one bypass attempt per Resolve call.
type Resolver struct {
	detector   *Detector
	source     SnapshotSource
	strategies []locator.Strategy
	exec       input.Executor
	cfg        Config
	sleep      clock.SleepFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies sets the locators, tried in order.
func WithStrategies(s ...locator.Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

// WithExecutor sets the input channel. Without one the resolver only waits
// for the challenge to clear on its own.
func WithExecutor(e input.Executor) Option {
	return func(r *Resolver) { r.exec = e }
}

// WithConfig replaces the timings.
func WithConfig(c Config) Option {
	return func(r *Resolver) { r.cfg = c }
}

// WithSleep replaces the wait function.
func WithSleep(s clock.SleepFunc) Option {
	return func(r *Resolver) { r.sleep = s }
}

// NewResolver creates a resolver reading pages from source.
func NewResolver(d *Detector, source SnapshotSource, opts ...Option) *Resolver {
	r := &Resolver{
		detector: d,
		source:   source,
		cfg:      DefaultConfig(),
		sleep:    clock.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve inspects the current page and, when a challenge is present, tries
// once to get past it. Recoverable failures are reported through
// Outcome.State and Outcome.Err; only context cancellation stops early, with
// Err set to the context error.
func (r *Resolver) Resolve(ctx context.Context) Outcome {
	signal, present := r.detector.Probe(ctx, r.source)
	if !present {
		return Outcome{State: Absent}
	}

	out := Outcome{State: Detected, Signal: signal}
	logger.InfoContext(ctx, "challenge detected", "signal", string(signal))

	if r.exec == nil {
		logger.InfoContext(ctx, "no input channel, waiting for challenge to clear")
		return r.awaitClear(ctx, out, 0)
	}

	res, err := r.locate(ctx)
	if err != nil {
		out.Err = err
		return out
	}
	if !res.OK() {
		out.Err = ErrLocationFailed
		logger.WarnContext(ctx, "challenge widget not found, continuing without bypass")
		return out
	}

	target := res.Target(r.cfg.Anchor)
	logger.InfoContext(ctx, "challenge widget located",
		"strategy", res.Strategy(), "box", res.Box().String(), "target", target.String(), "channel", r.exec.Channel())

	if err := r.exec.Tap(ctx, target); err != nil {
		out.Err = fmt.Errorf("%s tap: %w", r.exec.Channel(), err)
		logger.WarnContext(ctx, "bypass input failed", "error", out.Err)
		return out
	}

	out.State = BypassAttempted
	out.Strategy = res.Strategy()
	out.Target = target
	return r.awaitClear(ctx, out, r.cfg.Settle)
}

func (r *Resolver) locate(ctx context.Context) (locator.Result, error) {
	for _, s := range r.strategies {
		res, err := s.Locate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return locator.NotFound(), ctx.Err()
			}
			logger.DebugContext(ctx, "locator failed", "strategy", s.Name(), "error", err)
			continue
		}
		if res.OK() {
			return res, nil
		}
		logger.DebugContext(ctx, "locator found nothing", "strategy", s.Name())
	}
	return locator.NotFound(), nil
}

// awaitClear polls for the challenge to disappear. out.State is Detected in
// passive mode and BypassAttempted after input.
func (r *Resolver) awaitClear(ctx context.Context, out Outcome, settle time.Duration) Outcome {
	if err := r.sleep(ctx, settle); err != nil {
		out.Err = err
		return out
	}

	maxPolls := r.cfg.MaxPolls()
	for out.Polls < maxPolls {
		out.Polls++
		if _, present := r.detector.Probe(ctx, r.source); !present {
			if err := ctx.Err(); err != nil {
				out.Err = err
				return out
			}
			out.State = Resolved
			logger.InfoContext(ctx, "challenge cleared", "polls", out.Polls)
			return out
		}
		if out.Polls == maxPolls {
			break
		}
		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			out.Err = err
			return out
		}
	}

	out.State = TimedOut
	out.Err = ErrCompletionTimeout
	logger.WarnContext(ctx, "challenge still present after timeout", "polls", out.Polls, "timeout", r.cfg.Timeout)
	return out
}

// IsCancelled reports whether an outcome stopped because its context ended.
func (o Outcome) IsCancelled() bool {
	return errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded)
}
