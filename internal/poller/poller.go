// Package poller waits for search results to render, refreshing the page when
// the content stagnates.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/farewatch/internal/clock"
	"github.com/jmylchreest/farewatch/internal/logger"
)

// ErrContentTimeout is reported when every attempt ran without content.
var ErrContentTimeout = errors.New("content did not appear")

// Signals is what one probe of the page observed.
type Signals struct {
	Listings  int
	NoResults bool
	Loading   bool
}

// Probe reads the current page signals.
type Probe interface {
	Signals(ctx context.Context) (Signals, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (Signals, error)

// Signals implements Probe.
func (f ProbeFunc) Signals(ctx context.Context) (Signals, error) { return f(ctx) }

// Refresher reloads the page and re-triggers the search.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

// Refresh implements Refresher.
func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Config bounds the polling loop.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	// RefreshAt is the attempt index that triggers a stagnation refresh. Zero disables it.
	RefreshAt int `mapstructure:"refresh_at" yaml:"refresh_at" validate:"gte=0"`
	// RefreshOnNoResults also refreshes when the page says there are no results.
	RefreshOnNoResults bool `mapstructure:"refresh_on_no_results" yaml:"refresh_on_no_results"`
	// MaxRefreshes caps refreshes per Poll call.
	MaxRefreshes int `mapstructure:"max_refreshes" yaml:"max_refreshes" validate:"gte=0"`
}

// DefaultConfig returns twelve attempts five seconds apart with a refresh at
// the sixth.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        12,
		Interval:           5 * time.Second,
		RefreshAt:          6,
		RefreshOnNoResults: true,
		MaxRefreshes:       3,
	}
}

// Attempt describes one iteration of the loop.
type Attempt struct {
	Index       int
	MaxAttempts int
	Elapsed     time.Duration
}

// Last reports whether this is the final attempt.
func (a Attempt) Last() bool {
	return a.Index >= a.MaxAttempts
}

// Report is the terminal outcome of Poll.
type Report struct {
	Found     bool
	Attempts  int
	Refreshes int
	Elapsed   time.Duration
	// Last holds the signals of the final successful probe.
	Last Signals
	// Err is ErrContentTimeout when Found is false.
	Err error
}

// Poller runs the bounded wait.
type Poller struct {
	probe   Probe
	refresh Refresher
	cfg     Config
	sleep   clock.SleepFunc
	now     func() time.Time
	observe func(Attempt, Signals)
}

// Option configures a Poller.
type Option func(*Poller)

// WithSleep replaces the wait function.
func WithSleep(s clock.SleepFunc) Option {
	return func(p *Poller) { p.sleep = s }
}

// WithClock replaces the time source used for Elapsed.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithObserver is called after every successful probe.
func WithObserver(fn func(Attempt, Signals)) Option {
	return func(p *Poller) { p.observe = fn }
}

// New creates a poller. refresh may be nil, in which case no refresh happens.
func New(probe Probe, refresh Refresher, cfg Config, opts ...Option) *Poller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	p := &Poller{
		probe:   probe,
		refresh: refresh,
		cfg:     cfg,
		sleep:   clock.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll waits up to MaxAttempts intervals for listings. Running out of
// attempts is not an error: the report carries ErrContentTimeout instead.
// The returned error is non-nil only when ctx ends.
func (p *Poller) Poll(ctx context.Context) (Report, error) {
	start := p.now()
	var rep Report

	for i := 1; i <= p.cfg.MaxAttempts; i++ {
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			rep.Elapsed = p.now().Sub(start)
			return rep, err
		}
		rep.Attempts = i
		att := Attempt{Index: i, MaxAttempts: p.cfg.MaxAttempts, Elapsed: p.now().Sub(start)}

		sig, err := p.probe.Signals(ctx)
		if err != nil {
			if ctx.Err() != nil {
				rep.Elapsed = p.now().Sub(start)
				return rep, ctx.Err()
			}
			logger.WarnContext(ctx, "content probe failed", "attempt", i, "error", err)
		} else {
			rep.Last = sig
			if p.observe != nil {
				p.observe(att, sig)
			}
			logger.DebugContext(ctx, "content probe",
				"attempt", i, "of", p.cfg.MaxAttempts,
				"listings", sig.Listings, "no_results", sig.NoResults, "loading", sig.Loading)
			if sig.Listings > 0 {
				rep.Found = true
				rep.Elapsed = p.now().Sub(start)
				return rep, nil
			}
		}

		if p.shouldRefresh(att, sig, rep.Refreshes) {
			rep.Refreshes++
			logger.InfoContext(ctx, "content stalled, refreshing", "attempt", i, "refresh", rep.Refreshes)
			if err := p.refresh.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					rep.Elapsed = p.now().Sub(start)
					return rep, ctx.Err()
				}
				logger.WarnContext(ctx, "refresh failed, continuing", "error", err)
			}
		}
	}

	rep.Elapsed = p.now().Sub(start)
	rep.Err = ErrContentTimeout
	logger.WarnContext(ctx, "no content after all attempts", "attempts", rep.Attempts, "refreshes", rep.Refreshes)
	return rep, nil
}

func (p *Poller) shouldRefresh(att Attempt, sig Signals, done int) bool {
	if p.refresh == nil || att.Last() || done >= p.cfg.MaxRefreshes {
		return false
	}
	if p.cfg.RefreshAt > 0 && att.Index == p.cfg.RefreshAt {
		return true
	}
	return p.cfg.RefreshOnNoResults && sig.NoResults
}
