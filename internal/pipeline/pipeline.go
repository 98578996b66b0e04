// Package pipeline runs a fare check: for each route it opens a page, gets
// past the challenge, waits for listings and extracts the offers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/farewatch/internal/browser"
	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/clock"
	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/extract"
	"github.com/jmylchreest/farewatch/internal/history"
	"github.com/jmylchreest/farewatch/internal/locator"
	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/internal/metrics"
	"github.com/jmylchreest/farewatch/internal/motion"
	"github.com/jmylchreest/farewatch/internal/poller"
	"github.com/jmylchreest/farewatch/pkg/fares"
)

// Runner checks routes one after another.
type Runner struct {
	cfg      *config.Config
	profile  config.Profile
	detector *challenge.Detector
	engine   *extract.Engine

	opener    Opener
	clearance Clearer
	pointer   PointerFactory
	metrics   *metrics.Recorder
	history   *history.Store
	planner   *motion.Planner
	sleep     clock.SleepFunc
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithOpener replaces the browser.
func WithOpener(o Opener) Option {
	return func(r *Runner) { r.opener = o }
}

// WithClearance sets the pre-clearance service. It overrides the
// clearance section of the config.
func WithClearance(c Clearer) Option {
	return func(r *Runner) { r.clearance = c }
}

// WithPointer replaces the OS pointer used by the physical channel.
func WithPointer(f PointerFactory) Option {
	return func(r *Runner) { r.pointer = f }
}

// WithMetrics records every route check.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithHistory makes Run append each record to store.
func WithHistory(store *history.Store) Option {
	return func(r *Runner) { r.history = store }
}

// WithPlanner sets the motion planner shared by the input channels.
func WithPlanner(p *motion.Planner) Option {
	return func(r *Runner) { r.planner = p }
}

// WithSleep replaces every wait in the pipeline.
func WithSleep(s clock.SleepFunc) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner for the active profile of cfg.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	profile, err := cfg.ActiveProfile()
	if err != nil {
		return nil, err
	}
	engine, err := extract.New(cfg.Selectors, cfg.Search.Currency)
	if err != nil {
		return nil, fmt.Errorf("selectors: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		profile:  profile,
		detector: challenge.NewDetector(cfg.Challenge.Signatures),
		engine:   engine,
		opener:   BrowserOpener{Browser: cfg.Browser},
		pointer:  XdotoolPointer,
		sleep:    clock.Sleep,
		now:      time.Now,
	}
	if cfg.Clearance.Enabled {
		r.clearance = browser.NewClearance(cfg.Clearance.URL, cfg.Clearance.Timeout)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Profile returns the profile the runner uses.
func (r *Runner) Profile() config.Profile {
	return r.profile
}

// Run checks every configured route and appends the record to the history
// store, if one is set. The record is returned even when saving fails.
func (r *Runner) Run(ctx context.Context) (fares.CheckRecord, error) {
	rec := r.CheckAll(ctx, r.cfg.Routes)
	if r.history == nil {
		return rec, nil
	}
	if err := r.history.Append(rec); err != nil {
		return rec, fmt.Errorf("saving history: %w", err)
	}
	logger.InfoContext(ctx, "history updated", "path", r.history.Path(), "format", r.history.Format())
	return rec, nil
}

// CheckAll checks routes sequentially under one run id. Routes left over
// after ctx ends are reported with the context error.
func (r *Runner) CheckAll(ctx context.Context, routes []fares.Route) fares.CheckRecord {
	runID := uuid.NewString()
	ctx = logger.WithAttrs(ctx, "run", runID[:8])
	logger.InfoContext(ctx, "fare check started", "routes", len(routes), "profile", r.cfg.Profile, "channel", r.profile.Channel)

	results := make([]fares.RouteResult, 0, len(routes))
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			res := fares.NewRouteResult(route, r.now())
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		results = append(results, r.CheckRoute(ctx, route))
	}

	rec := fares.NewCheckRecord(r.now(), results)
	r.metrics.ObserveRun(r.now())
	logger.InfoContext(ctx, "fare check finished", "routes", len(results))
	return rec
}

// CheckRoute runs the whole flow for one route. Recoverable problems leave
// the offers empty; only faults that stop the check fill in Error.
func (r *Runner) CheckRoute(ctx context.Context, route fares.Route) fares.RouteResult {
	start := r.now()
	res := fares.NewRouteResult(route, start)
	ctx = logger.WithAttrs(ctx, "route", route.Label(), "date", route.Date)
	defer func() {
		r.metrics.ObserveRoute(res, r.now().Sub(start))
		logRoute(ctx, res)
	}()

	if err := r.checkRoute(ctx, route, &res); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (r *Runner) checkRoute(ctx context.Context, route fares.Route, res *fares.RouteResult) error {
	url := r.cfg.Search.URL(route)
	logger.DebugContext(ctx, "checking route", "url", url)

	page, err := r.opener.Open(ctx, r.profile)
	if err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	defer page.Close()

	r.clear(ctx, page, url)

	if err := page.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, browser.ErrNavigation) {
			return err
		}
		// Challenge pages often never fire the load event.
		logger.WarnContext(ctx, "navigation incomplete, continuing with the page as loaded", "error", err)
	}
	if err := r.sleep(ctx, r.profile.Settle); err != nil {
		return err
	}
	r.dump(ctx, page, route, "initial")

	outcome := r.resolver(page).Resolve(ctx)
	res.Challenge = outcome.State.String()
	if outcome.IsCancelled() {
		return outcome.Err
	}
	if outcome.Err != nil {
		logger.WarnContext(ctx, "challenge not cleared, trying the search anyway", "state", res.Challenge, "error", outcome.Err)
		r.dump(ctx, page, route, "challenge")
	}

	r.dismissPopups(ctx, page)
	if err := r.triggerSearch(ctx, page); err != nil {
		return err
	}

	report, err := r.poller(ctx, page).Poll(ctx)
	if err != nil {
		return err
	}
	if !report.Found {
		logger.WarnContext(ctx, "no listings appeared",
			"error", report.Err,
			"attempts", report.Attempts,
			"refreshes", report.Refreshes,
			"no_results", report.Last.NoResults)
		r.dump(ctx, page, route, "no_content")
	} else if err := r.expand(ctx, page); err != nil {
		return err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("reading results: %w", err)
	}
	offers, err := r.engine.Extract(html)
	if err != nil {
		return fmt.Errorf("extracting offers: %w", err)
	}
	res.SetOffers(offers)
	return nil
}

// clear installs pre-clearance cookies. Failures only lose the head start.
func (r *Runner) clear(ctx context.Context, page Page, url string) {
	if r.clearance == nil {
		return
	}
	grant, err := r.clearance.Solve(ctx, url)
	if err != nil {
		logger.WarnContext(ctx, "pre-clearance failed, continuing without cookies", "error", err)
		return
	}
	if err := page.SetCookies(ctx, grant.Cookies); err != nil {
		logger.WarnContext(ctx, "installing clearance cookies failed", "error", err)
	}
}

func (r *Runner) resolver(page Page) *challenge.Resolver {
	opts := []challenge.Option{
		challenge.WithConfig(r.cfg.Challenge.Resolver),
		challenge.WithSleep(r.sleep),
		challenge.WithStrategies(r.strategies(page)...),
	}
	if exec := r.executor(page); exec != nil {
		opts = append(opts, challenge.WithExecutor(exec))
	}
	return challenge.NewResolver(r.detector, page, opts...)
}

func (r *Runner) strategies(page Page) []locator.Strategy {
	var out []locator.Strategy
	for _, name := range r.profile.Strategies {
		switch name {
		case config.StrategyStructural:
			out = append(out, locator.NewStructural(page, r.cfg.Challenge.Structural))
		case config.StrategyVisual:
			out = append(out, locator.NewScreenshot(page, locator.NewVisual(r.cfg.Challenge.Visual)))
		}
	}
	return out
}

func (r *Runner) poller(ctx context.Context, page Page) *poller.Poller {
	probe := poller.ProbeFunc(func(ctx context.Context) (poller.Signals, error) {
		html, err := page.HTML(ctx)
		if err != nil {
			return poller.Signals{}, err
		}
		sig, err := r.engine.Signals(html)
		if err != nil {
			return poller.Signals{}, err
		}
		return poller.Signals{Listings: sig.Listings, NoResults: sig.NoResults, Loading: sig.Loading}, nil
	})
	refresh := poller.RefreshFunc(func(ctx context.Context) error {
		if err := page.Reload(ctx); err != nil {
			return err
		}
		return r.triggerSearch(ctx, page)
	})
	return poller.New(probe, refresh, r.cfg.Poller,
		poller.WithSleep(r.sleep),
		poller.WithClock(r.now),
		poller.WithObserver(func(a poller.Attempt, s poller.Signals) {
			logger.DebugContext(ctx, "content poll",
				"attempt", fmt.Sprintf("%d/%d", a.Index, a.MaxAttempts),
				"listings", s.Listings,
				"no_results", s.NoResults,
				"loading", s.Loading)
		}))
}

func logRoute(ctx context.Context, res fares.RouteResult) {
	switch {
	case !res.OK():
		logger.ErrorContext(ctx, "route check failed", "error", res.Error, "challenge", res.Challenge)
	case res.Cheapest != nil:
		logger.InfoContext(ctx, "route checked",
			"offers", len(res.Flights),
			"cheapest", res.Cheapest.Price,
			"currency", res.Cheapest.Currency,
			"depart", res.Cheapest.DepartTime,
			"challenge", res.Challenge)
	default:
		logger.InfoContext(ctx, "route checked, no flights found", "challenge", res.Challenge)
	}
}
