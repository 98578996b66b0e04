// Package browser drives a Chrome tab through chromedp. A Session is the
// page the rest of farewatch reads from and sends synthetic input to.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/logger"
)

// ErrNavigation is returned when a page load or reload fails.
var ErrNavigation = errors.New("navigation failed")

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a Session.
type Options struct {
	Headless bool
	// X, Y, Width and Height place the browser window on screen.
	X, Y          int
	Width, Height int
	UserAgent     string
	Locale        string
	Timezone      string
	// Stealth injects StealthScript and the anti-automation flags.
	Stealth    bool
	ChromePath string
	// NavigationTimeout bounds Navigate and Reload.
	NavigationTimeout time.Duration
}

// DefaultOptions returns a headless 1280x720 window in the Bangkok timezone.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		X:                 100,
		Y:                 100,
		Width:             1280,
		Height:            720,
		UserAgent:         DefaultUserAgent,
		Locale:            "en-GB",
		Timezone:          "Asia/Bangkok",
		Stealth:           true,
		NavigationTimeout: 60 * time.Second,
	}
}

// Session is one browser with one tab.
type Session struct {
	opts        Options
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// Open launches Chrome and prepares a tab with the emulation settings in opts.
// ctx bounds the launch only; the session lives until Close.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
	}))

	s := &Session{
		opts:        opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	runCtx, done := s.scope(ctx, 0)
	defer done()
	if err := chromedp.Run(runCtx, s.setup()...); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	logger.Debug("browser session opened",
		"headless", opts.Headless,
		"window", fmt.Sprintf("%dx%d+%d+%d", opts.Width, opts.Height, opts.X, opts.Y),
		"stealth", opts.Stealth,
		"locale", opts.Locale,
		"timezone", opts.Timezone)
	return s, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	all := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.Stealth {
		all = append(all, stealthFlags()...)
	}
	all = append(all,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.Flag("window-position", fmt.Sprintf("%d,%d", opts.X, opts.Y)),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.Locale != "" {
		all = append(all, chromedp.Flag("lang", opts.Locale))
	}

	chromePath := opts.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		all = append(all, chromedp.ExecPath(chromePath))
	}
	return all
}

func (s *Session) setup() []chromedp.Action {
	var actions []chromedp.Action
	if s.opts.Headless {
		// Screenshot pixels equal CSS pixels only with a device scale factor of 1.
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(s.opts.Width), int64(s.opts.Height), 1, false))
	}
	if s.opts.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(s.opts.Timezone))
	}
	if s.opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(s.opts.Locale))
	}
	if s.opts.Stealth {
		script := StealthScript(s.opts.Locale)
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	return actions
}

// scope derives a context on the tab that ends when ctx ends or timeout
// passes. Cancelling it does not close the tab.
func (s *Session) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		prev := cancel
		cancel = func() { cancelTimeout(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done := s.scope(ctx, 0)
	defer done()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, done := s.scope(ctx, s.opts.NavigationTimeout)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	logger.DebugContext(ctx, "navigated", "url", url)
	return nil
}

// Reload reloads the current page.
func (s *Session) Reload(ctx context.Context) error {
	runCtx, done := s.scope(ctx, s.opts.NavigationTimeout)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("%w: reload: %v", ErrNavigation, err)
	}
	return nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

// URL returns the current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// HTML returns the serialized document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return html, nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// Evaluate runs script and decodes its JSON result into out. out may be nil.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// MouseMove dispatches a synthetic pointer move to page-local p.
func (s *Session) MouseMove(ctx context.Context, p geom.Point) error {
	return s.dispatch(ctx, input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y))
}

// MouseDown presses the left button at p.
func (s *Session) MouseDown(ctx context.Context, p geom.Point) error {
	return s.dispatch(ctx, input.DispatchMouseEvent(input.MousePressed, p.X, p.Y).
		WithButton(input.Left).
		WithButtons(1).
		WithClickCount(1))
}

// MouseUp releases the left button at p.
func (s *Session) MouseUp(ctx context.Context, p geom.Point) error {
	return s.dispatch(ctx, input.DispatchMouseEvent(input.MouseReleased, p.X, p.Y).
		WithButton(input.Left).
		WithClickCount(1))
}

func (s *Session) dispatch(ctx context.Context, ev *input.DispatchMouseEventParams) error {
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return ev.Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("mouse %s: %w", ev.Type, err)
	}
	return nil
}

// PressKey sends a key press, e.g. kb.Escape.
func (s *Session) PressKey(ctx context.Context, key string) error {
	if err := s.run(ctx, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("key press: %w", err)
	}
	return nil
}

// Click waits up to timeout for selector to become visible and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, done := s.scope(ctx, timeout)
	defer done()
	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

// Viewport returns the inner size of the window in CSS pixels.
func (s *Session) Viewport(ctx context.Context) (geom.Size, error) {
	var size geom.Size
	if err := s.Evaluate(ctx, viewportScript, &size); err != nil {
		return geom.Size{}, err
	}
	return size, nil
}

// Origin estimates where the page's top-left corner sits on screen from the
// window position and the size of the browser chrome.
func (s *Session) Origin(ctx context.Context) (geom.ScreenOrigin, error) {
	var o struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := s.Evaluate(ctx, originScript, &o); err != nil {
		return geom.ScreenOrigin{}, err
	}
	return geom.NewScreenOrigin(int(o.X), int(o.Y)), nil
}

const viewportScript = `({width: window.innerWidth, height: window.innerHeight})`

// The side borders are assumed equal; whatever remains above the page is
// toolbar.
const originScript = `(() => {
	const border = Math.max(0, (window.outerWidth - window.innerWidth) / 2);
	const top = Math.max(0, window.outerHeight - window.innerHeight - border);
	return {x: window.screenX + border, y: window.screenY + top};
})()`

// Cookie is a browser cookie to install before navigation.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

// SetCookies installs cookies in the tab.
func (s *Session) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(cmpPath(c.Path)).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if !c.Expires.IsZero() {
				exp := cdp.TimeSinceEpoch(c.Expires)
				params = params.WithExpires(&exp)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("setting cookies: %w", err)
	}
	logger.DebugContext(ctx, "cookies installed", "count", len(cookies))
	return nil
}

func cmpPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// Close shuts the tab and the browser. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
	})
}
