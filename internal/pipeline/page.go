package pipeline

import (
	"context"
	"time"

	"github.com/jmylchreest/farewatch/internal/browser"
	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/input"
	"github.com/jmylchreest/farewatch/internal/locator"
)

// Page is the rendered search page a route check works on.
type Page interface {
	challenge.SnapshotSource
	locator.Evaluator
	locator.Capturer
	input.Mouse

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	PressKey(ctx context.Context, key string) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Viewport(ctx context.Context) (geom.Size, error)
	Origin(ctx context.Context) (geom.ScreenOrigin, error)
	SetCookies(ctx context.Context, cookies []browser.Cookie) error
	Close()
}

var _ Page = (*browser.Session)(nil)

// Opener starts a page for a profile.
type Opener interface {
	Open(ctx context.Context, profile config.Profile) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, profile config.Profile) (Page, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, profile config.Profile) (Page, error) {
	return f(ctx, profile)
}

// BrowserOpener opens chromedp sessions.
type BrowserOpener struct {
	Browser config.Browser
}

// Open implements Opener.
func (o BrowserOpener) Open(ctx context.Context, p config.Profile) (Page, error) {
	s, err := browser.Open(ctx, SessionOptions(o.Browser, p))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SessionOptions merges the shared browser settings with a profile.
func SessionOptions(b config.Browser, p config.Profile) browser.Options {
	return browser.Options{
		Headless:          p.Headless,
		X:                 p.Window.X,
		Y:                 p.Window.Y,
		Width:             p.Window.Width,
		Height:            p.Window.Height,
		UserAgent:         b.UserAgent,
		Locale:            b.Locale,
		Timezone:          b.Timezone,
		Stealth:           p.Stealth,
		ChromePath:        b.ChromePath,
		NavigationTimeout: b.NavigationTimeout,
	}
}

// Clearer obtains pre-clearance cookies for a URL.
type Clearer interface {
	Solve(ctx context.Context, url string) (browser.Grant, error)
}

// OSPointer is the operating system pointer used by the physical channel.
type OSPointer interface {
	input.Pointer
	WindowOrigin(ctx context.Context, name string, contentOffset geom.Point) (geom.ScreenOrigin, error)
}

// PointerFactory connects to the OS pointer.
type PointerFactory func() (OSPointer, error)

// XdotoolPointer is the default PointerFactory.
func XdotoolPointer() (OSPointer, error) {
	x, err := input.NewXdotool()
	if err != nil {
		return nil, err
	}
	return x, nil
}
