package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/farewatch/internal/browser"
	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/geom"
	"github.com/jmylchreest/farewatch/internal/history"
	"github.com/jmylchreest/farewatch/internal/input"
	"github.com/jmylchreest/farewatch/pkg/fares"
)

var (
	bkkHkt = fares.Route{Origin: "BKK", Destination: "HKT", Date: "15/03/2026"}
	bkkCnx = fares.Route{Origin: "BKK", Destination: "CNX", Date: "16/03/2026"}
)

const widgetBox = `{"found":true,"x":480,"y":190,"width":300,"height":65,"source":"frame"}`

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(b)
}

// fakePage is a scripted search page. While challenged it serves the
// challenge markup; afterwards it serves the results, or a loading page when
// results is empty.
type fakePage struct {
	mu sync.Mutex

	challenged    bool
	clearOnClick  bool
	challengeHTML string
	results       string
	box           string
	clickErr      error
	navErr        error
	onExpand      func()

	navigated []string
	events    []string
	reloads   int
	cookies   []browser.Cookie
	closed    bool
}

func (p *fakePage) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.challenged {
		return "Just a moment...", nil
	}
	return "Flights BKK to HKT", nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.challenged:
		return p.challengeHTML, nil
	case p.results != "":
		return p.results, nil
	default:
		return `<html><body><div class="Loading__Spinner"></div></body></html>`, nil
	}
}

func (p *fakePage) Evaluate(_ context.Context, script string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if out == nil {
		return nil
	}
	var result string
	switch {
	case strings.Contains(script, "querySelectorAll('iframe')"):
		result = p.box
		if result == "" {
			result = `{"found":false}`
		}
	case strings.Contains(script, "screenX"):
		result = `{"x":100,"y":185}`
	case strings.Contains(script, "innerWidth"):
		result = `{"width":1280,"height":720}`
	case strings.Contains(script, "View details"):
		if p.onExpand != nil {
			p.onExpand()
		}
		result = "3"
	case strings.Contains(script, "querySelectorAll('button')"):
		result = `{"success":false}`
	default:
		result = "null"
	}
	return json.Unmarshal([]byte(result), out)
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return []byte("not a png"), nil
}

func (p *fakePage) record(ev string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePage) MouseMove(context.Context, geom.Point) error {
	p.record("move")
	return nil
}

func (p *fakePage) MouseDown(context.Context, geom.Point) error {
	p.record("down")
	return nil
}

func (p *fakePage) MouseUp(context.Context, geom.Point) error {
	p.record("up")
	p.clicked()
	return nil
}

func (p *fakePage) clicked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clearOnClick {
		p.challenged = false
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) Reload(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *fakePage) PressKey(context.Context, string) error { return nil }

func (p *fakePage) Click(context.Context, string, time.Duration) error { return p.clickErr }

func (p *fakePage) Viewport(context.Context) (geom.Size, error) {
	return geom.Size{Width: 1280, Height: 720}, nil
}

func (p *fakePage) Origin(context.Context) (geom.ScreenOrigin, error) {
	return geom.NewScreenOrigin(100, 185), nil
}

func (p *fakePage) SetCookies(_ context.Context, c []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, c...)
	return nil
}

func (p *fakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// fakePointer is an OS pointer that clears the page's challenge on release.
type fakePointer struct {
	page  *fakePage
	moves []geom.Point
	ups   int
}

func (f *fakePointer) Position(context.Context) (geom.Point, error) { return geom.Pt(0, 0), nil }

func (f *fakePointer) MoveAbs(_ context.Context, p geom.Point) error {
	f.moves = append(f.moves, p)
	return nil
}

func (f *fakePointer) Down(context.Context) error { return nil }

func (f *fakePointer) Up(context.Context) error {
	f.ups++
	f.page.clicked()
	return nil
}

func (f *fakePointer) WindowOrigin(context.Context, string, geom.Point) (geom.ScreenOrigin, error) {
	return geom.NewScreenOrigin(100, 185), nil
}

type fakeClearer struct {
	grant browser.Grant
	err   error
	urls  []string
}

func (f *fakeClearer) Solve(_ context.Context, url string) (browser.Grant, error) {
	f.urls = append(f.urls, url)
	return f.grant, f.err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testConfig(profile string, routes ...fares.Route) *config.Config {
	cfg := config.Default()
	cfg.Profile = profile
	cfg.Routes = routes
	return &cfg
}

func newRunner(t *testing.T, cfg *config.Config, page *fakePage, opts ...Option) *Runner {
	t.Helper()
	opener := OpenerFunc(func(context.Context, config.Profile) (Page, error) { return page, nil })
	all := append([]Option{WithOpener(opener), WithSleep(noSleep)}, opts...)
	r, err := New(cfg, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

// --- CheckRoute Tests ---

func TestCheckRoute_NoChallenge(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	r := newRunner(t, testConfig("virtual", bkkHkt), page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if !res.OK() {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if res.Challenge != "absent" {
		t.Errorf("Challenge = %q, want absent", res.Challenge)
	}
	if len(res.Flights) != 3 {
		t.Fatalf("expected 3 offers, got %d", len(res.Flights))
	}
	if res.Cheapest == nil || res.Cheapest.Price != 1290 {
		t.Errorf("Cheapest = %+v", res.Cheapest)
	}
	if len(page.events) != 0 {
		t.Errorf("no pointer input expected without a challenge, got %v", page.events)
	}
	if len(page.navigated) != 1 || !strings.Contains(page.navigated[0], "15%2F03%2F2026") {
		t.Errorf("navigated = %v", page.navigated)
	}
	if !page.closed {
		t.Error("page should be closed after the check")
	}
}

func TestCheckRoute_NavigationFailureContinues(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	page.navErr = fmt.Errorf("%w: https://www.airasia.com/: context deadline exceeded", browser.ErrNavigation)
	r := newRunner(t, testConfig("virtual", bkkHkt), page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if !res.OK() {
		t.Fatalf("an incomplete navigation should not fail the route, got %q", res.Error)
	}
	if res.Challenge != "absent" {
		t.Errorf("Challenge = %q, want absent", res.Challenge)
	}
	if len(res.Flights) != 3 {
		t.Errorf("expected 3 offers from the loaded page, got %d", len(res.Flights))
	}
}

func TestCheckRoute_NavigationOtherError(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html"), navErr: errors.New("target closed")}
	r := newRunner(t, testConfig("virtual", bkkHkt), page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Error != "target closed" {
		t.Errorf("Error = %q, want target closed", res.Error)
	}
}

func TestCheckRoute_CancelledWhileExpanding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	page := &fakePage{results: fixture(t, "results.html"), onExpand: cancel}
	r := newRunner(t, testConfig("virtual", bkkHkt), page)

	res := r.CheckRoute(ctx, bkkHkt)

	if res.Error != context.Canceled.Error() {
		t.Errorf("Error = %q, want %q", res.Error, context.Canceled.Error())
	}
	if len(res.Flights) != 0 {
		t.Errorf("no offers expected after cancellation, got %d", len(res.Flights))
	}
}

func TestCheckRoute_VirtualBypass(t *testing.T) {
	page := &fakePage{
		challenged:    true,
		clearOnClick:  true,
		challengeHTML: fixture(t, "challenge.html"),
		results:       fixture(t, "results.html"),
		box:           widgetBox,
	}
	r := newRunner(t, testConfig("virtual", bkkHkt), page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Challenge != challenge.Resolved.String() {
		t.Fatalf("Challenge = %q, want resolved", res.Challenge)
	}
	if len(res.Flights) != 3 {
		t.Errorf("expected 3 offers after bypass, got %d", len(res.Flights))
	}

	var downs, ups, moves int
	for _, ev := range page.events {
		switch ev {
		case "down":
			downs++
		case "up":
			ups++
		case "move":
			moves++
		}
	}
	if downs != 1 || ups != 1 {
		t.Errorf("expected one click, got %d down / %d up", downs, ups)
	}
	if moves < 2 {
		t.Errorf("expected a planned path, got %d moves", moves)
	}
}

func TestCheckRoute_WidgetNotFound(t *testing.T) {
	page := &fakePage{
		challenged:    true,
		challengeHTML: fixture(t, "challenge.html"),
	}
	cfg := testConfig("virtual", bkkHkt)
	p := cfg.Profiles["virtual"]
	p.Strategies = []string{config.StrategyStructural}
	cfg.Profiles["virtual"] = p
	r := newRunner(t, cfg, page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Challenge != "detected" {
		t.Errorf("Challenge = %q, want detected", res.Challenge)
	}
	if !res.OK() || len(res.Flights) != 0 {
		t.Errorf("expected an empty, error-free result, got %+v", res)
	}
	if len(page.events) != 0 {
		t.Errorf("no input expected when nothing was located, got %v", page.events)
	}
}

func TestCheckRoute_PassiveTimesOut(t *testing.T) {
	page := &fakePage{
		challenged:    true,
		challengeHTML: fixture(t, "challenge.html"),
	}
	r := newRunner(t, testConfig("passive", bkkHkt), page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Challenge != "timed_out" {
		t.Errorf("Challenge = %q, want timed_out", res.Challenge)
	}
	if !res.OK() {
		t.Errorf("a timed out challenge is not a fault, got error %q", res.Error)
	}
	if len(res.Flights) != 0 || res.Cheapest != nil {
		t.Errorf("expected no offers, got %+v", res.Flights)
	}
	if page.reloads != 1 {
		t.Errorf("expected one stagnation refresh, got %d", page.reloads)
	}
}

func TestCheckRoute_OpenFails(t *testing.T) {
	cfg := testConfig("virtual", bkkHkt)
	opener := OpenerFunc(func(context.Context, config.Profile) (Page, error) {
		return nil, errors.New("chrome not found")
	})
	r, err := New(cfg, WithOpener(opener), WithSleep(noSleep))
	if err != nil {
		t.Fatal(err)
	}

	res := r.CheckRoute(context.Background(), bkkHkt)

	if !strings.Contains(res.Error, "opening browser") {
		t.Errorf("Error = %q", res.Error)
	}
	if res.Challenge != "" {
		t.Errorf("Challenge should be empty when the page never opened, got %q", res.Challenge)
	}
	if res.Flights == nil {
		t.Error("Flights should be an empty list, not nil")
	}
}

func TestCheckRoute_PhysicalUnavailable(t *testing.T) {
	page := &fakePage{
		challenged:    true,
		challengeHTML: fixture(t, "challenge.html"),
		box:           widgetBox,
	}
	unavailable := func() (OSPointer, error) {
		return nil, input.ErrChannelUnavailable
	}
	r := newRunner(t, testConfig("physical", bkkHkt), page, WithPointer(unavailable))

	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Challenge != "detected" {
		t.Errorf("Challenge = %q, want detected", res.Challenge)
	}
	if !res.OK() {
		t.Errorf("an unavailable channel is recoverable, got error %q", res.Error)
	}
}

func TestCheckRoute_PhysicalFixedOrigin(t *testing.T) {
	page := &fakePage{
		challenged:    true,
		clearOnClick:  true,
		challengeHTML: fixture(t, "challenge.html"),
		results:       fixture(t, "results.html"),
		box:           widgetBox,
	}
	pointer := &fakePointer{page: page}

	cfg := testConfig("physical", bkkHkt)
	p := cfg.Profiles["physical"]
	p.Origin = config.Origin{Mode: config.OriginFixed, X: 100, Y: 100}
	cfg.Profiles["physical"] = p

	r := newRunner(t, cfg, page, WithPointer(func() (OSPointer, error) { return pointer, nil }))
	res := r.CheckRoute(context.Background(), bkkHkt)

	if res.Challenge != "resolved" {
		t.Fatalf("Challenge = %q, want resolved", res.Challenge)
	}
	if pointer.ups != 1 {
		t.Errorf("expected one release, got %d", pointer.ups)
	}
	if len(pointer.moves) == 0 {
		t.Fatal("no pointer movement recorded")
	}
	// Widget center (630, 222.5) shifted by the fixed origin.
	if last := pointer.moves[len(pointer.moves)-1]; last != geom.Pt(730, 322.5) {
		t.Errorf("final screen position = %v, want (730, 322.5)", last)
	}
	if len(page.events) != 0 {
		t.Errorf("physical channel must not send synthetic events, got %v", page.events)
	}
}

func TestCheckRoute_ClearanceCookies(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	clearer := &fakeClearer{grant: browser.Grant{Cookies: []browser.Cookie{{Name: "cf_clearance", Value: "abc", Domain: ".airasia.com"}}}}
	r := newRunner(t, testConfig("virtual", bkkHkt), page, WithClearance(clearer))

	res := r.CheckRoute(context.Background(), bkkHkt)

	if !res.OK() {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if len(clearer.urls) != 1 || clearer.urls[0] != page.navigated[0] {
		t.Errorf("clearance should be asked for the search URL, got %v", clearer.urls)
	}
	if len(page.cookies) != 1 || page.cookies[0].Name != "cf_clearance" {
		t.Errorf("cookies = %+v", page.cookies)
	}
}

func TestCheckRoute_ClearanceFailureIsIgnored(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	clearer := &fakeClearer{err: browser.ErrClearanceUnavailable}
	r := newRunner(t, testConfig("virtual", bkkHkt), page, WithClearance(clearer))

	res := r.CheckRoute(context.Background(), bkkHkt)

	if !res.OK() || len(res.Flights) != 3 {
		t.Errorf("clearance failure should not affect the check, got %+v", res)
	}
}

func TestCheckRoute_DebugArtefacts(t *testing.T) {
	page := &fakePage{}
	cfg := testConfig("virtual", bkkHkt)
	cfg.DebugDir = filepath.Join(t.TempDir(), "debug")
	r := newRunner(t, cfg, page)

	res := r.CheckRoute(context.Background(), bkkHkt)

	if len(res.Flights) != 0 {
		t.Fatalf("expected no offers from a page that never loads, got %d", len(res.Flights))
	}
	for _, name := range []string{"BKK_HKT_initial.html", "BKK_HKT_no_content.html", "BKK_HKT_no_content.png"} {
		if _, err := os.Stat(filepath.Join(cfg.DebugDir, name)); err != nil {
			t.Errorf("missing debug artefact %s: %v", name, err)
		}
	}
}

// --- CheckAll / Run Tests ---

func TestRun_SavesHistory(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	store := history.Open(filepath.Join(t.TempDir(), "price_history.json"))
	r := newRunner(t, testConfig("virtual", bkkHkt, bkkCnx), page, WithHistory(store))

	rec, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rec.Results))
	}
	if rec.Results[0].Route != "BKK → HKT" || rec.Results[1].Route != "BKK → CNX" {
		t.Errorf("results out of order: %s, %s", rec.Results[0].Route, rec.Results[1].Route)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(saved) != 1 || len(saved[0].Results) != 2 {
		t.Errorf("history = %+v", saved)
	}
}

func TestCheckAll_Cancelled(t *testing.T) {
	page := &fakePage{results: fixture(t, "results.html")}
	r := newRunner(t, testConfig("virtual"), page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := r.CheckAll(ctx, []fares.Route{bkkHkt, bkkCnx})

	if len(rec.Results) != 2 {
		t.Fatalf("every route should be reported, got %d", len(rec.Results))
	}
	for _, res := range rec.Results {
		if res.Error != context.Canceled.Error() {
			t.Errorf("%s: Error = %q", res.Route, res.Error)
		}
	}
	if len(page.navigated) != 0 {
		t.Error("no navigation expected after cancellation")
	}
}

func TestNew_UnknownProfile(t *testing.T) {
	if _, err := New(testConfig("teleport", bkkHkt)); err == nil {
		t.Error("expected an error for an unknown profile")
	}
}
