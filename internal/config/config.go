// Package config loads and validates the farewatch configuration.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/extract"
	"github.com/jmylchreest/farewatch/internal/locator"
	"github.com/jmylchreest/farewatch/internal/poller"
	"github.com/jmylchreest/farewatch/pkg/fares"
)

// Input channels a profile can select.
const (
	ChannelNone     = "none"
	ChannelVirtual  = "virtual"
	ChannelPhysical = "physical"
)

// Locator strategy names.
const (
	StrategyStructural = "structural"
	StrategyVisual     = "visual"
)

// Origin modes for the physical channel.
const (
	OriginPage   = "page"   // read window.screenX/Y and the browser chrome size from the page
	OriginWindow = "window" // ask xdotool for the window geometry
	OriginFixed  = "fixed"  // use X and Y as given
)

// Config is the whole configuration file.
type Config struct {
	Routes    []fares.Route      `mapstructure:"routes" yaml:"routes" validate:"required,min=1,dive"`
	Search    Search             `mapstructure:"search" yaml:"search"`
	Profile   string             `mapstructure:"profile" yaml:"profile" validate:"required"`
	Profiles  map[string]Profile `mapstructure:"profiles" yaml:"profiles" validate:"dive"`
	Browser   Browser            `mapstructure:"browser" yaml:"browser"`
	Challenge Challenge          `mapstructure:"challenge" yaml:"challenge"`
	Poller    poller.Config      `mapstructure:"poller" yaml:"poller"`
	Selectors extract.Selectors  `mapstructure:"selectors" yaml:"selectors"`
	History   History            `mapstructure:"history" yaml:"history"`
	Schedule  Schedule           `mapstructure:"schedule" yaml:"schedule"`
	Clearance Clearance          `mapstructure:"clearance" yaml:"clearance"`
	DebugDir  string             `mapstructure:"debug_dir" yaml:"debug_dir"`
}

// Search describes the results page URL.
type Search struct {
	// URLTemplate uses {origin}, {destination}, {date} and {currency}.
	URLTemplate string `mapstructure:"url_template" yaml:"url_template" validate:"required"`
	Currency    string `mapstructure:"currency" yaml:"currency" validate:"required,len=3"`
	// SearchButton is clicked once the challenge is out of the way.
	SearchButton string        `mapstructure:"search_button" yaml:"search_button"`
	ButtonWait   time.Duration `mapstructure:"button_wait" yaml:"button_wait"`
	// ResultsWait is the pause after clicking the search button.
	ResultsWait time.Duration `mapstructure:"results_wait" yaml:"results_wait"`
}

// URL builds the search URL for r. The date is query-escaped, so
// "15/03/2026" becomes "15%2F03%2F2026".
func (s Search) URL(r fares.Route) string {
	return strings.NewReplacer(
		"{origin}", url.QueryEscape(r.Origin),
		"{destination}", url.QueryEscape(r.Destination),
		"{date}", url.QueryEscape(r.Date),
		"{currency}", url.QueryEscape(s.Currency),
	).Replace(s.URLTemplate)
}

// Window is the browser window geometry in screen pixels.
type Window struct {
	X      int `mapstructure:"x" yaml:"x"`
	Y      int `mapstructure:"y" yaml:"y"`
	Width  int `mapstructure:"width" yaml:"width" validate:"gte=320"`
	Height int `mapstructure:"height" yaml:"height" validate:"gte=240"`
}

// Origin tells the physical channel where the page sits on screen.
type Origin struct {
	Mode        string `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=page window fixed"`
	X           int    `mapstructure:"x" yaml:"x"`
	Y           int    `mapstructure:"y" yaml:"y"`
	WindowTitle string `mapstructure:"window_title" yaml:"window_title"`
}

// Profile is one way of running a check: headless or not, which input
// channel, which locators.
type Profile struct {
	Description string   `mapstructure:"description" yaml:"description"`
	Headless    bool     `mapstructure:"headless" yaml:"headless"`
	Channel     string   `mapstructure:"channel" yaml:"channel" validate:"oneof=none virtual physical"`
	Strategies  []string `mapstructure:"strategies" yaml:"strategies" validate:"dive,oneof=structural visual"`
	Stealth     bool     `mapstructure:"stealth" yaml:"stealth"`
	Window      Window   `mapstructure:"window" yaml:"window"`
	Origin      Origin   `mapstructure:"origin" yaml:"origin"`
	// Settle is the pause after navigation before the first challenge check.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
}

// Browser holds settings shared by every profile.
type Browser struct {
	ChromePath        string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Locale            string        `mapstructure:"locale" yaml:"locale"`
	Timezone          string        `mapstructure:"timezone" yaml:"timezone"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// Challenge groups the challenge handling policy.
type Challenge struct {
	Signatures challenge.Signatures     `mapstructure:"signatures" yaml:"signatures"`
	Structural locator.StructuralPolicy `mapstructure:"structural" yaml:"structural"`
	Visual     locator.VisualPolicy     `mapstructure:"visual" yaml:"visual"`
	Resolver   challenge.Config         `mapstructure:"resolver" yaml:"resolver"`
}

// History configures the price history file.
type History struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// Schedule configures periodic runs.
type Schedule struct {
	Cron     string `mapstructure:"cron" yaml:"cron" validate:"omitempty,cron"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	// Workflow is a CI workflow file whose "- cron:" line mirrors Cron.
	Workflow string `mapstructure:"workflow" yaml:"workflow"`
}

// Clearance configures an optional FlareSolverr pre-clearance.
type Clearance struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	URL     string        `mapstructure:"url" yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ActiveProfile returns the selected profile.
func (c *Config) ActiveProfile() (Profile, error) {
	return c.LookupProfile(c.Profile)
}

// LookupProfile returns the named profile.
func (c *Config) LookupProfile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames returns the profile names in a stable order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
