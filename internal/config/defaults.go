package config

import (
	"slices"
	"time"

	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/extract"
	"github.com/jmylchreest/farewatch/internal/locator"
	"github.com/jmylchreest/farewatch/internal/poller"
)

// DefaultSearchURL is the airline search results page.
const DefaultSearchURL = "https://www.airasia.com/flights/search/?origin={origin}&destination={destination}&departDate={date}&tripType=O&adult=1&locale=en-gb&currency={currency}"

// DefaultUserAgent matches a current desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Default returns the configuration used when the file omits a section.
// Routes are left empty: they must come from the file.
func Default() Config {
	return Config{
		Search: Search{
			URLTemplate:  DefaultSearchURL,
			Currency:     "THB",
			SearchButton: "#home_Search",
			ButtonWait:   20 * time.Second,
			ResultsWait:  10 * time.Second,
		},
		Profile:  "virtual",
		Profiles: BuiltinProfiles(),
		Browser: Browser{
			UserAgent:         DefaultUserAgent,
			Locale:            "en-GB",
			Timezone:          "Asia/Bangkok",
			NavigationTimeout: 60 * time.Second,
		},
		Challenge: Challenge{
			Signatures: challenge.DefaultSignatures(),
			Structural: locator.DefaultStructuralPolicy(),
			Visual:     locator.DefaultVisualPolicy(),
			Resolver:   challenge.DefaultConfig(),
		},
		Poller:    poller.DefaultConfig(),
		Selectors: extract.DefaultSelectors(),
		History:   History{Path: "price_history.json"},
		Schedule:  Schedule{Timezone: "Asia/Bangkok"},
		Clearance: Clearance{URL: "http://localhost:8191/v1", Timeout: 60 * time.Second},
	}
}

// BuiltinProfiles returns the four ways of running a check.
func BuiltinProfiles() map[string]Profile {
	window := Window{X: 100, Y: 100, Width: 1280, Height: 720}
	both := []string{StrategyStructural, StrategyVisual}

	return map[string]Profile{
		"passive": {
			Description: "headless, waits for the challenge to clear by itself",
			Headless:    true,
			Channel:     ChannelNone,
			Stealth:     true,
			Window:      window,
			Settle:      5 * time.Second,
		},
		"headed": {
			Description: "visible window, waits for the challenge to clear by itself",
			Headless:    false,
			Channel:     ChannelNone,
			Stealth:     true,
			Window:      window,
			Settle:      5 * time.Second,
		},
		"virtual": {
			Description: "headless, synthetic pointer events, structural then visual location",
			Headless:    true,
			Channel:     ChannelVirtual,
			Strategies:  slices.Clone(both),
			Stealth:     true,
			Window:      window,
			Settle:      5 * time.Second,
		},
		"physical": {
			Description: "visible window at a fixed position, real OS pointer",
			Headless:    false,
			Channel:     ChannelPhysical,
			Strategies:  slices.Clone(both),
			Stealth:     true,
			Window:      window,
			Origin:      Origin{Mode: OriginPage},
			Settle:      5 * time.Second,
		},
	}
}
