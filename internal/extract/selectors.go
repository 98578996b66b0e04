package extract

import "regexp"

// Selectors is the page-structure policy used to find listings. Every value
// is empirical and expected to drift as the site changes its markup.
type Selectors struct {
	// Container matches one listing card.
	Container string `mapstructure:"container" yaml:"container"`
	// Price matches the price element inside a container.
	Price string `mapstructure:"price" yaml:"price"`
	// Times matches the departure and arrival elements, in that order.
	Times string `mapstructure:"times" yaml:"times"`
	// FlightScope is the element set scanned for flight numbers.
	FlightScope string `mapstructure:"flight_scope" yaml:"flight_scope"`
	// FlightPattern must have two groups: airline code and number.
	FlightPattern string `mapstructure:"flight_pattern" yaml:"flight_pattern"`
	// FlightContext must appear (case-insensitive) in the element text.
	FlightContext string `mapstructure:"flight_context" yaml:"flight_context"`
	// NoResults are phrases that indicate the search returned nothing.
	NoResults []string `mapstructure:"no_results" yaml:"no_results"`
	// Loading matches a spinner or skeleton shown while results load.
	Loading string `mapstructure:"loading" yaml:"loading"`
	// Details matches the "View details" toggles and DetailsText their label.
	Details     string `mapstructure:"details" yaml:"details"`
	DetailsText string `mapstructure:"details_text" yaml:"details_text"`
}

// DefaultSelectors returns the selectors for the current airline search page.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:     `[class*="Journey"][class*="Container"]`,
		Price:         `[class*="Price"] [class*="gBxbny"]`,
		Times:         `[class*="Text"][class*="hBKgBd"], [class*="Text"][class*="eQIcKu"]`,
		FlightScope:   "p",
		FlightPattern: `([A-Z]{2})\s*(\d{3,4})`,
		FlightContext: "air",
		NoResults:     []string{"no flights available", "no flights found", "no available flights"},
		Loading:       `[class*="Loading"], [class*="Spinner"], [class*="Skeleton"]`,
		Details:       `p[type="small"]`,
		DetailsText:   "View details",
	}
}

func (s Selectors) flightPattern() (*regexp.Regexp, error) {
	return regexp.Compile(s.FlightPattern)
}
