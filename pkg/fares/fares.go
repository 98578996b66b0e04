// Package fares defines the route and offer types produced by a fare check
// and persisted in the price history.
package fares

import (
	"fmt"
	"slices"
	"time"
)

// NotAvailable is the placeholder for values the page did not provide.
const NotAvailable = "N/A"

// Route is one origin/destination/date search.
type Route struct {
	Origin      string `mapstructure:"origin" yaml:"origin" json:"origin" validate:"required,len=3,uppercase"`
	Destination string `mapstructure:"destination" yaml:"destination" json:"destination" validate:"required,len=3,uppercase"`
	Date        string `mapstructure:"date" yaml:"date" json:"date" validate:"required,datetime=02/01/2006"`
}

// Label returns the human-readable route name, e.g. "BKK → HKT".
func (r Route) Label() string {
	return fmt.Sprintf("%s → %s", r.Origin, r.Destination)
}

func (r Route) String() string {
	return fmt.Sprintf("%s on %s", r.Label(), r.Date)
}

// FlightOffer is a single fare listing.
type FlightOffer struct {
	FlightNumber string `json:"flightNumber" yaml:"flightNumber"`
	Price        int    `json:"price" yaml:"price"`
	Currency     string `json:"currency" yaml:"currency"`
	DepartTime   string `json:"departTime" yaml:"departTime"`
	ArriveTime   string `json:"arriveTime" yaml:"arriveTime"`
}

// OfferKey identifies an offer for de-duplication. The flight number is
// deliberately excluded because it is assigned positionally.
type OfferKey struct {
	Price      int
	DepartTime string
	ArriveTime string
}

// Key returns the identity key of the offer.
func (o FlightOffer) Key() OfferKey {
	return OfferKey{Price: o.Price, DepartTime: o.DepartTime, ArriveTime: o.ArriveTime}
}

func (k OfferKey) String() string {
	return fmt.Sprintf("%d-%s-%s", k.Price, k.DepartTime, k.ArriveTime)
}

// SortByPrice orders offers by ascending price, keeping discovery order for ties.
func SortByPrice(offers []FlightOffer) {
	slices.SortStableFunc(offers, func(a, b FlightOffer) int {
		return a.Price - b.Price
	})
}

// Cheapest returns the first offer of a price-sorted list, or nil when empty.
func Cheapest(offers []FlightOffer) *FlightOffer {
	if len(offers) == 0 {
		return nil
	}
	c := offers[0]
	return &c
}

// RouteResult is the outcome of checking one route.
type RouteResult struct {
	Route     string        `json:"route" yaml:"route"`
	Date      string        `json:"date" yaml:"date"`
	Flights   []FlightOffer `json:"flights" yaml:"flights"`
	Cheapest  *FlightOffer  `json:"cheapest" yaml:"cheapest"`
	Timestamp string        `json:"timestamp" yaml:"timestamp"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	// Challenge is the terminal challenge state, so an empty result caused by
	// a failed bypass can be told apart from a route with no flights.
	Challenge string `json:"challenge,omitempty" yaml:"challenge,omitempty"`
}

// NewRouteResult returns an empty result for r stamped with now.
func NewRouteResult(r Route, now time.Time) RouteResult {
	return RouteResult{
		Route:     r.Label(),
		Date:      r.Date,
		Flights:   []FlightOffer{},
		Timestamp: now.Format(time.RFC3339Nano),
	}
}

// SetOffers stores offers sorted by price and updates Cheapest.
func (r *RouteResult) SetOffers(offers []FlightOffer) {
	if offers == nil {
		offers = []FlightOffer{}
	}
	SortByPrice(offers)
	r.Flights = offers
	r.Cheapest = Cheapest(offers)
}

// OK reports whether the check completed without an unexpected fault.
func (r RouteResult) OK() bool {
	return r.Error == ""
}

// Result statuses.
const (
	StatusOK        = "ok"
	StatusNoFlights = "no_flights"
	StatusError     = "error"
)

// Status classifies the result as ok, no_flights or error.
func (r RouteResult) Status() string {
	switch {
	case !r.OK():
		return StatusError
	case len(r.Flights) == 0:
		return StatusNoFlights
	default:
		return StatusOK
	}
}

// CheckRecord is one entry of the price history: every route checked in a run.
type CheckRecord struct {
	CheckTime string        `json:"check_time" yaml:"check_time"`
	Results   []RouteResult `json:"results" yaml:"results"`
}

// NewCheckRecord wraps results with a check time.
func NewCheckRecord(now time.Time, results []RouteResult) CheckRecord {
	if results == nil {
		results = []RouteResult{}
	}
	return CheckRecord{CheckTime: now.Format(time.RFC3339Nano), Results: results}
}
