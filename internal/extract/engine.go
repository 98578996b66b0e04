// Package extract turns a rendered search results page into flight offers.
package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// Engine parses listing containers into offers.
type Engine struct {
	sel      Selectors
	currency string
	flightRe *regexp.Regexp
}

// New creates an engine. Offers are tagged with currency.
func New(sel Selectors, currency string) (*Engine, error) {
	re, err := sel.flightPattern()
	if err != nil {
		return nil, fmt.Errorf("invalid flight pattern %q: %w", sel.FlightPattern, err)
	}
	if re.NumSubexp() < 2 {
		return nil, fmt.Errorf("flight pattern %q needs two capture groups", sel.FlightPattern)
	}
	return &Engine{sel: sel, currency: currency, flightRe: re}, nil
}

// Selectors returns the engine's selector policy.
func (e *Engine) Selectors() Selectors {
	return e.sel
}

// Extract parses html and returns the de-duplicated offers sorted by price.
func (e *Engine) Extract(html string) ([]fares.FlightOffer, error) {
	return e.ExtractReader(strings.NewReader(html))
}

// ExtractReader is Extract over a reader.
func (e *Engine) ExtractReader(r io.Reader) ([]fares.FlightOffer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractDocument parses an already loaded document.
func (e *Engine) ExtractDocument(doc *goquery.Document) []fares.FlightOffer {
	numbers := e.flightNumbers(doc)

	offers := []fares.FlightOffer{}
	seen := make(map[fares.OfferKey]bool)

	doc.Find(e.sel.Container).Each(func(_ int, c *goquery.Selection) {
		priceEl := c.Find(e.sel.Price).First()
		if priceEl.Length() == 0 {
			return
		}
		times := c.Find(e.sel.Times)
		if times.Length() < 2 {
			return
		}
		depart := strings.TrimSpace(times.Eq(0).Text())
		arrive := strings.TrimSpace(times.Eq(1).Text())
		if depart == "" || arrive == "" {
			return
		}

		price, ok := ParsePrice(priceEl.Text())
		if !ok {
			return
		}

		offer := fares.FlightOffer{
			Price:      price,
			Currency:   e.currency,
			DepartTime: depart,
			ArriveTime: arrive,
		}
		key := offer.Key()
		if seen[key] {
			return
		}
		seen[key] = true

		offer.FlightNumber = fares.NotAvailable
		if i := len(offers); i < len(numbers) {
			offer.FlightNumber = numbers[i]
		}
		offers = append(offers, offer)
	})

	fares.SortByPrice(offers)
	return offers
}

// flightNumbers collects page-wide airline codes in document order. They are
// matched to offers by position, which is only approximate.
func (e *Engine) flightNumbers(doc *goquery.Document) []string {
	var numbers []string
	ctxToken := strings.ToLower(e.sel.FlightContext)

	doc.Find(e.sel.FlightScope).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		m := e.flightRe.FindStringSubmatch(text)
		if m == nil {
			return
		}
		if ctxToken != "" && !strings.Contains(strings.ToLower(text), ctxToken) {
			return
		}
		numbers = append(numbers, m[1]+" "+m[2])
	})
	return numbers
}

// ParsePrice strips thousands separators and parses the leading integer.
// A currency prefix such as "฿" or "THB" is skipped.
func ParsePrice(text string) (int, bool) {
	s := strings.TrimSpace(text)
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)

	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && isDigit(rune(s[end])) {
		end++
	}

	n, err := strconv.Atoi(s[start:end])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// ExpandScript returns a script that clicks every "View details" toggle and
// evaluates to the number clicked.
func (e *Engine) ExpandScript() string {
	sel, _ := json.Marshal(e.sel.Details)
	text, _ := json.Marshal(e.sel.DetailsText)
	return fmt.Sprintf(`(() => {
	let clicked = 0;
	document.querySelectorAll(%s).forEach(el => {
		if (el.textContent.includes(%s)) {
			el.click();
			clicked++;
		}
	});
	return clicked;
})()`, sel, text)
}
