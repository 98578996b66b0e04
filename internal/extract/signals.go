package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageSignals summarizes what a results page currently shows.
type PageSignals struct {
	Listings  int
	NoResults bool
	Loading   bool
}

// Signals inspects html for listing containers, a "no results" message and a
// loading indicator.
func (e *Engine) Signals(html string) (PageSignals, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageSignals{}, fmt.Errorf("parse document: %w", err)
	}

	sig := PageSignals{
		Listings: doc.Find(e.sel.Container).Length(),
	}
	if e.sel.Loading != "" {
		sig.Loading = doc.Find(e.sel.Loading).Length() > 0
	}

	body := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range e.sel.NoResults {
		if phrase != "" && strings.Contains(body, strings.ToLower(phrase)) {
			sig.NoResults = true
			break
		}
	}
	return sig, nil
}
