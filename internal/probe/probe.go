// Package probe checks with a plain HTTP request whether the search site is
// currently serving a challenge page, without starting a browser.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/extract"
	"github.com/jmylchreest/farewatch/internal/logger"
)

// Report is what one probe observed.
type Report struct {
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Title      string            `json:"title"`
	Challenged bool              `json:"challenged"`
	Signal     challenge.Signal  `json:"signal,omitempty"`
	Server     string            `json:"server,omitempty"`
	Listings   int               `json:"listings"`
	Elapsed    time.Duration     `json:"elapsed"`
	Headers    map[string]string `json:"-"`
}

// Prober performs static requests.
type Prober struct {
	detector  *challenge.Detector
	engine    *extract.Engine
	userAgent string
	timeout   time.Duration
}

// New creates a Prober. engine may be nil, in which case listings are not counted.
func New(detector *challenge.Detector, engine *extract.Engine, userAgent string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{detector: detector, engine: engine, userAgent: userAgent, timeout: timeout}
}

// Check requests url once. Challenge pages usually come back as 403 or 503,
// so error statuses are parsed like any other response.
func (p *Prober) Check(ctx context.Context, url string) (Report, error) {
	start := time.Now()
	report := Report{URL: url}

	opts := []colly.CollectorOption{colly.StdlibContext(ctx)}
	if p.userAgent != "" {
		opts = append(opts, colly.UserAgent(p.userAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(p.timeout)
	c.ParseHTTPErrorResponse = true

	var body string
	c.OnResponse(func(r *colly.Response) {
		report.StatusCode = r.StatusCode
		report.Server = r.Headers.Get("Server")
		body = string(r.Body)
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && len(r.Body) > 0 {
			report.StatusCode = r.StatusCode
			report.Server = r.Headers.Get("Server")
			body = string(r.Body)
			return
		}
		visitErr = err
	})

	if err := c.Visit(url); err != nil && body == "" {
		return report, fmt.Errorf("probe %s: %w", url, err)
	}
	if visitErr != nil && body == "" {
		return report, fmt.Errorf("probe %s: %w", url, visitErr)
	}
	report.Elapsed = time.Since(start)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return report, fmt.Errorf("parsing probe response: %w", err)
	}
	report.Title = strings.TrimSpace(doc.Find("title").First().Text())

	report.Signal, report.Challenged = p.detector.Match(challenge.Snapshot{Title: report.Title, HTML: body})
	if p.engine != nil && !report.Challenged {
		if sig, err := p.engine.Signals(body); err == nil {
			report.Listings = sig.Listings
		}
	}

	logger.DebugContext(ctx, "probe complete",
		"url", url,
		"status", report.StatusCode,
		"title", report.Title,
		"challenged", report.Challenged,
		"signal", report.Signal,
		"elapsed", report.Elapsed)
	return report, nil
}
