// Package challenge detects anti-automation interstitials and drives a single
// attempt at getting past them.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/farewatch/internal/logger"
)

var (
	// ErrDetectionUncertain means the page could not be read for detection.
	// The challenge is then treated as absent.
	ErrDetectionUncertain = errors.New("challenge detection uncertain")

	// ErrLocationFailed means no strategy found the challenge widget.
	ErrLocationFailed = errors.New("challenge widget not located")

	// ErrCompletionTimeout means the challenge was still present when the
	// completion timeout elapsed.
	ErrCompletionTimeout = errors.New("challenge completion timed out")
)

// Signal names the kind of token that identified a challenge.
type Signal string

// Signals reported by Match.
const (
	SignalNone   Signal = ""
	SignalTitle  Signal = "title"
	SignalBrand  Signal = "brand"
	SignalMarker Signal = "marker"
	SignalWidget Signal = "widget"
)

// Signatures is the token policy used by the detector. Matching is
// case-insensitive and any single token is enough.
type Signatures struct {
	// TitlePhrases are waiting phrases shown in the document title.
	TitlePhrases []string `mapstructure:"title_phrases" yaml:"title_phrases"`
	// BrandTokens are provider names matched against the title.
	BrandTokens []string `mapstructure:"brand_tokens" yaml:"brand_tokens"`
	// MarkupMarkers are class or script markers matched against the markup.
	MarkupMarkers []string `mapstructure:"markup_markers" yaml:"markup_markers"`
	// WidgetTokens are widget names matched against the markup.
	WidgetTokens []string `mapstructure:"widget_tokens" yaml:"widget_tokens"`
}

// DefaultSignatures returns the tokens of the current challenge provider.
func DefaultSignatures() Signatures {
	return Signatures{
		TitlePhrases:  []string{"just a moment", "attention required"},
		BrandTokens:   []string{"cloudflare"},
		MarkupMarkers: []string{"cf-challenge", "cf_chl_opt"},
		WidgetTokens:  []string{"turnstile"},
	}
}

// Snapshot is the part of a page the detector looks at.
type Snapshot struct {
	Title string
	HTML  string
}

// SnapshotSource reads the current page.
type SnapshotSource interface {
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Detector matches snapshots against Signatures.
type Detector struct {
	title   []string
	brand   []string
	markers []string
	widgets []string
}

// NewDetector creates a detector. Tokens are lowercased once here.
func NewDetector(sig Signatures) *Detector {
	return &Detector{
		title:   lowerAll(sig.TitlePhrases),
		brand:   lowerAll(sig.BrandTokens),
		markers: lowerAll(sig.MarkupMarkers),
		widgets: lowerAll(sig.WidgetTokens),
	}
}

// Detect reports whether s shows a challenge.
func (d *Detector) Detect(s Snapshot) bool {
	_, ok := d.Match(s)
	return ok
}

// Match reports the first signal found in s.
func (d *Detector) Match(s Snapshot) (Signal, bool) {
	title := strings.ToLower(s.Title)
	if containsAny(title, d.title) {
		return SignalTitle, true
	}
	if containsAny(title, d.brand) {
		return SignalBrand, true
	}

	html := strings.ToLower(s.HTML)
	if containsAny(html, d.markers) {
		return SignalMarker, true
	}
	if containsAny(html, d.widgets) {
		return SignalWidget, true
	}
	return SignalNone, false
}

// Probe reads a snapshot from src and matches it. Read failures are logged
// as ErrDetectionUncertain and reported as no challenge.
func (d *Detector) Probe(ctx context.Context, src SnapshotSource) (Signal, bool) {
	snap, err := Read(ctx, src)
	if err != nil {
		logger.WarnContext(ctx, "challenge detection failed, assuming none",
			"error", fmt.Errorf("%w: %w", ErrDetectionUncertain, err))
		return SignalNone, false
	}
	return d.Match(snap)
}

// Read captures the title and markup of the current page.
func Read(ctx context.Context, src SnapshotSource) (Snapshot, error) {
	title, err := src.Title(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read title: %w", err)
	}
	html, err := src.HTML(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read markup: %w", err)
	}
	return Snapshot{Title: title, HTML: html}, nil
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
