package challenge

import (
	"context"
	"errors"
	"testing"
)

// --- Detector Tests ---

func TestDetector_Match(t *testing.T) {
	d := NewDetector(DefaultSignatures())

	tests := []struct {
		name   string
		snap   Snapshot
		want   Signal
		wantOK bool
	}{
		{"waiting title", Snapshot{Title: "Just a moment..."}, SignalTitle, true},
		{"brand title", Snapshot{Title: "Attention | Cloudflare"}, SignalBrand, true},
		{"marker", Snapshot{Title: "AirAsia", HTML: `<div class="cf-challenge-running"></div>`}, SignalMarker, true},
		{"widget", Snapshot{Title: "AirAsia", HTML: `<script src="https://challenges.example/TURNSTILE/v0/api.js"></script>`}, SignalWidget, true},
		{"clean page", Snapshot{Title: "Flights from Bangkok", HTML: "<html><body>fares</body></html>"}, SignalNone, false},
		{"empty", Snapshot{}, SignalNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Match(tt.snap)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Match() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if d.Detect(tt.snap) != tt.wantOK {
				t.Errorf("Detect() disagrees with Match()")
			}
		})
	}
}

func TestDetector_CustomSignatures(t *testing.T) {
	d := NewDetector(Signatures{WidgetTokens: []string{"H-CAPTCHA"}})
	if !d.Detect(Snapshot{HTML: `<div class="h-captcha">`}) {
		t.Error("custom widget token should match case-insensitively")
	}
	if d.Detect(Snapshot{Title: "Just a moment..."}) {
		t.Error("tokens outside the policy should not match")
	}
}

type errSource struct{}

func (errSource) Title(context.Context) (string, error) { return "", errors.New("session closed") }
func (errSource) HTML(context.Context) (string, error)  { return "", nil }

func TestDetector_ProbeErrorIsAbsent(t *testing.T) {
	d := NewDetector(DefaultSignatures())
	if _, ok := d.Probe(context.Background(), errSource{}); ok {
		t.Error("a read failure should be reported as no challenge")
	}
}

// --- State Tests ---

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Absent:          "absent",
		Detected:        "detected",
		BypassAttempted: "bypass_attempted",
		Resolved:        "resolved",
		TimedOut:        "timed_out",
		State(42):       "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestState_Clear(t *testing.T) {
	if !Absent.Clear() || !Resolved.Clear() {
		t.Error("Absent and Resolved should be clear")
	}
	if Detected.Clear() || TimedOut.Clear() {
		t.Error("Detected and TimedOut should not be clear")
	}
}
