package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// Evaluator runs a script in the page and decodes its result into out.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out any) error
}

// StructuralPolicy lists the tokens the structural strategy looks for.
type StructuralPolicy struct {
	// FrameTokens are matched against iframe src attributes.
	FrameTokens []string `mapstructure:"frame_tokens" yaml:"frame_tokens"`
	// Containers are CSS selectors tried in order when no frame matches.
	Containers []string `mapstructure:"containers" yaml:"containers"`
}

// DefaultStructuralPolicy returns the tokens for the current challenge provider.
func DefaultStructuralPolicy() StructuralPolicy {
	return StructuralPolicy{
		FrameTokens: []string{"cloudflare", "turnstile"},
		Containers:  []string{`[class*="cf-challenge"]`, `[id*="cf-challenge"]`},
	}
}

// Structural locates the widget by querying the DOM.
type Structural struct {
	eval   Evaluator
	policy StructuralPolicy
	script string
}

// NewStructural creates a structural strategy.
func NewStructural(eval Evaluator, policy StructuralPolicy) *Structural {
	return &Structural{eval: eval, policy: policy, script: structuralScript(policy)}
}

// Name implements Strategy.
func (s *Structural) Name() string { return "structural" }

type domBox struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Source string  `json:"source"`
}

// Locate implements Strategy.
func (s *Structural) Locate(ctx context.Context) (Result, error) {
	var box domBox
	if err := s.eval.Evaluate(ctx, s.script, &box); err != nil {
		return NotFound(), fmt.Errorf("structural query: %w", err)
	}
	if !box.Found {
		return NotFound(), nil
	}
	return Found(geom.BoundingBox{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, s.Name()), nil
}

// Script returns the query evaluated in the page.
func (s *Structural) Script() string {
	return s.script
}

func structuralScript(p StructuralPolicy) string {
	lower := make([]string, 0, len(p.FrameTokens))
	for _, t := range p.FrameTokens {
		lower = append(lower, strings.ToLower(t))
	}
	tokens, _ := json.Marshal(lower)
	containers, _ := json.Marshal(nonNil(p.Containers))
	return fmt.Sprintf(`(() => {
	const tokens = %s;
	const containers = %s;
	const box = (el, source) => {
		const r = el.getBoundingClientRect();
		return {found: true, x: r.x, y: r.y, width: r.width, height: r.height, source: source};
	};
	for (const f of document.querySelectorAll('iframe')) {
		const src = (f.src || '').toLowerCase();
		if (tokens.some(t => src.includes(t))) {
			return box(f, 'frame');
		}
	}
	for (const sel of containers) {
		const el = document.querySelector(sel);
		if (el) {
			return box(el, sel);
		}
	}
	return {found: false};
})()`, tokens, containers)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
