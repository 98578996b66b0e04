package locator

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// VisualPolicy holds the empirical thresholds of the visual strategy.
type VisualPolicy struct {
	// Threshold separates background (brighter) from foreground (this value or darker).
	Threshold uint8 `mapstructure:"threshold" yaml:"threshold"`
	// MinSide and MaxSide bound each side of a candidate's bounding rectangle.
	MinSide int `mapstructure:"min_side" yaml:"min_side"`
	MaxSide int `mapstructure:"max_side" yaml:"max_side"`
	// MinAspect and MaxAspect bound width/height.
	MinAspect float64 `mapstructure:"min_aspect" yaml:"min_aspect"`
	MaxAspect float64 `mapstructure:"max_aspect" yaml:"max_aspect"`
	// TopFraction restricts candidates to those whose top edge lies in the upper part of the image.
	TopFraction float64 `mapstructure:"top_fraction" yaml:"top_fraction"`
	// Scale is the number of image pixels per CSS pixel.
	Scale float64 `mapstructure:"scale" yaml:"scale"`
}

// DefaultVisualPolicy returns thresholds tuned for a checkbox-style widget.
func DefaultVisualPolicy() VisualPolicy {
	return VisualPolicy{
		Threshold:   200,
		MinSide:     15,
		MaxSide:     50,
		MinAspect:   0.8,
		MaxAspect:   1.2,
		TopFraction: 0.4,
		Scale:       1,
	}
}

// Visual searches an image for a small near-square outline near the top-left.
// It is best effort: any unrelated small square control in the upper part of
// the viewport can be matched instead.
type Visual struct {
	policy VisualPolicy
}

// NewVisual creates a visual matcher.
func NewVisual(policy VisualPolicy) *Visual {
	if policy.Scale <= 0 {
		policy.Scale = 1
	}
	return &Visual{policy: policy}
}

// Name returns the strategy name used in results.
func (v *Visual) Name() string { return "visual" }

// LocatePNG decodes an encoded screenshot and runs LocateImage on it.
func (v *Visual) LocatePNG(data []byte) (Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return NotFound(), fmt.Errorf("decode screenshot: %w", err)
	}
	return v.LocateImage(img), nil
}

// LocateImage returns the candidate region with the smallest x+y, or NotFound.
func (v *Visual) LocateImage(img image.Image) Result {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return NotFound()
	}

	fg := make([]bool, w*h)
	for y := range h {
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			fg[y*w+x] = row[x*4] <= v.policy.Threshold
		}
	}

	var best *region
	for _, r := range externalRegions(fg, w, h) {
		if !v.accept(r, h) {
			continue
		}
		if best == nil || r.x0+r.y0 < best.x0+best.y0 {
			best = &r
		}
	}
	if best == nil {
		return NotFound()
	}

	s := v.policy.Scale
	return Found(geom.BoundingBox{
		X:      float64(best.x0) / s,
		Y:      float64(best.y0) / s,
		Width:  float64(best.width()) / s,
		Height: float64(best.height()) / s,
	}, v.Name())
}

func (v *Visual) accept(r region, imgHeight int) bool {
	w, h := r.width(), r.height()
	p := v.policy
	if w < p.MinSide || w > p.MaxSide || h < p.MinSide || h > p.MaxSide {
		return false
	}
	aspect := float64(w) / float64(h)
	if aspect < p.MinAspect || aspect > p.MaxAspect {
		return false
	}
	return float64(r.y0) < float64(imgHeight)*p.TopFraction
}

// Capturer takes a screenshot of the current viewport.
type Capturer interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Screenshot adapts Visual into a Strategy by capturing the page first.
type Screenshot struct {
	capture Capturer
	visual  *Visual
}

// NewScreenshot creates a screenshot-backed visual strategy.
func NewScreenshot(capture Capturer, visual *Visual) *Screenshot {
	return &Screenshot{capture: capture, visual: visual}
}

// Name implements Strategy.
func (s *Screenshot) Name() string { return s.visual.Name() }

// Locate implements Strategy.
func (s *Screenshot) Locate(ctx context.Context) (Result, error) {
	data, err := s.capture.Screenshot(ctx)
	if err != nil {
		return NotFound(), fmt.Errorf("capture screenshot: %w", err)
	}
	return s.visual.LocatePNG(data)
}
