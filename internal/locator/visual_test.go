package locator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jmylchreest/farewatch/internal/geom"
)

func blank(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// outline draws a 2px border, the way a checkbox renders.
func outline(img *image.RGBA, r image.Rectangle, c color.Color) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+2), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-2, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+2, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-2, r.Min.Y, r.Max.X, r.Max.Y), c)
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	grey  = color.RGBA{120, 120, 120, 255}
)

// --- Visual Tests ---

func TestVisual_BlankImage(t *testing.T) {
	v := NewVisual(DefaultVisualPolicy())
	for _, c := range []color.Color{white, black} {
		if r := v.LocateImage(blank(400, 300, c)); r.OK() {
			t.Errorf("uniform %v image: expected NotFound, got %v", c, r.Box())
		}
	}
}

func TestVisual_SingleSquare(t *testing.T) {
	img := blank(600, 450, white)
	square := image.Rect(200, 60, 230, 90)
	fillRect(img, square, black)

	v := NewVisual(DefaultVisualPolicy())
	r := v.LocateImage(img)
	if !r.OK() {
		t.Fatal("expected the square to be found")
	}

	box := geom.BoundingBox{X: 200, Y: 60, Width: 30, Height: 30}
	if r.Box() != box {
		t.Errorf("Box() = %v, want %v", r.Box(), box)
	}
	if !box.Contains(r.Target(CenterAnchor)) {
		t.Errorf("target %v not inside %v", r.Target(CenterAnchor), box)
	}
	if r.Strategy() != "visual" {
		t.Errorf("Strategy() = %q", r.Strategy())
	}
}

func TestVisual_OutlinedCheckbox(t *testing.T) {
	img := blank(800, 600, white)
	outline(img, image.Rect(100, 150, 124, 174), grey)

	r := NewVisual(DefaultVisualPolicy()).LocateImage(img)
	if !r.OK() {
		t.Fatal("expected outlined checkbox to be found")
	}
	if r.Box().Width != 24 || r.Box().Height != 24 {
		t.Errorf("Box() = %v, want 24x24", r.Box())
	}
}

func TestVisual_Filters(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
	}{
		{"too small", image.Rect(50, 50, 60, 60)},
		{"too large", image.Rect(50, 50, 120, 120)},
		{"too wide", image.Rect(50, 50, 90, 70)},
		{"below top band", image.Rect(50, 300, 80, 330)},
	}

	v := NewVisual(DefaultVisualPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := blank(500, 500, white)
			fillRect(img, tt.rect, black)
			if r := v.LocateImage(img); r.OK() {
				t.Errorf("expected NotFound, got %v", r.Box())
			}
		})
	}
}

func TestVisual_PicksTopLeft(t *testing.T) {
	img := blank(800, 600, white)
	fillRect(img, image.Rect(400, 40, 430, 70), black)
	fillRect(img, image.Rect(100, 100, 130, 130), black)
	fillRect(img, image.Rect(600, 20, 630, 50), black)

	r := NewVisual(DefaultVisualPolicy()).LocateImage(img)
	if !r.OK() {
		t.Fatal("expected a match")
	}
	if r.Box().X != 100 || r.Box().Y != 100 {
		t.Errorf("expected the square at (100,100), got %v", r.Box())
	}
}

func TestVisual_IgnoresEnclosedShapes(t *testing.T) {
	img := blank(800, 600, white)
	outline(img, image.Rect(20, 20, 500, 200), grey)
	fillRect(img, image.Rect(60, 60, 90, 90), black)

	if r := NewVisual(DefaultVisualPolicy()).LocateImage(img); r.OK() {
		t.Errorf("square inside a frame should not be external, got %v", r.Box())
	}
}

func TestVisual_Scale(t *testing.T) {
	img := blank(600, 450, white)
	fillRect(img, image.Rect(200, 60, 240, 100), black)

	policy := DefaultVisualPolicy()
	policy.Scale = 2
	r := NewVisual(policy).LocateImage(img)
	if !r.OK() {
		t.Fatal("expected a match")
	}
	want := geom.BoundingBox{X: 100, Y: 30, Width: 20, Height: 20}
	if r.Box() != want {
		t.Errorf("Box() = %v, want %v", r.Box(), want)
	}
}

func TestVisual_LocatePNG(t *testing.T) {
	img := blank(300, 300, white)
	fillRect(img, image.Rect(40, 40, 70, 70), black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	r, err := NewVisual(DefaultVisualPolicy()).LocatePNG(buf.Bytes())
	if err != nil {
		t.Fatalf("LocatePNG() error = %v", err)
	}
	if !r.OK() {
		t.Error("expected a match")
	}

	if _, err := NewVisual(DefaultVisualPolicy()).LocatePNG([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

// --- Screenshot Strategy Tests ---

type fakeCapturer struct {
	data []byte
	err  error
}

func (f *fakeCapturer) Screenshot(context.Context) ([]byte, error) {
	return f.data, f.err
}

func TestScreenshot_Locate(t *testing.T) {
	img := blank(300, 300, white)
	fillRect(img, image.Rect(40, 40, 70, 70), black)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)

	s := NewScreenshot(&fakeCapturer{data: buf.Bytes()}, NewVisual(DefaultVisualPolicy()))
	r, err := s.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if !r.OK() {
		t.Error("expected a match")
	}
}

func TestScreenshot_CaptureError(t *testing.T) {
	boom := errors.New("target closed")
	s := NewScreenshot(&fakeCapturer{err: boom}, NewVisual(DefaultVisualPolicy()))
	r, err := s.Locate(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped capture error, got %v", err)
	}
	if r.OK() {
		t.Error("expected NotFound on error")
	}
}
