package input

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jmylchreest/farewatch/internal/geom"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// Xdotool implements Pointer with the xdotool binary on X11.
type Xdotool struct {
	bin string
	run Runner
}

// XdotoolOption configures an Xdotool pointer.
type XdotoolOption func(*Xdotool)

// WithRunner replaces command execution. Intended for tests.
func WithRunner(r Runner) XdotoolOption {
	return func(x *Xdotool) { x.run = r }
}

// WithBinary sets the xdotool path; the PATH and DISPLAY checks are skipped.
func WithBinary(path string) XdotoolOption {
	return func(x *Xdotool) { x.bin = path }
}

// NewXdotool locates xdotool and checks that a display is available.
// Either failure wraps ErrChannelUnavailable.
func NewXdotool(opts ...XdotoolOption) (*Xdotool, error) {
	x := &Xdotool{run: execRunner}
	for _, opt := range opts {
		opt(x)
	}
	if x.bin == "" {
		path, err := exec.LookPath("xdotool")
		if err != nil {
			return nil, fmt.Errorf("%w: xdotool not found: %v", ErrChannelUnavailable, err)
		}
		x.bin = path
		if os.Getenv("DISPLAY") == "" {
			return nil, fmt.Errorf("%w: DISPLAY is not set", ErrChannelUnavailable)
		}
	}
	return x, nil
}

func (x *Xdotool) exec(ctx context.Context, args ...string) ([]byte, error) {
	out, err := x.run(ctx, x.bin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: xdotool %s: %v", ErrChannelUnavailable, args[0], err)
	}
	return out, nil
}

// Position implements Pointer.
func (x *Xdotool) Position(ctx context.Context) (geom.Point, error) {
	out, err := x.exec(ctx, "getmouselocation", "--shell")
	if err != nil {
		return geom.Point{}, err
	}
	vals := parseShell(out)
	px, errX := strconv.Atoi(vals["X"])
	py, errY := strconv.Atoi(vals["Y"])
	if errX != nil || errY != nil {
		return geom.Point{}, fmt.Errorf("%w: unexpected getmouselocation output %q", ErrChannelUnavailable, out)
	}
	return geom.Pt(float64(px), float64(py)), nil
}

// MoveAbs implements Pointer.
func (x *Xdotool) MoveAbs(ctx context.Context, p geom.Point) error {
	_, err := x.exec(ctx, "mousemove", strconv.Itoa(round(p.X)), strconv.Itoa(round(p.Y)))
	return err
}

// Down implements Pointer.
func (x *Xdotool) Down(ctx context.Context) error {
	_, err := x.exec(ctx, "mousedown", "1")
	return err
}

// Up implements Pointer.
func (x *Xdotool) Up(ctx context.Context) error {
	_, err := x.exec(ctx, "mouseup", "1")
	return err
}

// WindowOrigin finds the first window whose title matches name and returns
// its screen position shifted by contentOffset, the distance from the window
// corner to the page viewport.
func (x *Xdotool) WindowOrigin(ctx context.Context, name string, contentOffset geom.Point) (geom.ScreenOrigin, error) {
	out, err := x.exec(ctx, "search", "--onlyvisible", "--name", name)
	if err != nil {
		return geom.ScreenOrigin{}, err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return geom.ScreenOrigin{}, fmt.Errorf("%w: no window matching %q", ErrOriginNotRegistered, name)
	}

	out, err = x.exec(ctx, "getwindowgeometry", "--shell", fields[0])
	if err != nil {
		return geom.ScreenOrigin{}, err
	}
	vals := parseShell(out)
	wx, errX := strconv.Atoi(vals["X"])
	wy, errY := strconv.Atoi(vals["Y"])
	if errX != nil || errY != nil {
		return geom.ScreenOrigin{}, fmt.Errorf("%w: unexpected getwindowgeometry output %q", ErrOriginNotRegistered, out)
	}
	return geom.NewScreenOrigin(wx+round(contentOffset.X), wy+round(contentOffset.Y)), nil
}

// parseShell reads KEY=VALUE lines as printed by xdotool --shell.
func parseShell(out []byte) map[string]string {
	vals := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok {
			vals[k] = v
		}
	}
	return vals
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
