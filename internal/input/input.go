// Package input drives a pointer toward page targets, either through the
// browser's synthetic events (Virtual) or the operating system's real pointer
// (Physical).
package input

import (
	"context"
	"errors"

	"github.com/jmylchreest/farewatch/internal/geom"
)

var (
	// ErrChannelUnavailable is returned when the OS pointer cannot be driven.
	ErrChannelUnavailable = errors.New("input channel unavailable")

	// ErrOriginNotRegistered is returned when a physical executor is built
	// without a screen origin.
	ErrOriginNotRegistered = errors.New("screen origin not registered")
)

// Channel names.
const (
	ChannelVirtual  = "virtual"
	ChannelPhysical = "physical"
)

// Executor moves a pointer to a page-local point and clicks.
type Executor interface {
	// Channel returns ChannelVirtual or ChannelPhysical.
	Channel() string
	// MoveTo moves the pointer to a page-local point.
	MoveTo(ctx context.Context, p geom.Point) error
	// Click presses and releases the primary button at the current position.
	Click(ctx context.Context) error
	// Tap is MoveTo followed by Click as one uninterrupted gesture.
	Tap(ctx context.Context, p geom.Point) error
}
