// Package camera provides camera enumeration and frame capture. Frames are
// handed out JPEG-encoded so they can go straight to the recognition engine.
package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frame represents a single camera frame.
type Frame struct {
	Data      []byte // JPEG
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// DeviceInfo contains information about a camera device.
type DeviceInfo struct {
	Path string
	Name string
}

// String returns the name shown to users.
func (d DeviceInfo) String() string {
	if d.Name == "" || d.Name == d.Path {
		return d.Path
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Path)
}

// VideoFormat is one capture format a camera supports.
type VideoFormat struct {
	PixelFormat string
	Width       int
	Height      int
}

func (f VideoFormat) String() string {
	return fmt.Sprintf("%s %dx%d", f.PixelFormat, f.Width, f.Height)
}

// Source enumerates and opens cameras.
type Source interface {
	List() ([]DeviceInfo, error)
	Formats(device string) ([]VideoFormat, error)
	Open(device string, format *VideoFormat) (Device, error)
}

// Device is an open camera.
type Device interface {
	// Grab returns the next frame, or ErrNoFrame when none arrived within the
	// device's frame timeout. It never blocks past ctx.
	Grab(ctx context.Context) (*Frame, error)
	Info() DeviceInfo
	Close() error
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrNoCamera is returned when no camera is available at all.
var ErrNoCamera = errors.New("no camera available")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// SelectDevice picks the configured device from the list, matching either its
// path or its name. An empty want selects the first camera.
func SelectDevice(devices []DeviceInfo, want string) (DeviceInfo, error) {
	if len(devices) == 0 {
		return DeviceInfo{}, ErrNoCamera
	}
	if want == "" {
		return devices[0], nil
	}
	for _, d := range devices {
		if d.Path == want || strings.EqualFold(d.Name, want) {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: %s", ErrCameraNotFound, want)
}

// BestFormat returns the largest format. A format replaces the current best
// only when both its width and height are strictly larger.
func BestFormat(formats []VideoFormat) (VideoFormat, bool) {
	if len(formats) == 0 {
		return VideoFormat{}, false
	}
	best := formats[0]
	for _, f := range formats[1:] {
		if f.Width > best.Width && f.Height > best.Height {
			best = f
		}
	}
	return best, true
}

// frameSlot holds the most recent frame. Publishing never blocks: an unread
// frame is replaced by the newer one.
type frameSlot struct {
	ch chan *Frame
}

func newFrameSlot() *frameSlot {
	return &frameSlot{ch: make(chan *Frame, 1)}
}

// publish stores f and reports whether an unread frame was replaced.
func (s *frameSlot) publish(f *Frame) (dropped bool) {
	for {
		select {
		case s.ch <- f:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}

// wait returns the next frame, ErrNoFrame after timeout, or ctx's error.
func (s *frameSlot) wait(ctx context.Context, timeout time.Duration) (*Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-s.ch:
		return f, nil
	case <-timer.C:
		return nil, ErrNoFrame
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
