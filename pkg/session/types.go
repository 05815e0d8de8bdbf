package session

import (
	"image"
	"time"

	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

// NoSelection is the selected id when no face is under the pointer.
const NoSelection int64 = -1

// State is the phase of the frame loop.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateTracking
	StateRendering
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateTracking:
		return "tracking"
	case StateRendering:
		return "rendering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Color is the semantic color of an overlay.
type Color int

const (
	ColorNormal Color = iota
	ColorAlert
	ColorWarning
	ColorSelected
)

func (c Color) String() string {
	switch c {
	case ColorNormal:
		return "normal"
	case ColorAlert:
		return "alert"
	case ColorWarning:
		return "warning"
	case ColorSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// TrackedFace is one identity visible in a frame.
type TrackedFace struct {
	ID   int64
	Box  recognition.Rect
	Name string
	// LivenessScore is zero when not computed.
	LivenessScore float64
	// LivenessError is non-empty when liveness could not be assessed; the
	// score is then meaningless.
	LivenessError string
}

// Overlay is the render instruction for one face: an ellipse inscribed in
// Box and, when Label is non-empty, the label centered at LabelAt.
type Overlay struct {
	ID      int64
	Box     recognition.Rect
	Color   Color
	Label   string
	LabelAt image.Point
}

// Frame is one processed camera frame together with everything drawn on it.
// Frames are immutable once published.
type Frame struct {
	Seq       uint64
	Image     []byte // JPEG
	Width     int
	Height    int
	Timestamp time.Time

	Faces    []TrackedFace
	Overlays []Overlay

	// Display is the display size the pointer was resolved against; zero
	// when no display size is known.
	Display image.Point

	// Pointer is the pointer in image coordinates; valid only when
	// PointerInImage is set.
	Pointer        image.Point
	PointerInImage bool
	Selected       int64
}

// Size returns the image size.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}
