package recognition

import (
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/facetrack/pkg/liveness"
	"github.com/MrCodeEU/facetrack/pkg/logging"
)

// Options configures a DlibEngine.
type Options struct {
	ModelPath string
	// Tolerance is the maximum descriptor distance for two faces to be the
	// same identity.
	Tolerance float64
	// Liveness configures the per-track liveness scorer. A zero Frames
	// disables liveness attributes.
	Liveness liveness.Config
}

// DefaultOptions returns options with the dlib defaults.
func DefaultOptions(modelPath string) Options {
	return Options{
		ModelPath: modelPath,
		Tolerance: 0.4,
		Liveness:  liveness.DefaultConfig(),
	}
}

// DlibEngine implements Engine with dlib via go-face.
type DlibEngine struct {
	mu        sync.RWMutex
	rec       FaceEngine
	factory   func(modelPath string) (FaceEngine, error)
	opts      Options
	activated bool
}

// NewDlibEngine creates an engine. Models are loaded by Activate.
func NewDlibEngine(opts Options) *DlibEngine {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.4
	}
	return &DlibEngine{
		factory: NewFaceEngine,
		opts:    opts,
	}
}

// Activate loads the recognition models. dlib needs no license; the key is
// accepted for interface parity and never logged. Calling Activate again
// after success is a no-op.
func (e *DlibEngine) Activate(licenseKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activated {
		return nil
	}

	logging.Component("engine").WithFields(logging.Fields{
		"model_path":  e.opts.ModelPath,
		"license_key": licenseKey != "",
	}).Info("Loading face recognition models")

	rec, err := e.factory(e.opts.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	e.rec = rec
	e.activated = true
	return nil
}

// Activated reports whether Activate succeeded.
func (e *DlibEngine) Activated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activated
}

// recognize runs detection and description on an encoded image.
func (e *DlibEngine) recognize(img []byte) ([]face.Face, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.activated {
		return nil, ErrNotActivated
	}
	if e.rec == nil {
		return nil, ErrModelNotLoaded
	}

	faces, err := e.rec.Recognize(img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	return faces, nil
}

// DetectFace returns the largest face in a still image.
func (e *DlibEngine) DetectFace(img []byte) (Rect, error) {
	faces, err := e.recognize(img)
	if err != nil {
		return Rect{}, err
	}
	f, ok := largest(faces)
	if !ok {
		return Rect{}, ErrNoFaceDetected
	}
	return RectFromImage(f.Rectangle), nil
}

// ExtractTemplate returns the template of the face that overlaps region most.
func (e *DlibEngine) ExtractTemplate(img []byte, region Rect) (Template, error) {
	faces, err := e.recognize(img)
	if err != nil {
		return nil, err
	}

	best, bestArea := -1, 0
	for i, f := range faces {
		overlap := f.Rectangle.Intersect(region.Image())
		if area := overlap.Dx() * overlap.Dy(); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return nil, ErrNoFaceDetected
	}
	return EncodeTemplate(faces[best].Descriptor), nil
}

// NewTracker creates an empty tracker.
func (e *DlibEngine) NewTracker() (Tracker, error) {
	if !e.Activated() {
		return nil, ErrNotActivated
	}
	return newDlibTracker(e, newMemory()), nil
}

// LoadTracker restores a tracker from a memory blob.
func (e *DlibEngine) LoadTracker(data []byte) (Tracker, error) {
	if !e.Activated() {
		return nil, ErrNotActivated
	}
	mem, err := decodeMemory(data)
	if err != nil {
		return nil, err
	}
	return newDlibTracker(e, mem), nil
}

// Close releases the dlib models.
func (e *DlibEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	e.activated = false
	return nil
}

func (e *DlibEngine) tolerance() float64 {
	return e.opts.Tolerance
}

func largest(faces []face.Face) (face.Face, bool) {
	var best face.Face
	bestArea := -1
	for _, f := range faces {
		if a := f.Rectangle.Dx() * f.Rectangle.Dy(); a > bestArea {
			best, bestArea = f, a
		}
	}
	return best, bestArea >= 0
}
