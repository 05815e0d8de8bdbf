package recognition

import "github.com/Kagami/go-face"

// Facial attribute names understood by Tracker.FacialAttribute.
const (
	AttributeLiveness      = "Liveness"
	AttributeLivenessError = "LivenessError"
)

// Engine is the recognition capability consumed by sessions and the CLI.
//
// Activate must succeed exactly once before any other call; sessions check
// Activated at construction instead of relying on process-wide state.
type Engine interface {
	Activate(licenseKey string) error
	Activated() bool

	// DetectFace returns the most prominent face in a still image or
	// ErrNoFaceDetected.
	DetectFace(image []byte) (Rect, error)

	// ExtractTemplate returns the template of the face inside region.
	ExtractTemplate(image []byte, region Rect) (Template, error)

	// NewTracker creates an empty tracker session.
	NewTracker() (Tracker, error)

	// LoadTracker restores a tracker session from a memory blob.
	LoadTracker(memory []byte) (Tracker, error)

	Close() error
}

// Tracker is a single-threaded cursor over a video stream plus the identity
// memory built from it. Implementations serialize their own state, but
// FeedFrame calls are expected to come from one goroutine at a time.
type Tracker interface {
	// SetParameters applies a "Key=Value; Key=Value" string. On a malformed
	// segment it returns the byte offset of that segment.
	SetParameters(params string) (errorPosition int, err error)

	// FeedFrame processes the next frame and returns the ids visible in it.
	FeedFrame(frame []byte) ([]int64, error)

	// Face returns the bounding box of a visible id in the last frame.
	Face(id int64) (Rect, error)

	// FacialAttribute returns "Name=value;" formatted attribute values.
	FacialAttribute(id int64, name string) (string, error)

	Name(id int64) (string, error)
	SetName(id int64, name string) error
	PurgeID(id int64) error
	IDs() []int64

	MatchFaces(t Template, threshold float32) ([]IDSimilarity, error)
	CreateID(t Template) (int64, error)
	AddFaceTemplate(id int64, t Template) error

	// Save serializes the identity memory.
	Save() ([]byte, error)
	Close() error
}

// FaceEngine is the subset of go-face the dlib engine depends on.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// NewFaceEngine loads the dlib models from modelPath.
func NewFaceEngine(modelPath string) (FaceEngine, error) {
	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
