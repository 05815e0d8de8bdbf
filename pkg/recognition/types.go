// Package recognition provides the face recognition engine used by a live
// session: still-image detection, template extraction, a frame-fed tracker
// that assigns persistent identity ids, template matching and the tracker
// memory blob. The Engine and Tracker interfaces are the whole capability
// surface the session consumes; DlibEngine implements them with dlib via
// go-face.
package recognition

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facetrack/pkg/geom"
)

// Rect is a face bounding box in source-image pixel coordinates.
type Rect = geom.Rect

// RectFromImage converts an image.Rectangle, normalizing inverted corners.
func RectFromImage(r image.Rectangle) Rect {
	return geom.RectFromImage(r)
}

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// TemplateSize is the encoded size of a face template in bytes.
const TemplateSize = len(Descriptor{}) * 4

// Template is an opaque biometric template produced by ExtractTemplate.
type Template []byte

// EncodeTemplate serializes a descriptor as little-endian float32 values.
func EncodeTemplate(d Descriptor) Template {
	t := make(Template, TemplateSize)
	for i, v := range d {
		binary.LittleEndian.PutUint32(t[i*4:], math.Float32bits(v))
	}
	return t
}

// Descriptor decodes the template back into a descriptor.
func (t Template) Descriptor() (Descriptor, error) {
	var d Descriptor
	if len(t) != TemplateSize {
		return d, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidTemplate, len(t), TemplateSize)
	}
	for i := range d {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(t[i*4:]))
	}
	return d, nil
}

// IDSimilarity is one match candidate returned by MatchFaces.
type IDSimilarity struct {
	ID         int64
	Similarity float32
}

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// ErrNotActivated is returned when the engine is used before Activate.
var ErrNotActivated = errors.New("recognition engine not activated")

// ErrUnknownID is returned for an id the tracker does not know or does not see.
var ErrUnknownID = errors.New("unknown id")

// ErrInvalidTemplate is returned for a template of the wrong size.
var ErrInvalidTemplate = errors.New("invalid face template")

// ErrAttributeNotFound is returned when a facial attribute has no value.
var ErrAttributeNotFound = errors.New("facial attribute not found")

// ErrInvalidParameters is returned for a malformed parameter string.
var ErrInvalidParameters = errors.New("invalid parameter string")

// ErrMemoryFormat is returned for a tracker memory blob that cannot be decoded.
var ErrMemoryFormat = errors.New("invalid tracker memory")

// ErrTrackerClosed is returned when a closed tracker is used.
var ErrTrackerClosed = errors.New("tracker closed")
