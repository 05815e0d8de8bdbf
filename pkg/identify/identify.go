// Package identify matches a face in a still image against known identities.
package identify

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

// DefaultThreshold is the lowest similarity reported as a candidate.
const DefaultThreshold float32 = 0.1

// MaxStillSize bounds the longer side of a still before detection.
const MaxStillSize = 1920

// ErrNoMatch is returned when no identity is similar enough.
var ErrNoMatch = errors.New("no matches found")

// ErrImageFormat is returned for files that are not a supported image.
var ErrImageFormat = errors.New("unsupported image")

// Detector finds faces and extracts templates from still images.
type Detector interface {
	DetectFace(image []byte) (recognition.Rect, error)
	ExtractTemplate(image []byte, region recognition.Rect) (recognition.Template, error)
}

// Gallery matches templates against stored identities.
type Gallery interface {
	MatchFaces(t recognition.Template, threshold float32) ([]recognition.IDSimilarity, error)
}

// Names resolves identity names; "" when unnamed.
type Names interface {
	Name(id int64) string
}

// Candidate is one possible identity for the face.
type Candidate struct {
	ID         int64
	Name       string
	Similarity float32
}

// Result holds the detected face and its candidates, best first.
type Result struct {
	Face       recognition.Rect
	Template   recognition.Template
	Candidates []Candidate
}

// Identifier runs one-shot identification.
type Identifier struct {
	detector  Detector
	gallery   Gallery
	names     Names
	Threshold float32
}

// New creates an identifier using DefaultThreshold.
func New(detector Detector, gallery Gallery, names Names) *Identifier {
	return &Identifier{
		detector:  detector,
		gallery:   gallery,
		names:     names,
		Threshold: DefaultThreshold,
	}
}

// Identify detects the face in img, extracts its template and matches it.
// It returns recognition.ErrNoFaceDetected when the image has no face and
// ErrNoMatch when no identity reaches the threshold; the Result is still
// filled with the face in the latter case.
func (i *Identifier) Identify(img []byte) (*Result, error) {
	box, err := i.detector.DetectFace(img)
	if err != nil {
		return nil, err
	}

	tmpl, err := i.detector.ExtractTemplate(img, box)
	if err != nil {
		return nil, fmt.Errorf("could not extract face template: %w", err)
	}

	res := &Result{Face: box, Template: tmpl}

	matches, err := i.gallery.MatchFaces(tmpl, i.Threshold)
	if err != nil {
		return res, fmt.Errorf("failed to match face: %w", err)
	}
	if len(matches) == 0 {
		return res, fmt.Errorf("%w above threshold %s", ErrNoMatch, formatFloat(i.Threshold))
	}

	for _, m := range matches {
		res.Candidates = append(res.Candidates, Candidate{
			ID:         m.ID,
			Name:       i.names.Name(m.ID),
			Similarity: m.Similarity,
		})
	}

	logging.Component("identify").WithFields(logging.Fields{
		"candidates": len(res.Candidates),
		"best_id":    res.Candidates[0].ID,
	}).Debug("Face identified")

	return res, nil
}

// IdentifyFile loads a still image from path and identifies it.
func (i *Identifier) IdentifyFile(path string) (*Result, error) {
	img, err := LoadStill(path)
	if err != nil {
		return nil, err
	}
	return i.Identify(img)
}

// Report formats the candidates for display.
func (r *Result) Report() string {
	var b strings.Builder
	b.WriteString("The possible person(s):\n")
	for _, c := range r.Candidates {
		fmt.Fprintf(&b, "\nID: %d", c.ID)
		if c.Name != "" {
			fmt.Fprintf(&b, " (%s)", c.Name)
		}
		b.WriteString("; Similarity: " + formatFloat(c.Similarity))
	}
	return b.String()
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// LoadStill reads a JPEG, PNG, BMP or WebP file and returns it as JPEG, the
// only format the recognition engine accepts. Large images are scaled down
// to MaxStillSize.
func LoadStill(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening image file: %w", err)
	}
	return NormalizeStill(data)
}

// NormalizeStill converts encoded image data to JPEG. JPEG input within
// MaxStillSize is returned unchanged.
func NormalizeStill(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageFormat, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= MaxStillSize && height <= MaxStillSize {
		if format == "jpeg" {
			return data, nil
		}
		return encodeJPEG(img)
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = MaxStillSize
		newHeight = int(float64(height) * float64(MaxStillSize) / float64(width))
	} else {
		newHeight = MaxStillSize
		newWidth = int(float64(width) * float64(MaxStillSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return encodeJPEG(resized)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
