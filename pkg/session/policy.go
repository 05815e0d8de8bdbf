package session

import (
	"fmt"
	"image"

	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

// ClassifyLiveness maps a liveness readout to an overlay color and the text
// appended to the label. An error wins over any score; a score below one half
// is marked as an alert without text.
func ClassifyLiveness(score float64, errText string) (Color, string) {
	if errText != "" {
		return ColorWarning, "Liveness: " + errText
	}
	if score > 0 {
		if score < 0.5 {
			return ColorAlert, ""
		}
		return ColorNormal, fmt.Sprintf("Liveness: %.2f%%", score*100)
	}
	return ColorNormal, ""
}

// Label joins a name and a liveness suffix. Either part alone is shown as is.
func Label(name, suffix string) string {
	switch {
	case name != "" && suffix != "":
		return name + " (" + suffix + ")"
	case name != "":
		return name
	default:
		return suffix
	}
}

// BuildOverlay creates the render instruction for a face. selected reports
// whether the pointer is over the face.
func BuildOverlay(f TrackedFace, selected bool) Overlay {
	color, suffix := ClassifyLiveness(f.LivenessScore, f.LivenessError)
	if selected {
		color = ColorSelected
	}
	return Overlay{
		ID:      f.ID,
		Box:     f.Box,
		Color:   color,
		Label:   Label(f.Name, suffix),
		LabelAt: labelAnchor(f.Box),
	}
}

// labelAnchor is the bottom center of the box.
func labelAnchor(box recognition.Rect) image.Point {
	return image.Pt(box.Center().X, box.Bottom)
}

// readLiveness fetches the liveness attributes of a visible id. The error
// attribute is only consulted once a score was read, and any failure leaves
// what was read so far.
func readLiveness(tr recognition.Tracker, id int64) (score float64, errText string) {
	attr, err := tr.FacialAttribute(id, recognition.AttributeLiveness)
	if err != nil {
		return 0, ""
	}
	v, err := recognition.ValueConfidence(attr, recognition.AttributeLiveness)
	if err != nil {
		return 0, ""
	}
	score = float64(v)

	attr, err = tr.FacialAttribute(id, recognition.AttributeLivenessError)
	if err != nil {
		return score, ""
	}
	errText, err = recognition.AttributeValue(attr, recognition.AttributeLivenessError)
	if err != nil {
		return score, ""
	}
	return score, errText
}
