// Package display maps between display (window) coordinates and source image
// coordinates when the image is letterboxed or pillarboxed into the display:
// scaled uniformly to fit and centered.
package display

import (
	"image"

	"github.com/MrCodeEU/facetrack/pkg/geom"
)

// Fit describes how an image of one size is drawn into a display of another.
type Fit struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	DrawW   float64
	DrawH   float64
}

// NewFit computes the letterbox fit of image into display. A degenerate size
// yields a zero Fit, for which every point is outside.
func NewFit(img, disp image.Point) Fit {
	if img.X <= 0 || img.Y <= 0 || disp.X <= 0 || disp.Y <= 0 {
		return Fit{}
	}

	scale := min(float64(disp.X)/float64(img.X), float64(disp.Y)/float64(img.Y))
	drawW := float64(img.X) * scale
	drawH := float64(img.Y) * scale

	return Fit{
		Scale:   scale,
		OffsetX: (float64(disp.X) - drawW) / 2,
		OffsetY: (float64(disp.Y) - drawH) / 2,
		DrawW:   drawW,
		DrawH:   drawH,
	}
}

// ToImage maps a display point to image coordinates. ok is false when the
// point falls in the letterbox bands or outside the display.
func (f Fit) ToImage(p image.Point) (image.Point, bool) {
	if f.Scale <= 0 {
		return image.Point{}, false
	}

	x, y := float64(p.X), float64(p.Y)
	if x < f.OffsetX || x >= f.OffsetX+f.DrawW || y < f.OffsetY || y >= f.OffsetY+f.DrawH {
		return image.Point{}, false
	}

	return image.Pt(int((x-f.OffsetX)/f.Scale), int((y-f.OffsetY)/f.Scale)), true
}

// ToDisplay maps an image rectangle into display coordinates.
func (f Fit) ToDisplay(r geom.Rect) geom.Rect {
	return geom.Rect{
		Left:   int(float64(r.Left)*f.Scale + f.OffsetX),
		Top:    int(float64(r.Top)*f.Scale + f.OffsetY),
		Right:  int(float64(r.Right)*f.Scale + f.OffsetX),
		Bottom: int(float64(r.Bottom)*f.Scale + f.OffsetY),
	}
}

// Resolve maps a display pointer to image coordinates for an image of size
// img drawn into a display of size disp.
func Resolve(pointer, img, disp image.Point) (image.Point, bool) {
	return NewFit(img, disp).ToImage(pointer)
}

// Hit reports whether the image point lies in box, edges inclusive.
func Hit(box geom.Rect, p image.Point) bool {
	return box.Contains(p)
}
