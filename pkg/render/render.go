// Package render draws session frames and their overlays.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/fogleman/gg"

	"github.com/MrCodeEU/facetrack/pkg/display"
	"github.com/MrCodeEU/facetrack/pkg/geom"
	"github.com/MrCodeEU/facetrack/pkg/session"
)

// Palette maps overlay colors to RGB.
var Palette = map[session.Color]color.RGBA{
	session.ColorNormal:   {R: 144, G: 238, B: 144, A: 255}, // light green
	session.ColorAlert:    {R: 255, G: 0, B: 0, A: 255},
	session.ColorWarning:  {R: 255, G: 255, B: 0, A: 255},
	session.ColorSelected: {R: 0, G: 0, B: 255, A: 255},
}

// ColorOf returns the RGB value of c, falling back to the normal color.
func ColorOf(c session.Color) color.RGBA {
	if rgb, ok := Palette[c]; ok {
		return rgb
	}
	return Palette[session.ColorNormal]
}

// Renderer draws frames letterboxed into a display of Size. A frame that
// carries the display size its pointer was resolved against is drawn at
// that size instead.
type Renderer struct {
	Size       image.Point
	LineWidth  float64
	Background color.Color
}

// NewRenderer creates a renderer for a display of the given size.
func NewRenderer(size image.Point) *Renderer {
	return &Renderer{
		Size:       size,
		LineWidth:  2,
		Background: color.Black,
	}
}

// Render decodes the frame image, fits it into the display and draws an
// ellipse per overlay with its label centered below the face.
func (r *Renderer) Render(f *session.Frame) (image.Image, error) {
	src, err := jpeg.Decode(bytes.NewReader(f.Image))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", f.Seq, err)
	}

	size := f.Display
	if size.X <= 0 || size.Y <= 0 {
		size = r.Size
	}
	if size.X <= 0 || size.Y <= 0 {
		size = src.Bounds().Size()
	}
	fit := display.NewFit(src.Bounds().Size(), size)

	dc := gg.NewContext(size.X, size.Y)
	dc.SetColor(r.Background)
	dc.Clear()

	dc.Push()
	dc.Translate(fit.OffsetX, fit.OffsetY)
	dc.Scale(fit.Scale, fit.Scale)
	dc.DrawImage(src, 0, 0)
	dc.Pop()

	dc.SetLineWidth(r.LineWidth)
	for _, ov := range f.Overlays {
		drawOverlay(dc, fit, ov)
	}

	return dc.Image(), nil
}

func drawOverlay(dc *gg.Context, fit display.Fit, ov session.Overlay) {
	box := fit.ToDisplay(ov.Box)
	c := box.Center()

	dc.SetColor(ColorOf(ov.Color))
	dc.DrawEllipse(float64(c.X), float64(c.Y), float64(box.Width())/2, float64(box.Height())/2)
	dc.Stroke()

	if ov.Label == "" {
		return
	}
	at := fit.ToDisplay(geom.PointRect(ov.LabelAt))
	dc.DrawStringAnchored(ov.Label, float64(at.Left), float64(at.Top), 0.5, 1)
}
