// Package geom holds the pixel geometry shared by the recognition, display
// and render packages.
package geom

import "image"

// Rect is a face bounding box in source-image pixel coordinates.
// Right >= Left and Bottom >= Top always hold.
type Rect struct {
	Left, Top, Right, Bottom int
}

// RectFromImage converts an image.Rectangle, normalizing inverted corners.
func RectFromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// PointRect is the degenerate box at p.
func PointRect(p image.Point) Rect {
	return Rect{Left: p.X, Top: p.Y, Right: p.X, Bottom: p.Y}
}

// Width returns the box width.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the box height.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether both dimensions are zero.
func (r Rect) Empty() bool { return r.Width() == 0 && r.Height() == 0 }

// Center returns the box center, truncated to integer pixels.
func (r Rect) Center() image.Point {
	return image.Pt((r.Left+r.Right)/2, (r.Top+r.Bottom)/2)
}

// Contains reports whether p lies inside the box, all four edges inclusive.
func (r Rect) Contains(p image.Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Image converts the box back to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}
