// Package geom provides axis-aligned box geometry in normalized image
// coordinates, shared by the detection and tracking layers.
package geom

import (
	"fmt"

	"github.com/chewxy/math32"
)

// DefaultMinSize is the smallest normalized extent a clamped box keeps.
// Detections narrower than this carry no usable geometry.
const DefaultMinSize float32 = 0.01

// Box is an axis-aligned bounding box in normalized image coordinates.
// The origin is the frame's top-left corner; X grows rightward, Y grows
// downward, and the box covers [X, X+Width] x [Y, Y+Height] inside the unit
// square. No operation in this package flips an axis.
type Box struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// FromCenter builds a Box from a midpoint and extents.
func FromCenter(cx, cy, w, h float32) Box {
	return Box{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}

// Center returns the box midpoint.
func (b Box) Center() (cx, cy float32) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns Width*Height, or 0 for degenerate extents.
func (b Box) Area() float32 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Intersection returns the overlapping region of two boxes, or a zero Box when
// they are disjoint.
func (b Box) Intersection(o Box) Box {
	x1 := math32.Max(b.X, o.X)
	y1 := math32.Max(b.Y, o.Y)
	x2 := math32.Min(b.X+b.Width, o.X+o.Width)
	y2 := math32.Min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Union returns the smallest box covering both boxes.
func (b Box) Union(o Box) Box {
	x1 := math32.Min(b.X, o.X)
	y1 := math32.Min(b.Y, o.Y)
	x2 := math32.Max(b.X+b.Width, o.X+o.Width)
	y2 := math32.Max(b.Y+b.Height, o.Y+o.Height)
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IOU returns intersection-over-union in [0,1]. Disjoint boxes score 0.
func (b Box) IOU(o Box) float32 {
	inter := b.Intersection(o).Area()
	if inter <= 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// CenterDistance returns the euclidean distance between box midpoints.
func (b Box) CenterDistance(o Box) float32 {
	bx, by := b.Center()
	ox, oy := o.Center()
	return math32.Hypot(bx-ox, by-oy)
}

// SizeSimilarity scores extent agreement: 1 for identical width and height,
// falling toward 0 as either dimension diverges.
func (b Box) SizeSimilarity(o Box) float32 {
	if b.Width <= 0 || b.Height <= 0 || o.Width <= 0 || o.Height <= 0 {
		return 0
	}
	rw := math32.Min(b.Width/o.Width, o.Width/b.Width)
	rh := math32.Min(b.Height/o.Height, o.Height/b.Height)
	return rw * rh
}

// FromPixels converts a pixel-space box to normalized coordinates using the
// source frame dimensions. Unknown dimensions pass the values through.
func FromPixels(x, y, w, h float32, frameW, frameH int) Box {
	if frameW <= 0 || frameH <= 0 {
		return Box{X: x, Y: y, Width: w, Height: h}
	}
	fw := float32(frameW)
	fh := float32(frameH)
	return Box{X: x / fw, Y: y / fh, Width: w / fw, Height: h / fh}
}

// Pixels converts the box back to pixel space, the inverse of FromPixels up to
// float rounding.
func (b Box) Pixels(frameW, frameH int) (x, y, w, h float32) {
	fw := float32(frameW)
	fh := float32(frameH)
	return b.X * fw, b.Y * fh, b.Width * fw, b.Height * fh
}

// Clamp forces the box into the unit square: extents into [minSize, 1],
// position into [0, 1], then shifted so the far edges stay inside. NaN fields
// collapse to the low bound.
func (b Box) Clamp(minSize float32) Box {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	w := clampRange(b.Width, minSize, 1)
	h := clampRange(b.Height, minSize, 1)
	x := Clamp01(b.X)
	y := Clamp01(b.Y)
	if x+w > 1 {
		x = 1 - w
	}
	if y+h > 1 {
		y = 1 - h
	}
	return Box{X: x, Y: y, Width: w, Height: h}
}

// ClampUnit is Clamp with DefaultMinSize.
func (b Box) ClampUnit() Box { return b.Clamp(DefaultMinSize) }

// Clamp01 limits v to [0,1].
func Clamp01(v float32) float32 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float32) float32 {
	if math32.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// Validate returns an error unless every field is finite, extents are
// positive, and the box lies inside the unit square.
func (b Box) Validate() error {
	if !Finite(b.X) || !Finite(b.Y) || !Finite(b.Width) || !Finite(b.Height) {
		return fmt.Errorf("box has non-finite field: %+v", b)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("box has non-positive extent: %gx%g", b.Width, b.Height)
	}
	if b.X < 0 || b.Y < 0 || b.X+b.Width > 1+1e-6 || b.Y+b.Height > 1+1e-6 {
		return fmt.Errorf("box outside unit square: %+v", b)
	}
	return nil
}
