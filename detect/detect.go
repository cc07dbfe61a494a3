// Package detect turns raw detector output into one canonical detection
// shape. Detector payloads vary between model versions (center-origin vs
// top-left boxes, normalized vs pixel coordinates, optional fields); everything
// downstream of this package sees only the normalized Detection with both
// origins populated and all values clamped into the unit square.
package detect

import (
	"errors"

	"github.com/courtside-data/playerlock/geom"
)

var (
	// ErrInvalidTimestamp marks a timeline value that is missing, non-finite,
	// negative, or regressing. It guards the module's time domain at every
	// boundary; callers test for it with errors.Is.
	ErrInvalidTimestamp = errors.New("invalid timeline timestamp")

	// ErrMalformedDetection marks a single detection entry that cannot be
	// normalized. The entry is dropped; the rest of its batch is still usable.
	ErrMalformedDetection = errors.New("malformed detection")
)

// Detection is the canonical normalized form of one detector box. Top-left and
// center coordinates are both populated and mutually consistent unless the
// producer explicitly supplied conflicting values, which are trusted as-is.
type Detection struct {
	ID         string
	X          float32 // top-left
	Y          float32
	Width      float32
	Height     float32
	CenterX    float32
	CenterY    float32
	Confidence float32
}

// Box returns the detection's top-left geometry.
func (d Detection) Box() geom.Box {
	return geom.Box{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
}
