package detect

import (
	"fmt"

	"github.com/courtside-data/playerlock/geom"
)

// RawDetection is the wire shape of one detector box. Pointer fields keep
// "absent" distinguishable from zero so the normalizer can tell which encoding
// the producer used. Bare x/y follow the detector's own convention and mean
// the box center.
type RawDetection struct {
	ID         string   `json:"id"`
	X          *float32 `json:"x"`
	Y          *float32 `json:"y"`
	CenterX    *float32 `json:"centerX"`
	CenterY    *float32 `json:"centerY"`
	TopLeftX   *float32 `json:"topLeftX"`
	TopLeftY   *float32 `json:"topLeftY"`
	Width      *float32 `json:"width"`
	Height     *float32 `json:"height"`
	Confidence *float32 `json:"confidence"`
}

// defaultConfidence is assumed when a producer omits the field entirely.
const defaultConfidence float32 = 0.5

// Normalize converts a raw detector box into the canonical Detection.
// Resolution order:
//
//  1. Explicit top-left and explicit center both present: trusted as-is.
//  2. One origin present: the other is derived from width/height.
//  3. Coordinates larger than 1 with known frame dimensions: converted from
//     pixel scale first, then resolved as above.
//
// Positions are clamped to [0,1] and extents to [geom.DefaultMinSize, 1].
// Entries with no usable extents, no origin, non-finite values, or pixel-scale
// coordinates without frame dimensions are rejected with
// ErrMalformedDetection.
func Normalize(raw RawDetection, frameW, frameH int) (Detection, error) {
	w, ok := rawField(raw.Width)
	if !ok || w <= 0 {
		return Detection{}, fmt.Errorf("%w: unusable width", ErrMalformedDetection)
	}
	h, ok := rawField(raw.Height)
	if !ok || h <= 0 {
		return Detection{}, fmt.Errorf("%w: unusable height", ErrMalformedDetection)
	}

	cx, cy, hasCenter, err := originPair(raw.CenterX, raw.CenterY, raw.X, raw.Y)
	if err != nil {
		return Detection{}, err
	}
	tlx, tly, hasTopLeft, err := originPair(raw.TopLeftX, raw.TopLeftY, nil, nil)
	if err != nil {
		return Detection{}, err
	}
	if !hasCenter && !hasTopLeft {
		return Detection{}, fmt.Errorf("%w: no origin coordinates", ErrMalformedDetection)
	}

	if looksLikePixels(w, h, cx, cy, tlx, tly, hasCenter, hasTopLeft) {
		if frameW <= 0 || frameH <= 0 {
			return Detection{}, fmt.Errorf("%w: pixel-scale coordinates without frame dimensions", ErrMalformedDetection)
		}
		fw, fh := float32(frameW), float32(frameH)
		w, h = w/fw, h/fh
		cx, cy = cx/fw, cy/fh
		tlx, tly = tlx/fw, tly/fh
	}

	w = clampSize(w)
	h = clampSize(h)
	switch {
	case hasCenter && hasTopLeft:
		// Both encodings supplied: trust each without forcing consistency.
	case hasCenter:
		tlx, tly = cx-w/2, cy-h/2
	default:
		cx, cy = tlx+w/2, tly+h/2
	}

	conf := defaultConfidence
	if raw.Confidence != nil {
		conf = geom.Clamp01(*raw.Confidence)
	}

	return Detection{
		ID:         raw.ID,
		X:          geom.Clamp01(tlx),
		Y:          geom.Clamp01(tly),
		Width:      w,
		Height:     h,
		CenterX:    geom.Clamp01(cx),
		CenterY:    geom.Clamp01(cy),
		Confidence: conf,
	}, nil
}

// originPair resolves one coordinate pair, preferring the explicit fields and
// falling back to the bare pair. Both components must be present together.
func originPair(ex, ey, bx, by *float32) (x, y float32, ok bool, err error) {
	px, py := ex, ey
	if px == nil && py == nil {
		px, py = bx, by
	}
	if px == nil && py == nil {
		return 0, 0, false, nil
	}
	if px == nil || py == nil {
		return 0, 0, false, fmt.Errorf("%w: origin missing one axis", ErrMalformedDetection)
	}
	if !geom.Finite(*px) || !geom.Finite(*py) {
		return 0, 0, false, fmt.Errorf("%w: non-finite origin", ErrMalformedDetection)
	}
	return *px, *py, true, nil
}

func rawField(p *float32) (float32, bool) {
	if p == nil || !geom.Finite(*p) {
		return 0, false
	}
	return *p, true
}

// looksLikePixels reports whether any supplied value sits clearly outside the
// unit range. Values at exactly 1.0 are legal normalized coordinates.
func looksLikePixels(w, h, cx, cy, tlx, tly float32, hasCenter, hasTopLeft bool) bool {
	const edge = 1.0001
	if w > edge || h > edge {
		return true
	}
	if hasCenter && (cx > edge || cy > edge) {
		return true
	}
	if hasTopLeft && (tlx > edge || tly > edge) {
		return true
	}
	return false
}

func clampSize(v float32) float32 {
	if v < geom.DefaultMinSize {
		return geom.DefaultMinSize
	}
	if v > 1 {
		return 1
	}
	return v
}
