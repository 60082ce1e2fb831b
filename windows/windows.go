// Package windows computes the sliding-window tiling of a raster.
package windows

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrPatchTooLarge is returned when the requested patch size does not fit
// inside the raster on at least one axis.
var ErrPatchTooLarge = errors.New("patch size exceeds raster dimensions")

// Window is one rectangular crop region in full-image pixel coordinates.
// MaxX and MaxY are exclusive (like image.Rectangle).
type Window struct {
	MinX, MinY, MaxX, MaxY int
}

// Width returns the window width in pixels.
func (w Window) Width() int { return w.MaxX - w.MinX }

// Height returns the window height in pixels.
func (w Window) Height() int { return w.MaxY - w.MinY }

// Rect converts the window to an image.Rectangle for cropping.
func (w Window) Rect() image.Rectangle {
	return image.Rect(w.MinX, w.MinY, w.MaxX, w.MaxY)
}

// Bound converts the window to an orb.Bound in full-image coordinates.
func (w Window) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(w.MinX), float64(w.MinY)},
		Max: orb.Point{float64(w.MaxX), float64(w.MaxY)},
	}
}

// Compute returns the ordered set of windows tiling a height x width raster
// with the given patch size and overlap fraction.
//
// The stride between consecutive offsets is patchSize*(1-patchOverlap),
// rounded to an integer and never below 1. Offsets run from 0 in stride
// steps; a final offset flush with the far edge is appended when the stride
// does not land on it, so the last window always touches the boundary even
// if that adds extra overlap. Windows are emitted row-major (y outer,
// x inner), and downstream patch naming depends on that order being stable.
//
// Arguments:
//   - height: raster height in pixels.
//   - width: raster width in pixels.
//   - patchSize: side length of each square window.
//   - patchOverlap: fraction in [0, 1) of patchSize shared by neighbors.
//
// Returns:
//   - []Window: the windows in deterministic row-major order.
//   - error: ErrPatchTooLarge if patchSize exceeds height or width, or an
//     argument error for a non-positive patch size or an overlap outside [0, 1).
func Compute(height, width, patchSize int, patchOverlap float64) ([]Window, error) {
	if patchSize <= 0 {
		return nil, errors.Errorf("patch size must be positive, got %d", patchSize)
	}
	if patchOverlap < 0 || patchOverlap >= 1 {
		return nil, errors.Errorf("patch overlap must be in [0, 1), got %g", patchOverlap)
	}
	if patchSize > height || patchSize > width {
		return nil, errors.Wrapf(ErrPatchTooLarge,
			"patch size %d vs raster %dx%d", patchSize, width, height)
	}

	stride := int(math.Round(float64(patchSize) * (1 - patchOverlap)))
	if stride < 1 {
		stride = 1
	}

	xs := offsets(width, patchSize, stride)
	ys := offsets(height, patchSize, stride)

	wins := make([]Window, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			wins = append(wins, Window{
				MinX: x,
				MinY: y,
				MaxX: x + patchSize,
				MaxY: y + patchSize,
			})
		}
	}
	return wins, nil
}

// offsets generates the start positions along one axis, always including a
// final position flush with the far edge.
func offsets(dim, patchSize, stride int) []int {
	last := dim - patchSize
	var out []int
	for o := 0; o <= last; o += stride {
		out = append(out, o)
	}
	if out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}
