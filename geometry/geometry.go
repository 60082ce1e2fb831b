// Package geometry translates and clips annotation geometries into
// window-local coordinates. The supported kinds form a closed set: point,
// box (orb.Bound) and polygon.
package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/pkg/errors"

	"github.com/aerialml/rastersplit/windows"
)

// Kind identifies one of the supported geometry kinds.
type Kind int

const (
	// KindPoint is a single (x, y) location.
	KindPoint Kind = iota
	// KindBox is an axis-aligned bounding box.
	KindBox
	// KindPolygon is a closed ring of vertices.
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindBox:
		return "box"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// KindOf classifies a geometry, rejecting anything outside the closed set.
func KindOf(g orb.Geometry) (Kind, error) {
	switch g.(type) {
	case orb.Point:
		return KindPoint, nil
	case orb.Bound:
		return KindBox, nil
	case orb.Polygon:
		return KindPolygon, nil
	default:
		return 0, errors.Errorf("unsupported geometry type %T", g)
	}
}

// Intersects reports whether a geometry overlaps a window.
//
// Points use half-open membership (minX <= x < maxX, same for y), matching
// the pixel coverage of the window so a point on a shared edge between two
// adjacent windows belongs to exactly one of them. Boxes and polygons
// require positive-area overlap, so zero-area placeholder boxes are never
// selected and neither are boxes that merely touch a window edge.
func Intersects(g orb.Geometry, w windows.Window) bool {
	switch v := g.(type) {
	case orb.Point:
		return v.X() >= float64(w.MinX) && v.X() < float64(w.MaxX) &&
			v.Y() >= float64(w.MinY) && v.Y() < float64(w.MaxY)
	case orb.Bound:
		return rectOverlap(v, w.Bound())
	case orb.Polygon:
		return rectOverlap(v.Bound(), w.Bound())
	default:
		return false
	}
}

// TranslateClip rewrites a geometry into the window's local frame, clipping
// it to the patch rectangle. The second return value is false when nothing
// remains: a point outside the window, a box that clamps to zero area, or a
// polygon fully outside the patch.
//
// Translation alone is lossless: adding the window origin back to an
// unclipped result reproduces the input exactly.
func TranslateClip(g orb.Geometry, w windows.Window) (orb.Geometry, bool) {
	patch := orb.Bound{
		Max: orb.Point{float64(w.Width()), float64(w.Height())},
	}

	switch v := g.(type) {
	case orb.Point:
		if !Intersects(v, w) {
			return nil, false
		}
		return orb.Point{v.X() - float64(w.MinX), v.Y() - float64(w.MinY)}, true

	case orb.Bound:
		moved := orb.Bound{
			Min: orb.Point{v.Min.X() - float64(w.MinX), v.Min.Y() - float64(w.MinY)},
			Max: orb.Point{v.Max.X() - float64(w.MinX), v.Max.Y() - float64(w.MinY)},
		}
		clipped := orb.Bound{
			Min: orb.Point{clamp(moved.Min.X(), patch.Max.X()), clamp(moved.Min.Y(), patch.Max.Y())},
			Max: orb.Point{clamp(moved.Max.X(), patch.Max.X()), clamp(moved.Max.Y(), patch.Max.Y())},
		}
		if clipped.Min.X() >= clipped.Max.X() || clipped.Min.Y() >= clipped.Max.Y() {
			return nil, false
		}
		return clipped, true

	case orb.Polygon:
		moved := make(orb.Polygon, len(v))
		for i, ring := range v {
			r := make(orb.Ring, len(ring))
			for j, pt := range ring {
				r[j] = orb.Point{pt.X() - float64(w.MinX), pt.Y() - float64(w.MinY)}
			}
			moved[i] = r
		}
		// A polygon already inside the patch needs no clipping; skipping it
		// keeps translation lossless vertex for vertex.
		mb := moved.Bound()
		if mb.Min.X() >= 0 && mb.Min.Y() >= 0 &&
			mb.Max.X() <= patch.Max.X() && mb.Max.Y() <= patch.Max.Y() {
			return moved, true
		}
		clipped := clip.Polygon(patch, moved)
		if len(clipped) == 0 || len(clipped[0]) == 0 {
			return nil, false
		}
		return clipped, true

	default:
		return nil, false
	}
}

// rectOverlap reports positive-area overlap between two bounds.
func rectOverlap(a, b orb.Bound) bool {
	ix1 := max(a.Min.X(), b.Min.X())
	iy1 := max(a.Min.Y(), b.Min.Y())
	ix2 := min(a.Max.X(), b.Max.X())
	iy2 := min(a.Max.Y(), b.Max.Y())
	return ix2-ix1 > 0 && iy2-iy1 > 0
}

// clamp limits a coordinate to [0, limit].
func clamp(v, limit float64) float64 {
	return min(max(v, 0), limit)
}
