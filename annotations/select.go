package annotations

import (
	"github.com/aerialml/rastersplit/geometry"
	"github.com/aerialml/rastersplit/windows"
)

// Select returns the annotations intersecting one window, with geometries
// rewritten into window-local coordinates and clipped to the patch extent.
// Row order is preserved; label and image identifier pass through unchanged.
// Rows whose geometry clips away entirely are dropped, so every surviving
// box and polygon lies within [0, patch] and every point within [0, patch).
func Select(table Table, w windows.Window) Table {
	var out Table
	for _, a := range table {
		if a.Geometry == nil || !geometry.Intersects(a.Geometry, w) {
			continue
		}
		g, ok := geometry.TranslateClip(a.Geometry, w)
		if !ok {
			continue
		}
		out = append(out, Annotation{
			ImagePath: a.ImagePath,
			Label:     a.Label,
			Geometry:  g,
		})
	}
	return out
}
