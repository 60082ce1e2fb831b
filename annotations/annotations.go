// Package annotations holds the ground-truth table that accompanies a
// raster and the selection logic that partitions it across tile windows.
package annotations

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"

	"github.com/aerialml/rastersplit/geometry"
)

// Annotation is one labeled geometry in pixel coordinates. Geometry is nil
// only for placeholder rows kept under the allow-empty policy.
type Annotation struct {
	// ImagePath identifies the source raster, or the patch once selected.
	ImagePath string
	// Label is the class name.
	Label string
	// Geometry is an orb.Point, orb.Bound (box) or orb.Polygon.
	Geometry orb.Geometry
}

// Table is an ordered set of annotations for one or more rasters.
type Table []Annotation

// ReadCSV loads an annotation table from a CSV file. The header must carry
// image_path and label plus exactly one recognized geometry column set:
// {x, y} for points, {xmin, ymin, xmax, ymax} for boxes, or {polygon} with
// well-known-text geometries.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening annotations file")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if len(records) < 1 {
		return nil, errors.Errorf("annotations file %s has no header", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"image_path", "label"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("annotations file %s missing %q column", path, required)
		}
	}

	parse, err := rowParser(col)
	if err != nil {
		return nil, errors.Wrapf(err, "annotations file %s", path)
	}

	table := make(Table, 0, len(records)-1)
	for i, rec := range records[1:] {
		g, err := parse(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		table = append(table, Annotation{
			ImagePath: rec[col["image_path"]],
			Label:     rec[col["label"]],
			Geometry:  g,
		})
	}
	return table, nil
}

// rowParser picks the geometry decoder matching the header's column set.
func rowParser(col map[string]int) (func([]string) (orb.Geometry, error), error) {
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := col[n]; !ok {
				return false
			}
		}
		return true
	}

	switch {
	case has("xmin", "ymin", "xmax", "ymax"):
		return func(rec []string) (orb.Geometry, error) {
			v, err := floats(rec, col, "xmin", "ymin", "xmax", "ymax")
			if err != nil {
				return nil, err
			}
			return orb.Bound{
				Min: orb.Point{v[0], v[1]},
				Max: orb.Point{v[2], v[3]},
			}, nil
		}, nil
	case has("x", "y"):
		return func(rec []string) (orb.Geometry, error) {
			v, err := floats(rec, col, "x", "y")
			if err != nil {
				return nil, err
			}
			return orb.Point{v[0], v[1]}, nil
		}, nil
	case has("polygon"):
		return func(rec []string) (orb.Geometry, error) {
			// Blank cells are placeholder rows kept under the allow-empty
			// policy; they carry no geometry.
			if strings.TrimSpace(rec[col["polygon"]]) == "" {
				return nil, nil
			}
			p, err := wkt.UnmarshalPolygon(rec[col["polygon"]])
			if err != nil {
				return nil, errors.Wrap(err, "decoding polygon WKT")
			}
			return p, nil
		}, nil
	default:
		return nil, errors.New("no recognized geometry columns " +
			"(want x/y, xmin/ymin/xmax/ymax, or polygon)")
	}
}

func floats(rec []string, col map[string]int, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := strconv.ParseFloat(rec[col[n]], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", n)
		}
		out[i] = v
	}
	return out, nil
}

// WriteCSV saves a table, choosing the geometry columns from the first row
// that carries a geometry. Rows of a different geometry kind are an error;
// placeholder rows (nil geometry) write zero coordinates or a blank
// polygon cell.
func WriteCSV(path string, table Table) error {
	kind := geometry.KindBox
	for _, a := range table {
		if a.Geometry != nil {
			k, err := geometry.KindOf(a.Geometry)
			if err != nil {
				return err
			}
			kind = k
			break
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating annotations file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	var header []string
	switch kind {
	case geometry.KindPoint:
		header = []string{"image_path", "x", "y", "label"}
	case geometry.KindBox:
		header = []string{"image_path", "xmin", "ymin", "xmax", "ymax", "label"}
	case geometry.KindPolygon:
		header = []string{"image_path", "polygon", "label"}
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, a := range table {
		if a.Geometry != nil {
			k, err := geometry.KindOf(a.Geometry)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			if k != kind {
				return errors.Errorf("row %d has geometry kind %v in a table of kind %v", i, k, kind)
			}
		}

		// Placeholder rows (nil geometry) write zero coordinates, or a
		// blank polygon cell.
		var rec []string
		switch kind {
		case geometry.KindPoint:
			p, _ := a.Geometry.(orb.Point)
			rec = []string{a.ImagePath, ftoa(p.X()), ftoa(p.Y()), a.Label}
		case geometry.KindBox:
			b, _ := a.Geometry.(orb.Bound)
			rec = []string{a.ImagePath,
				ftoa(b.Min.X()), ftoa(b.Min.Y()), ftoa(b.Max.X()), ftoa(b.Max.Y()),
				a.Label}
		case geometry.KindPolygon:
			var s string
			if a.Geometry != nil {
				s = wkt.MarshalString(a.Geometry)
			}
			rec = []string{a.ImagePath, s, a.Label}
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
