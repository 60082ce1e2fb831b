// Package splitter cuts a large raster into fixed-size, optionally
// overlapping patches and partitions the accompanying annotations onto
// each patch's local coordinate frame.
package splitter

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/aerialml/rastersplit/annotations"
	"github.com/aerialml/rastersplit/raster"
	"github.com/aerialml/rastersplit/windows"
)

var (
	// ErrRasterSource is returned when the raster input is over- or
	// under-specified: exactly one of a file path or an in-memory array
	// must be supplied.
	ErrRasterSource = errors.New("supply exactly one of PathToRaster or Image")

	// ErrAllWindowsEmpty is returned when annotations were supplied,
	// AllowEmpty is off, and no window intersected any annotation, so the
	// call would produce nothing useful.
	ErrAllWindowsEmpty = errors.New("no windows with annotations; set AllowEmpty to keep background patches")
)

// Defaults applied when the corresponding Options field is zero.
const (
	DefaultPatchSize    = 400
	DefaultPatchOverlap = 0.05
	DefaultExt          = "png"
)

// Options configures one Split call.
type Options struct {
	// PathToRaster is a readable image file. Mutually exclusive with Image.
	PathToRaster string
	// Image is an in-memory (height, width, channel) uint8 array, RGB order.
	Image *tensor.Dense
	// AnnotationsFile is a CSV of ground truth for the raster. Takes
	// precedence over Annotations when both are set.
	AnnotationsFile string
	// Annotations is an already-loaded table.
	Annotations annotations.Table
	// SaveDir receives the patch files; created if absent.
	SaveDir string
	// PatchSize is the square window side in pixels.
	PatchSize int
	// PatchOverlap is the window overlap fraction in [0, 1).
	PatchOverlap float64
	// AllowEmpty keeps windows with no annotations as background patches,
	// each with a placeholder row in the output table.
	AllowEmpty bool
	// ImageName overrides the raster identifier used for patch naming.
	// Required with Image, optional with PathToRaster.
	ImageName string
	// Ext is the patch file extension, without the dot.
	Ext string
}

// Result is the output of one Split call.
type Result struct {
	// Annotations is the combined table across all retained patches, with
	// ImagePath set to the patch file name and geometries in local space.
	// Nil when the call ran without annotations.
	Annotations annotations.Table
	// PatchPaths lists every written patch file in window order.
	PatchPaths []string
}

// Split tiles one raster into patches and re-homes its annotations.
//
// With annotations, windows that select no annotation are skipped unless
// AllowEmpty is set; if every window comes up empty the call fails with
// ErrAllWindowsEmpty. Selections for all windows are computed before any
// file is written, so a failing call leaves no output behind. Without
// annotations every window is written unconditionally.
//
// Patches are named {stem}_{ordinal}.{ext} with the ordinal following the
// deterministic row-major window order.
func Split(opts Options) (*Result, error) {
	if (opts.PathToRaster == "") == (opts.Image == nil) {
		return nil, errors.WithStack(ErrRasterSource)
	}
	applyDefaults(&opts)

	mat, name, err := openRaster(opts)
	if err != nil {
		mat.Close()
		return nil, err
	}
	defer mat.Close()

	wins, err := windows.Compute(mat.Rows(), mat.Cols(), opts.PatchSize, opts.PatchOverlap)
	if err != nil {
		return nil, err
	}

	table, err := loadAnnotations(opts)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	res := &Result{}

	// Dry-run phase: decide every window's outcome before touching disk,
	// so the exhaustion failure is all-or-nothing.
	var selections []annotations.Table
	if table != nil {
		source := filterByImage(table, name)
		selections = make([]annotations.Table, len(wins))
		empty := true
		for i, w := range wins {
			selections[i] = annotations.Select(source, w)
			if len(selections[i]) > 0 {
				empty = false
			}
		}
		if empty && !opts.AllowEmpty {
			return nil, errors.Wrapf(ErrAllWindowsEmpty, "raster %s", name)
		}
	}

	if err := os.MkdirAll(opts.SaveDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating save directory")
	}

	for i, w := range wins {
		if selections != nil && len(selections[i]) == 0 && !opts.AllowEmpty {
			continue
		}

		patchName := fmt.Sprintf("%s_%d.%s", stem, i, opts.Ext)
		patchPath := filepath.Join(opts.SaveDir, patchName)
		if err := writePatch(mat, w, patchPath); err != nil {
			return nil, err
		}
		res.PatchPaths = append(res.PatchPaths, patchPath)

		if selections == nil {
			continue
		}
		if len(selections[i]) == 0 {
			// Background patch kept under AllowEmpty: placeholder row with
			// no geometry so the crop stays visible to training.
			res.Annotations = append(res.Annotations, annotations.Annotation{
				ImagePath: patchName,
				Label:     backgroundLabel(table),
			})
			continue
		}
		for _, a := range selections[i] {
			a.ImagePath = patchName
			res.Annotations = append(res.Annotations, a)
		}
	}
	return res, nil
}

// applyDefaults fills the zero-value fields that have non-zero defaults.
// PatchOverlap is left alone: zero overlap is a valid request, so its
// default applies only at the CLI layer.
func applyDefaults(opts *Options) {
	if opts.PatchSize == 0 {
		opts.PatchSize = DefaultPatchSize
	}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
}

// openRaster resolves the input source and the raster identifier.
func openRaster(opts Options) (gocv.Mat, string, error) {
	if opts.PathToRaster != "" {
		name := opts.ImageName
		if name == "" {
			name = filepath.Base(opts.PathToRaster)
		}
		mat, err := raster.FromFile(opts.PathToRaster)
		return mat, name, err
	}

	if opts.ImageName == "" {
		return gocv.NewMat(), "", errors.New("ImageName is required with an in-memory image")
	}
	for _, warning := range raster.CheckChannelOrder(opts.Image.Shape()) {
		log.Printf("warning: %s", warning)
	}
	mat, err := raster.FromTensor(opts.Image)
	return mat, opts.ImageName, err
}

func loadAnnotations(opts Options) (annotations.Table, error) {
	if opts.AnnotationsFile != "" {
		return annotations.ReadCSV(opts.AnnotationsFile)
	}
	return opts.Annotations, nil
}

// filterByImage keeps the rows belonging to this raster. A table whose rows
// all name other rasters filters down to nothing, which surfaces as the
// exhaustion error rather than attributing another raster's annotations to
// this one.
func filterByImage(table annotations.Table, name string) annotations.Table {
	var out annotations.Table
	for _, a := range table {
		if a.ImagePath == name {
			out = append(out, a)
		}
	}
	return out
}

// backgroundLabel picks the label for placeholder rows so the output table
// stays homogeneous with the source.
func backgroundLabel(table annotations.Table) string {
	if len(table) > 0 {
		return table[0].Label
	}
	return ""
}

func writePatch(mat gocv.Mat, w windows.Window, path string) error {
	crop := raster.Crop(mat, w)
	defer crop.Close()
	return raster.WriteFile(path, crop)
}
