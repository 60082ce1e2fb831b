// Package raster - loading, cropping and writing of multi-band imagery.
//
// A raster is carried as a gocv.Mat in BGR channel order. File input goes
// through OpenCV's decoder; in-memory input is a gorgonia tensor with shape
// (height, width, channel) and RGB order, mirroring how array-based imagery
// is usually handed over from numeric pipelines.
package raster

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/aerialml/rastersplit/windows"
)

// FromFile reads a raster from disk into a BGR Mat.
func FromFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return mat, errors.Errorf("failed to read raster %s", path)
	}
	return mat, nil
}

// FromTensor converts an in-memory (H, W, C) uint8 tensor in RGB order into
// a BGR Mat. Bands past the first three are dropped. The tensor itself is
// never modified.
func FromTensor(t *tensor.Dense) (gocv.Mat, error) {
	shape := t.Shape()
	if len(shape) != 3 {
		return gocv.NewMat(), errors.Errorf(
			"expected a 3-axis (height, width, channel) array, got shape %v", shape)
	}
	if t.Dtype() != tensor.Uint8 {
		return gocv.NewMat(), errors.Errorf("expected uint8 pixel data, got %v", t.Dtype())
	}
	h, w, c := shape[0], shape[1], shape[2]
	if c < 1 || h < 1 || w < 1 {
		return gocv.NewMat(), errors.Errorf("degenerate image shape %v", shape)
	}

	data, ok := t.Data().([]uint8)
	if !ok {
		return gocv.NewMat(), errors.New("tensor backing is not a []uint8")
	}

	// Bands beyond the first three (alpha or extra sensor bands) are
	// dropped; the orientation check has already warned about them.
	if c > 3 {
		trimmed := make([]uint8, h*w*3)
		for px := 0; px < h*w; px++ {
			copy(trimmed[px*3:px*3+3], data[px*c:px*c+3])
		}
		data, c = trimmed, 3
	}

	mt := gocv.MatTypeCV8UC1
	if c == 3 {
		mt = gocv.MatTypeCV8UC3
	} else if c == 2 {
		return gocv.NewMat(), errors.Errorf("unsupported channel count %d", c)
	}
	mat, err := gocv.NewMatFromBytes(h, w, mt, data)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "building Mat from tensor data")
	}

	// OpenCV writes BGR; the tensor convention is RGB. The swap is its own
	// inverse, so one conversion code covers both directions.
	if c == 3 {
		gocv.CvtColor(mat, &mat, gocv.ColorBGRToRGB)
	}
	return mat, nil
}

// CheckChannelOrder inspects a (H, W, C) shape and returns human-readable
// warnings for layouts that look mis-ordered. A small first axis suggests
// the array is channel-first, and a channel count other than 3 is unusual
// for the imagery this pipeline targets. Both are advisory: the caller
// proceeds with the array as given and never auto-transposes.
func CheckChannelOrder(shape []int) []string {
	var warnings []string
	if len(shape) != 3 {
		return []string{fmt.Sprintf("expected 3 axes (height, width, channel), got %d", len(shape))}
	}
	if shape[0] <= 4 {
		warnings = append(warnings, fmt.Sprintf(
			"first axis of shape %v is small enough to be a channel axis; "+
				"expected (height, width, channel) order", shape))
	}
	if shape[2] != 3 {
		warnings = append(warnings, fmt.Sprintf(
			"shape %v has %d bands on the channel axis; expected 3", shape, shape[2]))
	}
	return warnings
}

// Crop copies the pixels of one window out of the raster.
func Crop(mat gocv.Mat, w windows.Window) gocv.Mat {
	region := mat.Region(w.Rect())
	defer region.Close()
	return region.Clone()
}

// WriteFile encodes a patch to disk. The format follows the file extension.
func WriteFile(path string, mat gocv.Mat) error {
	if ok := gocv.IMWrite(path, mat); !ok {
		return errors.Errorf("failed to write patch %s", path)
	}
	return nil
}

// Thumbnail downsamples the raster to fit within maxSide pixels on its
// longer edge, for quick-look previews of the tiling.
func Thumbnail(mat gocv.Mat, maxSide uint) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting raster for preview")
	}
	return resize.Thumbnail(maxSide, maxSide, img, resize.Lanczos3), nil
}
