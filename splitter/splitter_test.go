package splitter

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/aerialml/rastersplit/annotations"
	"github.com/aerialml/rastersplit/windows"
)

func writeTestRaster(t *testing.T, height, width int) string {
	t.Helper()
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	path := filepath.Join(t.TempDir(), "OSBS_029.png")
	require.True(t, gocv.IMWrite(path, mat), "test raster should encode")
	return path
}

func box(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestSplit_SourceValidation(t *testing.T) {
	_, err := Split(Options{SaveDir: t.TempDir()})
	assert.True(t, errors.Is(err, ErrRasterSource), "neither source should fail")

	img := tensor.New(tensor.WithShape(8, 8, 3), tensor.Of(tensor.Uint8))
	_, err = Split(Options{PathToRaster: "x.png", Image: img, SaveDir: t.TempDir()})
	assert.True(t, errors.Is(err, ErrRasterSource), "both sources should fail")
}

func TestSplit_NoAnnotations(t *testing.T) {
	raster := writeTestRaster(t, 2500, 2500)
	saveDir := t.TempDir()

	res, err := Split(Options{
		PathToRaster: raster,
		SaveDir:      saveDir,
		PatchSize:    500,
		PatchOverlap: 0,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Annotations, "unannotated runs return paths only")
	require.Len(t, res.PatchPaths, 25)
	for _, p := range res.PatchPaths {
		assert.FileExists(t, p)
	}
	assert.Equal(t, filepath.Join(saveDir, "OSBS_029_0.png"), res.PatchPaths[0])
}

func TestSplit_SizeError(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)

	_, err := Split(Options{
		PathToRaster: raster,
		SaveDir:      t.TempDir(),
		PatchSize:    2000,
		PatchOverlap: 0.25,
	})
	assert.True(t, errors.Is(err, windows.ErrPatchTooLarge))
}

func TestSplit_Annotated(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)
	saveDir := t.TempDir()

	res, err := Split(Options{
		PathToRaster: raster,
		Annotations: annotations.Table{
			{ImagePath: "OSBS_029.png", Label: "Tree", Geometry: box(10, 10, 90, 90)},
		},
		SaveDir:      saveDir,
		PatchSize:    300,
		PatchOverlap: 0.25,
	})
	require.NoError(t, err)

	// Only the first window intersects the box; the other eight are empty
	// and skipped.
	require.Len(t, res.PatchPaths, 1)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, "OSBS_029_0.png", res.Annotations[0].ImagePath)
	assert.Equal(t, "Tree", res.Annotations[0].Label)
	assert.Equal(t, box(10, 10, 90, 90), res.Annotations[0].Geometry,
		"a box inside the first window translates by a zero origin")

	assert.FileExists(t, filepath.Join(saveDir, "OSBS_029_0.png"))
	assert.NoFileExists(t, filepath.Join(saveDir, "OSBS_029_1.png"))
}

func TestSplit_AnnotationsFromCSV(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)
	saveDir := t.TempDir()

	csvPath := filepath.Join(t.TempDir(), "annotations.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"image_path,xmin,ymin,xmax,ymax,label\nOSBS_029.png,100,100,200,300,Tree\n"), 0644))

	res, err := Split(Options{
		PathToRaster:    raster,
		AnnotationsFile: csvPath,
		SaveDir:         saveDir,
		PatchSize:       300,
		PatchOverlap:    0.25,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Annotations)

	for _, a := range res.Annotations {
		b := a.Geometry.(orb.Bound)
		assert.GreaterOrEqual(t, b.Min.X(), 0.0)
		assert.GreaterOrEqual(t, b.Min.Y(), 0.0)
		assert.LessOrEqual(t, b.Max.X(), 300.0)
		assert.LessOrEqual(t, b.Max.Y(), 300.0)
	}
}

func TestSplit_AllWindowsEmpty(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)
	saveDir := filepath.Join(t.TempDir(), "crops")

	blank := annotations.Table{
		{ImagePath: "OSBS_029.png", Label: "Tree", Geometry: box(0, 0, 0, 0)},
	}

	_, err := Split(Options{
		PathToRaster: raster,
		Annotations:  blank,
		SaveDir:      saveDir,
		PatchSize:    300,
		PatchOverlap: 0.25,
	})
	require.True(t, errors.Is(err, ErrAllWindowsEmpty))

	_, statErr := os.Stat(saveDir)
	assert.True(t, os.IsNotExist(statErr), "a failed call writes nothing")
}

func TestSplit_AnnotationsForOtherRaster(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)
	saveDir := filepath.Join(t.TempDir(), "crops")

	// Rows naming a different raster must not be attributed to this one;
	// the run comes up empty and fails like any other exhausted call.
	table := annotations.Table{
		{ImagePath: "SOAP_031.png", Label: "Tree", Geometry: box(10, 10, 90, 90)},
	}

	_, err := Split(Options{
		PathToRaster: raster,
		Annotations:  table,
		SaveDir:      saveDir,
		PatchSize:    300,
		PatchOverlap: 0.25,
	})
	require.True(t, errors.Is(err, ErrAllWindowsEmpty))

	_, statErr := os.Stat(saveDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSplit_AllowEmpty(t *testing.T) {
	raster := writeTestRaster(t, 600, 600)
	saveDir := t.TempDir()

	blank := annotations.Table{
		{ImagePath: "OSBS_029.png", Label: "Tree", Geometry: box(0, 0, 0, 0)},
	}

	res, err := Split(Options{
		PathToRaster: raster,
		Annotations:  blank,
		SaveDir:      saveDir,
		PatchSize:    300,
		PatchOverlap: 0.25,
		AllowEmpty:   true,
	})
	require.NoError(t, err)

	require.Len(t, res.Annotations, 9, "one placeholder row per background patch")
	require.Len(t, res.PatchPaths, 9)
	assert.FileExists(t, filepath.Join(saveDir, "OSBS_029_1.png"))

	for _, a := range res.Annotations {
		assert.Nil(t, a.Geometry, "placeholder rows carry no geometry")
		assert.Equal(t, "Tree", a.Label)
	}
}

func TestSplit_TensorInputWarnsOnBandCount(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	img := tensor.New(tensor.WithShape(400, 400, 4), tensor.Of(tensor.Uint8))

	res, err := Split(Options{
		Image:     img,
		ImageName: "OSBS_029.tif",
		Annotations: annotations.Table{
			{ImagePath: "OSBS_029.tif", Label: "Tree", Geometry: box(50, 50, 150, 150)},
		},
		SaveDir:      t.TempDir(),
		PatchSize:    300,
		PatchOverlap: 0.25,
	})
	require.NoError(t, err, "odd band counts warn but still complete")
	assert.NotEmpty(t, res.Annotations)
	assert.Contains(t, buf.String(), "bands")
}

func TestSplit_TensorInputChannelsFirst(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// A channels-first array is never transposed: the warning fires, and the
	// 4-pixel "height" then fails the patch-size precondition.
	img := tensor.New(tensor.WithShape(4, 400, 400), tensor.Of(tensor.Uint8))

	_, err := Split(Options{
		Image:     img,
		ImageName: "OSBS_029.tif",
		Annotations: annotations.Table{
			{ImagePath: "OSBS_029.tif", Label: "Tree", Geometry: box(50, 50, 150, 150)},
		},
		SaveDir:      t.TempDir(),
		PatchSize:    300,
		PatchOverlap: 0.25,
	})
	assert.True(t, errors.Is(err, windows.ErrPatchTooLarge))
	assert.Contains(t, buf.String(), "channel axis")
}

func TestSplit_TensorInputRequiresName(t *testing.T) {
	img := tensor.New(tensor.WithShape(400, 400, 3), tensor.Of(tensor.Uint8))
	_, err := Split(Options{Image: img, SaveDir: t.TempDir(), PatchSize: 300})
	assert.Error(t, err)
}
