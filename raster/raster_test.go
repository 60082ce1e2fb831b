package raster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/aerialml/rastersplit/windows"
)

func TestCheckChannelOrder(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		warnings int
	}{
		{"well formed", []int{600, 600, 3}, 0},
		{"channels first", []int{4, 400, 400}, 2}, // small first axis and odd band count
		{"four bands", []int{400, 400, 4}, 1},
		{"two axes", []int{400, 400}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, CheckChannelOrder(tt.shape), tt.warnings)
		})
	}
}

func TestFromTensor(t *testing.T) {
	img := tensor.New(tensor.WithShape(8, 10, 3), tensor.Of(tensor.Uint8))
	mat, err := FromTensor(img)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 8, mat.Rows())
	assert.Equal(t, 10, mat.Cols())
	assert.Equal(t, 3, mat.Channels())
}

func TestFromTensor_DropsExtraBands(t *testing.T) {
	img := tensor.New(tensor.WithShape(8, 10, 4), tensor.Of(tensor.Uint8))
	mat, err := FromTensor(img)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 3, mat.Channels(), "bands past the first three are dropped")
}

func TestFromTensor_Invalid(t *testing.T) {
	tests := []struct {
		name string
		img  *tensor.Dense
	}{
		{"two axes", tensor.New(tensor.WithShape(8, 10), tensor.Of(tensor.Uint8))},
		{"four axes", tensor.New(tensor.WithShape(1, 8, 10, 3), tensor.Of(tensor.Uint8))},
		{"wrong dtype", tensor.New(tensor.WithShape(8, 10, 3), tensor.Of(tensor.Float32))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromTensor(tt.img)
			assert.Error(t, err)
		})
	}
}

func TestCropAndWrite(t *testing.T) {
	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer mat.Close()

	crop := Crop(mat, windows.Window{MinX: 10, MinY: 20, MaxX: 40, MaxY: 70})
	defer crop.Close()
	assert.Equal(t, 30, crop.Cols())
	assert.Equal(t, 50, crop.Rows())

	path := filepath.Join(t.TempDir(), "patch.png")
	require.NoError(t, WriteFile(path, crop))

	back, err := FromFile(path)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, 30, back.Cols())
	assert.Equal(t, 50, back.Rows())
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
