// Command rastersplit tiles geospatial rasters into fixed-size patches for
// object-detection training, re-projecting any CSV annotations onto each
// patch's local frame.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aerialml/rastersplit/annotations"
	"github.com/aerialml/rastersplit/raster"
	"github.com/aerialml/rastersplit/splitter"
)

const previewMaxSide = 1024

var supportedRasterExtensions = []string{".tif", ".tiff", ".png", ".jpg", ".jpeg", ".bmp"}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	annotationsPath := flag.String("annotations", "", "CSV annotations file")
	outputDir := flag.String("output-dir", "crops", "Directory for patch files")
	patchSize := flag.Int("patch-size", 0, "Square patch side in pixels (overrides config)")
	patchOverlap := flag.Float64("patch-overlap", -1, "Patch overlap fraction in [0, 1) (overrides config)")
	allowEmpty := flag.Bool("allow-empty", false, "Keep patches without annotations")
	preview := flag.Bool("preview", false, "Write a downsampled preview per raster")
	flag.Parse()

	rasters := flag.Args()
	if len(rasters) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] raster_files_or_dirs...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *patchSize > 0 {
		cfg.PatchSize = *patchSize
	}
	if *patchOverlap >= 0 {
		cfg.PatchOverlap = *patchOverlap
	}
	if *allowEmpty {
		cfg.AllowEmpty = true
	}
	if *preview {
		cfg.Preview = true
	}

	inputs, err := expandInputs(rasters)
	if err != nil {
		log.Fatalf("listing inputs: %v", err)
	}

	var combined annotations.Table
	for _, path := range inputs {
		res, err := splitter.Split(splitter.Options{
			PathToRaster:    path,
			AnnotationsFile: *annotationsPath,
			SaveDir:         *outputDir,
			PatchSize:       cfg.PatchSize,
			PatchOverlap:    cfg.PatchOverlap,
			AllowEmpty:      cfg.AllowEmpty,
			Ext:             cfg.Ext,
		})
		if err != nil {
			log.Fatalf("splitting %s: %v", path, err)
		}
		combined = append(combined, res.Annotations...)
		log.Printf("%s: wrote %d patches", path, len(res.PatchPaths))

		if cfg.Preview {
			if err := writePreview(path, *outputDir); err != nil {
				log.Printf("warning: preview for %s: %v", path, err)
			}
		}
	}

	if *annotationsPath != "" {
		out := filepath.Join(*outputDir, "annotations.csv")
		if err := annotations.WriteCSV(out, combined); err != nil {
			log.Fatalf("writing %s: %v", out, err)
		}
		log.Printf("wrote %d annotation rows to %s", len(combined), out)
	}
}

// expandInputs flattens files and directories into a raster file list.
func expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isRaster(e.Name()) {
				continue
			}
			out = append(out, filepath.Join(arg, e.Name()))
		}
	}
	return out, nil
}

func isRaster(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range supportedRasterExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// writePreview saves a downsampled quick-look next to the patches.
func writePreview(rasterPath, outputDir string) error {
	mat, err := raster.FromFile(rasterPath)
	if err != nil {
		return err
	}
	defer mat.Close()

	img, err := raster.Thumbnail(mat, previewMaxSide)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(rasterPath), filepath.Ext(rasterPath))
	f, err := os.Create(filepath.Join(outputDir, stem+"_preview.png"))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
