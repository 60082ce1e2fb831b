package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/aerialml/rastersplit/splitter"
)

// Config mirrors the splitting parameters that can be set from a YAML file.
// Flags override file values, which override defaults.
type Config struct {
	// PatchSize is the square window side in pixels.
	PatchSize int `yaml:"patchSize"`
	// PatchOverlap is the window overlap fraction in [0, 1).
	PatchOverlap float64 `yaml:"patchOverlap"`
	// AllowEmpty keeps background-only patches.
	AllowEmpty bool `yaml:"allowEmpty"`
	// Ext is the patch file extension.
	Ext string `yaml:"ext"`
	// Preview writes a downsampled quick-look of each raster.
	Preview bool `yaml:"preview"`
}

// DefaultConfig returns the built-in parameter values.
func DefaultConfig() *Config {
	return &Config{
		PatchSize:    splitter.DefaultPatchSize,
		PatchOverlap: splitter.DefaultPatchOverlap,
		Ext:          splitter.DefaultExt,
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error; the defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}
