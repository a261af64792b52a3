// Package config provides configuration loading and management for tofslices.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Dataset parameters
	Dataset struct {
		// Root is the directory holding one folder per subject
		Root string `yaml:"root" toml:"root"`

		// TestMode loads only the TOF volumes and returns no label
		TestMode bool `yaml:"testMode" toml:"testMode"`

		// SlicesPerSubject is the number of axial slices assumed per subject
		SlicesPerSubject int `yaml:"slicesPerSubject" toml:"slicesPerSubject"`

		// HeaderSliceCounts reads each subject's slice count from the volume headers
		HeaderSliceCounts bool `yaml:"headerSliceCounts" toml:"headerSliceCounts"`

		// Seed feeds the per-sample transform seeds; 0 picks a time based seed
		Seed int64 `yaml:"seed" toml:"seed"`
	} `yaml:"dataset" toml:"dataset"`

	// Transform parameters
	Transform struct {
		// CropHeight and CropWidth enable a random crop when both are positive
		CropHeight int `yaml:"cropHeight" toml:"cropHeight"`
		CropWidth  int `yaml:"cropWidth" toml:"cropWidth"`

		// FlipProbability is the chance of a horizontal flip
		FlipProbability float64 `yaml:"flipProbability" toml:"flipProbability"`
	} `yaml:"transform" toml:"transform"`

	// Export parameters
	Export struct {
		// Format is the image extension used for exported slices
		Format string `yaml:"format" toml:"format"`

		// Size resizes exported slices so the longer side has this many pixels; 0 keeps the original size
		Size int `yaml:"size" toml:"size"`
	} `yaml:"export" toml:"export"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`
	} `yaml:"output" toml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.Root = "."
	cfg.Dataset.SlicesPerSubject = 140

	cfg.Export.Format = "png"

	cfg.Output.Verbose = false

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Dataset.SlicesPerSubject <= 0 && !c.Dataset.HeaderSliceCounts {
		return fmt.Errorf("dataset.slicesPerSubject must be positive")
	}
	if c.Transform.CropHeight < 0 || c.Transform.CropWidth < 0 {
		return fmt.Errorf("transform crop size must not be negative")
	}
	if c.Transform.FlipProbability < 0 || c.Transform.FlipProbability > 1 {
		return fmt.Errorf("transform.flipProbability must be in [0, 1]")
	}
	switch strings.ToLower(c.Export.Format) {
	case "png", "jpg", "jpeg", "tif", "tiff":
	default:
		return fmt.Errorf("unsupported export format %q", c.Export.Format)
	}
	if c.Export.Size < 0 {
		return fmt.Errorf("export.size must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	var err error
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
