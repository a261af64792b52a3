package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the default values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Dataset.SlicesPerSubject != 140 {
		t.Errorf("Expected 140 slices per subject, got %d", cfg.Dataset.SlicesPerSubject)
	}
	if cfg.Dataset.TestMode {
		t.Error("Expected training mode by default")
	}
	if cfg.Export.Format != "png" {
		t.Errorf("Expected png export format, got %s", cfg.Export.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestLoadMissingFile verifies that a missing file yields the defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Dataset.SlicesPerSubject != 140 {
		t.Errorf("Expected default config, got %+v", cfg)
	}
}

// TestLoadYAML verifies that YAML values override the defaults
func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
dataset:
  root: /data/adam
  testMode: true
  seed: 42
transform:
  cropHeight: 128
  cropWidth: 96
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Dataset.Root != "/data/adam" || !cfg.Dataset.TestMode || cfg.Dataset.Seed != 42 {
		t.Errorf("Dataset section not loaded: %+v", cfg.Dataset)
	}
	if cfg.Transform.CropHeight != 128 || cfg.Transform.CropWidth != 96 {
		t.Errorf("Transform section not loaded: %+v", cfg.Transform)
	}
	// untouched keys keep their defaults
	if cfg.Dataset.SlicesPerSubject != 140 {
		t.Errorf("Expected default slices per subject, got %d", cfg.Dataset.SlicesPerSubject)
	}
}

// TestSaveLoadTOML verifies that TOML files are written and read back
func TestSaveLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Dataset.Root = "/data/kaggle"
	cfg.Dataset.HeaderSliceCounts = true
	cfg.Export.Format = "tif"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Dataset.Root != "/data/kaggle" || !loaded.Dataset.HeaderSliceCounts || loaded.Export.Format != "tif" {
		t.Errorf("TOML round trip lost values: %+v", loaded)
	}
}

// TestLoadInvalid verifies that invalid values are rejected
func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transform:\n  flipProbability: 2\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid flip probability, got nil")
	}

	if err := os.WriteFile(path, []byte("dataset: [broken"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error, got nil")
	}
}

// TestCreateDefaultConfigFile verifies the generated file loads cleanly
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Errorf("Generated config does not load: %v", err)
	}
}
