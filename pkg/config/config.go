// Package config provides configuration loading and management for
// msiconvert. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many concurrent workers to use
		Workers int `yaml:"workers"`

		// MinChunkCount is the requested minimum number of chunks
		MinChunkCount int `yaml:"minChunkCount"`

		// MaxMemoryGB bounds the memory resident across all workers;
		// 0 means unbounded
		MaxMemoryGB float64 `yaml:"maxMemoryGB"`

		// OnDisk selects disk-backed execution with worker processes
		OnDisk bool `yaml:"onDisk"`

		// ScratchDir holds staged chunk files in disk mode
		ScratchDir string `yaml:"scratchDir"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// DoSpectra enables the pixel-major output pass
		DoSpectra bool `yaml:"doSpectra"`

		// DoImages enables the bin-major output pass
		DoImages bool `yaml:"doImages"`

		// StrictMerge fails the merge on missing chunk files instead of
		// leaving a zero-filled hole
		StrictMerge bool `yaml:"strictMerge"`

		// Verify re-reads each output and reports round-trip metrics
		Verify bool `yaml:"verify"`
	} `yaml:"output"`

	// Progress reporting parameters
	Progress struct {
		// IntervalSeconds is the spacing of progress reports; 0 disables
		IntervalSeconds float64 `yaml:"intervalSeconds"`
	} `yaml:"progress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.MinChunkCount = 1
	cfg.Processing.MaxMemoryGB = 0
	cfg.Processing.OnDisk = false
	cfg.Processing.ScratchDir = "tmp_data"

	cfg.Output.DoSpectra = true
	cfg.Output.DoImages = true
	cfg.Output.StrictMerge = false
	cfg.Output.Verify = false

	cfg.Progress.IntervalSeconds = 120

	return cfg
}

// LoadConfig loads configuration from a YAML file
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

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
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
