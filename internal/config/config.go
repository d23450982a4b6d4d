// Package config handles voxtool configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Output formats accepted by Config.Output.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all voxtool settings.
type Config struct {
	Intake  IntakeConfig  `yaml:"intake"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// IntakeConfig holds limits applied to submitted files.
type IntakeConfig struct {
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`  // size of the file as received
	MaxDecodedBytes int64 `yaml:"max_decoded_bytes"` // size after decompression
	AllowZstd       bool  `yaml:"allow_zstd"`
	AllowGzip       bool  `yaml:"allow_gzip"`
}

// OutputConfig holds CLI output settings.
type OutputConfig struct {
	Format  string `yaml:"format"`
	Workers int    `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Intake: IntakeConfig{
			MaxUploadBytes:  32 << 20,
			MaxDecodedBytes: 128 << 20,
			AllowZstd:       true,
			AllowGzip:       true,
		},
		Output: OutputConfig{
			Format:  FormatText,
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Intake.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: intake.max_upload_bytes must be positive, got %d", ErrInvalidConfig, c.Intake.MaxUploadBytes)
	}
	if c.Intake.MaxDecodedBytes <= 0 {
		return fmt.Errorf("%w: intake.max_decoded_bytes must be positive, got %d", ErrInvalidConfig, c.Intake.MaxDecodedBytes)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: output.format must be text, json or yaml, got %q", ErrInvalidConfig, c.Output.Format)
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("%w: output.workers must be at least 1, got %d", ErrInvalidConfig, c.Output.Workers)
	}
	return nil
}
