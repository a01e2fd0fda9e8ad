package config

import (
	"github.com/sdejongh/offload/pkg/hash"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/ratelimit"
	"github.com/sdejongh/offload/pkg/scanner"
)

// Config represents the application configuration
type Config struct {
	Transfer TransferConfig `yaml:"transfer"`
	Scan     ScanConfig     `yaml:"scan"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
	Safety   SafetyConfig   `yaml:"safety"`
}

// TransferConfig holds copy and verification settings
type TransferConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	HashAlgorithm  string `yaml:"hash_algorithm"`  // "md5", "sha256" or "xxh64"
	BandwidthLimit string `yaml:"bandwidth_limit"` // e.g. "80MB"; empty = unlimited
}

// ScanConfig holds source listing settings
type ScanConfig struct {
	Exclude []string `yaml:"exclude"` // glob patterns matched against file names
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// MinChunkSize and MaxChunkSize bound transfer.chunk_size
const (
	MinChunkSize = 4096
	MaxChunkSize = hash.MaxChunkSize
)

// LoggingConfig holds logging-related settings.
// Warnings and errors go to stderr unless logging is disabled.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // Log file path (empty = stderr)
}

// SafetyConfig holds destination capacity checks
type SafetyConfig struct {
	MinFreeBytes  int64 `yaml:"min_free_bytes"` // space to keep free after a transfer
	CheckCapacity bool  `yaml:"check_capacity"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Transfer: TransferConfig{
			ChunkSize:      1048576,
			HashAlgorithm:  string(hash.MD5),
			BandwidthLimit: "",
		},
		Scan: ScanConfig{
			Exclude: []string{},
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "text",
			Level:   "warn",
			File:    "",
		},
		Safety: SafetyConfig{
			MinFreeBytes:  0,
			CheckCapacity: true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Transfer.ChunkSize < MinChunkSize || c.Transfer.ChunkSize > MaxChunkSize {
		return &models.ValidationError{
			Field:   "transfer.chunk_size",
			Message: "must be between 4096 bytes and 64 MiB",
		}
	}

	if _, err := hash.ParseAlgorithm(c.Transfer.HashAlgorithm); err != nil {
		return &models.ValidationError{
			Field:   "transfer.hash_algorithm",
			Message: "must be 'md5', 'sha256', or 'xxh64'",
		}
	}

	if _, err := ratelimit.ParseLimit(c.Transfer.BandwidthLimit); err != nil {
		return &models.ValidationError{
			Field:   "transfer.bandwidth_limit",
			Message: "must be a size such as '80MB' or '1.5GiB'",
		}
	}

	if _, err := scanner.NewMatcher(c.Scan.Exclude); err != nil {
		return &models.ValidationError{
			Field:   "scan.exclude",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Safety.MinFreeBytes < 0 {
		return &models.ValidationError{
			Field:   "safety.min_free_bytes",
			Message: "must not be negative",
		}
	}

	return nil
}

// Algorithm returns the configured digest function. Call after Validate.
func (c *Config) Algorithm() hash.Algorithm {
	a, _ := hash.ParseAlgorithm(c.Transfer.HashAlgorithm)
	return a
}

// Limiter returns the configured bandwidth limiter, nil when unlimited. Call after Validate.
func (c *Config) Limiter() *ratelimit.Limiter {
	l, _ := ratelimit.ParseLimit(c.Transfer.BandwidthLimit)
	return l
}

// Excludes returns the compiled scan exclusions. Call after Validate.
func (c *Config) Excludes() *scanner.Matcher {
	m, _ := scanner.NewMatcher(c.Scan.Exclude)
	return m
}
