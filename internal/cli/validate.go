package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/internal/platform"
	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/config"
	"github.com/sdejongh/offload/pkg/hash"
	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/scanner"
)

// session is the configuration and logger of one command invocation
type session struct {
	cfg    *config.Config
	logger logging.Logger
}

// newSession loads the configuration, applies flags and opens the logger
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	applyFlagsToConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := createLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &session{cfg: cfg, logger: logger}, nil
}

// Close flushes the logger
func (s *session) Close() {
	s.logger.Close()
}

func (s *session) newScanner() *scanner.Scanner {
	return scanner.New(s.logger, s.cfg.Excludes())
}

func (s *session) newHasher() *hash.Hasher {
	return hash.NewHasher(s.cfg.Algorithm(), s.cfg.Transfer.ChunkSize, s.logger)
}

// reconcile scans source and reconciles the records against dest
func (s *session) reconcile(ctx context.Context, source, dest string) []*models.FileRecord {
	records := s.newScanner().Scan(ctx, source)
	return compare.NewReconciler(s.logger).Reconcile(ctx, records, dest)
}

// jsonOutput reports whether results should be printed as JSON
func (s *session) jsonOutput() bool {
	return s.cfg.Output.Format == "json"
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cfg *config.Config) {
	// Scan exclusions
	if len(cmdFlags.Exclude) > 0 {
		cfg.Scan.Exclude = cmdFlags.Exclude
	}

	// Digest and copy settings
	if cmdFlags.Hash != "" {
		cfg.Transfer.HashAlgorithm = cmdFlags.Hash
	}
	if cmdFlags.ChunkSize > 0 {
		cfg.Transfer.ChunkSize = cmdFlags.ChunkSize
	}
	if cmdFlags.Bandwidth != "" {
		cfg.Transfer.BandwidthLimit = cmdFlags.Bandwidth
	}

	// Output format
	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}

	// Logging
	if globalFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = globalFlags.LogFile
	}
	if globalFlags.LogFormat != "" {
		cfg.Logging.Format = globalFlags.LogFormat
	}
	if globalFlags.LogLevel != "" {
		cfg.Logging.Level = globalFlags.LogLevel
	}

	// Disable progress and warnings in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
		cfg.Logging.Level = "error"
	}

	// Debug logs in verbose mode
	if globalFlags.Verbose {
		cfg.Logging.Enabled = true
		cfg.Logging.Level = "debug"
	}
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config, stderr io.Writer) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	format := logging.ParseFormat(cfg.Logging.Format)
	level := logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.File == "" {
		return logging.NewStreamLogger(stderr, format, level), nil
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       cfg.Logging.File,
		Format:     format,
		Level:      level,
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	})
}

// commandContext returns the command context, never nil
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// validateSource checks that the source is an existing directory
func validateSource(source string) error {
	info, err := os.Stat(source)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("source path does not exist: %s", source)
	} else if err != nil {
		return fmt.Errorf("failed to access source path: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", source)
	}
	return nil
}

// validatePair checks a source and destination pair. A missing destination
// is created when createDest is set, and rejected when requireDest is set.
func validatePair(source, dest string, requireDest, createDest bool) error {
	if err := validateSource(source); err != nil {
		return err
	}

	destInfo, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		switch {
		case createDest:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("failed to create destination directory: %w", err)
			}
		case requireDest:
			return fmt.Errorf("destination path does not exist: %s (use --create-dest to create it)", dest)
		}
	} else if err != nil {
		return fmt.Errorf("failed to access destination path: %w", err)
	} else if !destInfo.IsDir() {
		return fmt.Errorf("destination path exists but is not a directory: %s", dest)
	}

	sourceAbs, err := filepath.Abs(platform.NormalizePath(source))
	if err != nil {
		return fmt.Errorf("failed to resolve source path: %w", err)
	}

	destAbs, err := filepath.Abs(platform.NormalizePath(dest))
	if err != nil {
		return fmt.Errorf("failed to resolve destination path: %w", err)
	}

	if sourceAbs == destAbs {
		return fmt.Errorf("source and destination cannot be the same: %s", sourceAbs)
	}

	return nil
}
