package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	Output     string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

// CommandFlags holds the flags shared by the subcommands
type CommandFlags struct {
	Exclude      []string
	Only         []string
	Missing      bool
	Force        bool
	CreateDest   bool
	Bandwidth    string
	Hash         string
	ChunkSize    int
	Report       string
	ReportFormat string
	Debounce     int // milliseconds
}

var (
	globalFlags GlobalFlags
	cmdFlags    CommandFlags
)

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/offload/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output (debug logs on stderr)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
	cmd.PersistentFlags().StringVarP(
		&globalFlags.Output,
		"output",
		"o",
		"",
		"output format: human, json (default from config)",
	)
	cmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.PersistentFlags().StringVar(&globalFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// addExcludeFlag adds the scan exclusion flag
func addExcludeFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&cmdFlags.Exclude, "exclude", []string{}, "glob patterns of file names to ignore (e.g. \"*.xml\")")
}

// addDigestFlags adds the flags that tune hashing
func addDigestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cmdFlags.Hash, "hash", "", "digest algorithm: md5, sha256, xxh64")
	cmd.Flags().IntVar(&cmdFlags.ChunkSize, "chunk-size", 0, "read size in bytes (default from config)")
	cmd.Flags().StringVarP(&cmdFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit for source reads (e.g. \"80MB\")")
}
