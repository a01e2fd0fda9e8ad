package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/models"
)

// ExitError carries a non-zero exit code for a command that completed but
// did not fully succeed. Its outcome has already been printed.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// runStatusError returns nil for a successful run, else an ExitError with the run's exit code
func runStatusError(status models.RunStatus) error {
	if code := status.ExitCode(); code != 0 {
		return &ExitError{Code: code, Reason: fmt.Sprintf("transfer %s", status)}
	}
	return nil
}

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// NewRootCommand builds the offload command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "offload",
		Short: "Copy camera cards to shuttle drives, verified",
		Long: `offload copies media from a camera card or source folder to a destination
drive one file at a time, verifies every copy with a content digest and
reports which files still need to be offloaded.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewTransferCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewChecksumCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewDfCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
