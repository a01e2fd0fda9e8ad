package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/output"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan SOURCE",
		Short: "List the media files of a card or folder",
		Long: `List the regular files directly inside SOURCE with their media type and
size. Hidden files and excluded patterns are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	addExcludeFlag(cmd)

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	source := args[0]

	if err := validateSource(source); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	records := s.newScanner().Scan(ctx, source)

	out := cmd.OutOrStdout()
	if s.jsonOutput() {
		return output.WriteJSONListing(out, source, "", records, nil)
	}

	if err := output.NewTable(out).WriteRecords(records, false); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d files, %s\n", len(records), models.FormatSize(models.Batch(records).TotalBytes()))
	return err
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status SOURCE DEST",
		Short: "Show which files are already on the destination",
		Long: `Compare SOURCE with DEST by file name and size and report each file as
synced or missing. No file is read or written.

A file of the same name and size on DEST is reported as synced even if its
content differs; use the verify command to check content.`,
		Args: cobra.ExactArgs(2),
		RunE: runStatus,
	}

	addExcludeFlag(cmd)
	cmd.Flags().BoolVar(&cmdFlags.Missing, "missing", false, "list only files missing from the destination")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	source, dest := args[0], args[1]

	// A destination that is not mounted yet shows every file as missing
	if err := validatePair(source, dest, false, false); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	records := s.reconcile(ctx, source, dest)
	summary := compare.Summarize(records)

	listed := records
	if cmdFlags.Missing {
		listed = models.SelectMissing(records)
	}

	out := cmd.OutOrStdout()
	if s.jsonOutput() {
		return output.WriteJSONListing(out, source, dest, listed, &summary)
	}

	table := output.NewTable(out)
	if !s.cfg.Output.Quiet {
		if err := table.WriteRecords(listed, true); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return table.WriteSummary(summary)
}
