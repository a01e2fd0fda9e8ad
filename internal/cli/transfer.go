package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/capacity"
	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/output"
	"github.com/sdejongh/offload/pkg/scanner"
	"github.com/sdejongh/offload/pkg/transfer"
)

// NewTransferCommand creates the transfer command
func NewTransferCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer SOURCE DEST",
		Short: "Copy and verify the files missing from the destination",
		Long: `Copy every file of SOURCE that is missing from DEST, one at a time, and
verify each copy with a content digest. Interrupting (Ctrl-C) abandons the
current file and ends the run; completed files stay verified.

Exit codes: 0 success, 1 some files failed, 2 no file verified, 3 stopped.`,
		Args: cobra.ExactArgs(2),
		RunE: runTransfer,
	}

	addExcludeFlag(cmd)
	addDigestFlags(cmd)
	cmd.Flags().StringSliceVar(&cmdFlags.Only, "only", []string{}, "transfer only missing files matching these glob patterns")
	cmd.Flags().BoolVar(&cmdFlags.Force, "force", false, "skip the destination free space check")
	cmd.Flags().BoolVar(&cmdFlags.CreateDest, "create-dest", false, "create destination directory if it doesn't exist")
	cmd.Flags().StringVar(&cmdFlags.Report, "report", "", "write the transfer report to file")
	cmd.Flags().StringVar(&cmdFlags.ReportFormat, "report-format", "human", "transfer report format: human, json")

	return cmd
}

func runTransfer(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	source, dest := args[0], args[1]

	if err := validatePair(source, dest, true, cmdFlags.CreateDest); err != nil {
		return err
	}
	if cmdFlags.ReportFormat != "human" && cmdFlags.ReportFormat != "json" {
		return &models.ValidationError{Field: "report-format", Message: "must be 'human' or 'json'"}
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	batch, err := selectBatch(s.reconcile(ctx, source, dest), cmdFlags.Only)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(batch) == 0 {
		if !s.cfg.Output.Quiet {
			fmt.Fprintln(out, "Nothing to transfer: every file is on the destination")
		}
		return nil
	}

	if s.cfg.Safety.CheckCapacity && !cmdFlags.Force {
		if err := checkCapacity(ctx, s.logger, dest, batch, s.cfg.Safety.MinFreeBytes); err != nil {
			return err
		}
	}

	engine := transfer.NewEngine(transfer.Config{
		ChunkSize: s.cfg.Transfer.ChunkSize,
		Digester:  s.newHasher(),
		Limiter:   s.cfg.Limiter(),
		Logger:    s.logger,
	})

	reporter := output.NewReporter(out, output.Options{
		Format:   s.cfg.Output.Format,
		Progress: s.cfg.Output.Progress,
		Quiet:    s.cfg.Output.Quiet,
	})
	if err := reporter.Start(batch, dest); err != nil {
		return err
	}

	finished := make(chan struct{})
	defer close(finished)
	stopOnInterrupt(ctx, s.logger, engine, finished)

	var report *models.TransferReport
	engine.Start(ctx, batch, dest, reporter.Progress, func(r *models.TransferReport) {
		report = r
		if err := reporter.Complete(r); err != nil {
			s.logger.Warn(ctx, "Cannot print report", logging.Fields{"error": err.Error()})
		}
	})
	engine.Wait()

	if cmdFlags.Report != "" {
		if err := output.WriteReportFile(report, cmdFlags.Report, cmdFlags.ReportFormat); err != nil {
			return err
		}
	}

	return runStatusError(report.Status)
}

// selectBatch returns the missing records, restricted to the names matching
// one of the only patterns when any are given
func selectBatch(records []*models.FileRecord, only []string) (models.Batch, error) {
	batch := models.SelectMissing(records)
	if len(only) == 0 {
		return batch, nil
	}

	matcher, err := scanner.NewMatcher(only)
	if err != nil {
		return nil, &models.ValidationError{Field: "only", Message: err.Error()}
	}

	selected := make(models.Batch, 0, len(batch))
	for _, rec := range batch {
		if matcher.Match(rec.Name) {
			selected = append(selected, rec)
		}
	}
	return selected, nil
}

// checkCapacity refuses a batch that would not fit on the destination volume.
// Volumes whose capacity cannot be queried are let through.
func checkCapacity(ctx context.Context, logger logging.Logger, dest string, batch models.Batch, reserve int64) error {
	info, err := capacity.Usage(dest)
	if err != nil {
		logger.Warn(ctx, "Free space not checked", logging.Fields{"dest": dest, "error": err.Error()})
		return nil
	}

	if err := info.Fits(batch.TotalBytes(), reserve); err != nil {
		if errors.Is(err, capacity.ErrInsufficientSpace) {
			return fmt.Errorf("%w (use --force to transfer anyway)", err)
		}
		return err
	}
	return nil
}

// stopOnInterrupt stops the engine on SIGINT or SIGTERM until finished is closed
func stopOnInterrupt(ctx context.Context, logger logging.Logger, engine *transfer.Engine, finished <-chan struct{}) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(interrupts)
		select {
		case <-interrupts:
			logger.Warn(ctx, "Interrupt received, stopping transfer", nil)
			engine.Stop()
		case <-finished:
		}
	}()
}
