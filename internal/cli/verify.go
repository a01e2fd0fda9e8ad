package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/output"
	"github.com/sdejongh/offload/pkg/transfer"
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify SOURCE DEST",
		Short: "Check the content of files already on the destination",
		Long: `Hash every file that status reports as synced, on both sides, and report
the files whose destination copy differs from the source. Nothing is copied.`,
		Args: cobra.ExactArgs(2),
		RunE: runVerify,
	}

	addExcludeFlag(cmd)
	addDigestFlags(cmd)

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer cancel()
	source, dest := args[0], args[1]

	if err := validatePair(source, dest, true, false); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var candidates []*models.FileRecord
	for _, rec := range s.reconcile(ctx, source, dest) {
		if rec.Status() == models.StatusSynced {
			candidates = append(candidates, rec)
		}
	}

	hasher := s.newHasher()
	if limiter := s.cfg.Limiter(); limiter != nil {
		hasher.SetReaderWrapper(limiter.Wrap(ctx))
	}
	engine := transfer.NewEngine(transfer.Config{
		ChunkSize: s.cfg.Transfer.ChunkSize,
		Digester:  hasher,
		Logger:    s.logger,
	})

	out := cmd.OutOrStdout()
	failed := verifyRecords(ctx, engine, candidates, dest, func(rec *models.FileRecord, err error) {
		if s.jsonOutput() {
			return
		}
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", rec.Name, err)
		} else if !s.cfg.Output.Quiet {
			fmt.Fprintf(out, "✓ %s\n", rec.Name)
		}
	})

	if ctx.Err() != nil {
		return &ExitError{Code: models.RunCancelled.ExitCode(), Reason: "verification interrupted"}
	}

	if s.jsonOutput() {
		if err := output.WriteJSONListing(out, source, dest, candidates, nil); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Verified %d files, %d mismatched\n", len(candidates), failed)
	}

	if failed > 0 {
		return &ExitError{Code: models.RunPartial.ExitCode(), Reason: fmt.Sprintf("%d files failed verification", failed)}
	}
	return nil
}

// verifyRecords verifies each record against its copy in dest. Failed
// records are marked as errors. A digest mismatch is located by a byte
// comparison. It returns the number of failures.
func verifyRecords(ctx context.Context, engine *transfer.Engine, records []*models.FileRecord, dest string, onResult func(*models.FileRecord, error)) int {
	failed := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		destPath := filepath.Join(dest, rec.Name)
		err := engine.Verify(ctx, rec, destPath)
		if err != nil && ctx.Err() != nil {
			break
		}
		if errors.Is(err, transfer.ErrDigestMismatch) {
			if offset, cmpErr := compare.FirstDifference(ctx, rec.Path, destPath); cmpErr == nil && offset >= 0 {
				err = fmt.Errorf("%w at byte offset %d", err, offset)
			}
		}
		if err != nil {
			failed++
			rec.MarkError(err)
		}
		onResult(rec, err)
	}
	return failed
}
