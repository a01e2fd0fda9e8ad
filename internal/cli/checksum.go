package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/models"
)

// NewChecksumCommand creates the checksum command
func NewChecksumCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum SOURCE",
		Short: "Print a checksum manifest of a card or folder",
		Long: `Hash every file of SOURCE and print one "DIGEST  NAME" line per file, the
format checked by md5sum -c, sha256sum -c and xxh64sum -c. Files that cannot
be read are reported and left out of the manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: runChecksum,
	}

	addExcludeFlag(cmd)
	addDigestFlags(cmd)

	return cmd
}

// manifestEntry is one file of a JSON checksum manifest
type manifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

func runChecksum(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer cancel()
	source := args[0]

	if err := validateSource(source); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	hasher := s.newHasher()
	if limiter := s.cfg.Limiter(); limiter != nil {
		hasher.SetReaderWrapper(limiter.Wrap(ctx))
	}

	out := cmd.OutOrStdout()
	entries := make([]manifestEntry, 0)
	unreadable := 0

	for _, rec := range s.newScanner().Scan(ctx, source) {
		digest, ok := hasher.Sum(ctx, rec.Path)
		if ctx.Err() != nil {
			return &ExitError{Code: models.RunCancelled.ExitCode(), Reason: "checksum interrupted"}
		}
		if !ok {
			unreadable++
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: cannot be read\n", rec.Name)
			continue
		}

		if s.jsonOutput() {
			entries = append(entries, manifestEntry{Name: rec.Name, Size: rec.Size, Digest: digest})
		} else {
			fmt.Fprintf(out, "%s  %s\n", digest, rec.Name)
		}
	}

	if s.jsonOutput() {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		err := encoder.Encode(struct {
			Source    string          `json:"source"`
			Algorithm string          `json:"algorithm"`
			Files     []manifestEntry `json:"files"`
		}{source, string(hasher.Algorithm()), entries})
		if err != nil {
			return err
		}
	}

	if unreadable > 0 {
		return &ExitError{Code: models.RunPartial.ExitCode(), Reason: fmt.Sprintf("%d files could not be hashed", unreadable)}
	}
	return nil
}
