package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/output"
	"github.com/sdejongh/offload/pkg/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch SOURCE DEST",
		Short: "Print the offload status whenever either side changes",
		Long: `Watch SOURCE and DEST and print the synced and missing counts after every
burst of changes, until interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: runWatch,
	}

	addExcludeFlag(cmd)
	cmd.Flags().IntVar(&cmdFlags.Debounce, "debounce", int(watch.DefaultDebounce/time.Millisecond), "quiet period in milliseconds before a rescan")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer cancel()
	source, dest := args[0], args[1]

	if err := validatePair(source, dest, false, false); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	w := watch.New(source, dest, watch.Options{
		Debounce: time.Duration(cmdFlags.Debounce) * time.Millisecond,
		Scanner:  s.newScanner(),
		Logger:   s.logger,
	})

	out := cmd.OutOrStdout()
	table := output.NewTable(out)

	return w.Run(ctx, func(snap watch.Snapshot) {
		if s.jsonOutput() {
			output.WriteJSONListing(out, source, dest, snap.Records, &snap.Summary)
			return
		}

		fmt.Fprintf(out, "[%s] ", snap.Time.Format("15:04:05"))
		table.WriteSummary(snap.Summary)
		if snap.Summary.Complete() && snap.Summary.Total > 0 {
			fmt.Fprintln(out, "Card fully offloaded")
		}
	})
}
