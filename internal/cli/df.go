package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/offload/pkg/capacity"
	"github.com/sdejongh/offload/pkg/output"
)

// NewDfCommand creates the df command
func NewDfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "df PATH...",
		Short: "Show free space of the volumes holding each path",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDf,
	}
}

func runDf(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	infos := make([]*capacity.Info, 0, len(args))
	for _, path := range args {
		info, err := capacity.Usage(path)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if s.jsonOutput() {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	table := output.NewTable(out)
	for _, info := range infos {
		fmt.Fprintf(out, "%s: %s\n", info.Path, info)
		if info.NearlyFull() {
			table.WriteWarning(fmt.Sprintf("%s is more than %.0f%% full", info.Path, capacity.WarnFraction*100))
		}
	}
	return nil
}
