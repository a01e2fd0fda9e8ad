package output

import (
	"fmt"
	"io"
	"os"

	"github.com/sdejongh/offload/pkg/models"
)

// WriteReport writes report to w in the given format ("human" or "json")
func WriteReport(w io.Writer, report *models.TransferReport, format string) error {
	switch format {
	case "json":
		return WriteJSONReport(w, report)
	default: // "human"
		return WriteHumanReport(w, report)
	}
}

// WriteReportFile writes report to a file, replacing any previous content
func WriteReportFile(report *models.TransferReport, path string, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := WriteReport(file, report, format); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
