package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/transfer"
)

// JSONReporter writes the final transfer report as JSON for automation and
// scripting. Per-file outcomes are part of the report, so no progress is
// written while the run is active.
type JSONReporter struct {
	writer io.Writer
}

// JSONReportData represents the final report data
type JSONReportData struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`
	Destination string         `json:"destination"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    string         `json:"duration"`
	DurationMs  int64          `json:"duration_ms"`
	Stats       JSONStatsData  `json:"stats"`
	Files       []JSONFileData `json:"files"`
	Fault       string         `json:"fault,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	FilesTotal      int    `json:"files_total"`
	FilesSynced     int    `json:"files_synced"`
	FilesErrored    int    `json:"files_errored"`
	FilesUntouched  int    `json:"files_untouched"`
	BytesTotal      int64  `json:"bytes_total"`
	BytesCopied     int64  `json:"bytes_copied"`
	AverageSpeed    int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr string `json:"average_speed,omitempty"`
}

// JSONFileData represents one file outcome
type JSONFileData struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// JSONListing is the JSON form of a scan or a reconciliation
type JSONListing struct {
	Source      string                  `json:"source"`
	Destination string                  `json:"destination,omitempty"`
	Files       []models.RecordSnapshot `json:"files"`
	Summary     *compare.Summary        `json:"summary,omitempty"`
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

// Start does nothing; the report carries everything
func (r *JSONReporter) Start(models.Batch, string) error {
	return nil
}

// Progress does nothing
func (r *JSONReporter) Progress(transfer.Progress) {}

// Complete writes the report
func (r *JSONReporter) Complete(report *models.TransferReport) error {
	return WriteJSONReport(r.writer, report)
}

// Name returns the reporter name
func (r *JSONReporter) Name() string {
	return "json"
}

// NewJSONReportData converts a transfer report into its JSON form
func NewJSONReportData(report *models.TransferReport) JSONReportData {
	data := JSONReportData{
		RunID:       report.RunID,
		Status:      string(report.Status),
		Destination: report.DestPath,
		StartTime:   report.StartTime,
		EndTime:     report.EndTime,
		Duration:    report.Duration.Round(time.Millisecond).String(),
		DurationMs:  report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			FilesTotal:     report.Stats.FilesTotal,
			FilesSynced:    report.Stats.FilesSynced,
			FilesErrored:   report.Stats.FilesErrored,
			FilesUntouched: report.Stats.FilesUntouched,
			BytesTotal:     report.Stats.BytesTotal,
			BytesCopied:    report.Stats.BytesCopied,
			AverageSpeed:   report.Stats.AverageSpeed,
		},
		Files: make([]JSONFileData, 0, len(report.Files)),
		Fault: report.Fault,
	}
	if report.Stats.AverageSpeed > 0 {
		data.Stats.AverageSpeedStr = formatBytes(report.Stats.AverageSpeed) + "/s"
	}

	for _, f := range report.Files {
		status := f.Status
		if status == "" {
			status = models.StatusMissing
		}
		data.Files = append(data.Files, JSONFileData{
			Name:      f.Name,
			Path:      f.Path,
			Size:      f.Size,
			Status:    string(status),
			Digest:    f.Digest,
			Error:     f.Error,
			ElapsedMs: f.Elapsed.Milliseconds(),
		})
	}

	return data
}

// WriteJSONReport writes the transfer report as indented JSON
func WriteJSONReport(w io.Writer, report *models.TransferReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewJSONReportData(report))
}

// WriteJSONListing writes records, and the summary when given, as indented JSON
func WriteJSONListing(w io.Writer, source, dest string, records []*models.FileRecord, summary *compare.Summary) error {
	listing := JSONListing{
		Source:      source,
		Destination: dest,
		Files:       make([]models.RecordSnapshot, 0, len(records)),
		Summary:     summary,
	}
	for _, r := range records {
		listing.Files = append(listing.Files, r.Snapshot())
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(listing)
}
