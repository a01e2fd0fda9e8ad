package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/models"
)

const (
	successColorCode = "10"
	warningColorCode = "11"
	errorColorCode   = "9"
	activeColorCode  = "12"
	dimColorCode     = "240"

	columnGap = "  "
)

// Table renders record listings. Colours are used only when the writer
// supports them.
type Table struct {
	writer   io.Writer
	renderer *lipgloss.Renderer
}

// NewTable creates a table writer for w
func NewTable(w io.Writer) *Table {
	return &Table{
		writer:   w,
		renderer: lipgloss.NewRenderer(w),
	}
}

// statusStyle returns the colour of a sync status
func (t *Table) statusStyle(status models.SyncStatus) lipgloss.Style {
	style := t.renderer.NewStyle()
	switch status {
	case models.StatusSynced:
		return style.Foreground(lipgloss.Color(successColorCode))
	case models.StatusMissing:
		return style.Foreground(lipgloss.Color(warningColorCode))
	case models.StatusError:
		return style.Foreground(lipgloss.Color(errorColorCode)).Bold(true)
	case models.StatusTransferring, models.StatusVerifying:
		return style.Foreground(lipgloss.Color(activeColorCode))
	default:
		return style.Foreground(lipgloss.Color(dimColorCode))
	}
}

// WriteRecords writes one row per record: name, type and size, plus the
// sync status when withStatus is set
func (t *Table) WriteRecords(records []*models.FileRecord, withStatus bool) error {
	header := []string{"NAME", "TYPE", "SIZE"}
	if withStatus {
		header = append(header, "STATUS")
	}

	rows := make([][]string, 0, len(records))
	statuses := make([]models.RecordSnapshot, 0, len(records))
	for _, r := range records {
		snap := r.Snapshot()
		row := []string{snap.Name, string(snap.Type), models.FormatSize(snap.Size)}
		if withStatus {
			status := string(snap.Status)
			if snap.Error != "" {
				status += ": " + snap.Error
			}
			row = append(row, status)
		}
		rows = append(rows, row)
		statuses = append(statuses, snap)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	headerStyle := t.renderer.NewStyle().Bold(true)
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = t.cell(headerStyle, h, widths[i], i == len(header)-1)
	}
	if _, err := fmt.Fprintln(t.writer, strings.Join(cells, columnGap)); err != nil {
		return err
	}

	plain := t.renderer.NewStyle()
	for n, row := range rows {
		for i, value := range row {
			style := plain
			if withStatus && i == len(row)-1 {
				style = t.statusStyle(statuses[n].Status)
			}
			cells[i] = t.cell(style, value, widths[i], i == len(row)-1)
		}
		if _, err := fmt.Fprintln(t.writer, strings.Join(cells, columnGap)); err != nil {
			return err
		}
	}
	return nil
}

// cell pads value to width; the last column is not padded
func (t *Table) cell(style lipgloss.Style, value string, width int, last bool) string {
	if last {
		return style.Render(value)
	}
	return style.Width(width).Render(value)
}

// WriteSummary writes a one-line count of a reconciliation
func (t *Table) WriteSummary(s compare.Summary) error {
	line := fmt.Sprintf("%d files: %s synced (%s), %s missing (%s)",
		s.Total,
		t.statusStyle(models.StatusSynced).Render(fmt.Sprint(s.Synced)), formatBytes(s.SyncedBytes),
		t.statusStyle(models.StatusMissing).Render(fmt.Sprint(s.Missing)), formatBytes(s.MissingBytes))
	if s.Other > 0 {
		line += fmt.Sprintf(", %d other", s.Other)
	}
	_, err := fmt.Fprintln(t.writer, line)
	return err
}

// WriteWarning writes a highlighted warning line
func (t *Table) WriteWarning(msg string) error {
	style := t.renderer.NewStyle().Foreground(lipgloss.Color(warningColorCode)).Bold(true)
	_, err := fmt.Fprintln(t.writer, style.Render("Warning: "+msg))
	return err
}
