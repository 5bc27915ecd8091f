// Package export renders incident history as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

const (
	summarySheet = "Incident"
	historySheet = "History"
	timeLayout   = "2006-01-02 15:04:05"
)

var historyHeader = []interface{}{"#", "Changed At (UTC)", "Action", "From", "To", "Actor", "Comment"}

// XLSXExporter writes a two-sheet workbook: the incident summary and its
// status history, oldest entry first.
type XLSXExporter struct {
	logger *zap.Logger
}

var _ port.HistoryExporter = (*XLSXExporter)(nil)

// NewXLSXExporter creates a new spreadsheet exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType returns the MIME type of the produced workbook
func (x *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export renders the workbook. entries are expected newest first, the way
// the history ledger returns them.
func (x *XLSXExporter) Export(incident *entity.Incident, entries []*entity.StatusHistory) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	summary := [][]interface{}{
		{"ID", incident.ID},
		{"Title", incident.Title},
		{"Status", incident.StatusCode},
		{"Priority", incident.Priority},
		{"Creator", incident.CreatorUserID},
		{"Assignee", incident.Assignee()},
		{"Created At (UTC)", incident.CreatedAt.UTC().Format(timeLayout)},
		{"Updated At (UTC)", incident.UpdatedAt.UTC().Format(timeLayout)},
	}
	for i, row := range summary {
		if err := x.setRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	if err := x.setRow(f, historySheet, 1, historyHeader); err != nil {
		return nil, err
	}
	for i := range entries {
		e := entries[len(entries)-1-i]
		comment := ""
		if e.Comment != nil {
			comment = *e.Comment
		}
		row := []interface{}{
			i + 1,
			e.ChangedAt.UTC().Format(timeLayout),
			e.ActionCode,
			e.FromStatusCode,
			e.ToStatusCode,
			e.ActorUserID,
			comment,
		}
		if err := x.setRow(f, historySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := x.styleHeader(f); err != nil {
		x.logger.Warn("Failed to style history header", zap.Error(err))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Debug("History exported",
		zap.String("incident_id", incident.ID),
		zap.Int("entries", len(entries)))
	return buf.Bytes(), nil
}

func (x *XLSXExporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (x *XLSXExporter) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(historyHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(historySheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetColWidth(historySheet, "B", "B", float64(len(timeLayout)+2))
}
