// Package xlsxexport writes check results as an Excel workbook.
package xlsxexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/report"
)

// Sheet names.
const (
	ResultsSheet  = "Results"
	ExcludedSheet = "Excluded"
	SummarySheet  = "Summary"
)

var exclusionColumns = []string{"Row", "Field", "Value", "Reason"}

type exporter struct{}

// NewExporter returns a ResultExporter producing a workbook with the
// annotated batch on the first sheet, followed by excluded rows (when there
// are any) and run counts.
func NewExporter() port.ResultExporter {
	return exporter{}
}

func (exporter) FileType() domain.FileType { return domain.FileTypeXLSX }

func (exporter) Export(w io.Writer, run *domain.CheckRun) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}
	header, rows := report.Annotate(run)
	if err := writeSheet(f, ResultsSheet, header, rows, bold); err != nil {
		return err
	}

	if len(run.CandidateExclusion) > 0 {
		if _, err := f.NewSheet(ExcludedSheet); err != nil {
			return err
		}
		excl := make([][]string, 0, len(run.CandidateExclusion))
		for _, e := range run.CandidateExclusion {
			excl = append(excl, []string{fmt.Sprint(e.Row), e.Field, e.Value, e.Reason})
		}
		if err := writeSheet(f, ExcludedSheet, exclusionColumns, excl, bold); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, run, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
	if err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+last, nil)
}

func writeSummary(f *excelize.File, run *domain.CheckRun, headerStyle int) error {
	s := run.Summary
	lines := [][]interface{}{
		{"Reference", run.ReferenceSource},
		{"Candidate", run.CandidateSource},
		{"Checked At", run.CompletedAt.Format("2006-01-02 15:04:05 MST")},
		{"Reference Rows", s.ReferenceRows},
		{"Reference Excluded", s.ReferenceExcluded},
		{"Candidate Rows", s.CandidateRows},
		{"Candidate Excluded", s.CandidateExcluded},
		{"Duplicates", s.Duplicates},
		{"Unique", s.Unique},
	}
	for _, t := range matcher.Tiers() {
		lines = append(lines, []interface{}{string(t.Rule), s.ByRule[t.Rule]})
	}

	for i := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &lines[i]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := f.SetColStyle(SummarySheet, "A", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "A", 30)
}
