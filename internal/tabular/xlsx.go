package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dupcheck/internal/domain"
)

// readXLSX reads one worksheet. Cells are read raw so that date cells arrive
// as Excel serial numbers rather than in the workbook's display format.
func readXLSX(r io.Reader, sheet string) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	t, err := normalise(rows)
	if err != nil {
		return nil, err
	}
	t.Sheet = sheet
	return t, nil
}
