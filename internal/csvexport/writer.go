package csvexport

import (
	"encoding/csv"
	"io"

	"dupcheck/internal/domain"
	"dupcheck/internal/port"
	"dupcheck/internal/report"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// referenceColumns is the header row of a reference store dump.
var referenceColumns = []string{
	domain.FieldInvoiceNumber,
	domain.FieldInvoiceDate,
	domain.FieldGrossAmount,
	domain.FieldSupplierNumber,
}

// Writer wraps csv.Writer for exporting check results as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteRows writes rows verbatim.
func (w *Writer) WriteRows(rows [][]string) error {
	for _, row := range rows {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteReference writes the four canonical columns of each record, preceded
// by a header row.
func (w *Writer) WriteReference(records []domain.RawRecord) error {
	if err := w.csv.Write(referenceColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.csv.Write([]string{r.InvoiceNumber, r.InvoiceDate, r.GrossAmount, r.SupplierNumber}); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

type exporter struct{}

// NewExporter returns a ResultExporter writing the annotated batch as a
// BOM-prefixed CSV.
func NewExporter() port.ResultExporter {
	return exporter{}
}

func (exporter) FileType() domain.FileType { return domain.FileTypeCSV }

func (exporter) Export(w io.Writer, run *domain.CheckRun) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	header, rows := report.Annotate(run)
	cw := NewWriter(w)
	if err := cw.WriteRows([][]string{header}); err != nil {
		return err
	}
	if err := cw.WriteRows(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
