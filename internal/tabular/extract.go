package tabular

import (
	"fmt"

	"dupcheck/internal/domain"
)

// ColumnMap names the source headers holding the canonical fields.
type ColumnMap struct {
	InvoiceNumber  string
	InvoiceDate    string
	GrossAmount    string
	SupplierNumber string
}

// DefaultColumns uses the canonical field names as headers.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		InvoiceNumber:  domain.FieldInvoiceNumber,
		InvoiceDate:    domain.FieldInvoiceDate,
		GrossAmount:    domain.FieldGrossAmount,
		SupplierNumber: domain.FieldSupplierNumber,
	}
}

// Extract pulls the canonical fields out of every row of t. A missing
// column fails the whole source.
func Extract(t *domain.Table, cols ColumnMap) ([]domain.RawRecord, error) {
	idx := make(map[string]int, 4)
	for _, name := range []string{cols.InvoiceNumber, cols.InvoiceDate, cols.GrossAmount, cols.SupplierNumber} {
		i := t.ColumnIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q in %s", domain.ErrMissingColumn, name, t.Name)
		}
		idx[name] = i
	}

	out := make([]domain.RawRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, domain.RawRecord{
			Row:            i + 1,
			InvoiceNumber:  row[idx[cols.InvoiceNumber]],
			InvoiceDate:    row[idx[cols.InvoiceDate]],
			GrossAmount:    row[idx[cols.GrossAmount]],
			SupplierNumber: row[idx[cols.SupplierNumber]],
		})
	}
	return out, nil
}
