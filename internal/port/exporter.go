package port

import (
	"io"

	"dupcheck/internal/domain"
)

// ResultExporter writes the candidate batch, in its original column order,
// with the Duplicate and Match Logic columns appended.
type ResultExporter interface {
	Export(w io.Writer, run *domain.CheckRun) error
	FileType() domain.FileType
}
