package port

import (
	"context"
	"io"

	"dupcheck/internal/domain"
)

// SourceRef identifies a tabular source. Location is a local path or an
// s3://bucket/key URI. When Body is set it is read instead and Location only
// names the content (for example an uploaded file name).
type SourceRef struct {
	Location string
	Body     io.Reader
	Sheet    string
}

// TableLoader reads a spreadsheet or CSV source verbatim.
type TableLoader interface {
	Load(ctx context.Context, src SourceRef) (*domain.Table, error)
}
