package port

import (
	"context"

	"dupcheck/internal/domain"
)

// ReferenceLoader reads the authoritative invoice set from the reference store.
type ReferenceLoader interface {
	LoadReference(ctx context.Context) ([]domain.RawRecord, error)
}

// ReferenceWriter appends records to the reference store. Per-row outcomes
// are always reported; the returned error is reserved for failures that
// prevent the merge from starting or finishing at all.
type ReferenceWriter interface {
	Append(ctx context.Context, records []domain.InvoiceRecord, mode domain.MergeMode) (*domain.MergeResult, error)
}

// ReferenceStore is a store that can be both read and merged into.
type ReferenceStore interface {
	ReferenceLoader
	ReferenceWriter
	Ping(ctx context.Context) error
}
