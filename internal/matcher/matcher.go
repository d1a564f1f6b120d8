// Package matcher implements duplicate detection for invoice records: field
// coercion, composite key generation and the tiered match cascade.
package matcher

import (
	"errors"

	"dupcheck/internal/domain"
)

// Matcher bundles coercion and key generation with shared options.
type Matcher struct {
	coercer *Coercer
	keys    *KeyGenerator
}

// New creates a Matcher.
func New(opts Options) *Matcher {
	return &Matcher{
		coercer: NewCoercer(opts),
		keys:    NewKeyGenerator(opts.AmountScale),
	}
}

// Keys exposes the key generator.
func (m *Matcher) Keys() *KeyGenerator { return m.keys }

// Prepare coerces and keys raw records. Rows that fail coercion are returned
// as exclusions and never reach key generation.
func (m *Matcher) Prepare(raws []domain.RawRecord) ([]domain.InvoiceRecord, []domain.Exclusion) {
	records := make([]domain.InvoiceRecord, 0, len(raws))
	var excluded []domain.Exclusion
	for _, raw := range raws {
		rec, err := m.coercer.Coerce(raw)
		if err != nil {
			excluded = append(excluded, exclusionFor(raw.Row, err))
			continue
		}
		rec.Keys = m.keys.Keys(&rec)
		records = append(records, rec)
	}
	return records, excluded
}

// Index prepares raw reference records and builds their index.
func (m *Matcher) Index(raws []domain.RawRecord) (*ReferenceIndex, []domain.InvoiceRecord, []domain.Exclusion) {
	refs, excluded := m.Prepare(raws)
	return NewReferenceIndex(refs), refs, excluded
}

func exclusionFor(row int, err error) domain.Exclusion {
	var ce *domain.CoercionError
	if errors.As(err, &ce) {
		return domain.Exclusion{Row: row, Field: ce.Field, Value: ce.Value, Reason: ce.Error()}
	}
	return domain.Exclusion{Row: row, Reason: err.Error()}
}
