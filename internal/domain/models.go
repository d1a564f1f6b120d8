package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRecord carries the four canonical invoice fields in the untyped form
// they were read from a source. Row is the 1-based data row in that source.
type RawRecord struct {
	Row            int    `db:"-" json:"row"`
	InvoiceNumber  string `db:"invoice_number" json:"invoice_number"`
	InvoiceDate    string `db:"invoice_date" json:"invoice_date"`
	GrossAmount    string `db:"gross_amount" json:"gross_amount"`
	SupplierNumber string `db:"supplier_number" json:"supplier_number"`
}

// InvoiceRecord is the canonical unit of comparison.
type InvoiceRecord struct {
	Row            int             `json:"row"`
	InvoiceNumber  string          `json:"invoice_number"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	SupplierNumber string          `json:"supplier_number"`

	// Keys are derived from the canonical fields and never persisted.
	Keys Keys `json:"-"`
}

// Keys holds the composite match keys of a record, indexed by KeyID.
type Keys [KeyCount]string

// Get returns the key for id.
func (k Keys) Get(id KeyID) string {
	return k[id]
}

// IsZero reports whether no key has been generated yet.
func (k Keys) IsZero() bool {
	return k == Keys{}
}

// MatchResult is attached to each candidate record after matching.
type MatchResult struct {
	IsDuplicate bool      `json:"is_duplicate"`
	Rule        MatchRule `json:"match_rule"`
	// ReferenceRows are positions in the reference set sharing the key that fired.
	ReferenceRows []int `json:"reference_rows,omitempty"`
}

// Exclusion accounts for a row that was dropped before matching.
type Exclusion struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Table is a tabular source read verbatim: the header row plus data rows,
// every row padded to len(Columns).
type Table struct {
	Name    string     `json:"name"`
	Sheet   string     `json:"sheet,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`
}

// ColumnIndex returns the position of the named column, comparing
// whitespace-trimmed headers case-insensitively, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if equalHeader(c, name) {
			return i
		}
	}
	return -1
}

// CandidateResult pairs a coerced candidate with its match outcome.
type CandidateResult struct {
	Record InvoiceRecord `json:"record"`
	Result MatchResult   `json:"result"`
}

// RunSummary counts what happened during a check run.
type RunSummary struct {
	ReferenceRows     int               `json:"reference_rows"`
	ReferenceExcluded int               `json:"reference_excluded"`
	CandidateRows     int               `json:"candidate_rows"`
	CandidateExcluded int               `json:"candidate_excluded"`
	Duplicates        int               `json:"duplicates"`
	Unique            int               `json:"unique"`
	ByRule            map[MatchRule]int `json:"by_rule"`
}

// CheckRun is one complete comparison of a candidate batch against a reference set.
type CheckRun struct {
	ID                 uuid.UUID         `json:"id"`
	ReferenceSource    string            `json:"reference_source"`
	CandidateSource    string            `json:"candidate_source"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        time.Time         `json:"completed_at"`
	Candidates         *Table            `json:"candidates"`
	Results            []CandidateResult `json:"results"`
	CandidateExclusion []Exclusion       `json:"candidate_exclusions"`
	ReferenceExclusion []Exclusion       `json:"reference_exclusions"`
	Summary            RunSummary        `json:"summary"`
	Merged             *MergeResult      `json:"merged,omitempty"`
}

// Unique returns the candidates classified as UNIQUE, in source order.
func (r *CheckRun) Unique() []InvoiceRecord {
	var out []InvoiceRecord
	for i := range r.Results {
		if !r.Results[i].Result.IsDuplicate {
			out = append(out, r.Results[i].Record)
		}
	}
	return out
}

// ResultForRow returns the match outcome for a 1-based candidate data row.
func (r *CheckRun) ResultForRow(row int) (*CandidateResult, bool) {
	for i := range r.Results {
		if r.Results[i].Record.Row == row {
			return &r.Results[i], true
		}
	}
	return nil, false
}

// ExclusionForRow returns the exclusion recorded for a 1-based candidate data row.
func (r *CheckRun) ExclusionForRow(row int) (*Exclusion, bool) {
	for i := range r.CandidateExclusion {
		if r.CandidateExclusion[i].Row == row {
			return &r.CandidateExclusion[i], true
		}
	}
	return nil, false
}

// MergeRowResult is the per-row outcome of a merge.
type MergeRowResult struct {
	Row     int          `json:"row"`
	Outcome MergeOutcome `json:"outcome"`
	Error   string       `json:"error,omitempty"`
}

// MergeResult is returned by the store writer.
type MergeResult struct {
	Mode     MergeMode        `json:"mode"`
	Status   MergeStatus      `json:"status"`
	Inserted int              `json:"inserted"`
	Existing int              `json:"existing"`
	Failed   int              `json:"failed"`
	Rows     []MergeRowResult `json:"rows"`
}

// Tally recomputes the counters and Status from Rows.
func (m *MergeResult) Tally() {
	m.Inserted, m.Existing, m.Failed = 0, 0, 0
	for _, r := range m.Rows {
		switch r.Outcome {
		case MergeOutcomeInserted:
			m.Inserted++
		case MergeOutcomeAlreadyExists:
			m.Existing++
		case MergeOutcomeFailed, MergeOutcomeRolledBack:
			m.Failed++
		}
	}
	switch {
	case m.Failed == 0:
		m.Status = MergeStatusSuccess
	case m.Inserted > 0:
		m.Status = MergeStatusPartial
	default:
		m.Status = MergeStatusFailed
	}
}
