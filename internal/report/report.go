// Package report lays out the annotated candidate batch shared by the CSV
// and XLSX exporters.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dupcheck/internal/domain"
)

// Appended column headers.
const (
	DuplicateColumn  = "Duplicate"
	MatchLogicColumn = "Match Logic"
)

// DefaultBaseName is used when the candidate source gives no better name.
const DefaultBaseName = "duplicates_report"

// Annotate returns the candidate table in its original column order with the
// Duplicate and Match Logic columns set for every row. Existing columns of
// the same name, as found in a re-checked report, are overwritten in place.
func Annotate(run *domain.CheckRun) (header []string, rows [][]string) {
	if run.Candidates == nil {
		return []string{DuplicateColumn, MatchLogicColumn}, nil
	}

	header = append([]string(nil), run.Candidates.Columns...)
	dupCol := run.Candidates.ColumnIndex(DuplicateColumn)
	if dupCol < 0 {
		dupCol = len(header)
		header = append(header, DuplicateColumn)
	}
	logicCol := run.Candidates.ColumnIndex(MatchLogicColumn)
	if logicCol < 0 {
		logicCol = len(header)
		header = append(header, MatchLogicColumn)
	}

	results := make(map[int]domain.MatchResult, len(run.Results))
	for _, r := range run.Results {
		results[r.Record.Row] = r.Result
	}
	excluded := make(map[int]domain.Exclusion, len(run.CandidateExclusion))
	for _, e := range run.CandidateExclusion {
		excluded[e.Row] = e
	}

	rows = make([][]string, 0, len(run.Candidates.Rows))
	for i, src := range run.Candidates.Rows {
		row := make([]string, len(header))
		copy(row, src)
		if res, ok := results[i+1]; ok {
			row[dupCol] = domain.DuplicateLabel(res.IsDuplicate)
			row[logicCol] = string(res.Rule)
		} else if ex, ok := excluded[i+1]; ok {
			row[dupCol] = domain.ExcludedLabel
			row[logicCol] = ex.Reason
		}
		rows = append(rows, row)
	}
	return header, rows
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename replaces characters other than alphanumerics, hyphen and
// underscore with _, collapses runs of underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {base}_{YYYY-MM-DD}.{ext}, falling back to
// DefaultBaseName when base sanitises to nothing.
func BuildFilename(base string, fileType domain.FileType, now time.Time) string {
	s := SanitizeFilename(base)
	if s == "" {
		s = DefaultBaseName
	}
	return fmt.Sprintf("%s_%s.%s", s, now.Format("2006-01-02"), fileType)
}
