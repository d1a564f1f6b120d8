package domain

import "strings"

// KeyID identifies one of the composite match keys.
type KeyID int

const (
	// Key1 is date + amount + supplier.
	Key1 KeyID = iota
	// Key2 is number + amount + supplier.
	Key2
	// Key3 is number + date + supplier.
	Key3
	// Key4 is date + amount + supplier + number.
	Key4

	KeyCount = 4
)

func (k KeyID) String() string {
	switch k {
	case Key1:
		return "key1"
	case Key2:
		return "key2"
	case Key3:
		return "key3"
	case Key4:
		return "key4"
	}
	return "key?"
}

// MatchRule names the tier that classified a candidate.
type MatchRule string

const (
	RuleDateAmountSupplierNumber MatchRule = "Date+Amount+Supplier+Number"
	RuleDateAmountSupplier       MatchRule = "Date+Amount+Supplier"
	RuleNumberAmountSupplier     MatchRule = "Number+Amount+Supplier"
	RuleNumberDateSupplier       MatchRule = "Number+Date+Supplier"
	RuleUnique                   MatchRule = "UNIQUE"
)

// DuplicateLabel is the value written to the Duplicate column.
func DuplicateLabel(isDuplicate bool) string {
	if isDuplicate {
		return "Yes"
	}
	return "No"
}

// ExcludedLabel is written to the Duplicate column for rows dropped before matching.
const ExcludedLabel = "Excluded"

// Canonical field names, used in exclusions and column mappings.
const (
	FieldInvoiceNumber  = "Invoice Number"
	FieldInvoiceDate    = "Invoice Date"
	FieldGrossAmount    = "Gross Amount"
	FieldSupplierNumber = "Supplier Number"
)

// MergeMode selects how the store writer handles a failing row.
type MergeMode string

const (
	// MergeModeAtomic writes all rows in one transaction; any failure rolls back everything.
	MergeModeAtomic MergeMode = "atomic"
	// MergeModePerRow commits each row on its own; earlier successes survive later failures.
	MergeModePerRow MergeMode = "per_row"
)

// MergeOutcome is the result of persisting one row.
type MergeOutcome string

const (
	MergeOutcomeInserted      MergeOutcome = "inserted"
	MergeOutcomeAlreadyExists MergeOutcome = "already_exists"
	MergeOutcomeFailed        MergeOutcome = "failed"
	MergeOutcomeRolledBack    MergeOutcome = "rolled_back"
)

// MergeStatus summarises a whole merge.
type MergeStatus string

const (
	MergeStatusSuccess MergeStatus = "success"
	MergeStatusPartial MergeStatus = "partial"
	MergeStatusFailed  MergeStatus = "failed"
)

// FileType is a supported tabular source format.
type FileType string

const (
	FileTypeXLSX FileType = "xlsx"
	FileTypeCSV  FileType = "csv"
)

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"xlsx": FileTypeXLSX,
	"xlsm": FileTypeXLSX,
	"csv":  FileTypeCSV,
	"txt":  FileTypeCSV,
}

// ContentTypes maps a FileType to the MIME type used for reports.
var ContentTypes = map[FileType]string{
	FileTypeXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FileTypeCSV:  "text/csv; charset=utf-8",
}

func equalHeader(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
