package domain

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrSourceAccess        = errors.New("source could not be loaded")
	ErrMissingColumn       = errors.New("required column missing from source")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrEmptySource         = errors.New("source has no header row")
	ErrRunNotFound         = errors.New("check run not found")
	ErrNothingToMerge      = errors.New("run has no unique records to merge")
	ErrAlreadyMerged       = errors.New("run has already been merged")
	ErrStoreUnavailable    = errors.New("reference store is not configured")
	ErrUploadFailed        = errors.New("report upload to storage failed")
)

// CoercionError reports a canonical field that could not be converted to its
// semantic type. It never aborts a batch; the row is excluded instead.
type CoercionError struct {
	Field string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	return "invalid " + e.Field + " " + quote(e.Value) + ": " + e.Err.Error()
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Coercion failure causes.
var (
	ErrEmptyField    = errors.New("value is empty")
	ErrInvalidDate   = errors.New("not a recognised date")
	ErrInvalidAmount = errors.New("not a decimal amount")
)

// maxQuoted is the byte budget for values echoed in error messages.
const maxQuoted = 40

func quote(s string) string {
	if len(s) > maxQuoted {
		cut := maxQuoted
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return `"` + s + `"`
}
