package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dupcheck/internal/domain"
)

// DefaultDateLayouts are tried in order. ISO forms come first; ambiguous
// slash dates are read month-first.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01-02-06",
	"1/2/06",
	"02.01.2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// Excel serial day numbers outside this range are not treated as dates.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

// Options configures field coercion and key formatting.
type Options struct {
	DateLayouts      []string
	AmountScale      int32
	DecimalSeparator rune
	ExcelSerialDates bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DateLayouts:      DefaultDateLayouts,
		AmountScale:      2,
		DecimalSeparator: '.',
		ExcelSerialDates: true,
	}
}

// Coercer converts raw string fields to their semantic types.
type Coercer struct {
	opts Options
}

// NewCoercer creates a Coercer, filling unset options with defaults.
func NewCoercer(opts Options) *Coercer {
	def := DefaultOptions()
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = def.DateLayouts
	}
	if opts.DecimalSeparator == 0 {
		opts.DecimalSeparator = def.DecimalSeparator
	}
	return &Coercer{opts: opts}
}

// Coerce converts raw into an InvoiceRecord without keys. The returned error
// is always a *domain.CoercionError.
func (c *Coercer) Coerce(raw domain.RawRecord) (domain.InvoiceRecord, error) {
	rec := domain.InvoiceRecord{Row: raw.Row}

	number, err := canonicalIdentifier(raw.InvoiceNumber)
	if err != nil {
		return rec, &domain.CoercionError{Field: domain.FieldInvoiceNumber, Value: raw.InvoiceNumber, Err: err}
	}
	date, err := c.ParseDate(raw.InvoiceDate)
	if err != nil {
		return rec, &domain.CoercionError{Field: domain.FieldInvoiceDate, Value: raw.InvoiceDate, Err: err}
	}
	amount, err := c.ParseAmount(raw.GrossAmount)
	if err != nil {
		return rec, &domain.CoercionError{Field: domain.FieldGrossAmount, Value: raw.GrossAmount, Err: err}
	}
	supplier, err := canonicalIdentifier(raw.SupplierNumber)
	if err != nil {
		return rec, &domain.CoercionError{Field: domain.FieldSupplierNumber, Value: raw.SupplierNumber, Err: err}
	}

	rec.InvoiceNumber = number
	rec.InvoiceDate = date
	rec.GrossAmount = amount
	rec.SupplierNumber = supplier
	return rec, nil
}

// ParseDate parses s with the configured layouts and, if enabled, as an
// Excel serial day number. The time of day is discarded.
func (c *Coercer) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.ErrEmptyField
	}
	for _, layout := range c.opts.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	if c.opts.ExcelSerialDates {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return dateOnly(t), nil
			}
		}
	}
	return time.Time{}, domain.ErrInvalidDate
}

// ParseAmount parses a monetary value. Currency symbols, spaces and grouping
// separators are ignored and "(12.50)" is read as -12.50.
func (c *Coercer) ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, domain.ErrEmptyField
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	if c.opts.DecimalSeparator == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// floatArtefact matches identifiers that a spreadsheet stored as floats, e.g. "10045.0".
var floatArtefact = regexp.MustCompile(`^([0-9]+)\.0+$`)

func canonicalIdentifier(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.ErrEmptyField
	}
	if m := floatArtefact.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	return s, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
