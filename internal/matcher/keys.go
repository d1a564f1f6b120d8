package matcher

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dupcheck/internal/domain"
)

// DateFormat is the single canonical date representation used in keys on
// both sides of a comparison.
const DateFormat = "2006-01-02"

// keySeparator joins fields inside a composite key. The ASCII unit separator
// cannot occur in trimmed spreadsheet text, so "A_B"+"C" and "A"+"B_C" stay distinct.
const keySeparator = "\x1f"

// KeyGenerator derives composite match keys from canonical fields.
type KeyGenerator struct {
	scale int32
}

// NewKeyGenerator returns a generator that formats amounts with scale decimal places.
func NewKeyGenerator(scale int32) *KeyGenerator {
	if scale < 0 {
		scale = 0
	}
	return &KeyGenerator{scale: scale}
}

// FormatDate renders a date in DateFormat.
func (g *KeyGenerator) FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// FormatAmount renders an amount rounded to a fixed number of places, so
// 100, 100.0 and 100.00 all produce the same text.
func (g *KeyGenerator) FormatAmount(d decimal.Decimal) string {
	return d.Round(g.scale).StringFixed(g.scale)
}

// Keys computes the four composite keys of rec.
func (g *KeyGenerator) Keys(rec *domain.InvoiceRecord) domain.Keys {
	var (
		number   = rec.InvoiceNumber
		date     = g.FormatDate(rec.InvoiceDate)
		amount   = g.FormatAmount(rec.GrossAmount)
		supplier = rec.SupplierNumber
	)

	var k domain.Keys
	k[domain.Key1] = join(date, amount, supplier)
	k[domain.Key2] = join(number, amount, supplier)
	k[domain.Key3] = join(number, date, supplier)
	k[domain.Key4] = join(date, amount, supplier, number)
	return k
}

// Apply (re)computes the keys of every record in place.
func (g *KeyGenerator) Apply(recs []domain.InvoiceRecord) {
	for i := range recs {
		recs[i].Keys = g.Keys(&recs[i])
	}
}

func join(fields ...string) string {
	return strings.Join(fields, keySeparator)
}
