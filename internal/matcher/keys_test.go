package matcher_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
)

func record(number string, date time.Time, amount string, supplier string) domain.InvoiceRecord {
	return domain.InvoiceRecord{
		InvoiceNumber:  number,
		InvoiceDate:    date,
		GrossAmount:    decimal.RequireFromString(amount),
		SupplierNumber: supplier,
	}
}

func TestKeyGenerator_FieldComposition(t *testing.T) {
	g := matcher.NewKeyGenerator(2)
	rec := record("INV1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "100", "SUP1")

	k := g.Keys(&rec)

	split := func(s string) []string { return strings.Split(s, "\x1f") }
	assert.Equal(t, []string{"2024-01-01", "100.00", "SUP1"}, split(k.Get(domain.Key1)))
	assert.Equal(t, []string{"INV1", "100.00", "SUP1"}, split(k.Get(domain.Key2)))
	assert.Equal(t, []string{"INV1", "2024-01-01", "SUP1"}, split(k.Get(domain.Key3)))
	assert.Equal(t, []string{"2024-01-01", "100.00", "SUP1", "INV1"}, split(k.Get(domain.Key4)))
}

func TestKeyGenerator_Key4EqualityImpliesOthers(t *testing.T) {
	g := matcher.NewKeyGenerator(2)
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	a := record("A-7", day, "12.5", "S9")
	b := record("A-7", day, "12.50", "S9")

	ka, kb := g.Keys(&a), g.Keys(&b)

	require.Equal(t, ka.Get(domain.Key4), kb.Get(domain.Key4))
	assert.Equal(t, ka, kb)
}

func TestKeyGenerator_AmountFormatting(t *testing.T) {
	g := matcher.NewKeyGenerator(2)

	tests := []struct {
		in   string
		want string
	}{
		{"100", "100.00"},
		{"100.0", "100.00"},
		{"100.000", "100.00"},
		{"99.995", "100.00"},
		{"-12.5", "-12.50"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, g.FormatAmount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestKeyGenerator_DateIgnoresTimeOfDay(t *testing.T) {
	c := matcher.NewCoercer(matcher.DefaultOptions())

	a, err := c.ParseDate("2024-01-01 13:45:00")
	require.NoError(t, err)
	b, err := c.ParseDate("2024-01-01")
	require.NoError(t, err)

	g := matcher.NewKeyGenerator(2)
	assert.Equal(t, g.FormatDate(a), g.FormatDate(b))
}

func TestKeyGenerator_Idempotent(t *testing.T) {
	m := matcher.New(matcher.DefaultOptions())
	recs, excluded := m.Prepare([]domain.RawRecord{
		raw(1, "INV1", "2024-01-01", "100.00", "SUP1"),
		raw(2, "INV2", "2024-02-01", "7", "SUP2"),
	})
	require.Empty(t, excluded)
	first := []domain.Keys{recs[0].Keys, recs[1].Keys}

	m.Keys().Apply(recs)
	m.Keys().Apply(recs)

	assert.Equal(t, first, []domain.Keys{recs[0].Keys, recs[1].Keys})
}

func TestKeyGenerator_SeparatorPreventsBleed(t *testing.T) {
	g := matcher.NewKeyGenerator(2)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := record("AB", day, "1", "C")
	b := record("A", day, "1", "BC")

	assert.NotEqual(t, g.Keys(&a).Get(domain.Key2), g.Keys(&b).Get(domain.Key2))
}
