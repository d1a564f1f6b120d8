package matcher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
)

func TestPrepare_ExcludesUnparseableDate(t *testing.T) {
	m := matcher.New(matcher.DefaultOptions())

	recs, excluded := m.Prepare([]domain.RawRecord{
		raw(1, "A1", "not-a-date", "100", "S1"),
		raw(2, "A2", "2024-01-01", "100", "S1"),
	})

	require.Len(t, recs, 1)
	assert.Equal(t, "A2", recs[0].InvoiceNumber)
	require.Len(t, excluded, 1)
	assert.Equal(t, 1, excluded[0].Row)
	assert.Equal(t, domain.FieldInvoiceDate, excluded[0].Field)
	assert.Equal(t, "not-a-date", excluded[0].Value)
	assert.Contains(t, excluded[0].Reason, "not a recognised date")
}

func TestPrepare_ExcludesEmptyFields(t *testing.T) {
	m := matcher.New(matcher.DefaultOptions())

	tests := []struct {
		name  string
		in    domain.RawRecord
		field string
	}{
		{"number", raw(1, "", "2024-01-01", "1", "S1"), domain.FieldInvoiceNumber},
		{"date", raw(1, "N", "", "1", "S1"), domain.FieldInvoiceDate},
		{"amount", raw(1, "N", "2024-01-01", " ", "S1"), domain.FieldGrossAmount},
		{"supplier", raw(1, "N", "2024-01-01", "1", ""), domain.FieldSupplierNumber},
		{"bad amount", raw(1, "N", "2024-01-01", "12abc", "S1"), domain.FieldGrossAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, excluded := m.Prepare([]domain.RawRecord{tt.in})
			assert.Empty(t, recs)
			require.Len(t, excluded, 1)
			assert.Equal(t, tt.field, excluded[0].Field)
		})
	}
}

func TestCoercer_ParseDate(t *testing.T) {
	c := matcher.NewCoercer(matcher.DefaultOptions())
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2024-03-04", "2024-03-04T10:00:00Z", "03/04/2024", "3/4/2024", "04.03.2024", "4 Mar 2024", "45355"} {
		t.Run(in, func(t *testing.T) {
			got, err := c.ParseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestCoercer_ParseDate_SerialDisabled(t *testing.T) {
	c := matcher.NewCoercer(matcher.Options{DateLayouts: []string{"2006-01-02"}})

	_, err := c.ParseDate("45355")

	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestCoercer_ParseAmount(t *testing.T) {
	c := matcher.NewCoercer(matcher.DefaultOptions())

	tests := []struct {
		in   string
		want string
	}{
		{"100", "100"},
		{"1,234.56", "1234.56"},
		{"€ 99.90", "99.9"},
		{"(12.50)", "-12.5"},
		{"1e2", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCoercer_ParseAmount_CommaDecimal(t *testing.T) {
	c := matcher.NewCoercer(matcher.Options{DecimalSeparator: ','})

	got, err := c.ParseAmount("1.234,50")

	require.NoError(t, err)
	assert.Equal(t, "1234.5", got.String())
}

func TestCoercer_CoercionErrorType(t *testing.T) {
	c := matcher.NewCoercer(matcher.DefaultOptions())

	_, err := c.Coerce(raw(3, "A1", "2024-01-01", "x", "S1"))

	var ce *domain.CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.FieldGrossAmount, ce.Field)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
