package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter() *Converter {
	return NewConverter(map[Currency]decimal.Decimal{
		USD: decimal.NewFromInt(1500),
		GBP: decimal.NewFromInt(2000),
	})
}

func TestFormat_CanonicalCurrencyNoFraction(t *testing.T) {
	c := newTestConverter()

	got, err := c.Format(4500000, NGN) // 45,000.00 naira
	require.NoError(t, err)
	assert.Equal(t, "₦45,000", got)
}

func TestFormat_SmallAmount(t *testing.T) {
	c := newTestConverter()

	got, err := c.Format(5000, NGN)
	require.NoError(t, err)
	assert.Equal(t, "₦50", got)
}

func TestFormat_ConvertedCurrencyTwoFractionDigits(t *testing.T) {
	c := newTestConverter()

	// 1,500,000 naira at 1500 NGN/USD is exactly 1,000 dollars.
	got, err := c.Format(150000000, USD)
	require.NoError(t, err)
	assert.Equal(t, "$1,000.00", got)
}

func TestFormat_RoundsToTwoDigits(t *testing.T) {
	c := newTestConverter()

	// 10,000 naira at 2000 NGN/GBP is 5 pounds.
	got, err := c.Format(1000000, GBP)
	require.NoError(t, err)
	assert.Equal(t, "£5.00", got)
}

func TestFormat_UnknownCurrency(t *testing.T) {
	c := newTestConverter()

	_, err := c.Format(1000, Currency("XYZ"))
	assert.Error(t, err)
}

func TestFormat_MissingRate(t *testing.T) {
	c := NewConverter(nil)

	_, err := c.Format(1000, USD)
	assert.Error(t, err)
}

func TestFormat_DoesNotAffectCanonicalAmount(t *testing.T) {
	c := newTestConverter()

	amount := int64(150000000)
	_, err := c.Format(amount, USD)
	require.NoError(t, err)

	// Conversion is presentation only: formatting in one currency and
	// then in the canonical one always starts from the same amount.
	got, err := c.Format(amount, NGN)
	require.NoError(t, err)
	assert.Equal(t, "₦1,500,000", got)
}
