// Package currency renders canonical amounts for display. Conversion is
// presentation-only: nothing produced here may ever feed back into a
// charge-bearing amount.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
	GBP Currency = "GBP"
	EUR Currency = "EUR"
)

var symbols = map[Currency]string{
	NGN: "₦",
	USD: "$",
	GBP: "£",
	EUR: "€",
}

// Converter formats canonical minor-unit amounts in a display currency.
// The display currency is always passed explicitly by the caller; there is
// no process-wide selected currency.
type Converter struct {
	// rates holds units of the canonical currency per one unit of the
	// display currency, e.g. NGN 1500 per USD.
	rates map[Currency]decimal.Decimal
}

func NewConverter(rates map[Currency]decimal.Decimal) *Converter {
	return &Converter{rates: rates}
}

// Format renders an amount given in canonical minor units (kobo) in the
// requested display currency. The canonical currency formats with no
// fractional digits; all others with two.
func (c *Converter) Format(amountMinor int64, display Currency) (string, error) {
	symbol, ok := symbols[display]
	if !ok {
		return "", fmt.Errorf("unknown display currency %q", display)
	}

	major := decimal.NewFromInt(amountMinor).Div(decimal.NewFromInt(100))

	if display == Currency(domain.CanonicalCurrency) {
		return symbol + group(major.StringFixed(0)), nil
	}

	rate, ok := c.rates[display]
	if !ok || rate.IsZero() {
		return "", fmt.Errorf("no exchange rate configured for %q", display)
	}

	converted := major.DivRound(rate, 2)
	return symbol + group(converted.StringFixed(2)), nil
}

// group inserts thousands separators into a plain decimal string.
func group(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
