package metrics

import "github.com/shopspring/decimal"

// Shared decimal arithmetic for the engines. Metric values are rounded to
// two places at the edge; intermediate math keeps full precision.

var (
	dZero    = decimal.Zero
	dHundred = decimal.NewFromInt(100)
)

// meanDecimal returns the arithmetic mean, or zero for an empty slice.
// Callers that must distinguish "empty" from "mean zero" check length first.
func meanDecimal(xs []decimal.Decimal) decimal.Decimal {
	if len(xs) == 0 {
		return dZero
	}
	sum := dZero
	for _, x := range xs {
		sum = sum.Add(x)
	}
	return sum.Div(decimal.NewFromInt(int64(len(xs))))
}

// sumDecimal returns the sum of xs.
func sumDecimal(xs []decimal.Decimal) decimal.Decimal {
	sum := dZero
	for _, x := range xs {
		sum = sum.Add(x)
	}
	return sum
}

// fracPct converts a count fraction to a 0-100 percentage.
func fracPct(n, total int) decimal.Decimal {
	if total == 0 {
		return dZero
	}
	return decimal.NewFromInt(int64(n)).Mul(dHundred).Div(decimal.NewFromInt(int64(total)))
}

// round2 rounds to two decimal places, the persistence precision for all
// metric values.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// nullDec wraps a valid decimal.
func nullDec(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// clamp bounds d to [lo, hi].
func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
