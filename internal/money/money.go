// Package money canonicalizes monetary values to two decimal places.
//
// Amounts are stored as float64 but every value that reaches storage or
// balance arithmetic passes through Round2 first, so float drift never
// accumulates across operations.
package money

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds v to the nearest 0.01, halves away from zero.
// The rounding is done on the shortest decimal representation of v,
// so 1.005 rounds to 1.01 rather than to the binary neighbour 1.00.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	if f == 0 {
		// normalize -0
		return 0
	}
	return f
}

// Round2Any accepts numeric-like input and rounds it with Round2.
// Anything that is not a number (or a numeric string) counts as zero.
func Round2Any(v any) float64 {
	switch n := v.(type) {
	case float64:
		return Round2(n)
	case float32:
		return Round2(float64(n))
	case int:
		return Round2(float64(n))
	case int32:
		return Round2(float64(n))
	case int64:
		return Round2(float64(n))
	case uint:
		return Round2(float64(n))
	case json.Number:
		return fromString(n.String())
	case string:
		return fromString(n)
	case decimal.Decimal:
		f, _ := n.Round(2).Float64()
		return Round2(f)
	default:
		return 0
	}
}

func fromString(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Round(2).Float64()
	return Round2(f)
}

// Add returns a+b with both operands and the result rounded to cents.
func Add(a, b float64) float64 {
	sum := decimal.NewFromFloat(Round2(a)).Add(decimal.NewFromFloat(Round2(b)))
	f, _ := sum.Round(2).Float64()
	return Round2(f)
}

// Sub returns a-b with both operands and the result rounded to cents.
func Sub(a, b float64) float64 {
	diff := decimal.NewFromFloat(Round2(a)).Sub(decimal.NewFromFloat(Round2(b)))
	f, _ := diff.Round(2).Float64()
	return Round2(f)
}
