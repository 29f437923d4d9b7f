package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Pesos builds an amount from a float, rounded to centavos.
func Pesos(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Float converts an amount for the JSON boundary.
func Float(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Percent returns round(part / whole * 100, 2), or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date is a shorthand for a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
