package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ApplyScholarshipDiscount returns the discount a grant gives on total.
// A positive percentage wins over the flat amount. The result is rounded to
// centavos and never exceeds total. A nil grant gives no discount.
//
// Only one grant is ever applied; the store's ActiveGrant picks it.
func ApplyScholarshipDiscount(total decimal.Decimal, grant *StudentScholarship) decimal.Decimal {
	if grant == nil || !total.IsPositive() {
		return decimal.Zero
	}

	s := grant.Scholarship
	var discount decimal.Decimal
	if s.DiscountPercentage.IsPositive() {
		discount = total.Mul(s.DiscountPercentage).Div(hundred)
	} else {
		discount = s.DiscountAmount
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(total) {
		return total
	}
	return discount
}
