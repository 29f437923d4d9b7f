/*
assessment.go - Assessment totals and the default fee schedule

PURPOSE:
  Builds the gross, discount and net figures of a new assessment from its
  fee lines. The gross total is always the sum of the lines, so an
  assessment and its detail rows cannot disagree.

FEE SCHEDULE:
  When the caller gives unit counts instead of explicit fees, lines are
  generated from the configured schedule:

    Tuition Fee        units     x rate_per_unit   (is_tuition)
    Miscellaneous Fee  flat
    Laboratory Fee     lab_units x lab_per_unit
    Other Fees         flat

SEE ALSO:
  - discount.go: ApplyScholarshipDiscount
  - service.go: CreateAssessment persists the result
*/
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FeeLine is an input fee line.
type FeeLine struct {
	FeeType   string
	Amount    decimal.Decimal
	IsTuition bool
}

// AssessmentTotals is the outcome of BuildAssessment.
type AssessmentTotals struct {
	Lines           []FeeLine
	TotalAssessment decimal.Decimal
	DiscountAmount  decimal.Decimal
	NetAmount       decimal.Decimal
}

// BuildAssessment validates lines and derives the totals. Zero-amount lines
// are dropped from the result.
func BuildAssessment(lines []FeeLine, grant *StudentScholarship) (AssessmentTotals, error) {
	kept := make([]FeeLine, 0, len(lines))
	for i, l := range lines {
		if l.Amount.IsNegative() {
			return AssessmentTotals{}, Invalid("fees", "Fee line %d has a negative amount", i+1)
		}
		if l.Amount.IsZero() {
			continue
		}
		if strings.TrimSpace(l.FeeType) == "" {
			l.FeeType = defaultFeeName(l.IsTuition)
		}
		l.Amount = l.Amount.Round(2)
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return AssessmentTotals{}, Invalid("fees", "At least one fee with a positive amount is required")
	}

	total := decimal.Zero
	for _, l := range kept {
		total = total.Add(l.Amount)
	}
	discount := ApplyScholarshipDiscount(total, grant)

	return AssessmentTotals{
		Lines:           kept,
		TotalAssessment: total,
		DiscountAmount:  discount,
		NetAmount:       total.Sub(discount),
	}, nil
}

func defaultFeeName(tuition bool) string {
	if tuition {
		return FeeTuition
	}
	return FeeOther
}

// =============================================================================
// FEE SCHEDULE
// =============================================================================

const (
	FeeTuition       = "Tuition Fee"
	FeeMiscellaneous = "Miscellaneous Fee"
	FeeLaboratory    = "Laboratory Fee"
	FeeOther         = "Other Fees"
)

// FeeSchedule holds the default rates used when only unit counts are given.
type FeeSchedule struct {
	RatePerUnit   decimal.Decimal
	Miscellaneous decimal.Decimal
	LabPerUnit    decimal.Decimal
	Other         decimal.Decimal
}

// DefaultFeeSchedule returns the stock rates.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		RatePerUnit:   decimal.NewFromInt(500),
		Miscellaneous: decimal.NewFromInt(5000),
		LabPerUnit:    decimal.NewFromInt(100),
		Other:         decimal.NewFromInt(2000),
	}
}

// Lines generates fee lines for the given unit counts.
func (s FeeSchedule) Lines(units, labUnits int) []FeeLine {
	lines := []FeeLine{
		{FeeType: FeeTuition, Amount: s.RatePerUnit.Mul(decimal.NewFromInt(int64(units))), IsTuition: true},
		{FeeType: FeeMiscellaneous, Amount: s.Miscellaneous},
	}
	if labUnits > 0 {
		lines = append(lines, FeeLine{FeeType: FeeLaboratory, Amount: s.LabPerUnit.Mul(decimal.NewFromInt(int64(labUnits)))})
	}
	return append(lines, FeeLine{FeeType: FeeOther, Amount: s.Other})
}
