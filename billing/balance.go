/*
balance.go - Per-assessment and per-student balance

PURPOSE:
  Answers "how much does this student still owe?" The same two functions
  are used by the dashboard, the per-student billing view and the
  statement summary.

FORMULAS:
  Assessment:  Balance      = NetAmount - sum(payments against it)
  Student:     TotalBalance = sum(NetAmount) - sum(paid) + sum(Active ad hoc)

STATUS LABEL:
  Balance <= 0        -> "Paid"   (overpayment is also labelled Paid)
  AmountPaid > 0      -> "Partial"
  otherwise           -> "Pending"

SEE ALSO:
  - statement.go: chronological view whose final balance equals TotalBalance
  - reporting/aggregator.go: sums StudentAggregate across students
*/
package billing

import "github.com/shopspring/decimal"

const (
	StatusPaid    = "Paid"
	StatusPartial = "Partial"
	StatusPending = "Pending"
)

// =============================================================================
// ASSESSMENT BALANCE
// =============================================================================

// AssessmentBalance is the derived state of one assessment.
type AssessmentBalance struct {
	AssessmentID int64
	PeriodID     int64
	Gross        decimal.Decimal
	NetAmount    decimal.Decimal
	AmountPaid   decimal.Decimal
	Balance      decimal.Decimal
	Status       string
}

// AssessmentBalanceOf computes the balance of a from payments. Payments that
// reference other assessments are ignored, so callers may pass a student's
// full payment list.
func AssessmentBalanceOf(a Assessment, payments []Payment) AssessmentBalance {
	paid := decimal.Zero
	for _, p := range payments {
		if p.AssessmentID == a.ID {
			paid = paid.Add(p.AmountPaid)
		}
	}

	balance := a.NetAmount.Sub(paid)
	return AssessmentBalance{
		AssessmentID: a.ID,
		PeriodID:     a.PeriodID,
		Gross:        a.TotalAssessment,
		NetAmount:    a.NetAmount,
		AmountPaid:   paid,
		Balance:      balance,
		Status:       statusOf(balance, paid),
	}
}

func statusOf(balance, paid decimal.Decimal) string {
	switch {
	case !balance.IsPositive():
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// =============================================================================
// STUDENT AGGREGATE
// =============================================================================

// StudentAggregate is the reconciled balance of one student.
type StudentAggregate struct {
	TotalGross      decimal.Decimal
	TotalAssessment decimal.Decimal // sum of net amounts
	TotalPaid       decimal.Decimal
	TotalAdHoc      decimal.Decimal // Active ad hoc billings only
	TotalBalance    decimal.Decimal
	Assessments     int
}

// StudentAggregateOf sums assessment balances and Active ad hoc billings.
func StudentAggregateOf(balances []AssessmentBalance, billings []AdHocBilling) StudentAggregate {
	agg := StudentAggregate{
		TotalGross:      decimal.Zero,
		TotalAssessment: decimal.Zero,
		TotalPaid:       decimal.Zero,
		TotalAdHoc:      decimal.Zero,
		Assessments:     len(balances),
	}
	for _, b := range balances {
		agg.TotalGross = agg.TotalGross.Add(b.Gross)
		agg.TotalAssessment = agg.TotalAssessment.Add(b.NetAmount)
		agg.TotalPaid = agg.TotalPaid.Add(b.AmountPaid)
	}
	for _, b := range billings {
		agg.TotalAdHoc = agg.TotalAdHoc.Add(b.Outstanding())
	}
	agg.TotalBalance = agg.TotalAssessment.Sub(agg.TotalPaid).Add(agg.TotalAdHoc)
	return agg
}

// HasPayments reports whether any payment has been made.
func (a StudentAggregate) HasPayments() bool {
	return a.TotalPaid.IsPositive()
}

// Reconcile computes every assessment balance and the student aggregate in
// one call. This is the entry point the service and the aggregator share.
func Reconcile(assessments []Assessment, payments []Payment, billings []AdHocBilling) ([]AssessmentBalance, StudentAggregate) {
	balances := make([]AssessmentBalance, 0, len(assessments))
	for _, a := range assessments {
		balances = append(balances, AssessmentBalanceOf(a, payments))
	}
	return balances, StudentAggregateOf(balances, billings)
}
