/*
Package reporting rolls billing balances up across students.

PURPOSE:
  Dashboard, collection and billing summaries. Every figure is a sum of
  billing.Reconcile results computed per student, so a student's row in
  the per-student view always adds up to the totals shown here.

FIGURES:
  total_fees        sum of gross assessments
  total_assessment  sum of net assessments
  total_paid        sum of payments
  outstanding       sum of per-student total_balance (includes Active ad hoc)
  collection_rate   round(total_paid / total_assessment * 100, 2), 0 if no assessments
  paid_students     students with at least one payment

SEE ALSO:
  - billing/balance.go: Reconcile / StudentAggregateOf
  - revenue.go: monthly revenue and payment report
*/
package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tuition-engine/billing"
)

// Source is the subset of the store the aggregator reads.
type Source interface {
	ListStudents(ctx context.Context) ([]billing.Student, error)
	ListAssessments(ctx context.Context, f billing.AssessmentFilter) ([]billing.Assessment, error)
	ListPayments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, error)
	ListBillings(ctx context.Context, f billing.BillingFilter) ([]billing.AdHocBilling, error)
}

// DefaultRevenueWindow is the trailing window of MonthlyRevenue, in months.
const DefaultRevenueWindow = 12

// Aggregator computes cross-student rollups.
type Aggregator struct {
	src Source

	// Now is the clock. Tests replace it.
	Now func() time.Time
	// RevenueWindow is the trailing window of MonthlyRevenue, in months.
	RevenueWindow int
}

// New creates an aggregator over src.
func New(src Source) *Aggregator {
	return &Aggregator{
		src:           src,
		Now:           func() time.Time { return time.Now().UTC() },
		RevenueWindow: DefaultRevenueWindow,
	}
}

// =============================================================================
// ROLLUP - one reconciled aggregate per student
// =============================================================================

// StudentRollup is one student's reconciled aggregate.
type StudentRollup struct {
	Student   billing.Student
	Aggregate billing.StudentAggregate
	Active    bool // has an assessment or billing in scope
}

// Totals is the sum of student rollups.
type Totals struct {
	Students        int
	TotalGross      decimal.Decimal
	TotalAssessment decimal.Decimal
	TotalPaid       decimal.Decimal
	TotalAdHoc      decimal.Decimal
	Outstanding     decimal.Decimal
	PaidStudents    int
}

// CollectionRate is round(paid / net * 100, 2), or 0 with no assessments.
func (t Totals) CollectionRate() decimal.Decimal {
	return billing.Percent(t.TotalPaid, t.TotalAssessment)
}

// Rollup reconciles every student. With a non-zero periodID only that
// period's assessments and billings count and only students with rows in
// the period are returned.
func (a *Aggregator) Rollup(ctx context.Context, periodID int64) ([]StudentRollup, error) {
	students, err := a.src.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	assessments, err := a.src.ListAssessments(ctx, billing.AssessmentFilter{PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	payments, err := a.src.ListPayments(ctx, billing.PaymentFilter{})
	if err != nil {
		return nil, err
	}
	billings, err := a.src.ListBillings(ctx, billing.BillingFilter{PeriodID: periodID})
	if err != nil {
		return nil, err
	}

	assessmentsBy := make(map[int64][]billing.Assessment)
	for _, x := range assessments {
		assessmentsBy[x.StudentID] = append(assessmentsBy[x.StudentID], x)
	}
	paymentsBy := make(map[int64][]billing.Payment)
	for _, p := range payments {
		paymentsBy[p.StudentID] = append(paymentsBy[p.StudentID], p)
	}
	billingsBy := make(map[int64][]billing.AdHocBilling)
	for _, b := range billings {
		billingsBy[b.StudentID] = append(billingsBy[b.StudentID], b)
	}

	out := make([]StudentRollup, 0, len(students))
	for _, st := range students {
		active := len(assessmentsBy[st.ID]) > 0 || len(billingsBy[st.ID]) > 0
		if periodID > 0 && !active {
			continue
		}
		_, agg := billing.Reconcile(assessmentsBy[st.ID], paymentsBy[st.ID], billingsBy[st.ID])
		out = append(out, StudentRollup{Student: st, Aggregate: agg, Active: active})
	}
	return out, nil
}

// Sum adds up rollups.
func Sum(rollups []StudentRollup) Totals {
	t := Totals{
		Students:        len(rollups),
		TotalGross:      decimal.Zero,
		TotalAssessment: decimal.Zero,
		TotalPaid:       decimal.Zero,
		TotalAdHoc:      decimal.Zero,
		Outstanding:     decimal.Zero,
	}
	for _, r := range rollups {
		agg := r.Aggregate
		t.TotalGross = t.TotalGross.Add(agg.TotalGross)
		t.TotalAssessment = t.TotalAssessment.Add(agg.TotalAssessment)
		t.TotalPaid = t.TotalPaid.Add(agg.TotalPaid)
		t.TotalAdHoc = t.TotalAdHoc.Add(agg.TotalAdHoc)
		t.Outstanding = t.Outstanding.Add(agg.TotalBalance)
		if agg.HasPayments() {
			t.PaidStudents++
		}
	}
	return t
}

// =============================================================================
// SUMMARIES
// =============================================================================

// DashboardStats is the admin landing page.
type DashboardStats struct {
	TotalFees      decimal.Decimal
	TotalPayments  decimal.Decimal
	PendingBalance decimal.Decimal
	MonthlyRevenue []MonthRevenue
	PaidStudents   int
	TotalStudents  int
}

// Dashboard computes the dashboard figures.
func (a *Aggregator) Dashboard(ctx context.Context) (*DashboardStats, error) {
	rollups, err := a.Rollup(ctx, 0)
	if err != nil {
		return nil, err
	}
	revenue, err := a.MonthlyRevenue(ctx)
	if err != nil {
		return nil, err
	}
	t := Sum(rollups)
	return &DashboardStats{
		TotalFees:      t.TotalGross,
		TotalPayments:  t.TotalPaid,
		PendingBalance: t.Outstanding,
		MonthlyRevenue: revenue,
		PaidStudents:   t.PaidStudents,
		TotalStudents:  t.Students,
	}, nil
}

// CollectionSummary is the collection efficiency view.
type CollectionSummary struct {
	TotalStudents    int
	TotalAssessment  decimal.Decimal
	TotalCollected   decimal.Decimal
	TotalOutstanding decimal.Decimal
	PaidStudents     int
	CollectionRate   decimal.Decimal
}

// Collection computes the collection summary, optionally for one period.
func (a *Aggregator) Collection(ctx context.Context, periodID int64) (*CollectionSummary, error) {
	rollups, err := a.Rollup(ctx, periodID)
	if err != nil {
		return nil, err
	}
	t := Sum(rollups)
	return &CollectionSummary{
		TotalStudents:    t.Students,
		TotalAssessment:  t.TotalAssessment,
		TotalCollected:   t.TotalPaid,
		TotalOutstanding: t.Outstanding,
		PaidStudents:     t.PaidStudents,
		CollectionRate:   t.CollectionRate(),
	}, nil
}

// BillingSummary is the finance overview.
type BillingSummary struct {
	TotalAssessment decimal.Decimal
	TotalPaid       decimal.Decimal
	TotalAdHoc      decimal.Decimal
	BalanceDue      decimal.Decimal
	CollectionRate  decimal.Decimal
}

// Billing computes the billing summary, optionally for one period.
func (a *Aggregator) Billing(ctx context.Context, periodID int64) (*BillingSummary, error) {
	rollups, err := a.Rollup(ctx, periodID)
	if err != nil {
		return nil, err
	}
	t := Sum(rollups)
	return &BillingSummary{
		TotalAssessment: t.TotalAssessment,
		TotalPaid:       t.TotalPaid,
		TotalAdHoc:      t.TotalAdHoc,
		BalanceDue:      t.Outstanding,
		CollectionRate:  t.CollectionRate(),
	}, nil
}
