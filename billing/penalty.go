/*
penalty.go - Late payment penalties

PURPOSE:
  Raises a monthly penalty billing on assessments that are still unpaid
  after their due date plus a grace period.

RULES:
  - An assessment is overdue when asOf >= due_date + grace_days
  - Penalty = round(balance x rate, 2), balance being the assessment's
    own balance (earlier penalties are not compounded)
  - One penalty per assessment per calendar month, deduplicated through
    the billing reference PEN-<assessment id>-<YYYYMM>
  - Penalties are Active ad hoc billings tagged with the assessment's period

SEE ALSO:
  - api/scheduler.go: cron job that calls AssessPenalties
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PenaltyPolicy configures late payment penalties.
type PenaltyPolicy struct {
	Enabled   bool
	Rate      decimal.Decimal // per month, e.g. 0.02
	StartDays int             // days from assessment to due date
	GraceDays int
}

// DefaultPenaltyPolicy returns a disabled 2% monthly policy.
func DefaultPenaltyPolicy() PenaltyPolicy {
	return PenaltyPolicy{
		Enabled:   false,
		Rate:      decimal.RequireFromString("0.02"),
		StartDays: 30,
		GraceDays: 7,
	}
}

// PenaltyReference is the dedupe key of a penalty.
func PenaltyReference(assessmentID int64, month time.Time) string {
	return fmt.Sprintf("PEN-%d-%s", assessmentID, month.Format("200601"))
}

// PenaltyRun summarises one AssessPenalties call.
type PenaltyRun struct {
	AsOf     time.Time
	Assessed int
	Skipped  int
	Total    decimal.Decimal
	Billings []AdHocBilling
}

// AssessPenalties raises penalties as of the given day. It is safe to run
// repeatedly; a month already penalised is skipped. The policy's Enabled
// flag only gates the scheduler, not explicit calls.
func (s *Service) AssessPenalties(ctx context.Context, asOf time.Time) (*PenaltyRun, error) {
	pol := s.opts.Penalty
	if !pol.Rate.IsPositive() {
		return nil, Invalid("rate", "Penalty rate must be positive")
	}
	asOf = DateOnly(asOf)

	assessments, err := s.store.ListAssessments(ctx, AssessmentFilter{})
	if err != nil {
		return nil, err
	}

	run := &PenaltyRun{AsOf: asOf, Total: decimal.Zero}
	for _, a := range assessments {
		if asOf.Before(DateOnly(a.DueDate).AddDate(0, 0, pol.GraceDays)) {
			continue
		}
		b, err := s.penalise(ctx, a, asOf)
		if errors.Is(err, errAlreadyPenalised) || errors.Is(err, ErrDuplicateReference) {
			run.Skipped++
			continue
		}
		if err != nil {
			return run, err
		}
		if b == nil {
			continue
		}
		run.Assessed++
		run.Total = run.Total.Add(b.Amount)
		run.Billings = append(run.Billings, *b)
	}

	s.log.Info("penalties assessed",
		zap.Time("as_of", asOf),
		zap.Int("assessed", run.Assessed),
		zap.Int("skipped", run.Skipped),
		zap.String("total", run.Total.StringFixed(2)))
	return run, nil
}

var errAlreadyPenalised = errors.New("already penalised this month")

func (s *Service) penalise(ctx context.Context, a Assessment, asOf time.Time) (*AdHocBilling, error) {
	ref := PenaltyReference(a.ID, asOf)
	var out *AdHocBilling
	err := s.store.WithTx(ctx, func(tx Store) error {
		exists, err := tx.BillingReferenceExists(ctx, ref)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyPenalised
		}

		locked, err := tx.LockAssessment(ctx, a.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return nil
		}
		payments, err := tx.ListPayments(ctx, PaymentFilter{AssessmentID: a.ID})
		if err != nil {
			return err
		}
		bal := AssessmentBalanceOf(*locked, payments)
		if !bal.Balance.IsPositive() {
			return nil
		}
		amount := bal.Balance.Mul(s.opts.Penalty.Rate).Round(2)
		if !amount.IsPositive() {
			return nil
		}

		periodID := locked.PeriodID
		b, err := s.insertBilling(ctx, tx, BillingInput{
			StudentID:   locked.StudentID,
			Description: "Late payment penalty " + asOf.Format("Jan 2006"),
			Amount:      amount,
			DueDate:     asOf,
			Reference:   ref,
		}, &periodID)
		if err != nil {
			return err
		}
		out = &b
		return nil
	})
	return out, err
}
