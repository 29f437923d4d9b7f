/*
service.go - Store-backed billing operations

PURPOSE:
  Orchestrates the pure engine functions against the store. Every write
  that depends on a computed balance runs inside one store transaction.

RECORD PAYMENT FLOW:
  1. Validate amount > 0, assessment id, payment mode
  2. Begin transaction
  3. Reject a reused idempotency key
  4. Lock the assessment row
  5. Load its payments and compute the balance
  6. Reject amount > balance with BalanceExceededError
  7. Generate an unused OR number and append the payment
  8. Commit and return the new balance

SEE ALSO:
  - queries.go: read-side operations
  - penalty.go: late payment penalties
  - store.go: TxStore contract
*/
package billing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Service.
type Options struct {
	PaymentModes     []string
	ScholarshipTypes []string
	Fees             FeeSchedule
	ReceiptPrefix    string
	Penalty          PenaltyPolicy
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		PaymentModes:     []string{"Cash", "GCash", "Bank Transfer", "Credit Card", "Check"},
		ScholarshipTypes: []string{"full_scholarship", "partial_scholarship", "discount", "voucher", "grant"},
		Fees:             DefaultFeeSchedule(),
		ReceiptPrefix:    "RCP",
		Penalty:          DefaultPenaltyPolicy(),
	}
}

const maxReceiptAttempts = 8

// =============================================================================
// SERVICE
// =============================================================================

// Service runs billing operations against a store.
type Service struct {
	store    TxStore
	log      *zap.Logger
	opts     Options
	receipts *ReceiptGenerator

	// Now is the clock. Tests replace it.
	Now func() time.Time
}

// NewService creates a service. A nil logger is replaced with a no-op.
func NewService(store TxStore, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.PaymentModes) == 0 {
		opts.PaymentModes = DefaultOptions().PaymentModes
	}
	return &Service{
		store:    store,
		log:      log.Named("billing"),
		opts:     opts,
		receipts: NewReceiptGenerator(opts.ReceiptPrefix),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// SetReceiptGenerator replaces the OR number source.
func (s *Service) SetReceiptGenerator(g *ReceiptGenerator) { s.receipts = g }

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentInput is the request to record one payment.
type PaymentInput struct {
	AssessmentID   int64
	Amount         decimal.Decimal
	Mode           string
	Reference      string
	Remarks        string
	PaymentDate    time.Time // zero means today
	IdempotencyKey string
	ReceivedBy     int64
}

// PaymentResult is what RecordPayment returns.
type PaymentResult struct {
	Payment         Payment
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Status          string
}

// RecordPayment appends a payment after checking it against the current
// balance of the assessment.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	if in.AssessmentID <= 0 {
		return nil, Invalid("assessment_id", "Assessment ID is required")
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, Invalid("amount", "Payment amount must be greater than zero")
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = "Cash"
	}
	if !slices.Contains(s.opts.PaymentModes, mode) {
		return nil, Invalid("payment_mode", "Unsupported payment mode: %s", mode)
	}

	now := s.Now()
	paidOn := in.PaymentDate
	if paidOn.IsZero() {
		paidOn = now
	}
	paidOn = DateOnly(paidOn)

	key := in.IdempotencyKey
	explicitKey := key != ""
	if !explicitKey {
		key = uuid.NewString()
	}

	var result PaymentResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		if explicitKey {
			existing, err := tx.PaymentByIdempotencyKey(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, key)
			}
		}

		a, err := tx.LockAssessment(ctx, in.AssessmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("Assessment", in.AssessmentID)
		}

		payments, err := tx.ListPayments(ctx, PaymentFilter{AssessmentID: a.ID})
		if err != nil {
			return err
		}
		current := AssessmentBalanceOf(*a, payments)
		if amount.GreaterThan(current.Balance) {
			return &BalanceExceededError{
				AssessmentID: a.ID,
				Balance:      current.Balance,
				Requested:    amount,
			}
		}

		orNumber, err := s.nextReceipt(ctx, tx, paidOn)
		if err != nil {
			return err
		}

		p := Payment{
			AssessmentID:   a.ID,
			StudentID:      a.StudentID,
			ORNumber:       orNumber,
			PaymentDate:    paidOn,
			AmountPaid:     amount,
			PaymentMode:    mode,
			Reference:      strings.TrimSpace(in.Reference),
			Remarks:        strings.TrimSpace(in.Remarks),
			ReceivedBy:     in.ReceivedBy,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return err
		}

		newBalance := current.Balance.Sub(p.AmountPaid)
		result = PaymentResult{
			Payment:         p,
			PreviousBalance: current.Balance,
			NewBalance:      newBalance,
			Status:          statusOf(newBalance, current.AmountPaid.Add(p.AmountPaid)),
		}
		return nil
	})
	if err != nil {
		s.log.Info("payment rejected",
			zap.Int64("assessment_id", in.AssessmentID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.Int64("payment_id", result.Payment.ID),
		zap.String("or_number", result.Payment.ORNumber),
		zap.Int64("assessment_id", in.AssessmentID),
		zap.String("amount", result.Payment.AmountPaid.StringFixed(2)),
		zap.String("new_balance", result.NewBalance.StringFixed(2)))
	return &result, nil
}

func (s *Service) nextReceipt(ctx context.Context, tx Store, day time.Time) (string, error) {
	for i := 0; i < maxReceiptAttempts; i++ {
		candidate := s.receipts.Next(day)
		exists, err := tx.ReceiptExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", &StoreError{Op: "generate receipt", Err: ErrDuplicateReceipt}
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// AssessmentInput creates the assessment of one enrollment. Either Fees or
// Units must be given; Units uses the fee schedule.
type AssessmentInput struct {
	EnrollmentID int64
	Fees         []FeeLine
	Units        int
	LabUnits     int
	DueDate      time.Time // zero means now + penalty start days
}

// AssessmentRecord is a persisted assessment with its lines.
type AssessmentRecord struct {
	Assessment Assessment
	Details    []AssessmentDetail
	Grant      *StudentScholarship
}

// CreateAssessment builds and stores the assessment of an enrollment,
// applying at most one active scholarship of the enrollment's period.
func (s *Service) CreateAssessment(ctx context.Context, in AssessmentInput) (*AssessmentRecord, error) {
	if in.EnrollmentID <= 0 {
		return nil, Invalid("enrollment_id", "Enrollment ID is required")
	}
	if in.Units < 0 || in.LabUnits < 0 {
		return nil, Invalid("units", "Units cannot be negative")
	}

	lines := in.Fees
	if len(lines) == 0 && in.Units > 0 {
		lines = s.opts.Fees.Lines(in.Units, in.LabUnits)
	}

	var rec AssessmentRecord
	err := s.store.WithTx(ctx, func(tx Store) error {
		enr, err := tx.GetEnrollment(ctx, in.EnrollmentID)
		if err != nil {
			return err
		}
		if enr == nil {
			return notFound("Enrollment", in.EnrollmentID)
		}
		existing, err := tx.AssessmentForEnrollment(ctx, enr.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return Invalid("enrollment_id", "Assessment already exists for this enrollment")
		}

		grant, err := tx.ActiveGrant(ctx, enr.StudentID, enr.PeriodID)
		if err != nil {
			return err
		}
		totals, err := BuildAssessment(lines, grant)
		if err != nil {
			return err
		}

		now := s.Now()
		due := in.DueDate
		if due.IsZero() {
			due = now.AddDate(0, 0, s.opts.Penalty.StartDays)
		}

		a := Assessment{
			EnrollmentID:    enr.ID,
			StudentID:       enr.StudentID,
			PeriodID:        enr.PeriodID,
			TotalAssessment: totals.TotalAssessment,
			DiscountAmount:  totals.DiscountAmount,
			NetAmount:       totals.NetAmount,
			DueDate:         DateOnly(due),
			CreatedAt:       now,
		}
		details := make([]AssessmentDetail, len(totals.Lines))
		for i, l := range totals.Lines {
			details[i] = AssessmentDetail{FeeType: l.FeeType, Amount: l.Amount, IsTuition: l.IsTuition}
		}
		if err := tx.InsertAssessment(ctx, &a, details); err != nil {
			return err
		}

		rec = AssessmentRecord{Assessment: a, Details: details, Grant: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("assessment created",
		zap.Int64("assessment_id", rec.Assessment.ID),
		zap.Int64("enrollment_id", in.EnrollmentID),
		zap.String("net_amount", rec.Assessment.NetAmount.StringFixed(2)))
	return &rec, nil
}

// =============================================================================
// SCHOLARSHIPS
// =============================================================================

// ScholarshipInput defines a new scholarship.
type ScholarshipInput struct {
	Name               string
	Type               string
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	Description        string
	Requirements       string
}

// CreateScholarship stores a scholarship. Exactly one of percentage and
// amount must be positive.
func (s *Service) CreateScholarship(ctx context.Context, in ScholarshipInput) (*Scholarship, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Invalid("scholarship_name", "Scholarship name is required")
	}
	if len(s.opts.ScholarshipTypes) > 0 && !slices.Contains(s.opts.ScholarshipTypes, in.Type) {
		return nil, Invalid("scholarship_type", "Unsupported scholarship type: %s", in.Type)
	}
	pct, amt := in.DiscountPercentage.Round(2), in.DiscountAmount.Round(2)
	if pct.IsNegative() || amt.IsNegative() {
		return nil, Invalid("discount", "Discount cannot be negative")
	}
	if pct.IsPositive() == amt.IsPositive() {
		return nil, Invalid("discount", "Provide either a discount percentage or a discount amount")
	}
	if pct.GreaterThan(hundred) {
		return nil, Invalid("discount_percentage", "Discount percentage cannot exceed 100")
	}

	sch := Scholarship{
		Name:               name,
		Type:               in.Type,
		DiscountPercentage: pct,
		DiscountAmount:     amt,
		Description:        in.Description,
		Requirements:       in.Requirements,
		IsActive:           true,
	}
	if err := s.store.InsertScholarship(ctx, &sch); err != nil {
		return nil, err
	}
	return &sch, nil
}

// GrantInput assigns a scholarship to a student for a period.
type GrantInput struct {
	StudentID     int64
	ScholarshipID int64
	PeriodID      int64
	Remarks       string
}

// AssignScholarship creates an Active grant. A second Active grant of the
// same scholarship for the same (student, period) is rejected. Existing
// assessments keep their discount.
func (s *Service) AssignScholarship(ctx context.Context, in GrantInput) (*StudentScholarship, error) {
	switch {
	case in.StudentID <= 0:
		return nil, Invalid("student_id", "Student ID is required")
	case in.ScholarshipID <= 0:
		return nil, Invalid("scholarship_id", "Scholarship ID is required")
	case in.PeriodID <= 0:
		return nil, Invalid("period_id", "Enrollment period is required")
	}

	var grant StudentScholarship
	err := s.store.WithTx(ctx, func(tx Store) error {
		student, err := tx.GetStudent(ctx, in.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return notFound("Student", in.StudentID)
		}
		sch, err := tx.GetScholarship(ctx, in.ScholarshipID)
		if err != nil {
			return err
		}
		if sch == nil {
			return notFound("Scholarship", in.ScholarshipID)
		}
		if !sch.IsActive {
			return Invalid("scholarship_id", "Scholarship is not active")
		}
		period, err := tx.GetPeriod(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if period == nil {
			return notFound("Enrollment period", in.PeriodID)
		}

		dupes, err := tx.ListGrants(ctx, GrantFilter{
			StudentID:     in.StudentID,
			ScholarshipID: in.ScholarshipID,
			PeriodID:      in.PeriodID,
			Status:        GrantActive,
		})
		if err != nil {
			return err
		}
		if len(dupes) > 0 {
			return Invalid("scholarship_id", "Scholarship already assigned to this student for the period")
		}

		grant = StudentScholarship{
			StudentID:     in.StudentID,
			ScholarshipID: in.ScholarshipID,
			PeriodID:      in.PeriodID,
			Status:        GrantActive,
			Remarks:       in.Remarks,
			GrantedAt:     s.Now(),
			Scholarship:   *sch,
		}
		return tx.InsertGrant(ctx, &grant)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("scholarship assigned",
		zap.Int64("grant_id", grant.ID),
		zap.Int64("student_id", in.StudentID),
		zap.Int64("scholarship_id", in.ScholarshipID))
	return &grant, nil
}

// RevokeScholarship marks an Active grant Revoked.
func (s *Service) RevokeScholarship(ctx context.Context, grantID int64) (*StudentScholarship, error) {
	if grantID <= 0 {
		return nil, Invalid("grant_id", "Grant ID is required")
	}
	var grant *StudentScholarship
	err := s.store.WithTx(ctx, func(tx Store) error {
		g, err := tx.GetGrant(ctx, grantID)
		if err != nil {
			return err
		}
		if g == nil {
			return notFound("Scholarship grant", grantID)
		}
		if g.Status != GrantActive {
			return Invalid("grant_id", "Scholarship grant is not active")
		}
		if err := tx.SetGrantStatus(ctx, g.ID, GrantRevoked); err != nil {
			return err
		}
		g.Status = GrantRevoked
		grant = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// =============================================================================
// AD HOC BILLINGS
// =============================================================================

// BillingInput raises an ad hoc billing.
type BillingInput struct {
	StudentID   int64
	PeriodID    int64
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Reference   string
}

// CreateAdHocBilling raises an Active billing against a student.
func (s *Service) CreateAdHocBilling(ctx context.Context, in BillingInput) (*AdHocBilling, error) {
	if in.StudentID <= 0 {
		return nil, Invalid("student_id", "Student ID is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, Invalid("description", "Description is required")
	}
	in.Amount = in.Amount.Round(2)
	if !in.Amount.IsPositive() {
		return nil, Invalid("amount", "Billing amount must be greater than zero")
	}

	var b AdHocBilling
	err := s.store.WithTx(ctx, func(tx Store) error {
		student, err := tx.GetStudent(ctx, in.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return notFound("Student", in.StudentID)
		}
		var periodID *int64
		if in.PeriodID > 0 {
			p, err := tx.GetPeriod(ctx, in.PeriodID)
			if err != nil {
				return err
			}
			if p == nil {
				return notFound("Enrollment period", in.PeriodID)
			}
			periodID = &p.ID
		}
		b, err = s.insertBilling(ctx, tx, in, periodID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) insertBilling(ctx context.Context, tx Store, in BillingInput, periodID *int64) (AdHocBilling, error) {
	now := s.Now()
	due := in.DueDate
	if due.IsZero() {
		due = now
	}
	b := AdHocBilling{
		StudentID:   in.StudentID,
		PeriodID:    periodID,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount.Round(2),
		DueDate:     DateOnly(due),
		Status:      BillingActive,
		Reference:   in.Reference,
		CreatedAt:   now,
	}
	if err := tx.InsertBilling(ctx, &b); err != nil {
		return AdHocBilling{}, err
	}
	return b, nil
}

// SettleAdHocBilling flips an Active billing to Paid. Billings have no
// partial payments; settling removes the whole amount from the balance.
func (s *Service) SettleAdHocBilling(ctx context.Context, billingID int64) (*AdHocBilling, error) {
	return s.transitionBilling(ctx, billingID, BillingPaid)
}

// CancelAdHocBilling flips an Active billing to Cancelled.
func (s *Service) CancelAdHocBilling(ctx context.Context, billingID int64) (*AdHocBilling, error) {
	return s.transitionBilling(ctx, billingID, BillingCancelled)
}

func (s *Service) transitionBilling(ctx context.Context, billingID int64, to BillingStatus) (*AdHocBilling, error) {
	if billingID <= 0 {
		return nil, Invalid("billing_id", "Billing ID is required")
	}
	var out *AdHocBilling
	err := s.store.WithTx(ctx, func(tx Store) error {
		b, err := tx.GetBilling(ctx, billingID)
		if err != nil {
			return err
		}
		if b == nil {
			return notFound("Billing", billingID)
		}
		if b.Status != BillingActive {
			return Invalid("billing_id", "Billing is already %s", b.Status)
		}
		if err := tx.SetBillingStatus(ctx, b.ID, to); err != nil {
			return err
		}
		b.Status = to
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("billing updated", zap.Int64("billing_id", billingID), zap.String("status", string(to)))
	return out, nil
}
