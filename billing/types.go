/*
Package billing provides the tuition balance reconciliation engine.

PURPOSE:
  This package owns the interpretation of ledger rows: given a student's
  assessments, payments, scholarships and ad hoc billings it derives the
  per-assessment balance, the aggregate student balance and the
  chronological account statement. The dashboard, the per-student billing
  view and the statement all go through the same functions here, so the
  three can never disagree.

KEY CONCEPTS IN THIS FILE (types.go):
  - Assessment: gross-to-net charge for one enrollment
  - Payment: append-only credit against one assessment
  - AdHocBilling: out-of-band charge against a student
  - Scholarship / StudentScholarship: discount templates and grants

DESIGN PRINCIPLES:
  1. Immutability: payments are never updated or deleted
  2. Precision: all amounts are decimal.Decimal
  3. Derived state: balances are always recomputed from rows, never stored

SEE ALSO:
  - balance.go: per-assessment and per-student balances
  - statement.go: running-balance statement fold
  - service.go: store-backed operations (record payment, create assessment)
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTITIES
// =============================================================================

// Student is read-only to the engine; it is created at enrollment time.
type Student struct {
	ID            int64
	StudentNumber string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	ProgramID     int64
	ProgramName   string
	YearLevel     string
	Section       string
	AdmissionType string
	Status        string
}

// Name returns "First Last".
func (s Student) Name() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type Program struct {
	ID   int64
	Code string
	Name string
}

// EnrollmentPeriod is a school year + semester. At most one is active.
type EnrollmentPeriod struct {
	ID         int64
	SchoolYear string
	Semester   string
	IsActive   bool
}

// Enrollment links a student to a period.
type Enrollment struct {
	ID        int64
	StudentID int64
	PeriodID  int64
	CreatedAt time.Time
}

// =============================================================================
// CHARGES
// =============================================================================

// Assessment is the charge record for one enrollment.
// NetAmount is fixed at creation and never recomputed.
type Assessment struct {
	ID              int64
	EnrollmentID    int64
	StudentID       int64 // denormalised from the enrollment
	PeriodID        int64 // denormalised from the enrollment
	TotalAssessment decimal.Decimal
	DiscountAmount  decimal.Decimal
	NetAmount       decimal.Decimal
	DueDate         time.Time
	CreatedAt       time.Time
}

// AssessmentDetail is one fee line of an assessment.
type AssessmentDetail struct {
	ID           int64
	AssessmentID int64
	FeeType      string
	Amount       decimal.Decimal
	IsTuition    bool
}

// FeeType is a catalogue entry for fee lines.
type FeeType struct {
	ID         int64
	Name       string
	BaseAmount decimal.Decimal
	IsActive   bool
}

type BillingStatus string

const (
	BillingActive    BillingStatus = "Active"
	BillingPaid      BillingStatus = "Paid"
	BillingCancelled BillingStatus = "Cancelled"
)

// AdHocBilling is a charge raised against a student outside the assessment
// flow. Billings are binary: Active billings are fully outstanding, any
// other status contributes nothing to the balance.
type AdHocBilling struct {
	ID          int64
	StudentID   int64
	PeriodID    *int64
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Status      BillingStatus
	Reference   string // unique when set; used for penalty dedupe
	CreatedAt   time.Time
}

// Outstanding returns the amount this billing adds to the student balance.
func (b AdHocBilling) Outstanding() decimal.Decimal {
	if b.Status != BillingActive {
		return decimal.Zero
	}
	return b.Amount
}

// =============================================================================
// CREDITS
// =============================================================================

// Payment is append-only.
type Payment struct {
	ID             int64
	AssessmentID   int64
	StudentID      int64 // denormalised from the assessment
	ORNumber       string
	PaymentDate    time.Time
	AmountPaid     decimal.Decimal
	PaymentMode    string
	Reference      string
	Remarks        string
	ReceivedBy     int64
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// SCHOLARSHIPS
// =============================================================================

// Scholarship defines a percentage XOR flat discount.
type Scholarship struct {
	ID                 int64
	Name               string
	Type               string
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	Description        string
	Requirements       string
	IsActive           bool
	ActiveRecipients   int
}

type GrantStatus string

const (
	GrantActive  GrantStatus = "Active"
	GrantRevoked GrantStatus = "Revoked"
	GrantExpired GrantStatus = "Expired"
)

// StudentScholarship grants a scholarship to a student for a period.
type StudentScholarship struct {
	ID            int64
	StudentID     int64
	ScholarshipID int64
	PeriodID      int64
	Status        GrantStatus
	Remarks       string
	GrantedAt     time.Time

	// Joined from the scholarship for discount computation and display.
	Scholarship Scholarship
}

// =============================================================================
// USERS
// =============================================================================

// User is an operator or student account able to log in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	StudentID    *int64
}
