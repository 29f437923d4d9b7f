/*
store.go - Persistence interface for the billing engine

PURPOSE:
  Defines the boundary between the engine and the relational datastore.
  The engine never talks SQL; everything goes through these interfaces.

CONVENTIONS:
  - Get* methods return (nil, nil) when the row does not exist
  - Insert* methods set the generated ID on the passed struct
  - Payments are APPEND-ONLY: there is no update or delete for them
  - Failures are wrapped in *StoreError

TRANSACTIONS:
  WithTx runs fn against a Store bound to one database transaction.
  LockAssessment inside WithTx serialises writers on the same assessment
  (SELECT ... FOR UPDATE on PostgreSQL, the single writer connection on
  SQLite), which closes the read-balance-then-insert race.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL

SEE ALSO:
  - service.go: the only caller of the write methods
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// AssessmentFilter narrows ListAssessments. Zero fields match everything.
type AssessmentFilter struct {
	StudentID int64
	PeriodID  int64
}

// PaymentFilter narrows ListPayments. Zero fields match everything.
// From and To are inclusive calendar days.
type PaymentFilter struct {
	StudentID    int64
	AssessmentID int64
	Mode         string
	From         time.Time
	To           time.Time
	Limit        int
}

// BillingFilter narrows ListBillings.
type BillingFilter struct {
	StudentID int64
	PeriodID  int64 // only billings tagged with this period
	Status    BillingStatus
}

// GrantFilter narrows ListGrants.
type GrantFilter struct {
	StudentID     int64
	ScholarshipID int64
	PeriodID      int64
	Status        GrantStatus
}

// =============================================================================
// STORE
// =============================================================================

// Directory reads students, periods and enrollments.
type Directory interface {
	GetStudent(ctx context.Context, id int64) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	SearchStudents(ctx context.Context, term string, limit int) ([]Student, error)
	GetPeriod(ctx context.Context, id int64) (*EnrollmentPeriod, error)
	ListPeriods(ctx context.Context) ([]EnrollmentPeriod, error)
	GetEnrollment(ctx context.Context, id int64) (*Enrollment, error)
	ListEnrollments(ctx context.Context, studentID int64) ([]Enrollment, error)
	ListFeeTypes(ctx context.Context) ([]FeeType, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// AssessmentStore persists assessments and their fee lines.
type AssessmentStore interface {
	GetAssessment(ctx context.Context, id int64) (*Assessment, error)
	LockAssessment(ctx context.Context, id int64) (*Assessment, error)
	AssessmentForEnrollment(ctx context.Context, enrollmentID int64) (*Assessment, error)
	ListAssessments(ctx context.Context, f AssessmentFilter) ([]Assessment, error)
	ListAssessmentDetails(ctx context.Context, assessmentID int64) ([]AssessmentDetail, error)
	InsertAssessment(ctx context.Context, a *Assessment, details []AssessmentDetail) error
}

// PaymentStore persists payments. Append-only.
type PaymentStore interface {
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error)
	PaymentByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	ReceiptExists(ctx context.Context, orNumber string) (bool, error)
	InsertPayment(ctx context.Context, p *Payment) error
}

// ScholarshipStore persists scholarships and grants.
type ScholarshipStore interface {
	GetScholarship(ctx context.Context, id int64) (*Scholarship, error)
	ListScholarships(ctx context.Context) ([]Scholarship, error)
	InsertScholarship(ctx context.Context, s *Scholarship) error

	// ActiveGrant returns the single Active grant for (student, period),
	// lowest grant id first. Additional Active grants are ignored.
	ActiveGrant(ctx context.Context, studentID, periodID int64) (*StudentScholarship, error)
	GetGrant(ctx context.Context, id int64) (*StudentScholarship, error)
	ListGrants(ctx context.Context, f GrantFilter) ([]StudentScholarship, error)
	InsertGrant(ctx context.Context, g *StudentScholarship) error
	SetGrantStatus(ctx context.Context, id int64, status GrantStatus) error
}

// BillingStore persists ad hoc billings.
type BillingStore interface {
	GetBilling(ctx context.Context, id int64) (*AdHocBilling, error)
	ListBillings(ctx context.Context, f BillingFilter) ([]AdHocBilling, error)
	BillingReferenceExists(ctx context.Context, reference string) (bool, error)
	InsertBilling(ctx context.Context, b *AdHocBilling) error
	SetBillingStatus(ctx context.Context, id int64, status BillingStatus) error
}

// Store is everything the engine reads and writes.
type Store interface {
	Directory
	AssessmentStore
	PaymentStore
	ScholarshipStore
	BillingStore
}

// TxStore adds atomic multi-statement writes.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
