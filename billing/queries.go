package billing

import (
	"context"
	"sort"
	"strings"
)

// =============================================================================
// STUDENT BILLING
// =============================================================================

// AssessmentLine is an assessment with its balance and period.
type AssessmentLine struct {
	Assessment Assessment
	Balance    AssessmentBalance
	Period     *EnrollmentPeriod
	Student    *Student
}

// StudentBilling is the per-student billing view.
type StudentBilling struct {
	Student     Student
	Assessments []AssessmentLine
	Billings    []AdHocBilling
	Summary     StudentAggregate
}

// StudentLedger is the raw rows of one student, optionally for one period.
type StudentLedger struct {
	Assessments []Assessment
	Payments    []Payment
	Billings    []AdHocBilling
}

// LoadLedger reads the rows that feed the engine for one student. With a
// non-zero periodID only that period's assessments and the billings tagged
// with it are loaded.
func LoadLedger(ctx context.Context, st Store, studentID, periodID int64) (StudentLedger, error) {
	assessments, err := st.ListAssessments(ctx, AssessmentFilter{StudentID: studentID, PeriodID: periodID})
	if err != nil {
		return StudentLedger{}, err
	}
	payments, err := st.ListPayments(ctx, PaymentFilter{StudentID: studentID})
	if err != nil {
		return StudentLedger{}, err
	}
	billings, err := st.ListBillings(ctx, BillingFilter{StudentID: studentID, PeriodID: periodID})
	if err != nil {
		return StudentLedger{}, err
	}
	return StudentLedger{Assessments: assessments, Payments: payments, Billings: billings}, nil
}

func (s *Service) requireStudent(ctx context.Context, scope Scope, requested int64) (*Student, error) {
	id, err := scope.Resolve(requested)
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, notFound("Student", id)
	}
	return student, nil
}

// StudentBilling returns every assessment of a student with its balance,
// the student's ad hoc billings and the reconciled summary.
func (s *Service) StudentBilling(ctx context.Context, scope Scope, studentID int64) (*StudentBilling, error) {
	student, err := s.requireStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	ledger, err := LoadLedger(ctx, s.store, student.ID, 0)
	if err != nil {
		return nil, err
	}
	periods, err := s.periodIndex(ctx)
	if err != nil {
		return nil, err
	}

	balances, summary := Reconcile(ledger.Assessments, ledger.Payments, ledger.Billings)
	lines := make([]AssessmentLine, len(ledger.Assessments))
	for i, a := range ledger.Assessments {
		lines[i] = AssessmentLine{Assessment: a, Balance: balances[i], Period: periods[a.PeriodID]}
	}
	return &StudentBilling{
		Student:     *student,
		Assessments: lines,
		Billings:    ledger.Billings,
		Summary:     summary,
	}, nil
}

// =============================================================================
// STATEMENT
// =============================================================================

// AccountStatement is a statement plus the header information.
type AccountStatement struct {
	Student   Student
	Period    *EnrollmentPeriod
	Statement Statement
}

// Statement builds the running-balance statement of a student. With a
// period filter that matches nothing the result is a NotFoundError.
func (s *Service) Statement(ctx context.Context, scope Scope, studentID, periodID int64) (*AccountStatement, error) {
	student, err := s.requireStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	ledger, err := LoadLedger(ctx, s.store, student.ID, periodID)
	if err != nil {
		return nil, err
	}
	if periodID > 0 && len(ledger.Assessments) == 0 && len(ledger.Billings) == 0 {
		return nil, &NotFoundError{Entity: "Student or enrollment", ID: periodID}
	}

	var period *EnrollmentPeriod
	switch {
	case periodID > 0:
		period, err = s.store.GetPeriod(ctx, periodID)
	case len(ledger.Assessments) > 0:
		period, err = s.store.GetPeriod(ctx, ledger.Assessments[len(ledger.Assessments)-1].PeriodID)
	}
	if err != nil {
		return nil, err
	}

	return &AccountStatement{
		Student: *student,
		Period:  period,
		Statement: BuildStatement(StatementInput{
			Assessments: ledger.Assessments,
			Payments:    ledger.Payments,
			Billings:    ledger.Billings,
		}),
	}, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentHistory lists a student's payments, newest first.
func (s *Service) PaymentHistory(ctx context.Context, scope Scope, studentID int64, limit int) ([]Payment, error) {
	student, err := s.requireStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, PaymentFilter{StudentID: student.ID})
	if err != nil {
		return nil, err
	}
	sortPaymentsNewestFirst(payments)
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func sortPaymentsNewestFirst(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		a, b := payments[i], payments[j]
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return a.PaymentDate.After(b.PaymentDate)
		}
		return a.ID > b.ID
	})
}

// PaymentView is a payment with its assessment and payer.
type PaymentView struct {
	Payment    Payment
	Student    Student
	Assessment Assessment
	Period     *EnrollmentPeriod
}

// PaymentDetails returns one payment. Restricted callers may only see
// their own payments.
func (s *Service) PaymentDetails(ctx context.Context, scope Scope, paymentID int64) (*PaymentView, error) {
	if paymentID <= 0 {
		return nil, Invalid("payment_id", "Payment ID is required")
	}
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("Payment", paymentID)
	}
	if !scope.Allows(p.StudentID) {
		return nil, &AuthorizationError{Message: "Access denied"}
	}

	a, err := s.store.GetAssessment(ctx, p.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("Assessment", p.AssessmentID)
	}
	student, err := s.store.GetStudent(ctx, p.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, notFound("Student", p.StudentID)
	}
	period, err := s.store.GetPeriod(ctx, a.PeriodID)
	if err != nil {
		return nil, err
	}
	return &PaymentView{Payment: *p, Student: *student, Assessment: *a, Period: period}, nil
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// AllAssessments lists every assessment with its balance, optionally for
// one period.
func (s *Service) AllAssessments(ctx context.Context, periodID int64) ([]AssessmentLine, error) {
	assessments, err := s.store.ListAssessments(ctx, AssessmentFilter{PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, PaymentFilter{})
	if err != nil {
		return nil, err
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := s.periodIndex(ctx)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[int64]*Student, len(students))
	for i := range students {
		byStudent[students[i].ID] = &students[i]
	}
	byAssessment := groupPayments(payments)

	lines := make([]AssessmentLine, len(assessments))
	for i, a := range assessments {
		lines[i] = AssessmentLine{
			Assessment: a,
			Balance:    AssessmentBalanceOf(a, byAssessment[a.ID]),
			Period:     periods[a.PeriodID],
			Student:    byStudent[a.StudentID],
		}
	}
	return lines, nil
}

func groupPayments(payments []Payment) map[int64][]Payment {
	out := make(map[int64][]Payment)
	for _, p := range payments {
		out[p.AssessmentID] = append(out[p.AssessmentID], p)
	}
	return out
}

// AssessmentView is one assessment with lines, payments and balance.
type AssessmentView struct {
	AssessmentLine
	Details  []AssessmentDetail
	Payments []Payment
}

// AssessmentDetails returns one assessment in full.
func (s *Service) AssessmentDetails(ctx context.Context, scope Scope, assessmentID int64) (*AssessmentView, error) {
	if assessmentID <= 0 {
		return nil, Invalid("assessment_id", "Assessment ID is required")
	}
	a, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("Assessment", assessmentID)
	}
	if !scope.Allows(a.StudentID) {
		return nil, &AuthorizationError{Message: "Access denied"}
	}

	details, err := s.store.ListAssessmentDetails(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, PaymentFilter{AssessmentID: a.ID})
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(ctx, a.StudentID)
	if err != nil {
		return nil, err
	}
	period, err := s.store.GetPeriod(ctx, a.PeriodID)
	if err != nil {
		return nil, err
	}

	return &AssessmentView{
		AssessmentLine: AssessmentLine{
			Assessment: *a,
			Balance:    AssessmentBalanceOf(*a, payments),
			Period:     period,
			Student:    student,
		},
		Details:  details,
		Payments: payments,
	}, nil
}

// =============================================================================
// STUDENTS AND REFERENCE DATA
// =============================================================================

// StudentProfile is a student with enrollments and reconciled summary.
type StudentProfile struct {
	Student     Student
	Enrollments []Enrollment
	Summary     StudentAggregate
}

// StudentDetails returns one student with the reconciled summary.
func (s *Service) StudentDetails(ctx context.Context, scope Scope, studentID int64) (*StudentProfile, error) {
	student, err := s.requireStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.store.ListEnrollments(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	ledger, err := LoadLedger(ctx, s.store, student.ID, 0)
	if err != nil {
		return nil, err
	}
	_, summary := Reconcile(ledger.Assessments, ledger.Payments, ledger.Billings)
	return &StudentProfile{Student: *student, Enrollments: enrollments, Summary: summary}, nil
}

// SearchLimit caps SearchStudents results.
const SearchLimit = 10

// SearchStudents matches number or name. The term needs at least two
// characters.
func (s *Service) SearchStudents(ctx context.Context, term string) ([]Student, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < 2 {
		return nil, Invalid("search", "Search term too short")
	}
	return s.store.SearchStudents(ctx, term, SearchLimit)
}

// Periods lists enrollment periods, most recent first.
func (s *Service) Periods(ctx context.Context) ([]EnrollmentPeriod, error) {
	return s.store.ListPeriods(ctx)
}

func (s *Service) periodIndex(ctx context.Context) (map[int64]*EnrollmentPeriod, error) {
	periods, err := s.store.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*EnrollmentPeriod, len(periods))
	for i := range periods {
		out[periods[i].ID] = &periods[i]
	}
	return out, nil
}

// FeeTypes lists active fee types.
func (s *Service) FeeTypes(ctx context.Context) ([]FeeType, error) {
	return s.store.ListFeeTypes(ctx)
}

// Scholarships lists scholarships with their active recipient counts.
func (s *Service) Scholarships(ctx context.Context) ([]Scholarship, error) {
	return s.store.ListScholarships(ctx)
}

// ScholarshipView is a scholarship with its grants.
type ScholarshipView struct {
	Scholarship Scholarship
	Grants      []StudentScholarship
}

// ScholarshipDetails returns one scholarship and every grant of it.
func (s *Service) ScholarshipDetails(ctx context.Context, scholarshipID int64) (*ScholarshipView, error) {
	if scholarshipID <= 0 {
		return nil, Invalid("scholarship_id", "Scholarship ID is required")
	}
	sch, err := s.store.GetScholarship(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	if sch == nil {
		return nil, notFound("Scholarship", scholarshipID)
	}
	grants, err := s.store.ListGrants(ctx, GrantFilter{ScholarshipID: sch.ID})
	if err != nil {
		return nil, err
	}
	return &ScholarshipView{Scholarship: *sch, Grants: grants}, nil
}

// StudentScholarships lists every grant of a student.
func (s *Service) StudentScholarships(ctx context.Context, scope Scope, studentID int64) ([]StudentScholarship, error) {
	student, err := s.requireStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	return s.store.ListGrants(ctx, GrantFilter{StudentID: student.ID})
}
