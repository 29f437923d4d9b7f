package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *sqlstore.Store
	svc      *billing.Service
	period   billing.EnrollmentPeriod
	students []billing.Student
	enrolled []billing.Enrollment
}

// newFixture seeds one active period with n enrolled students.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store}
	ctx := context.Background()
	err = store.Seed(ctx, func(_ billing.Store, sd sqlstore.Seeder) error {
		prog := billing.Program{Code: "BSIT", Name: "BS Information Technology"}
		if err := sd.InsertProgram(ctx, &prog); err != nil {
			return err
		}
		f.period = billing.EnrollmentPeriod{SchoolYear: "2024-2025", Semester: "2nd Semester", IsActive: true}
		if err := sd.InsertPeriod(ctx, &f.period); err != nil {
			return err
		}
		names := []string{"Juan", "Maria", "Jose", "Ana"}
		for i := 0; i < n; i++ {
			st := billing.Student{
				StudentNumber: "2025-0000" + string(rune('1'+i)),
				FirstName:     names[i%len(names)],
				LastName:      "Dela Cruz",
				ProgramID:     prog.ID,
				YearLevel:     "1st Year",
			}
			if err := sd.InsertStudent(ctx, &st); err != nil {
				return err
			}
			e := billing.Enrollment{StudentID: st.ID, PeriodID: f.period.ID}
			if err := sd.InsertEnrollment(ctx, &e); err != nil {
				return err
			}
			f.students = append(f.students, st)
			f.enrolled = append(f.enrolled, e)
		}
		return nil
	})
	require.NoError(t, err)

	f.svc = billing.NewService(store, nil, billing.DefaultOptions())
	f.svc.Now = func() time.Time { return testNow }
	return f
}

func (f *fixture) assess(t *testing.T, i int, fees ...string) billing.Assessment {
	t.Helper()
	lines := make([]billing.FeeLine, len(fees))
	for j, fee := range fees {
		lines[j] = billing.FeeLine{Amount: amt(fee), IsTuition: j == 0}
	}
	rec, err := f.svc.CreateAssessment(context.Background(), billing.AssessmentInput{
		EnrollmentID: f.enrolled[i].ID,
		Fees:         lines,
		DueDate:      billing.Date(2025, time.January, 31),
	})
	require.NoError(t, err)
	return rec.Assessment
}

func (f *fixture) pay(assessmentID int64, amount string) (*billing.PaymentResult, error) {
	return f.svc.RecordPayment(context.Background(), billing.PaymentInput{
		AssessmentID: assessmentID,
		Amount:       amt(amount),
		Mode:         "Cash",
	})
}

func (f *fixture) scholarship(t *testing.T, name, pct, flat string) *billing.Scholarship {
	t.Helper()
	sch, err := f.svc.CreateScholarship(context.Background(), billing.ScholarshipInput{
		Name:               name,
		Type:               "partial_scholarship",
		DiscountPercentage: amt(pct),
		DiscountAmount:     amt(flat),
	})
	require.NoError(t, err)
	return sch
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestRecordPayment_BalanceNeverNegative(t *testing.T) {
	// GIVEN: An assessment with net amount 10000
	// WHEN: Paying 4000, then 6000, then 1
	// THEN: The first two succeed and the third is rejected

	f := newFixture(t, 1)
	a := f.assess(t, 0, "10000")

	res, err := f.pay(a.ID, "4000")
	require.NoError(t, err)
	assert.True(t, amt("6000").Equal(res.NewBalance))
	assert.Equal(t, billing.StatusPartial, res.Status)
	assert.Regexp(t, `^RCP20250310\d{5}$`, res.Payment.ORNumber)

	res, err = f.pay(a.ID, "6000")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.IsZero())
	assert.Equal(t, billing.StatusPaid, res.Status)

	_, err = f.pay(a.ID, "1")
	var exceeded *billing.BalanceExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.True(t, exceeded.Balance.IsZero())

	payments, err := f.store.ListPayments(context.Background(), billing.PaymentFilter{AssessmentID: a.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestRecordPayment_ExceedsDiscountedBalance(t *testing.T) {
	// GIVEN: A 20% scholarship and fees 5000 + 1200 (net 4960)
	// WHEN: Recording a 7000 payment
	// THEN: BalanceExceededError cites 4960

	f := newFixture(t, 1)
	sch := f.scholarship(t, "Academic Excellence", "20", "0")
	_, err := f.svc.AssignScholarship(context.Background(), billing.GrantInput{
		StudentID:     f.students[0].ID,
		ScholarshipID: sch.ID,
		PeriodID:      f.period.ID,
	})
	require.NoError(t, err)

	a := f.assess(t, 0, "5000", "1200")
	assert.True(t, amt("6200").Equal(a.TotalAssessment))
	assert.True(t, amt("1240").Equal(a.DiscountAmount))
	assert.True(t, amt("4960").Equal(a.NetAmount))

	_, err = f.pay(a.ID, "7000")
	var exceeded *billing.BalanceExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.True(t, amt("4960").Equal(exceeded.Balance))
	assert.Contains(t, err.Error(), "4960.00")
	assert.True(t, billing.IsClientError(err))
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newFixture(t, 1)
	a := f.assess(t, 0, "1000")
	ctx := context.Background()

	_, err := f.pay(a.ID, "0")
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, err = f.pay(0, "100")
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, err = f.pay(9999, "100")
	assert.ErrorIs(t, err, billing.ErrNotFound)

	_, err = f.svc.RecordPayment(ctx, billing.PaymentInput{AssessmentID: a.ID, Amount: amt("100"), Mode: "Barter"})
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestRecordPayment_RejectsSubCentavoAmount(t *testing.T) {
	// GIVEN: An assessment of 10000
	// WHEN: Paying 0.004, which rounds to 0.00
	// THEN: The payment is rejected and no row or receipt is written

	f := newFixture(t, 1)
	a := f.assess(t, 0, "10000")

	_, err := f.pay(a.ID, "0.004")
	assert.ErrorIs(t, err, billing.ErrValidation)

	payments, err := f.store.ListPayments(context.Background(), billing.PaymentFilter{AssessmentID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, payments)

	res, err := f.pay(a.ID, "0.005")
	require.NoError(t, err)
	assert.True(t, amt("0.01").Equal(res.Payment.AmountPaid), "got %s", res.Payment.AmountPaid)
	assert.True(t, amt("9999.99").Equal(res.NewBalance))
}

func TestRecordPayment_IdempotencyKey(t *testing.T) {
	// GIVEN: A payment recorded with an idempotency key
	// WHEN: The same key is submitted again
	// THEN: The retry is rejected and only one payment exists

	f := newFixture(t, 1)
	a := f.assess(t, 0, "5000")
	ctx := context.Background()

	in := billing.PaymentInput{AssessmentID: a.ID, Amount: amt("1000"), Mode: "GCash", IdempotencyKey: "retry-1"}
	first, err := f.svc.RecordPayment(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, in)
	assert.ErrorIs(t, err, billing.ErrDuplicateIdempotencyKey)

	stored, err := f.store.PaymentByIdempotencyKey(ctx, "retry-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.Payment.ID, stored.ID)

	payments, err := f.store.ListPayments(ctx, billing.PaymentFilter{AssessmentID: a.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPayment_ConcurrentWritersCannotOverpay(t *testing.T) {
	// GIVEN: An assessment of 1000
	// WHEN: Ten cashiers pay 300 at the same time
	// THEN: Exactly three payments land and the balance stays at 100

	f := newFixture(t, 1)
	a := f.assess(t, 0, "1000")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.pay(a.ID, "300"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	sb, err := f.svc.StudentBilling(context.Background(), billing.Unrestricted, f.students[0].ID)
	require.NoError(t, err)
	assert.True(t, amt("100").Equal(sb.Summary.TotalBalance), "got %s", sb.Summary.TotalBalance)
}

// =============================================================================
// ASSESSMENT AND SCHOLARSHIP TESTS
// =============================================================================

func TestCreateAssessment_OnePerEnrollment(t *testing.T) {
	f := newFixture(t, 1)
	f.assess(t, 0, "1000")

	_, err := f.svc.CreateAssessment(context.Background(), billing.AssessmentInput{
		EnrollmentID: f.enrolled[0].ID,
		Units:        12,
	})
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestCreateAssessment_FromUnits(t *testing.T) {
	f := newFixture(t, 1)
	rec, err := f.svc.CreateAssessment(context.Background(), billing.AssessmentInput{
		EnrollmentID: f.enrolled[0].ID,
		Units:        18,
		LabUnits:     3,
	})
	require.NoError(t, err)
	require.Len(t, rec.Details, 4)
	// 18*500 + 5000 + 3*100 + 2000
	assert.True(t, amt("16300").Equal(rec.Assessment.TotalAssessment))
	assert.Equal(t, billing.Date(2025, time.April, 9), rec.Assessment.DueDate)

	details, err := f.store.ListAssessmentDetails(context.Background(), rec.Assessment.ID)
	require.NoError(t, err)
	assert.Len(t, details, 4)
}

func TestCreateAssessment_TwoActiveGrantsApplyOnlyOne(t *testing.T) {
	// GIVEN: Two different Active scholarships granted for the same period
	// WHEN: Creating the assessment
	// THEN: Only the first grant's discount applies

	f := newFixture(t, 1)
	ctx := context.Background()
	first := f.scholarship(t, "Dean's List", "20", "0")
	second := f.scholarship(t, "Athletic Grant", "0", "1000")
	for _, sch := range []*billing.Scholarship{first, second} {
		_, err := f.svc.AssignScholarship(ctx, billing.GrantInput{
			StudentID:     f.students[0].ID,
			ScholarshipID: sch.ID,
			PeriodID:      f.period.ID,
		})
		require.NoError(t, err)
	}

	a := f.assess(t, 0, "5000", "1200")
	assert.True(t, amt("1240").Equal(a.DiscountAmount), "got %s", a.DiscountAmount)
	assert.True(t, amt("4960").Equal(a.NetAmount))
}

func TestAssignScholarship_DuplicateAndRevoke(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	sch := f.scholarship(t, "Dean's List", "20", "0")
	in := billing.GrantInput{StudentID: f.students[0].ID, ScholarshipID: sch.ID, PeriodID: f.period.ID}

	g, err := f.svc.AssignScholarship(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.AssignScholarship(ctx, in)
	assert.ErrorIs(t, err, billing.ErrValidation)

	revoked, err := f.svc.RevokeScholarship(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.GrantRevoked, revoked.Status)

	// A revoked grant no longer discounts new assessments.
	a := f.assess(t, 0, "5000")
	assert.True(t, a.DiscountAmount.IsZero())

	_, err = f.svc.AssignScholarship(ctx, in)
	assert.NoError(t, err, "re-assigning after revocation is allowed")
}

func TestCreateScholarship_Validation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	cases := []billing.ScholarshipInput{
		{Name: "", Type: "grant", DiscountPercentage: amt("10")},
		{Name: "Both", Type: "grant", DiscountPercentage: amt("10"), DiscountAmount: amt("100")},
		{Name: "Neither", Type: "grant"},
		{Name: "Too much", Type: "grant", DiscountPercentage: amt("120")},
		{Name: "Bad type", Type: "Academic", DiscountPercentage: amt("10")},
		{Name: "Rounds to nothing", Type: "grant", DiscountAmount: amt("0.001")},
	}
	for _, in := range cases {
		_, err := f.svc.CreateScholarship(ctx, in)
		assert.ErrorIs(t, err, billing.ErrValidation, in.Name)
	}
}

// =============================================================================
// AD HOC BILLING TESTS
// =============================================================================

func TestAdHocBilling_Lifecycle(t *testing.T) {
	// GIVEN: A student with an assessment of 5000
	// WHEN: A 350 billing is raised, then settled
	// THEN: The balance rises by 350 and falls back after settlement

	f := newFixture(t, 1)
	ctx := context.Background()
	f.assess(t, 0, "5000")
	studentID := f.students[0].ID

	b, err := f.svc.CreateAdHocBilling(ctx, billing.BillingInput{
		StudentID:   studentID,
		PeriodID:    f.period.ID,
		Description: "Library fine",
		Amount:      amt("350"),
	})
	require.NoError(t, err)
	assert.Equal(t, billing.BillingActive, b.Status)

	sb, err := f.svc.StudentBilling(ctx, billing.Unrestricted, studentID)
	require.NoError(t, err)
	assert.True(t, amt("5350").Equal(sb.Summary.TotalBalance))

	settled, err := f.svc.SettleAdHocBilling(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.BillingPaid, settled.Status)

	_, err = f.svc.CancelAdHocBilling(ctx, b.ID)
	assert.ErrorIs(t, err, billing.ErrValidation)

	sb, err = f.svc.StudentBilling(ctx, billing.Unrestricted, studentID)
	require.NoError(t, err)
	assert.True(t, amt("5000").Equal(sb.Summary.TotalBalance))
}

func TestAdHocBilling_Validation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.CreateAdHocBilling(ctx, billing.BillingInput{StudentID: f.students[0].ID, Amount: amt("10")})
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, err = f.svc.CreateAdHocBilling(ctx, billing.BillingInput{StudentID: 999, Description: "x", Amount: amt("10")})
	assert.ErrorIs(t, err, billing.ErrNotFound)

	_, err = f.svc.CreateAdHocBilling(ctx, billing.BillingInput{StudentID: f.students[0].ID, Description: "x", Amount: decimal.Zero})
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, err = f.svc.CreateAdHocBilling(ctx, billing.BillingInput{StudentID: f.students[0].ID, Description: "x", Amount: amt("0.004")})
	assert.ErrorIs(t, err, billing.ErrValidation)

	billings, err := f.store.ListBillings(ctx, billing.BillingFilter{StudentID: f.students[0].ID})
	require.NoError(t, err)
	assert.Empty(t, billings)
}

// =============================================================================
// PENALTY TESTS
// =============================================================================

func TestAssessPenalties_OncePerMonth(t *testing.T) {
	// GIVEN: An assessment of 6200 due Jan 31, partly paid
	// WHEN: Penalties run twice in March and once in April
	// THEN: One penalty per month, each 2% of the assessment balance

	f := newFixture(t, 2)
	ctx := context.Background()
	overdue := f.assess(t, 0, "5000", "1200")
	_, err := f.pay(overdue.ID, "1200")
	require.NoError(t, err)

	// Fully paid assessments are never penalised.
	paid := f.assess(t, 1, "1000")
	_, err = f.pay(paid.ID, "1000")
	require.NoError(t, err)

	march := billing.Date(2025, time.March, 10)
	run, err := f.svc.AssessPenalties(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Assessed)
	assert.True(t, amt("100").Equal(run.Total), "got %s", run.Total)
	require.Len(t, run.Billings, 1)
	assert.Equal(t, billing.PenaltyReference(overdue.ID, march), run.Billings[0].Reference)
	assert.Equal(t, f.period.ID, *run.Billings[0].PeriodID)

	again, err := f.svc.AssessPenalties(ctx, march.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Assessed)
	assert.Equal(t, 1, again.Skipped)

	april, err := f.svc.AssessPenalties(ctx, billing.Date(2025, time.April, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, april.Assessed)
	assert.True(t, amt("100").Equal(april.Total), "penalties do not compound")

	sb, err := f.svc.StudentBilling(ctx, billing.Unrestricted, f.students[0].ID)
	require.NoError(t, err)
	assert.True(t, amt("5200").Equal(sb.Summary.TotalBalance))
}

func TestAssessPenalties_GracePeriod(t *testing.T) {
	f := newFixture(t, 1)
	f.assess(t, 0, "1000")

	// Due Jan 31 plus 7 grace days.
	run, err := f.svc.AssessPenalties(context.Background(), billing.Date(2025, time.February, 6))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Assessed)

	run, err = f.svc.AssessPenalties(context.Background(), billing.Date(2025, time.February, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, run.Assessed)
}

// =============================================================================
// READ-SIDE TESTS
// =============================================================================

func TestStatement_MatchesStudentBilling(t *testing.T) {
	// GIVEN: A student billed in two periods, with a payment in each
	// WHEN: Building the statement unfiltered and per period
	// THEN: Each running balance equals the aggregate over the same rows

	f := newFixture(t, 1)
	ctx := context.Background()
	studentID := f.students[0].ID

	a := f.assess(t, 0, "5000", "1200")
	_, err := f.pay(a.ID, "2000")
	require.NoError(t, err)
	_, err = f.svc.CreateAdHocBilling(ctx, billing.BillingInput{
		StudentID: studentID, PeriodID: f.period.ID, Description: "ID replacement", Amount: amt("150"),
	})
	require.NoError(t, err)

	next := billing.EnrollmentPeriod{SchoolYear: "2025-2026", Semester: "1st Semester"}
	var nextEnrollment billing.Enrollment
	err = f.store.Seed(ctx, func(_ billing.Store, sd sqlstore.Seeder) error {
		if err := sd.InsertPeriod(ctx, &next); err != nil {
			return err
		}
		nextEnrollment = billing.Enrollment{StudentID: studentID, PeriodID: next.ID}
		return sd.InsertEnrollment(ctx, &nextEnrollment)
	})
	require.NoError(t, err)
	rec, err := f.svc.CreateAssessment(ctx, billing.AssessmentInput{
		EnrollmentID: nextEnrollment.ID,
		Fees:         []billing.FeeLine{{Amount: amt("3000"), IsTuition: true}},
		DueDate:      billing.Date(2025, time.August, 31),
	})
	require.NoError(t, err)
	_, err = f.pay(rec.Assessment.ID, "500")
	require.NoError(t, err)

	st, err := f.svc.Statement(ctx, billing.Unrestricted, studentID, 0)
	require.NoError(t, err)
	sb, err := f.svc.StudentBilling(ctx, billing.Unrestricted, studentID)
	require.NoError(t, err)
	assert.True(t, sb.Summary.TotalBalance.Equal(st.Statement.CurrentBalance))
	assert.True(t, amt("6850").Equal(st.Statement.CurrentBalance), "got %s", st.Statement.CurrentBalance)
	require.NotNil(t, st.Period)
	assert.Equal(t, next.ID, st.Period.ID, "unfiltered statement shows the latest period")

	for _, tc := range []struct {
		periodID int64
		want     string
	}{
		{f.period.ID, "4350"},
		{next.ID, "2500"},
	} {
		filtered, err := f.svc.Statement(ctx, billing.Unrestricted, studentID, tc.periodID)
		require.NoError(t, err)

		ledger, err := billing.LoadLedger(ctx, f.store, studentID, tc.periodID)
		require.NoError(t, err)
		_, agg := billing.Reconcile(ledger.Assessments, ledger.Payments, ledger.Billings)

		got := filtered.Statement.CurrentBalance
		assert.True(t, agg.TotalBalance.Equal(got), "period %d: statement %s vs aggregate %s", tc.periodID, got, agg.TotalBalance)
		assert.True(t, amt(tc.want).Equal(got), "period %d: got %s", tc.periodID, got)
		assert.False(t, got.Equal(st.Statement.CurrentBalance), "period %d matches the unfiltered balance", tc.periodID)
		require.NotNil(t, filtered.Period)
		assert.Equal(t, tc.periodID, filtered.Period.ID)
	}

	_, err = f.svc.Statement(ctx, billing.Unrestricted, studentID, 999)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestReads_RestrictedScope(t *testing.T) {
	// GIVEN: Two students with assessments
	// WHEN: The first student reads the second student's data
	// THEN: Every read is forbidden

	f := newFixture(t, 2)
	ctx := context.Background()
	f.assess(t, 0, "1000")
	other := f.assess(t, 1, "2000")
	res, err := f.pay(other.ID, "500")
	require.NoError(t, err)

	scope := billing.Scope{UserID: 7, StudentID: f.students[0].ID, Restricted: true}

	own, err := f.svc.StudentBilling(ctx, scope, 0)
	require.NoError(t, err)
	assert.Equal(t, f.students[0].ID, own.Student.ID)

	_, err = f.svc.StudentBilling(ctx, scope, f.students[1].ID)
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.PaymentDetails(ctx, scope, res.Payment.ID)
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.AssessmentDetails(ctx, scope, other.ID)
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.PaymentHistory(ctx, scope, f.students[1].ID, 0)
	assert.ErrorIs(t, err, billing.ErrForbidden)
}

func TestPaymentHistory_NewestFirst(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.assess(t, 0, "5000")

	for i, day := range []time.Time{
		billing.Date(2025, time.February, 1),
		billing.Date(2025, time.March, 1),
		billing.Date(2025, time.January, 15),
	} {
		_, err := f.svc.RecordPayment(ctx, billing.PaymentInput{
			AssessmentID: a.ID, Amount: decimal.NewFromInt(int64(100 * (i + 1))), Mode: "Cash", PaymentDate: day,
		})
		require.NoError(t, err)
	}

	history, err := f.svc.PaymentHistory(ctx, billing.Unrestricted, f.students[0].ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, billing.Date(2025, time.March, 1), history[0].PaymentDate)
	assert.Equal(t, billing.Date(2025, time.February, 1), history[1].PaymentDate)
}

func TestSearchStudents(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.svc.SearchStudents(ctx, "J")
	assert.ErrorIs(t, err, billing.ErrValidation)

	found, err := f.svc.SearchStudents(ctx, "Maria")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Maria Dela Cruz", found[0].Name())

	byNumber, err := f.svc.SearchStudents(ctx, "2025-0000")
	require.NoError(t, err)
	assert.Len(t, byNumber, 3)

	// Wildcard characters in the term are literals.
	for _, term := range []string{"__", "%%", "2025_0000", `\%`} {
		found, err := f.svc.SearchStudents(ctx, term)
		require.NoError(t, err)
		assert.Empty(t, found, term)
	}
}
