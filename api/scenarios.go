/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a small
	school: one program, two enrollment periods, fee catalogue, students,
	login accounts, assessments and payments. Each scenario demonstrates
	one part of the billing engine.

AVAILABLE SCENARIOS:

	new-semester:         Fresh assessments, nothing paid yet
	partial-payments:     Paid, partial and pending students
	scholarship-discount: 20% scholarship applied at assessment time
	overdue-penalties:    Past-due assessments, ad hoc billings, penalties

HOW SCENARIOS WORK:
 1. Reset database (clear all data, restart ids)
 2. Seed reference rows (program, periods, fee types, students, users)
 3. Create assessments, grants, payments and billings through the
    billing service so every rule is applied as in production

DEMO ACCOUNTS:

	admin / admin123, cashier / cashier123, student / student123
	(the student account is linked to the first student)

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: list_scenarios, load_scenario actions
  - store/sqlstore/seed.go: Seeder
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/tuition-engine/auth"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/store/sqlstore"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-semester",
		Name:        "New Semester",
		Description: "Three enrolled students with fresh assessments and no payments",
	},
	{
		ID:          "partial-payments",
		Name:        "Partial Payments",
		Description: "Fully paid, partially paid and unpaid students paying in instalments",
	},
	{
		ID:          "scholarship-discount",
		Name:        "Scholarship Discount",
		Description: "A 20% academic scholarship reduces a 6,200 assessment to 4,960",
	},
	{
		ID:          "overdue-penalties",
		Name:        "Overdue Penalties",
		Description: "Past-due assessments, an ad hoc billing and late payment penalties",
	},
}

// ScenarioList is the list_scenarios payload.
type ScenarioList struct {
	Scenarios []ScenarioDTO `json:"scenarios"`
	Current   string        `json:"current"`
}

func (h *Handler) listScenarios(_ context.Context, _ *call, _ noParams) (any, error) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	return ScenarioList{Scenarios: scenarios, Current: h.currentScenario}, nil
}

func (h *Handler) loadScenario(ctx context.Context, _ *call, p scenarioParams) (any, error) {
	loaders := map[string]func(context.Context) error{
		"new-semester":         h.loadNewSemesterScenario,
		"partial-payments":     h.loadPartialPaymentsScenario,
		"scholarship-discount": h.loadScholarshipScenario,
		"overdue-penalties":    h.loadOverduePenaltiesScenario,
	}
	load, ok := loaders[p.ScenarioID]
	if !ok {
		return nil, billing.Invalid("scenario_id", "Unknown scenario: %s", p.ScenarioID)
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return nil, billing.StoreFailure("reset database", err)
	}
	if err := load(ctx); err != nil {
		h.log.Error("scenario load failed", zap.String("scenario", p.ScenarioID), zap.Error(err))
		return nil, err
	}
	h.currentScenario = p.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", p.ScenarioID))

	for _, s := range scenarios {
		if s.ID == p.ScenarioID {
			return s, nil
		}
	}
	return ScenarioDTO{ID: p.ScenarioID}, nil
}

// =============================================================================
// SHARED SEED DATA
// =============================================================================

type demoStudent struct {
	Number, First, Last, Year, Section string
}

var demoStudents = []demoStudent{
	{"2025-00001", "Maria", "Santos", "1st Year", "A"},
	{"2025-00002", "Jose", "Reyes", "2nd Year", "B"},
	{"2025-00003", "Ana", "Cruz", "3rd Year", "A"},
}

// demoSchool is what seedSchool created.
type demoSchool struct {
	Current     billing.EnrollmentPeriod
	Previous    billing.EnrollmentPeriod
	Students    []billing.Student
	Enrollments []billing.Enrollment // current period, one per student
}

var demoUsers = []struct {
	Username, Password string
	Role               auth.Role
}{
	{"admin", "admin123", auth.RoleAdmin},
	{"cashier", "cashier123", auth.RoleCashier},
	{"student", "student123", auth.RoleStudent},
}

// seedSchool writes the reference rows shared by every scenario. Students
// are enrolled in the current period on enrolledAt.
func (h *Handler) seedSchool(ctx context.Context, enrolledAt time.Time) (*demoSchool, error) {
	school := &demoSchool{}
	err := h.Store.Seed(ctx, func(_ billing.Store, sd sqlstore.Seeder) error {
		program := billing.Program{Code: "BSIT", Name: "Bachelor of Science in Information Technology"}
		if err := sd.InsertProgram(ctx, &program); err != nil {
			return err
		}

		school.Previous = billing.EnrollmentPeriod{SchoolYear: "2024-2025", Semester: "2nd Semester"}
		if err := sd.InsertPeriod(ctx, &school.Previous); err != nil {
			return err
		}
		school.Current = billing.EnrollmentPeriod{SchoolYear: "2025-2026", Semester: "1st Semester", IsActive: true}
		if err := sd.InsertPeriod(ctx, &school.Current); err != nil {
			return err
		}

		fees := h.Service.Options().Fees
		for _, f := range []billing.FeeType{
			{Name: billing.FeeTuition, BaseAmount: fees.RatePerUnit, IsActive: true},
			{Name: billing.FeeMiscellaneous, BaseAmount: fees.Miscellaneous, IsActive: true},
			{Name: billing.FeeLaboratory, BaseAmount: fees.LabPerUnit, IsActive: true},
			{Name: billing.FeeOther, BaseAmount: fees.Other, IsActive: true},
		} {
			if err := sd.InsertFeeType(ctx, &f); err != nil {
				return err
			}
		}

		for _, d := range demoStudents {
			st := billing.Student{
				StudentNumber: d.Number,
				FirstName:     d.First,
				LastName:      d.Last,
				Email:         fmt.Sprintf("%s.%s@example.edu", d.First, d.Last),
				ProgramID:     program.ID,
				ProgramName:   program.Name,
				YearLevel:     d.Year,
				Section:       d.Section,
				AdmissionType: "Regular",
			}
			if err := sd.InsertStudent(ctx, &st); err != nil {
				return err
			}
			school.Students = append(school.Students, st)

			e := billing.Enrollment{StudentID: st.ID, PeriodID: school.Current.ID, CreatedAt: enrolledAt}
			if err := sd.InsertEnrollment(ctx, &e); err != nil {
				return err
			}
			school.Enrollments = append(school.Enrollments, e)
		}

		for _, u := range demoUsers {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			user := billing.User{Username: u.Username, PasswordHash: hash, Role: string(u.Role)}
			if u.Role == auth.RoleStudent {
				user.StudentID = &school.Students[0].ID
			}
			if err := sd.InsertUser(ctx, &user); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return school, nil
}

// assessAll creates a unit-based assessment for every current enrollment.
func (h *Handler) assessAll(ctx context.Context, school *demoSchool, units []int, due time.Time) ([]billing.Assessment, error) {
	var out []billing.Assessment
	for i, e := range school.Enrollments {
		rec, err := h.Service.CreateAssessment(ctx, billing.AssessmentInput{
			EnrollmentID: e.ID,
			Units:        units[i%len(units)],
			LabUnits:     3,
			DueDate:      due,
		})
		if err != nil {
			return nil, fmt.Errorf("assess enrollment %d: %w", e.ID, err)
		}
		out = append(out, rec.Assessment)
	}
	return out, nil
}

func (h *Handler) pay(ctx context.Context, assessmentID int64, amt float64, mode string, on time.Time) error {
	_, err := h.Service.RecordPayment(ctx, billing.PaymentInput{
		AssessmentID: assessmentID,
		Amount:       decimal.NewFromFloat(amt),
		Mode:         mode,
		PaymentDate:  on,
		Remarks:      "demo",
	})
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewSemesterScenario(ctx context.Context) error {
	today := billing.DateOnly(h.now())
	school, err := h.seedSchool(ctx, today)
	if err != nil {
		return err
	}
	_, err = h.assessAll(ctx, school, []int{21, 24, 18}, today.AddDate(0, 1, 0))
	return err
}

func (h *Handler) loadPartialPaymentsScenario(ctx context.Context) error {
	today := billing.DateOnly(h.now())
	school, err := h.seedSchool(ctx, today.AddDate(0, -3, 0))
	if err != nil {
		return err
	}
	assessments, err := h.assessAll(ctx, school, []int{21, 24, 18}, today.AddDate(0, 1, 0))
	if err != nil {
		return err
	}

	// Student 1 pays in full in three instalments.
	full := billing.Float(assessments[0].NetAmount)
	for _, p := range []struct {
		amount float64
		mode   string
	}{
		{5000, "Cash"},
		{5000, "GCash"},
		{full - 10000, "Bank Transfer"},
	} {
		if err := h.pay(ctx, assessments[0].ID, p.amount, p.mode, today); err != nil {
			return err
		}
	}

	// Student 2 pays a down payment only.
	if err := h.pay(ctx, assessments[1].ID, 4000, "Cash", today); err != nil {
		return err
	}
	// Student 3 has not paid.
	return nil
}

func (h *Handler) loadScholarshipScenario(ctx context.Context) error {
	today := billing.DateOnly(h.now())
	school, err := h.seedSchool(ctx, today)
	if err != nil {
		return err
	}

	sch, err := h.Service.CreateScholarship(ctx, billing.ScholarshipInput{
		Name:               "Academic Excellence",
		Type:               "partial_scholarship",
		DiscountPercentage: decimal.NewFromInt(20),
		Description:        "For students with a GWA of 1.75 or better",
		Requirements:       "Certified true copy of grades",
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.AssignScholarship(ctx, billing.GrantInput{
		StudentID:     school.Students[0].ID,
		ScholarshipID: sch.ID,
		PeriodID:      school.Current.ID,
		Remarks:       "Dean's lister",
	}); err != nil {
		return err
	}

	fees := []billing.FeeLine{
		{FeeType: billing.FeeTuition, Amount: decimal.NewFromInt(5000), IsTuition: true},
		{FeeType: billing.FeeMiscellaneous, Amount: decimal.NewFromInt(1200)},
	}
	for _, e := range school.Enrollments {
		if _, err := h.Service.CreateAssessment(ctx, billing.AssessmentInput{
			EnrollmentID: e.ID,
			Fees:         fees,
			DueDate:      today.AddDate(0, 1, 0),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadOverduePenaltiesScenario(ctx context.Context) error {
	today := billing.DateOnly(h.now())
	school, err := h.seedSchool(ctx, today.AddDate(0, -3, 0))
	if err != nil {
		return err
	}
	assessments, err := h.assessAll(ctx, school, []int{21, 24, 18}, today.AddDate(0, -2, 0))
	if err != nil {
		return err
	}
	if err := h.pay(ctx, assessments[1].ID, 3000, "Cash", today); err != nil {
		return err
	}

	periodID := school.Current.ID
	if _, err := h.Service.CreateAdHocBilling(ctx, billing.BillingInput{
		StudentID:   school.Students[2].ID,
		PeriodID:    periodID,
		Description: "Library fine",
		Amount:      decimal.NewFromInt(350),
		DueDate:     today.AddDate(0, 0, -10),
	}); err != nil {
		return err
	}

	_, err = h.Service.AssessPenalties(ctx, today)
	return err
}
