/*
handlers.go - Action handlers for the tuition ledger API

PURPOSE:
  Exposes the billing engine and the reporting aggregator through one
  action-dispatch endpoint. Each handler decodes its params struct, calls
  the engine, and converts the result to a DTO.

ACTIONS:
  Reports (cashier):
    get_dashboard_stats, get_collection_summary, get_billing_summary,
    get_payment_report, get_all_assessments, search_students

  Student reads (student, scoped to self):
    get_student_billing, get_account_statement, export_account_statement,
    get_payment_history, get_payment_details, get_assessment_details,
    get_student_scholarships, get_student_details

  Reference data (any authenticated caller):
    get_scholarships, get_scholarship_details, get_enrollment_periods,
    get_fee_types

  Writes:
    create_payment (cashier)
    create_assessment, assign_scholarship, revoke_scholarship,
    create_scholarship, create_billing, settle_billing,
    assess_penalties, list_scenarios, load_scenario (admin)

  Session:
    login (public)

REQUEST FLOW:
  1. dispatch.go resolves the action and checks the caller's role
  2. bind decodes and validates the params struct
  3. handler calls billing.Service or reporting.Aggregator
  4. result is wrapped in the response envelope

SEE ALSO:
  - dto.go: Response shapes
  - dispatch.go: Action table mechanics
  - errors.go: Error to status mapping
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/tuition-engine/auth"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/export"
	"github.com/warp/tuition-engine/metrics"
	"github.com/warp/tuition-engine/reporting"
	"github.com/warp/tuition-engine/store/sqlstore"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Deps are the handler's collaborators.
type Deps struct {
	Store    *sqlstore.Store
	Service  *billing.Service
	Reports  *reporting.Aggregator
	Auth     *auth.Authenticator
	Logger   *zap.Logger
	Currency string
	Debug    bool
}

// Handler holds all dependencies for the action endpoint.
type Handler struct {
	Store    *sqlstore.Store
	Service  *billing.Service
	Reports  *reporting.Aggregator
	Auth     *auth.Authenticator
	Currency string

	// Now is the clock used for envelope timestamps and defaults.
	Now func() time.Time

	log    *zap.Logger
	debug  bool
	routes map[string]route

	// Track currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler and its action table.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Store:    d.Store,
		Service:  d.Service,
		Reports:  d.Reports,
		Auth:     d.Auth,
		Currency: d.Currency,
		log:      logger.Named("api"),
		debug:    d.Debug,
	}
	h.routes = h.actions()
	return h
}

func (h *Handler) actions() map[string]route {
	const (
		public  auth.Role = ""
		student           = auth.RoleStudent
		cashier           = auth.RoleCashier
		admin             = auth.RoleAdmin
	)
	return map[string]route{
		// Reports
		"get_dashboard_stats":    {Role: cashier, Message: "Dashboard statistics retrieved successfully", invoke: bind(h.dashboardStats)},
		"get_collection_summary": {Role: cashier, Message: "Collection summary retrieved", invoke: bind(h.collectionSummary)},
		"get_billing_summary":    {Role: cashier, Message: "Billing summary retrieved successfully", invoke: bind(h.billingSummary)},
		"get_payment_report":     {Role: cashier, Message: "Payment report retrieved successfully", invoke: bind(h.paymentReport)},
		"get_all_assessments":    {Role: cashier, Message: "Assessments retrieved successfully", invoke: bind(h.allAssessments)},
		"search_students":        {Role: cashier, Message: "Search results retrieved", invoke: bind(h.searchStudents)},

		// Student reads
		"get_student_billing":      {Role: student, Message: "Student billing retrieved successfully", invoke: bind(h.studentBilling)},
		"get_account_statement":    {Role: student, Message: "Account statement retrieved successfully", invoke: bind(h.accountStatement)},
		"export_account_statement": {Role: student, invoke: bind(h.exportStatement)},
		"get_payment_history":      {Role: student, Message: "Payment history retrieved successfully", invoke: bind(h.paymentHistory)},
		"get_payment_details":      {Role: student, Message: "Payment details retrieved successfully", invoke: bind(h.paymentDetails)},
		"get_assessment_details":   {Role: student, Message: "Assessment details retrieved successfully", invoke: bind(h.assessmentDetails)},
		"get_student_scholarships": {Role: student, Message: "Student scholarships retrieved successfully", invoke: bind(h.studentScholarships)},
		"get_student_details":      {Role: student, Message: "Student details retrieved successfully", invoke: bind(h.studentDetails)},

		// Reference data
		"get_scholarships":        {Role: student, Message: "Scholarships retrieved successfully", invoke: bind(h.scholarships)},
		"get_scholarship_details": {Role: student, Message: "Scholarship details retrieved successfully", invoke: bind(h.scholarshipDetails)},
		"get_enrollment_periods":  {Role: student, Message: "Periods retrieved successfully", invoke: bind(h.enrollmentPeriods)},
		"get_fee_types":           {Role: student, Message: "Fee types retrieved successfully", invoke: bind(h.feeTypes)},

		// Writes
		"create_payment":     {Role: cashier, Status: http.StatusCreated, Message: "Payment recorded successfully", invoke: bind(h.createPayment)},
		"create_assessment":  {Role: admin, Status: http.StatusCreated, Message: "Assessment created successfully", invoke: bind(h.createAssessment)},
		"assign_scholarship": {Role: admin, Status: http.StatusCreated, Message: "Scholarship assigned successfully", invoke: bind(h.assignScholarship)},
		"revoke_scholarship": {Role: admin, Message: "Scholarship revoked successfully", invoke: bind(h.revokeScholarship)},
		"create_scholarship": {Role: admin, Status: http.StatusCreated, Message: "Scholarship created successfully", invoke: bind(h.createScholarship)},
		"create_billing":     {Role: admin, Status: http.StatusCreated, Message: "Billing created successfully", invoke: bind(h.createBilling)},
		"settle_billing":     {Role: admin, Message: "Billing updated successfully", invoke: bind(h.settleBilling)},
		"assess_penalties":   {Role: admin, Message: "Penalties assessed successfully", invoke: bind(h.assessPenalties)},
		"list_scenarios":     {Role: admin, Message: "Scenarios retrieved successfully", invoke: bind(h.listScenarios)},
		"load_scenario":      {Role: admin, Message: "Scenario loaded successfully", invoke: bind(h.loadScenario)},

		// Session
		"login": {Role: public, Message: "Login successful", invoke: bind(h.login)},
	}
}

// =============================================================================
// PARAMS
// =============================================================================

type noParams struct{}

type periodParams struct {
	PeriodID int64 `json:"period_id" validate:"gte=0"`
}

type studentParams struct {
	StudentID int64 `json:"student_id" validate:"gte=0"`
}

type statementParams struct {
	StudentID int64  `json:"student_id" validate:"gte=0"`
	PeriodID  int64  `json:"period_id" validate:"gte=0"`
	Format    string `json:"format" validate:"omitempty,oneof=pdf xlsx"`
}

type historyParams struct {
	StudentID int64 `json:"student_id" validate:"gte=0"`
	Limit     int   `json:"limit" validate:"gte=0,lte=500"`
}

type paymentParams struct {
	AssessmentID   int64           `json:"assessment_id" validate:"required,gt=0"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PaymentMode    string          `json:"payment_mode"`
	Reference      string          `json:"reference_number" validate:"max=100"`
	Remarks        string          `json:"remarks" validate:"max=500"`
	PaymentDate    string          `json:"payment_date"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=100"`
	ReceivedBy     int64           `json:"received_by" validate:"gte=0"`
}

type paymentIDParams struct {
	PaymentID int64 `json:"payment_id" validate:"required,gt=0"`
}

type reportParams struct {
	DateFrom    string `json:"date_from"`
	DateTo      string `json:"date_to"`
	PaymentMode string `json:"payment_mode"`
}

type feeParam struct {
	FeeType   string          `json:"fee_type"`
	Amount    decimal.Decimal `json:"amount"`
	IsTuition bool            `json:"is_tuition"`
}

type assessmentParams struct {
	EnrollmentID int64      `json:"enrollment_id" validate:"required,gt=0"`
	Fees         []feeParam `json:"fees"`
	Units        int        `json:"units" validate:"gte=0,lte=60"`
	LabUnits     int        `json:"lab_units" validate:"gte=0,lte=60"`
	DueDate      string     `json:"due_date"`
}

type assessmentIDParams struct {
	AssessmentID int64 `json:"assessment_id" validate:"required,gt=0"`
}

type grantParams struct {
	StudentID     int64  `json:"student_id" validate:"required,gt=0"`
	ScholarshipID int64  `json:"scholarship_id" validate:"required,gt=0"`
	PeriodID      int64  `json:"period_id" validate:"required,gt=0"`
	Remarks       string `json:"remarks" validate:"max=500"`
}

type grantIDParams struct {
	GrantID int64 `json:"student_scholarship_id" validate:"required,gt=0"`
}

type scholarshipIDParams struct {
	ScholarshipID int64 `json:"scholarship_id" validate:"required,gt=0"`
}

type scholarshipParams struct {
	Name               string          `json:"scholarship_name" validate:"required,max=100"`
	Type               string          `json:"scholarship_type" validate:"required"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Description        string          `json:"description"`
	Requirements       string          `json:"requirements"`
}

type billingParams struct {
	StudentID   int64           `json:"student_id" validate:"required,gt=0"`
	PeriodID    int64           `json:"period_id" validate:"gte=0"`
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Reference   string          `json:"reference" validate:"max=100"`
}

type settleParams struct {
	BillingID int64  `json:"billing_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"omitempty,oneof=Paid Cancelled"`
}

type searchParams struct {
	SearchTerm string `json:"search_term"`
}

type loginParams struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type penaltyParams struct {
	AsOf string `json:"as_of"`
}

type scenarioParams struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, billing.Invalid(field, "Invalid %s format (use YYYY-MM-DD)", field)
	}
	return t, nil
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) dashboardStats(ctx context.Context, _ *call, _ noParams) (any, error) {
	stats, err := h.Reports.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return toDashboardDTO(stats), nil
}

func (h *Handler) collectionSummary(ctx context.Context, _ *call, p periodParams) (any, error) {
	s, err := h.Reports.Collection(ctx, p.PeriodID)
	if err != nil {
		return nil, err
	}
	return CollectionDTO{
		TotalStudents:    s.TotalStudents,
		TotalAssessment:  amount(s.TotalAssessment),
		TotalCollected:   amount(s.TotalCollected),
		TotalOutstanding: amount(s.TotalOutstanding),
		PaidStudents:     s.PaidStudents,
		CollectionRate:   amount(s.CollectionRate),
	}, nil
}

func (h *Handler) billingSummary(ctx context.Context, _ *call, p periodParams) (any, error) {
	s, err := h.Reports.Billing(ctx, p.PeriodID)
	if err != nil {
		return nil, err
	}
	return BillingSummaryDTO{
		TotalAssessment: amount(s.TotalAssessment),
		TotalPaid:       amount(s.TotalPaid),
		TotalAdHoc:      amount(s.TotalAdHoc),
		BalanceDue:      amount(s.BalanceDue),
		CollectionRate:  amount(s.CollectionRate),
	}, nil
}

func (h *Handler) paymentReport(ctx context.Context, _ *call, p reportParams) (any, error) {
	from, err := parseDate("date_from", p.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("date_to", p.DateTo)
	if err != nil {
		return nil, err
	}
	rep, err := h.Reports.Payments(ctx, reporting.ReportQuery{From: from, To: to, Mode: strings.TrimSpace(p.PaymentMode)})
	if err != nil {
		return nil, err
	}
	return toPaymentReportDTO(rep), nil
}

func (h *Handler) allAssessments(ctx context.Context, _ *call, p periodParams) (any, error) {
	lines, err := h.Service.AllAssessments(ctx, p.PeriodID)
	if err != nil {
		return nil, err
	}
	out := make([]AssessmentDTO, 0, len(lines))
	for _, line := range lines {
		out = append(out, toAssessmentDTO(line))
	}
	return out, nil
}

func (h *Handler) searchStudents(ctx context.Context, _ *call, p searchParams) (any, error) {
	students, err := h.Service.SearchStudents(ctx, p.SearchTerm)
	if err != nil {
		return nil, err
	}
	out := make([]StudentRefDTO, 0, len(students))
	for _, s := range students {
		out = append(out, toStudentRef(s))
	}
	return out, nil
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

func (h *Handler) studentBilling(ctx context.Context, c *call, p studentParams) (any, error) {
	sb, err := h.Service.StudentBilling(ctx, c.scope(), p.StudentID)
	if err != nil {
		return nil, err
	}
	return toStudentBillingDTO(sb), nil
}

func (h *Handler) accountStatement(ctx context.Context, c *call, p statementParams) (any, error) {
	st, err := h.Service.Statement(ctx, c.scope(), p.StudentID, p.PeriodID)
	if err != nil {
		return nil, err
	}
	return toStatementDTO(st), nil
}

func (h *Handler) exportStatement(ctx context.Context, c *call, p statementParams) (any, error) {
	st, err := h.Service.Statement(ctx, c.scope(), p.StudentID, p.PeriodID)
	if err != nil {
		return nil, err
	}
	format := export.FormatPDF
	if p.Format != "" {
		format = export.Format(p.Format)
	}
	body, err := export.Render(st, format, export.Options{Currency: h.Currency, GeneratedAt: h.now()})
	if err != nil {
		return nil, err
	}
	return &attachment{
		Filename:    export.Filename(st, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (h *Handler) paymentHistory(ctx context.Context, c *call, p historyParams) (any, error) {
	scope := c.scope()
	payments, err := h.Service.PaymentHistory(ctx, scope, p.StudentID, p.Limit)
	if err != nil {
		return nil, err
	}
	var student *billing.Student
	if id, err := scope.Resolve(p.StudentID); err == nil {
		if student, err = h.Store.GetStudent(ctx, id); err != nil {
			return nil, err
		}
	}
	return toPaymentDTOs(payments, student), nil
}

func (h *Handler) paymentDetails(ctx context.Context, c *call, p paymentIDParams) (any, error) {
	view, err := h.Service.PaymentDetails(ctx, c.scope(), p.PaymentID)
	if err != nil {
		return nil, err
	}
	out := PaymentDetailsDTO{
		Payment: toPaymentDTO(view.Payment, &view.Student),
		Student: toStudentRef(view.Student),
	}
	out.Assessment.AssessmentID = view.Assessment.ID
	out.Assessment.NetAmount = amount(view.Assessment.NetAmount)
	if view.Period != nil {
		out.Assessment.SchoolYear = view.Period.SchoolYear
		out.Assessment.Semester = view.Period.Semester
	}
	return out, nil
}

func (h *Handler) assessmentDetails(ctx context.Context, c *call, p assessmentIDParams) (any, error) {
	view, err := h.Service.AssessmentDetails(ctx, c.scope(), p.AssessmentID)
	if err != nil {
		return nil, err
	}
	return AssessmentDetailsDTO{
		Assessment: toAssessmentDTO(view.AssessmentLine),
		Fees:       toFeeLines(view.Details),
		Payments:   toPaymentDTOs(view.Payments, view.Student),
	}, nil
}

func (h *Handler) studentScholarships(ctx context.Context, c *call, p studentParams) (any, error) {
	grants, err := h.Service.StudentScholarships(ctx, c.scope(), p.StudentID)
	if err != nil {
		return nil, err
	}
	return toGrantDTOs(grants), nil
}

func (h *Handler) studentDetails(ctx context.Context, c *call, p studentParams) (any, error) {
	profile, err := h.Service.StudentDetails(ctx, c.scope(), p.StudentID)
	if err != nil {
		return nil, err
	}
	return toStudentDetailsDTO(profile), nil
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

func (h *Handler) scholarships(ctx context.Context, _ *call, _ noParams) (any, error) {
	list, err := h.Service.Scholarships(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ScholarshipDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toScholarshipDTO(s))
	}
	return out, nil
}

func (h *Handler) scholarshipDetails(ctx context.Context, _ *call, p scholarshipIDParams) (any, error) {
	view, err := h.Service.ScholarshipDetails(ctx, p.ScholarshipID)
	if err != nil {
		return nil, err
	}
	return ScholarshipDetailsDTO{
		ScholarshipDTO: toScholarshipDTO(view.Scholarship),
		Recipients:     toGrantDTOs(view.Grants),
	}, nil
}

func (h *Handler) enrollmentPeriods(ctx context.Context, _ *call, _ noParams) (any, error) {
	periods, err := h.Service.Periods(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodDTO(p))
	}
	return out, nil
}

func (h *Handler) feeTypes(ctx context.Context, _ *call, _ noParams) (any, error) {
	fees, err := h.Service.FeeTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FeeTypeDTO, 0, len(fees))
	for _, f := range fees {
		out = append(out, FeeTypeDTO{FeeTypeID: f.ID, FeeName: f.Name, BaseAmount: amount(f.BaseAmount)})
	}
	return out, nil
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

func (h *Handler) createPayment(ctx context.Context, c *call, p paymentParams) (any, error) {
	paidOn, err := parseDate("payment_date", p.PaymentDate)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(p.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.r.Header.Get("Idempotency-Key"))
	}
	receivedBy := c.identity.UserID
	if receivedBy == 0 {
		receivedBy = p.ReceivedBy
	}

	res, err := h.Service.RecordPayment(ctx, billing.PaymentInput{
		AssessmentID:   p.AssessmentID,
		Amount:         p.AmountPaid,
		Mode:           p.PaymentMode,
		Reference:      p.Reference,
		Remarks:        p.Remarks,
		PaymentDate:    paidOn,
		IdempotencyKey: key,
		ReceivedBy:     receivedBy,
	})
	if err != nil {
		metrics.IncPaymentRejected(rejectionReason(err))
		return nil, err
	}
	metrics.ObservePayment(res.Payment.PaymentMode, res.Payment.AmountPaid)

	return PaymentReceiptDTO{
		PaymentID:       res.Payment.ID,
		ORNumber:        res.Payment.ORNumber,
		AmountPaid:      amount(res.Payment.AmountPaid),
		PreviousBalance: amount(res.PreviousBalance),
		NewBalance:      amount(res.NewBalance),
		Status:          res.Status,
		IdempotencyKey:  res.Payment.IdempotencyKey,
	}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, billing.ErrBalanceExceeded):
		return "balance_exceeded"
	case errors.Is(err, billing.ErrDuplicateIdempotencyKey):
		return "duplicate_key"
	case errors.Is(err, billing.ErrNotFound):
		return "not_found"
	case errors.Is(err, billing.ErrValidation):
		return "invalid"
	}
	return "error"
}

func (h *Handler) createAssessment(ctx context.Context, _ *call, p assessmentParams) (any, error) {
	due, err := parseDate("due_date", p.DueDate)
	if err != nil {
		return nil, err
	}
	in := billing.AssessmentInput{
		EnrollmentID: p.EnrollmentID,
		Units:        p.Units,
		LabUnits:     p.LabUnits,
		DueDate:      due,
	}
	for _, f := range p.Fees {
		in.Fees = append(in.Fees, billing.FeeLine{FeeType: f.FeeType, Amount: f.Amount, IsTuition: f.IsTuition})
	}

	rec, err := h.Service.CreateAssessment(ctx, in)
	if err != nil {
		return nil, err
	}
	out := CreatedAssessmentDTO{
		AssessmentID:    rec.Assessment.ID,
		EnrollmentID:    rec.Assessment.EnrollmentID,
		TotalAssessment: amount(rec.Assessment.TotalAssessment),
		DiscountAmount:  amount(rec.Assessment.DiscountAmount),
		NetAmount:       amount(rec.Assessment.NetAmount),
		DueDate:         formatDate(rec.Assessment.DueDate),
		Fees:            toFeeLines(rec.Details),
	}
	if rec.Grant != nil {
		id := rec.Grant.ScholarshipID
		out.ScholarshipID = &id
	}
	return out, nil
}

func (h *Handler) assignScholarship(ctx context.Context, _ *call, p grantParams) (any, error) {
	g, err := h.Service.AssignScholarship(ctx, billing.GrantInput{
		StudentID:     p.StudentID,
		ScholarshipID: p.ScholarshipID,
		PeriodID:      p.PeriodID,
		Remarks:       p.Remarks,
	})
	if err != nil {
		return nil, err
	}
	return toGrantDTO(*g), nil
}

func (h *Handler) revokeScholarship(ctx context.Context, _ *call, p grantIDParams) (any, error) {
	g, err := h.Service.RevokeScholarship(ctx, p.GrantID)
	if err != nil {
		return nil, err
	}
	return toGrantDTO(*g), nil
}

func (h *Handler) createScholarship(ctx context.Context, _ *call, p scholarshipParams) (any, error) {
	s, err := h.Service.CreateScholarship(ctx, billing.ScholarshipInput{
		Name:               p.Name,
		Type:               p.Type,
		DiscountPercentage: p.DiscountPercentage,
		DiscountAmount:     p.DiscountAmount,
		Description:        p.Description,
		Requirements:       p.Requirements,
	})
	if err != nil {
		return nil, err
	}
	return toScholarshipDTO(*s), nil
}

func (h *Handler) createBilling(ctx context.Context, _ *call, p billingParams) (any, error) {
	due, err := parseDate("due_date", p.DueDate)
	if err != nil {
		return nil, err
	}
	b, err := h.Service.CreateAdHocBilling(ctx, billing.BillingInput{
		StudentID:   p.StudentID,
		PeriodID:    p.PeriodID,
		Description: p.Description,
		Amount:      p.Amount,
		DueDate:     due,
		Reference:   p.Reference,
	})
	if err != nil {
		return nil, err
	}
	return toBillingDTO(*b), nil
}

func (h *Handler) settleBilling(ctx context.Context, _ *call, p settleParams) (any, error) {
	var (
		b   *billing.AdHocBilling
		err error
	)
	if billing.BillingStatus(p.Status) == billing.BillingCancelled {
		b, err = h.Service.CancelAdHocBilling(ctx, p.BillingID)
	} else {
		b, err = h.Service.SettleAdHocBilling(ctx, p.BillingID)
	}
	if err != nil {
		return nil, err
	}
	return toBillingDTO(*b), nil
}

func (h *Handler) assessPenalties(ctx context.Context, _ *call, p penaltyParams) (any, error) {
	asOf, err := parseDate("as_of", p.AsOf)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = h.now()
	}
	run, err := h.Service.AssessPenalties(ctx, asOf)
	if err != nil {
		metrics.ObservePenaltyRun(0, err)
		return nil, err
	}
	metrics.ObservePenaltyRun(run.Assessed, nil)
	return PenaltyRunDTO{
		AsOf:     formatDate(run.AsOf),
		Assessed: run.Assessed,
		Skipped:  run.Skipped,
		Total:    amount(run.Total),
		Billings: toBillingDTOs(run.Billings),
	}, nil
}

// =============================================================================
// SESSION
// =============================================================================

func (h *Handler) login(ctx context.Context, _ *call, p loginParams) (any, error) {
	if h.Auth == nil {
		return nil, billing.Invalid("username", "Login is not available when authentication is disabled")
	}
	session, err := h.Auth.Login(ctx, p.Username, p.Password)
	if err != nil {
		return nil, err
	}
	h.log.Info("login", zap.String("username", session.Identity.Username), zap.String("role", string(session.Identity.Role)))
	return LoginDTO{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		UserID:    session.Identity.UserID,
		Username:  session.Identity.Username,
		Role:      string(session.Identity.Role),
		StudentID: session.Identity.StudentID,
	}, nil
}
