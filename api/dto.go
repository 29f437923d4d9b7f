/*
dto.go - Data Transfer Objects for API responses and action params

PURPOSE:
  Defines the JSON shapes of the action API. Response types decouple the
  engine's decimal-based model from the wire contract, where amounts are
  JSON numbers rounded to centavos and dates are "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO:    Response types returned to clients
  - *Params: Action parameters, decoded from JSON body or query string

VALIDATION:
  Params carry go-playground/validator tags. Business rules (balance,
  scholarship exclusivity, scope) stay in the billing package.

SEE ALSO:
  - handlers.go: Uses these types
  - dispatch.go: Params decoding
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/reporting"
)

const dateLayout = "2006-01-02"

func amount(d decimal.Decimal) float64 { return billing.Float(d) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// =============================================================================
// STUDENTS
// =============================================================================

// StudentDTO is the full student profile.
type StudentDTO struct {
	StudentID     int64  `json:"student_id"`
	StudentNumber string `json:"student_number"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	YearLevel     string `json:"year_level"`
	Section       string `json:"section"`
	AdmissionType string `json:"admission_type"`
	ProgramID     int64  `json:"program_id"`
	ProgramName   string `json:"program_name"`
	Status        string `json:"status"`
}

func toStudentDTO(s billing.Student) StudentDTO {
	return StudentDTO{
		StudentID:     s.ID,
		StudentNumber: s.StudentNumber,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Email:         s.Email,
		Phone:         s.Phone,
		YearLevel:     s.YearLevel,
		Section:       s.Section,
		AdmissionType: s.AdmissionType,
		ProgramID:     s.ProgramID,
		ProgramName:   s.ProgramName,
		Status:        s.Status,
	}
}

// StudentRefDTO is the short student form used in lists.
type StudentRefDTO struct {
	StudentID     int64  `json:"student_id"`
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	Program       string `json:"program"`
}

func toStudentRef(s billing.Student) StudentRefDTO {
	return StudentRefDTO{
		StudentID:     s.ID,
		StudentNumber: s.StudentNumber,
		Name:          s.Name(),
		Program:       s.ProgramName,
	}
}

// SummaryDTO is a reconciled student aggregate.
type SummaryDTO struct {
	TotalGross      float64 `json:"total_gross"`
	TotalAssessment float64 `json:"total_assessment"`
	TotalPaid       float64 `json:"total_paid"`
	TotalAdHoc      float64 `json:"total_ad_hoc"`
	TotalBalance    float64 `json:"total_balance"`
}

func toSummaryDTO(a billing.StudentAggregate) SummaryDTO {
	return SummaryDTO{
		TotalGross:      amount(a.TotalGross),
		TotalAssessment: amount(a.TotalAssessment),
		TotalPaid:       amount(a.TotalPaid),
		TotalAdHoc:      amount(a.TotalAdHoc),
		TotalBalance:    amount(a.TotalBalance),
	}
}

// EnrollmentDTO is one enrollment of a student.
type EnrollmentDTO struct {
	EnrollmentID int64  `json:"enrollment_id"`
	PeriodID     int64  `json:"period_id"`
	EnrolledAt   string `json:"enrolled_at"`
}

// StudentDetailsDTO is the get_student_details payload.
type StudentDetailsDTO struct {
	Student     StudentDTO      `json:"student"`
	Enrollments []EnrollmentDTO `json:"enrollments"`
	Summary     SummaryDTO      `json:"summary"`
}

func toStudentDetailsDTO(p *billing.StudentProfile) StudentDetailsDTO {
	out := StudentDetailsDTO{
		Student:     toStudentDTO(p.Student),
		Enrollments: make([]EnrollmentDTO, 0, len(p.Enrollments)),
		Summary:     toSummaryDTO(p.Summary),
	}
	for _, e := range p.Enrollments {
		out.Enrollments = append(out.Enrollments, EnrollmentDTO{
			EnrollmentID: e.ID,
			PeriodID:     e.PeriodID,
			EnrolledAt:   formatDate(e.CreatedAt),
		})
	}
	return out
}

// PeriodDTO is an enrollment period.
type PeriodDTO struct {
	PeriodID   int64  `json:"period_id"`
	SchoolYear string `json:"school_year"`
	Semester   string `json:"semester"`
	IsActive   bool   `json:"is_active"`
}

func toPeriodDTO(p billing.EnrollmentPeriod) PeriodDTO {
	return PeriodDTO{PeriodID: p.ID, SchoolYear: p.SchoolYear, Semester: p.Semester, IsActive: p.IsActive}
}

// FeeTypeDTO is a fee catalogue entry.
type FeeTypeDTO struct {
	FeeTypeID  int64   `json:"fee_type_id"`
	FeeName    string  `json:"fee_name"`
	BaseAmount float64 `json:"base_amount"`
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// AssessmentDTO is an assessment with its reconciled balance.
type AssessmentDTO struct {
	AssessmentID    int64   `json:"assessment_id"`
	EnrollmentID    int64   `json:"enrollment_id"`
	StudentID       int64   `json:"student_id"`
	StudentNumber   string  `json:"student_number,omitempty"`
	StudentName     string  `json:"student_name,omitempty"`
	CourseName      string  `json:"course_name,omitempty"`
	PeriodID        int64   `json:"period_id"`
	SchoolYear      string  `json:"school_year,omitempty"`
	Semester        string  `json:"semester,omitempty"`
	TotalAssessment float64 `json:"total_assessment"`
	DiscountAmount  float64 `json:"discount_amount"`
	NetAmount       float64 `json:"net_amount"`
	AmountPaid      float64 `json:"amount_paid"`
	Balance         float64 `json:"balance"`
	Status          string  `json:"status"`
	DueDate         string  `json:"due_date,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toAssessmentDTO(line billing.AssessmentLine) AssessmentDTO {
	a := line.Assessment
	out := AssessmentDTO{
		AssessmentID:    a.ID,
		EnrollmentID:    a.EnrollmentID,
		StudentID:       a.StudentID,
		PeriodID:        a.PeriodID,
		TotalAssessment: amount(a.TotalAssessment),
		DiscountAmount:  amount(a.DiscountAmount),
		NetAmount:       amount(a.NetAmount),
		AmountPaid:      amount(line.Balance.AmountPaid),
		Balance:         amount(line.Balance.Balance),
		Status:          line.Balance.Status,
		DueDate:         formatDate(a.DueDate),
		CreatedAt:       formatDate(a.CreatedAt),
	}
	if line.Student != nil {
		out.StudentNumber = line.Student.StudentNumber
		out.StudentName = line.Student.Name()
		out.CourseName = line.Student.ProgramName
	}
	if line.Period != nil {
		out.SchoolYear = line.Period.SchoolYear
		out.Semester = line.Period.Semester
	}
	return out
}

// FeeLineDTO is one line of an assessment.
type FeeLineDTO struct {
	FeeType   string  `json:"fee_type"`
	Amount    float64 `json:"amount"`
	IsTuition bool    `json:"is_tuition"`
}

func toFeeLines(details []billing.AssessmentDetail) []FeeLineDTO {
	out := make([]FeeLineDTO, 0, len(details))
	for _, d := range details {
		out = append(out, FeeLineDTO{FeeType: d.FeeType, Amount: amount(d.Amount), IsTuition: d.IsTuition})
	}
	return out
}

// AssessmentDetailsDTO is the get_assessment_details payload.
type AssessmentDetailsDTO struct {
	Assessment AssessmentDTO `json:"assessment"`
	Fees       []FeeLineDTO  `json:"fees"`
	Payments   []PaymentDTO  `json:"payments"`
}

// CreatedAssessmentDTO is the create_assessment payload.
type CreatedAssessmentDTO struct {
	AssessmentID    int64        `json:"assessment_id"`
	EnrollmentID    int64        `json:"enrollment_id"`
	TotalAssessment float64      `json:"total_assessment"`
	DiscountAmount  float64      `json:"discount_amount"`
	NetAmount       float64      `json:"net_amount"`
	DueDate         string       `json:"due_date"`
	Fees            []FeeLineDTO `json:"fees"`
	ScholarshipID   *int64       `json:"scholarship_id"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO is one payment.
type PaymentDTO struct {
	PaymentID     int64   `json:"payment_id"`
	AssessmentID  int64   `json:"assessment_id"`
	StudentID     int64   `json:"student_id"`
	StudentNumber string  `json:"student_number,omitempty"`
	StudentName   string  `json:"student_name,omitempty"`
	ORNumber      string  `json:"or_number"`
	PaymentDate   string  `json:"payment_date"`
	AmountPaid    float64 `json:"amount_paid"`
	PaymentMode   string  `json:"payment_mode"`
	Reference     string  `json:"reference_number,omitempty"`
	Remarks       string  `json:"remarks,omitempty"`
	ReceivedBy    int64   `json:"received_by,omitempty"`
}

func toPaymentDTO(p billing.Payment, s *billing.Student) PaymentDTO {
	out := PaymentDTO{
		PaymentID:    p.ID,
		AssessmentID: p.AssessmentID,
		StudentID:    p.StudentID,
		ORNumber:     p.ORNumber,
		PaymentDate:  formatDate(p.PaymentDate),
		AmountPaid:   amount(p.AmountPaid),
		PaymentMode:  p.PaymentMode,
		Reference:    p.Reference,
		Remarks:      p.Remarks,
		ReceivedBy:   p.ReceivedBy,
	}
	if s != nil {
		out.StudentNumber = s.StudentNumber
		out.StudentName = s.Name()
	}
	return out
}

func toPaymentDTOs(payments []billing.Payment, s *billing.Student) []PaymentDTO {
	out := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDTO(p, s))
	}
	return out
}

// PaymentReceiptDTO is the create_payment payload.
type PaymentReceiptDTO struct {
	PaymentID       int64   `json:"payment_id"`
	ORNumber        string  `json:"or_number"`
	AmountPaid      float64 `json:"amount_paid"`
	PreviousBalance float64 `json:"previous_balance"`
	NewBalance      float64 `json:"new_balance"`
	Status          string  `json:"status"`
	IdempotencyKey  string  `json:"idempotency_key"`
}

// PaymentDetailsDTO is the get_payment_details payload.
type PaymentDetailsDTO struct {
	Payment    PaymentDTO    `json:"payment"`
	Student    StudentRefDTO `json:"student"`
	Assessment struct {
		AssessmentID int64   `json:"assessment_id"`
		NetAmount    float64 `json:"net_amount"`
		SchoolYear   string  `json:"school_year,omitempty"`
		Semester     string  `json:"semester,omitempty"`
	} `json:"assessment"`
}

// ModeTotalDTO is one payment mode in a report.
type ModeTotalDTO struct {
	PaymentMode string  `json:"payment_mode"`
	Count       int     `json:"count"`
	Total       float64 `json:"total"`
}

// PaymentReportDTO is the get_payment_report payload.
type PaymentReportDTO struct {
	DateFrom   string         `json:"date_from,omitempty"`
	DateTo     string         `json:"date_to,omitempty"`
	Mode       string         `json:"payment_mode,omitempty"`
	Payments   []PaymentDTO   `json:"payments"`
	ByMode     []ModeTotalDTO `json:"by_mode"`
	TotalCount int            `json:"total_count"`
	Total      float64        `json:"total_amount"`
}

func toPaymentReportDTO(rep *reporting.PaymentReport) PaymentReportDTO {
	out := PaymentReportDTO{
		DateFrom:   formatDate(rep.Query.From),
		DateTo:     formatDate(rep.Query.To),
		Mode:       rep.Query.Mode,
		Payments:   toPaymentDTOs(rep.Payments, nil),
		ByMode:     make([]ModeTotalDTO, 0, len(rep.ByMode)),
		TotalCount: rep.TotalCount,
		Total:      amount(rep.Total),
	}
	for _, m := range rep.ByMode {
		out.ByMode = append(out.ByMode, ModeTotalDTO{PaymentMode: m.Mode, Count: m.Count, Total: amount(m.Amount)})
	}
	return out
}

// =============================================================================
// BILLING VIEWS
// =============================================================================

// BillingDTO is an ad hoc billing.
type BillingDTO struct {
	BillingID   int64   `json:"billing_id"`
	StudentID   int64   `json:"student_id"`
	PeriodID    *int64  `json:"period_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"due_date,omitempty"`
	Status      string  `json:"status"`
	Reference   string  `json:"reference,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toBillingDTO(b billing.AdHocBilling) BillingDTO {
	return BillingDTO{
		BillingID:   b.ID,
		StudentID:   b.StudentID,
		PeriodID:    b.PeriodID,
		Description: b.Description,
		Amount:      amount(b.Amount),
		DueDate:     formatDate(b.DueDate),
		Status:      string(b.Status),
		Reference:   b.Reference,
		CreatedAt:   formatDate(b.CreatedAt),
	}
}

func toBillingDTOs(bs []billing.AdHocBilling) []BillingDTO {
	out := make([]BillingDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBillingDTO(b))
	}
	return out
}

// StudentBillingDTO is the get_student_billing payload.
type StudentBillingDTO struct {
	Student     StudentRefDTO   `json:"student"`
	Billings    []AssessmentDTO `json:"billings"`
	AdHoc       []BillingDTO    `json:"ad_hoc_billings"`
	Summary     SummaryDTO      `json:"summary"`
	HasPayments bool            `json:"has_payments"`
}

func toStudentBillingDTO(sb *billing.StudentBilling) StudentBillingDTO {
	out := StudentBillingDTO{
		Student:     toStudentRef(sb.Student),
		Billings:    make([]AssessmentDTO, 0, len(sb.Assessments)),
		AdHoc:       toBillingDTOs(sb.Billings),
		Summary:     toSummaryDTO(sb.Summary),
		HasPayments: sb.Summary.HasPayments(),
	}
	for _, line := range sb.Assessments {
		out.Billings = append(out.Billings, toAssessmentDTO(line))
	}
	return out
}

// StatementRowDTO is one statement line.
type StatementRowDTO struct {
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Charges     float64 `json:"charges"`
	Payments    float64 `json:"payments"`
	Balance     float64 `json:"balance"`
}

// StatementDTO is the get_account_statement payload.
type StatementDTO struct {
	StudentInfo struct {
		StudentID     int64  `json:"student_id"`
		StudentNumber string `json:"student_number"`
		Name          string `json:"name"`
		Program       string `json:"program"`
		Year          string `json:"year"`
		Semester      string `json:"semester"`
		SchoolYear    string `json:"school_year"`
	} `json:"student_info"`
	Transactions []StatementRowDTO `json:"transactions"`
	Summary      struct {
		TotalCharges   float64 `json:"total_charges"`
		TotalPayments  float64 `json:"total_payments"`
		CurrentBalance float64 `json:"current_balance"`
	} `json:"summary"`
}

func toStatementDTO(st *billing.AccountStatement) StatementDTO {
	var out StatementDTO
	out.StudentInfo.StudentID = st.Student.ID
	out.StudentInfo.StudentNumber = st.Student.StudentNumber
	out.StudentInfo.Name = st.Student.Name()
	out.StudentInfo.Program = st.Student.ProgramName
	out.StudentInfo.Year = st.Student.YearLevel
	if st.Period != nil {
		out.StudentInfo.Semester = st.Period.Semester
		out.StudentInfo.SchoolYear = st.Period.SchoolYear
	}
	out.Transactions = make([]StatementRowDTO, 0, len(st.Statement.Rows))
	for _, row := range st.Statement.Rows {
		out.Transactions = append(out.Transactions, StatementRowDTO{
			Date:        formatDate(row.Date),
			Type:        string(row.Kind),
			Description: row.Description,
			Charges:     amount(row.Charges),
			Payments:    amount(row.Payments),
			Balance:     amount(row.Balance),
		})
	}
	out.Summary.TotalCharges = amount(st.Statement.TotalCharges)
	out.Summary.TotalPayments = amount(st.Statement.TotalPayments)
	out.Summary.CurrentBalance = amount(st.Statement.CurrentBalance)
	return out
}

// =============================================================================
// SCHOLARSHIPS
// =============================================================================

// ScholarshipDTO is a scholarship definition.
type ScholarshipDTO struct {
	ScholarshipID      int64   `json:"scholarship_id"`
	ScholarshipName    string  `json:"scholarship_name"`
	ScholarshipType    string  `json:"scholarship_type"`
	DiscountPercentage float64 `json:"discount_percentage"`
	DiscountAmount     float64 `json:"discount_amount"`
	Description        string  `json:"description,omitempty"`
	Requirements       string  `json:"requirements,omitempty"`
	IsActive           bool    `json:"is_active"`
	ActiveRecipients   int     `json:"active_recipients"`
}

func toScholarshipDTO(s billing.Scholarship) ScholarshipDTO {
	return ScholarshipDTO{
		ScholarshipID:      s.ID,
		ScholarshipName:    s.Name,
		ScholarshipType:    s.Type,
		DiscountPercentage: amount(s.DiscountPercentage),
		DiscountAmount:     amount(s.DiscountAmount),
		Description:        s.Description,
		Requirements:       s.Requirements,
		IsActive:           s.IsActive,
		ActiveRecipients:   s.ActiveRecipients,
	}
}

// GrantDTO is a scholarship granted to a student.
type GrantDTO struct {
	GrantID         int64   `json:"student_scholarship_id"`
	StudentID       int64   `json:"student_id"`
	ScholarshipID   int64   `json:"scholarship_id"`
	ScholarshipName string  `json:"scholarship_name"`
	PeriodID        int64   `json:"period_id"`
	Status          string  `json:"status"`
	Remarks         string  `json:"remarks,omitempty"`
	DiscountPercent float64 `json:"discount_percentage"`
	DiscountAmount  float64 `json:"discount_amount"`
	GrantedAt       string  `json:"granted_at"`
}

func toGrantDTO(g billing.StudentScholarship) GrantDTO {
	return GrantDTO{
		GrantID:         g.ID,
		StudentID:       g.StudentID,
		ScholarshipID:   g.ScholarshipID,
		ScholarshipName: g.Scholarship.Name,
		PeriodID:        g.PeriodID,
		Status:          string(g.Status),
		Remarks:         g.Remarks,
		DiscountPercent: amount(g.Scholarship.DiscountPercentage),
		DiscountAmount:  amount(g.Scholarship.DiscountAmount),
		GrantedAt:       formatDate(g.GrantedAt),
	}
}

func toGrantDTOs(gs []billing.StudentScholarship) []GrantDTO {
	out := make([]GrantDTO, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGrantDTO(g))
	}
	return out
}

// ScholarshipDetailsDTO is the get_scholarship_details payload.
type ScholarshipDetailsDTO struct {
	ScholarshipDTO
	Recipients []GrantDTO `json:"recipients"`
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthRevenueDTO is one month of collections.
type MonthRevenueDTO struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// DashboardDTO is the get_dashboard_stats payload.
type DashboardDTO struct {
	TotalFees      float64           `json:"total_fees"`
	TotalPayments  float64           `json:"total_payments"`
	PendingBalance float64           `json:"pending_balance"`
	MonthlyRevenue []MonthRevenueDTO `json:"monthly_revenue"`
	PaidStudents   int               `json:"paid_students"`
	TotalStudents  int               `json:"total_students"`
}

func toDashboardDTO(d *reporting.DashboardStats) DashboardDTO {
	out := DashboardDTO{
		TotalFees:      amount(d.TotalFees),
		TotalPayments:  amount(d.TotalPayments),
		PendingBalance: amount(d.PendingBalance),
		MonthlyRevenue: make([]MonthRevenueDTO, 0, len(d.MonthlyRevenue)),
		PaidStudents:   d.PaidStudents,
		TotalStudents:  d.TotalStudents,
	}
	for _, m := range d.MonthlyRevenue {
		out.MonthlyRevenue = append(out.MonthlyRevenue, MonthRevenueDTO{Month: m.Label, Total: amount(m.Amount)})
	}
	return out
}

// CollectionDTO is the get_collection_summary payload.
type CollectionDTO struct {
	TotalStudents    int     `json:"total_students"`
	TotalAssessment  float64 `json:"total_assessment"`
	TotalCollected   float64 `json:"total_collected"`
	TotalOutstanding float64 `json:"total_outstanding"`
	PaidStudents     int     `json:"paid_students"`
	CollectionRate   float64 `json:"collection_rate"`
}

// BillingSummaryDTO is the get_billing_summary payload.
type BillingSummaryDTO struct {
	TotalAssessment float64 `json:"total_assessment"`
	TotalPaid       float64 `json:"total_paid"`
	TotalAdHoc      float64 `json:"total_ad_hoc"`
	BalanceDue      float64 `json:"balance_due"`
	CollectionRate  float64 `json:"collection_rate"`
}

// PenaltyRunDTO is the assess_penalties payload.
type PenaltyRunDTO struct {
	AsOf     string       `json:"as_of"`
	Assessed int          `json:"assessed"`
	Skipped  int          `json:"skipped"`
	Total    float64      `json:"total"`
	Billings []BillingDTO `json:"billings"`
}

// =============================================================================
// SESSION & SCENARIOS
// =============================================================================

// LoginDTO is the login payload.
type LoginDTO struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	StudentID int64  `json:"student_id,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
