package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/warp/tuition-engine/billing"
)

const assessmentSelect = `
	SELECT a.id, a.enrollment_id, e.student_id, e.period_id,
	       a.total_assessment, a.discount_amount, a.net_amount, a.due_date, a.created_at
	FROM assessments a
	JOIN enrollments e ON e.id = a.enrollment_id`

func scanAssessment(r rowScanner) (billing.Assessment, error) {
	var a billing.Assessment
	var due, created string
	err := r.Scan(&a.ID, &a.EnrollmentID, &a.StudentID, &a.PeriodID,
		&a.TotalAssessment, &a.DiscountAmount, &a.NetAmount, &due, &created)
	a.DueDate = parseTime(due)
	a.CreatedAt = parseTime(created)
	return a, err
}

func (c *conn) getAssessment(ctx context.Context, query string, args ...any) (*billing.Assessment, error) {
	a, err := scanAssessment(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get assessment", err)
	}
	return &a, nil
}

// GetAssessment returns an assessment or nil.
func (c *conn) GetAssessment(ctx context.Context, id int64) (*billing.Assessment, error) {
	return c.getAssessment(ctx, assessmentSelect+" WHERE a.id = ?", id)
}

// LockAssessment reads an assessment and, on PostgreSQL, holds a row lock
// on it until the transaction ends. On SQLite the single writer
// connection already excludes concurrent transactions.
func (c *conn) LockAssessment(ctx context.Context, id int64) (*billing.Assessment, error) {
	if c.dialect == Postgres && c.inTx {
		return c.getAssessment(ctx, assessmentSelect+" WHERE a.id = ? FOR UPDATE OF a", id)
	}
	return c.GetAssessment(ctx, id)
}

// AssessmentForEnrollment returns the assessment of an enrollment or nil.
func (c *conn) AssessmentForEnrollment(ctx context.Context, enrollmentID int64) (*billing.Assessment, error) {
	return c.getAssessment(ctx, assessmentSelect+" WHERE a.enrollment_id = ?", enrollmentID)
}

// ListAssessments returns assessments in creation order.
func (c *conn) ListAssessments(ctx context.Context, f billing.AssessmentFilter) ([]billing.Assessment, error) {
	query := assessmentSelect + " WHERE 1=1"
	var args []any
	if f.StudentID > 0 {
		query += " AND e.student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.PeriodID > 0 {
		query += " AND e.period_id = ?"
		args = append(args, f.PeriodID)
	}
	query += " ORDER BY a.created_at, a.id"

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, billing.StoreFailure("list assessments", err)
	}
	defer rows.Close()

	var out []billing.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan assessment", err)
		}
		out = append(out, a)
	}
	return out, billing.StoreFailure("list assessments", rows.Err())
}

// ListAssessmentDetails returns the fee lines of an assessment.
func (c *conn) ListAssessmentDetails(ctx context.Context, assessmentID int64) ([]billing.AssessmentDetail, error) {
	rows, err := c.query(ctx,
		"SELECT id, assessment_id, fee_type, amount, is_tuition FROM assessment_details WHERE assessment_id = ? ORDER BY id",
		assessmentID)
	if err != nil {
		return nil, billing.StoreFailure("list assessment details", err)
	}
	defer rows.Close()

	var out []billing.AssessmentDetail
	for rows.Next() {
		var d billing.AssessmentDetail
		if err := rows.Scan(&d.ID, &d.AssessmentID, &d.FeeType, &d.Amount, &d.IsTuition); err != nil {
			return nil, billing.StoreFailure("scan assessment detail", err)
		}
		out = append(out, d)
	}
	return out, billing.StoreFailure("list assessment details", rows.Err())
}

// InsertAssessment stores an assessment and its lines. Call it inside
// WithTx so the header and lines commit together.
func (c *conn) InsertAssessment(ctx context.Context, a *billing.Assessment, details []billing.AssessmentDetail) error {
	id, err := c.insert(ctx, `
		INSERT INTO assessments (enrollment_id, total_assessment, discount_amount, net_amount, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.EnrollmentID, money(a.TotalAssessment), money(a.DiscountAmount), money(a.NetAmount),
		formatDate(a.DueDate), formatTS(a.CreatedAt))
	if err != nil {
		if _, dup := uniqueViolation(err); dup {
			return billing.Invalid("enrollment_id", "Assessment already exists for this enrollment")
		}
		return billing.StoreFailure("insert assessment", err)
	}
	a.ID = id

	for i := range details {
		details[i].AssessmentID = id
		lineID, err := c.insert(ctx,
			"INSERT INTO assessment_details (assessment_id, fee_type, amount, is_tuition) VALUES (?, ?, ?, ?)",
			id, details[i].FeeType, money(details[i].Amount), details[i].IsTuition)
		if err != nil {
			return billing.StoreFailure("insert assessment detail", err)
		}
		details[i].ID = lineID
	}
	return nil
}
