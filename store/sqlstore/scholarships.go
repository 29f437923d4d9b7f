package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/warp/tuition-engine/billing"
)

// =============================================================================
// SCHOLARSHIPS
// =============================================================================

const scholarshipSelect = `
	SELECT s.id, s.scholarship_name, s.scholarship_type, s.discount_percentage, s.discount_amount,
	       s.description, s.requirements, s.is_active,
	       (SELECT COUNT(*) FROM student_scholarships g
	         WHERE g.scholarship_id = s.id AND g.status = 'Active')
	FROM scholarships s`

func scanScholarship(r rowScanner) (billing.Scholarship, error) {
	var s billing.Scholarship
	err := r.Scan(&s.ID, &s.Name, &s.Type, &s.DiscountPercentage, &s.DiscountAmount,
		&s.Description, &s.Requirements, &s.IsActive, &s.ActiveRecipients)
	return s, err
}

// GetScholarship returns a scholarship or nil.
func (c *conn) GetScholarship(ctx context.Context, id int64) (*billing.Scholarship, error) {
	s, err := scanScholarship(c.queryRow(ctx, scholarshipSelect+" WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get scholarship", err)
	}
	return &s, nil
}

// ListScholarships returns all scholarships by name.
func (c *conn) ListScholarships(ctx context.Context) ([]billing.Scholarship, error) {
	rows, err := c.query(ctx, scholarshipSelect+" ORDER BY s.scholarship_name, s.id")
	if err != nil {
		return nil, billing.StoreFailure("list scholarships", err)
	}
	defer rows.Close()

	var out []billing.Scholarship
	for rows.Next() {
		s, err := scanScholarship(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan scholarship", err)
		}
		out = append(out, s)
	}
	return out, billing.StoreFailure("list scholarships", rows.Err())
}

// InsertScholarship stores a scholarship and sets its id.
func (c *conn) InsertScholarship(ctx context.Context, s *billing.Scholarship) error {
	id, err := c.insert(ctx, `
		INSERT INTO scholarships (scholarship_name, scholarship_type, discount_percentage, discount_amount,
			description, requirements, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Type, money(s.DiscountPercentage), money(s.DiscountAmount),
		s.Description, s.Requirements, s.IsActive, formatTS(time.Now()))
	if err != nil {
		return billing.StoreFailure("insert scholarship", err)
	}
	s.ID = id
	return nil
}

// =============================================================================
// GRANTS
// =============================================================================

const grantSelect = `
	SELECT g.id, g.student_id, g.scholarship_id, g.period_id, g.status, g.remarks, g.granted_at,
	       s.id, s.scholarship_name, s.scholarship_type, s.discount_percentage, s.discount_amount,
	       s.description, s.requirements, s.is_active
	FROM student_scholarships g
	JOIN scholarships s ON s.id = g.scholarship_id`

func scanGrant(r rowScanner) (billing.StudentScholarship, error) {
	var g billing.StudentScholarship
	var status, granted string
	s := &g.Scholarship
	err := r.Scan(&g.ID, &g.StudentID, &g.ScholarshipID, &g.PeriodID, &status, &g.Remarks, &granted,
		&s.ID, &s.Name, &s.Type, &s.DiscountPercentage, &s.DiscountAmount,
		&s.Description, &s.Requirements, &s.IsActive)
	g.Status = billing.GrantStatus(status)
	g.GrantedAt = parseTime(granted)
	return g, err
}

func (c *conn) getGrant(ctx context.Context, query string, args ...any) (*billing.StudentScholarship, error) {
	g, err := scanGrant(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get grant", err)
	}
	return &g, nil
}

// ActiveGrant returns the first Active grant for (student, period) by
// grant id. Only one grant ever discounts an assessment.
func (c *conn) ActiveGrant(ctx context.Context, studentID, periodID int64) (*billing.StudentScholarship, error) {
	return c.getGrant(ctx, grantSelect+`
		WHERE g.student_id = ? AND g.period_id = ? AND g.status = ?
		ORDER BY g.id
		LIMIT 1`, studentID, periodID, string(billing.GrantActive))
}

// GetGrant returns a grant or nil.
func (c *conn) GetGrant(ctx context.Context, id int64) (*billing.StudentScholarship, error) {
	return c.getGrant(ctx, grantSelect+" WHERE g.id = ?", id)
}

// ListGrants returns grants matching f, oldest first.
func (c *conn) ListGrants(ctx context.Context, f billing.GrantFilter) ([]billing.StudentScholarship, error) {
	var where []string
	var args []any
	if f.StudentID > 0 {
		where = append(where, "g.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.ScholarshipID > 0 {
		where = append(where, "g.scholarship_id = ?")
		args = append(args, f.ScholarshipID)
	}
	if f.PeriodID > 0 {
		where = append(where, "g.period_id = ?")
		args = append(args, f.PeriodID)
	}
	if f.Status != "" {
		where = append(where, "g.status = ?")
		args = append(args, string(f.Status))
	}
	query := grantSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY g.id"

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, billing.StoreFailure("list grants", err)
	}
	defer rows.Close()

	var out []billing.StudentScholarship
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan grant", err)
		}
		out = append(out, g)
	}
	return out, billing.StoreFailure("list grants", rows.Err())
}

// InsertGrant stores a grant and sets its id.
func (c *conn) InsertGrant(ctx context.Context, g *billing.StudentScholarship) error {
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}
	id, err := c.insert(ctx, `
		INSERT INTO student_scholarships (student_id, scholarship_id, period_id, status, remarks, granted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.StudentID, g.ScholarshipID, g.PeriodID, string(g.Status), g.Remarks, formatTS(g.GrantedAt))
	if err != nil {
		return billing.StoreFailure("insert grant", err)
	}
	g.ID = id
	return nil
}

// SetGrantStatus changes the status of a grant.
func (c *conn) SetGrantStatus(ctx context.Context, id int64, status billing.GrantStatus) error {
	res, err := c.exec(ctx, "UPDATE student_scholarships SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return billing.StoreFailure("update grant", err)
	}
	return requireRow(res, "Scholarship grant", id)
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return billing.StoreFailure("rows affected", err)
	}
	if n == 0 {
		return &billing.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
