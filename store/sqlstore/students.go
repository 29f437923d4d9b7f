package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tuition-engine/billing"
)

// =============================================================================
// STUDENTS
// =============================================================================

const studentColumns = `
	s.id, s.student_number, s.first_name, s.last_name, s.email, s.phone,
	COALESCE(s.program_id, 0), COALESCE(p.name, ''), s.year_level, s.section,
	s.admission_type, s.status`

const studentFrom = `
	FROM students s
	LEFT JOIN programs p ON p.id = s.program_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(r rowScanner) (billing.Student, error) {
	var st billing.Student
	err := r.Scan(&st.ID, &st.StudentNumber, &st.FirstName, &st.LastName, &st.Email, &st.Phone,
		&st.ProgramID, &st.ProgramName, &st.YearLevel, &st.Section, &st.AdmissionType, &st.Status)
	return st, err
}

// GetStudent returns a student or nil.
func (c *conn) GetStudent(ctx context.Context, id int64) (*billing.Student, error) {
	st, err := scanStudent(c.queryRow(ctx, "SELECT"+studentColumns+studentFrom+" WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get student", err)
	}
	return &st, nil
}

// ListStudents returns every student ordered by name.
func (c *conn) ListStudents(ctx context.Context) ([]billing.Student, error) {
	return c.queryStudents(ctx, "SELECT"+studentColumns+studentFrom+" ORDER BY s.last_name, s.first_name, s.id")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchStudents matches student number or name, case-insensitively. The
// term is matched literally.
func (c *conn) SearchStudents(ctx context.Context, term string, limit int) ([]billing.Student, error) {
	like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	return c.queryStudents(ctx, "SELECT"+studentColumns+studentFrom+`
		WHERE LOWER(s.student_number) LIKE ? ESCAPE '\'
		   OR LOWER(s.first_name) LIKE ? ESCAPE '\'
		   OR LOWER(s.last_name) LIKE ? ESCAPE '\'
		   OR LOWER(s.first_name || ' ' || s.last_name) LIKE ? ESCAPE '\'
		ORDER BY s.last_name, s.first_name, s.id
		LIMIT ?`, like, like, like, like, limit)
}

func (c *conn) queryStudents(ctx context.Context, query string, args ...any) ([]billing.Student, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, billing.StoreFailure("list students", err)
	}
	defer rows.Close()

	var out []billing.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan student", err)
		}
		out = append(out, st)
	}
	return out, billing.StoreFailure("list students", rows.Err())
}

// =============================================================================
// PERIODS AND ENROLLMENTS
// =============================================================================

// GetPeriod returns an enrollment period or nil.
func (c *conn) GetPeriod(ctx context.Context, id int64) (*billing.EnrollmentPeriod, error) {
	var p billing.EnrollmentPeriod
	err := c.queryRow(ctx,
		"SELECT id, school_year, semester, is_active FROM enrollment_periods WHERE id = ?", id,
	).Scan(&p.ID, &p.SchoolYear, &p.Semester, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get period", err)
	}
	return &p, nil
}

// ListPeriods returns periods, most recent school year and semester first.
func (c *conn) ListPeriods(ctx context.Context) ([]billing.EnrollmentPeriod, error) {
	rows, err := c.query(ctx,
		"SELECT id, school_year, semester, is_active FROM enrollment_periods ORDER BY school_year DESC, semester DESC, id DESC")
	if err != nil {
		return nil, billing.StoreFailure("list periods", err)
	}
	defer rows.Close()

	var out []billing.EnrollmentPeriod
	for rows.Next() {
		var p billing.EnrollmentPeriod
		if err := rows.Scan(&p.ID, &p.SchoolYear, &p.Semester, &p.IsActive); err != nil {
			return nil, billing.StoreFailure("scan period", err)
		}
		out = append(out, p)
	}
	return out, billing.StoreFailure("list periods", rows.Err())
}

// GetEnrollment returns an enrollment or nil.
func (c *conn) GetEnrollment(ctx context.Context, id int64) (*billing.Enrollment, error) {
	var e billing.Enrollment
	var created string
	err := c.queryRow(ctx,
		"SELECT id, student_id, period_id, created_at FROM enrollments WHERE id = ?", id,
	).Scan(&e.ID, &e.StudentID, &e.PeriodID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get enrollment", err)
	}
	e.CreatedAt = parseTime(created)
	return &e, nil
}

// ListEnrollments returns a student's enrollments, oldest first.
func (c *conn) ListEnrollments(ctx context.Context, studentID int64) ([]billing.Enrollment, error) {
	rows, err := c.query(ctx,
		"SELECT id, student_id, period_id, created_at FROM enrollments WHERE student_id = ? ORDER BY created_at, id",
		studentID)
	if err != nil {
		return nil, billing.StoreFailure("list enrollments", err)
	}
	defer rows.Close()

	var out []billing.Enrollment
	for rows.Next() {
		var e billing.Enrollment
		var created string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.PeriodID, &created); err != nil {
			return nil, billing.StoreFailure("scan enrollment", err)
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, billing.StoreFailure("list enrollments", rows.Err())
}

// =============================================================================
// CATALOGUE AND USERS
// =============================================================================

// ListFeeTypes returns active fee types by name.
func (c *conn) ListFeeTypes(ctx context.Context) ([]billing.FeeType, error) {
	rows, err := c.query(ctx,
		"SELECT id, fee_name, base_amount, is_active FROM fee_types WHERE is_active ORDER BY fee_name")
	if err != nil {
		return nil, billing.StoreFailure("list fee types", err)
	}
	defer rows.Close()

	var out []billing.FeeType
	for rows.Next() {
		var f billing.FeeType
		if err := rows.Scan(&f.ID, &f.Name, &f.BaseAmount, &f.IsActive); err != nil {
			return nil, billing.StoreFailure("scan fee type", err)
		}
		out = append(out, f)
	}
	return out, billing.StoreFailure("list fee types", rows.Err())
}

// GetUserByUsername returns a user or nil.
func (c *conn) GetUserByUsername(ctx context.Context, username string) (*billing.User, error) {
	var u billing.User
	var studentID sql.NullInt64
	err := c.queryRow(ctx,
		"SELECT id, username, password_hash, role, student_id FROM users WHERE username = ?", username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get user", err)
	}
	u.StudentID = intPtr(studentID)
	return &u, nil
}

// =============================================================================
// SEEDING - used by enrollment tooling and demo scenarios
// =============================================================================

// InsertProgram stores a program and sets its id.
func (c *conn) InsertProgram(ctx context.Context, p *billing.Program) error {
	id, err := c.insert(ctx, "INSERT INTO programs (code, name) VALUES (?, ?)", p.Code, p.Name)
	if err != nil {
		return billing.StoreFailure("insert program", err)
	}
	p.ID = id
	return nil
}

// InsertStudent stores a student and sets its id.
func (c *conn) InsertStudent(ctx context.Context, st *billing.Student) error {
	var program sql.NullInt64
	if st.ProgramID > 0 {
		program = sql.NullInt64{Int64: st.ProgramID, Valid: true}
	}
	status := st.Status
	if status == "" {
		status = "Active"
	}
	id, err := c.insert(ctx, `
		INSERT INTO students (student_number, first_name, last_name, email, phone, program_id,
			year_level, section, admission_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.StudentNumber, st.FirstName, st.LastName, st.Email, st.Phone, program,
		st.YearLevel, st.Section, st.AdmissionType, status, formatTS(time.Now()))
	if err != nil {
		return billing.StoreFailure("insert student", err)
	}
	st.ID = id
	st.Status = status
	return nil
}

// InsertPeriod stores an enrollment period. Activating a period
// deactivates the others.
func (c *conn) InsertPeriod(ctx context.Context, p *billing.EnrollmentPeriod) error {
	if p.IsActive {
		if _, err := c.exec(ctx, "UPDATE enrollment_periods SET is_active = ?", false); err != nil {
			return billing.StoreFailure("deactivate periods", err)
		}
	}
	id, err := c.insert(ctx,
		"INSERT INTO enrollment_periods (school_year, semester, is_active) VALUES (?, ?, ?)",
		p.SchoolYear, p.Semester, p.IsActive)
	if err != nil {
		return billing.StoreFailure("insert period", err)
	}
	p.ID = id
	return nil
}

// InsertEnrollment stores an enrollment and sets its id.
func (c *conn) InsertEnrollment(ctx context.Context, e *billing.Enrollment) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	id, err := c.insert(ctx,
		"INSERT INTO enrollments (student_id, period_id, created_at) VALUES (?, ?, ?)",
		e.StudentID, e.PeriodID, formatTS(e.CreatedAt))
	if err != nil {
		return billing.StoreFailure("insert enrollment", err)
	}
	e.ID = id
	return nil
}

// InsertFeeType stores a fee type and sets its id.
func (c *conn) InsertFeeType(ctx context.Context, f *billing.FeeType) error {
	id, err := c.insert(ctx,
		"INSERT INTO fee_types (fee_name, base_amount, is_active) VALUES (?, ?, ?)",
		f.Name, money(f.BaseAmount), f.IsActive)
	if err != nil {
		return billing.StoreFailure("insert fee type", err)
	}
	f.ID = id
	return nil
}

// InsertUser stores a user and sets its id.
func (c *conn) InsertUser(ctx context.Context, u *billing.User) error {
	id, err := c.insert(ctx,
		"INSERT INTO users (username, password_hash, role, student_id) VALUES (?, ?, ?, ?)",
		u.Username, u.PasswordHash, u.Role, nullInt(u.StudentID))
	if err != nil {
		return billing.StoreFailure("insert user", err)
	}
	u.ID = id
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
