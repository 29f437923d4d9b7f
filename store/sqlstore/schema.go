package sqlstore

import (
	"context"
	"strings"
)

// Column types that differ between dialects are templated:
//
//	{{PK}}     primary key column
//	{{MONEY}}  amount column
//	{{BOOL}}   boolean column
const schema = `
CREATE TABLE IF NOT EXISTS programs (
	id {{PK}},
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id {{PK}},
	student_number TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	program_id BIGINT REFERENCES programs(id),
	year_level TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	admission_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Active',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollment_periods (
	id {{PK}},
	school_year TEXT NOT NULL,
	semester TEXT NOT NULL,
	is_active {{BOOL}} NOT NULL DEFAULT {{FALSE}},
	UNIQUE (school_year, semester)
);

CREATE TABLE IF NOT EXISTS enrollments (
	id {{PK}},
	student_id BIGINT NOT NULL REFERENCES students(id),
	period_id BIGINT NOT NULL REFERENCES enrollment_periods(id),
	created_at TEXT NOT NULL,
	UNIQUE (student_id, period_id)
);

CREATE TABLE IF NOT EXISTS assessments (
	id {{PK}},
	enrollment_id BIGINT NOT NULL UNIQUE REFERENCES enrollments(id),
	total_assessment {{MONEY}} NOT NULL,
	discount_amount {{MONEY}} NOT NULL,
	net_amount {{MONEY}} NOT NULL,
	due_date TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_details (
	id {{PK}},
	assessment_id BIGINT NOT NULL REFERENCES assessments(id),
	fee_type TEXT NOT NULL,
	amount {{MONEY}} NOT NULL,
	is_tuition {{BOOL}} NOT NULL DEFAULT {{FALSE}}
);

CREATE INDEX IF NOT EXISTS idx_assessment_details_assessment
	ON assessment_details(assessment_id);

-- Payments are append-only.
CREATE TABLE IF NOT EXISTS payments (
	id {{PK}},
	assessment_id BIGINT NOT NULL REFERENCES assessments(id),
	or_number TEXT NOT NULL,
	payment_date TEXT NOT NULL,
	amount_paid {{MONEY}} NOT NULL,
	payment_mode TEXT NOT NULL,
	reference_number TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT '',
	received_by BIGINT NOT NULL DEFAULT 0,
	idempotency_key TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_or_number
	ON payments(or_number);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency_key
	ON payments(idempotency_key);
CREATE INDEX IF NOT EXISTS idx_payments_assessment
	ON payments(assessment_id);
CREATE INDEX IF NOT EXISTS idx_payments_date
	ON payments(payment_date);

CREATE TABLE IF NOT EXISTS scholarships (
	id {{PK}},
	scholarship_name TEXT NOT NULL,
	scholarship_type TEXT NOT NULL,
	discount_percentage {{MONEY}} NOT NULL,
	discount_amount {{MONEY}} NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	requirements TEXT NOT NULL DEFAULT '',
	is_active {{BOOL}} NOT NULL DEFAULT {{TRUE}},
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS student_scholarships (
	id {{PK}},
	student_id BIGINT NOT NULL REFERENCES students(id),
	scholarship_id BIGINT NOT NULL REFERENCES scholarships(id),
	period_id BIGINT NOT NULL REFERENCES enrollment_periods(id),
	status TEXT NOT NULL,
	remarks TEXT NOT NULL DEFAULT '',
	granted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_student_scholarships_lookup
	ON student_scholarships(student_id, period_id, status);

CREATE TABLE IF NOT EXISTS ad_hoc_billings (
	id {{PK}},
	student_id BIGINT NOT NULL REFERENCES students(id),
	period_id BIGINT REFERENCES enrollment_periods(id),
	description TEXT NOT NULL,
	amount {{MONEY}} NOT NULL,
	due_date TEXT NOT NULL,
	status TEXT NOT NULL,
	reference TEXT,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ad_hoc_billings_reference
	ON ad_hoc_billings(reference);
CREATE INDEX IF NOT EXISTS idx_ad_hoc_billings_student
	ON ad_hoc_billings(student_id, status);

CREATE TABLE IF NOT EXISTS fee_types (
	id {{PK}},
	fee_name TEXT NOT NULL UNIQUE,
	base_amount {{MONEY}} NOT NULL,
	is_active {{BOOL}} NOT NULL DEFAULT {{TRUE}}
);

CREATE TABLE IF NOT EXISTS users (
	id {{PK}},
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	student_id BIGINT REFERENCES students(id)
);
`

// tables in dependency order, children first.
var tables = []string{
	"users",
	"fee_types",
	"ad_hoc_billings",
	"student_scholarships",
	"scholarships",
	"payments",
	"assessment_details",
	"assessments",
	"enrollments",
	"enrollment_periods",
	"students",
	"programs",
}

func (s *Store) ddl() string {
	var r *strings.Replacer
	if s.dialect == Postgres {
		r = strings.NewReplacer(
			"{{PK}}", "BIGSERIAL PRIMARY KEY",
			"{{MONEY}}", "NUMERIC(14,2)",
			"{{BOOL}}", "BOOLEAN",
			"{{TRUE}}", "TRUE",
			"{{FALSE}}", "FALSE",
		)
	} else {
		r = strings.NewReplacer(
			"{{PK}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{MONEY}}", "TEXT",
			"{{BOOL}}", "INTEGER",
			"{{TRUE}}", "1",
			"{{FALSE}}", "0",
		)
	}
	return r.Replace(schema)
}

// migrate creates the schema. Statements run one at a time so the same
// script works on drivers without multi-statement Exec.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(s.ddl()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Reset deletes every row and restarts id sequences. Used by the demo
// scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.dialect == Postgres {
		stmt := "TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		return tx.Commit()
	}

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence"); err != nil {
		return err
	}
	return tx.Commit()
}
