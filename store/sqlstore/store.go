/*
Package sqlstore provides the relational implementation of billing.TxStore.

PURPOSE:
  One database/sql implementation serving two dialects: SQLite (default,
  tests, single-node deployments) and PostgreSQL (pgx stdlib driver).
  Queries are written once with ? placeholders and rebound to $n for
  PostgreSQL.

KEY TABLES:
  students, programs, enrollment_periods, enrollments
  assessments, assessment_details
  payments            (append-only; unique or_number and idempotency_key)
  scholarships, student_scholarships
  ad_hoc_billings     (unique reference when set)
  fee_types, users

STORAGE FORMATS:
  - Amounts: TEXT on SQLite, NUMERIC(14,2) on PostgreSQL; scanned into
    decimal.Decimal on both
  - Dates: TEXT "YYYY-MM-DD"; timestamps: TEXT RFC 3339 in UTC

CONCURRENCY:
  SQLite runs on a single connection and WithTx holds a process-wide
  mutex, so transactions are serialised. PostgreSQL relies on row locks:
  LockAssessment issues SELECT ... FOR UPDATE.

USAGE:
  store, err := sqlstore.OpenSQLite("./data/tuition.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: interface definitions
  - schema.go: DDL per dialect
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/tuition-engine/billing"
)

// Dialect selects SQL flavour differences.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements billing.Store against a querier. The top-level Store
// and the per-transaction store share it.
type conn struct {
	q       querier
	dialect Dialect
	inTx    bool
}

// Store implements billing.TxStore.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

var _ billing.TxStore = (*Store)(nil)

// Open opens a store for the named driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(dsn)
	}
	return nil, fmt.Errorf("unknown database driver %q", driver)
}

// OpenSQLite opens (and migrates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serialises writers and keeps :memory: databases whole.
	db.SetMaxOpenConns(1)
	return newStore(db, SQLite)
}

// OpenPostgres opens (and migrates) a PostgreSQL database through pgx.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newStore(db, Postgres)
}

func newStore(db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{conn: conn{q: db, dialect: d}, db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for metrics collectors.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside one database transaction. fn's error rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	if s.dialect == SQLite {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.StoreFailure("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return billing.StoreFailure("commit transaction", err)
	}
	return nil
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (c *conn) rebind(query string) string {
	if c.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id and returns the id.
func (c *conn) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := c.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}

// exists runs a SELECT 1 query.
func (c *conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := c.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339Nano
)

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }
func formatTS(t time.Time) string   { return t.UTC().Format(tsLayout) }

func parseTime(s string) time.Time {
	for _, layout := range []string{tsLayout, dateLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// uniqueViolation reports whether err is a unique constraint failure and
// returns the driver text naming the column or index.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return sqliteErr.Error(), true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
