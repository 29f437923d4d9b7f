package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/tuition-engine/billing"
)

// Payments are append-only: this file has no UPDATE or DELETE.

const paymentSelect = `
	SELECT p.id, p.assessment_id, e.student_id, p.or_number, p.payment_date, p.amount_paid,
	       p.payment_mode, p.reference_number, p.remarks, p.received_by, p.idempotency_key, p.created_at
	FROM payments p
	JOIN assessments a ON a.id = p.assessment_id
	JOIN enrollments e ON e.id = a.enrollment_id`

func scanPayment(r rowScanner) (billing.Payment, error) {
	var p billing.Payment
	var paid, created string
	err := r.Scan(&p.ID, &p.AssessmentID, &p.StudentID, &p.ORNumber, &paid, &p.AmountPaid,
		&p.PaymentMode, &p.Reference, &p.Remarks, &p.ReceivedBy, &p.IdempotencyKey, &created)
	p.PaymentDate = parseTime(paid)
	p.CreatedAt = parseTime(created)
	return p, err
}

func (c *conn) getPayment(ctx context.Context, query string, args ...any) (*billing.Payment, error) {
	p, err := scanPayment(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get payment", err)
	}
	return &p, nil
}

// GetPayment returns a payment or nil.
func (c *conn) GetPayment(ctx context.Context, id int64) (*billing.Payment, error) {
	return c.getPayment(ctx, paymentSelect+" WHERE p.id = ?", id)
}

// PaymentByIdempotencyKey returns the payment written with key, or nil.
func (c *conn) PaymentByIdempotencyKey(ctx context.Context, key string) (*billing.Payment, error) {
	return c.getPayment(ctx, paymentSelect+" WHERE p.idempotency_key = ?", key)
}

// ReceiptExists reports whether an OR number is taken.
func (c *conn) ReceiptExists(ctx context.Context, orNumber string) (bool, error) {
	ok, err := c.exists(ctx, "SELECT 1 FROM payments WHERE or_number = ?", orNumber)
	return ok, billing.StoreFailure("check receipt", err)
}

// ListPayments returns payments in payment date order, ties by id.
func (c *conn) ListPayments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, error) {
	var where []string
	var args []any
	if f.StudentID > 0 {
		where = append(where, "e.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.AssessmentID > 0 {
		where = append(where, "p.assessment_id = ?")
		args = append(args, f.AssessmentID)
	}
	if f.Mode != "" {
		where = append(where, "p.payment_mode = ?")
		args = append(args, f.Mode)
	}
	if !f.From.IsZero() {
		where = append(where, "p.payment_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "p.payment_date <= ?")
		args = append(args, formatDate(f.To))
	}

	query := paymentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.payment_date, p.id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, billing.StoreFailure("list payments", err)
	}
	defer rows.Close()

	var out []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan payment", err)
		}
		out = append(out, p)
	}
	return out, billing.StoreFailure("list payments", rows.Err())
}

// InsertPayment appends a payment and sets its id.
func (c *conn) InsertPayment(ctx context.Context, p *billing.Payment) error {
	id, err := c.insert(ctx, `
		INSERT INTO payments (assessment_id, or_number, payment_date, amount_paid, payment_mode,
			reference_number, remarks, received_by, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.AssessmentID, p.ORNumber, formatDate(p.PaymentDate), money(p.AmountPaid), p.PaymentMode,
		p.Reference, p.Remarks, p.ReceivedBy, p.IdempotencyKey, formatTS(p.CreatedAt))
	if err != nil {
		if which, dup := uniqueViolation(err); dup {
			if strings.Contains(which, "idempotency") {
				return fmt.Errorf("%w: %s", billing.ErrDuplicateIdempotencyKey, p.IdempotencyKey)
			}
			return &billing.StoreError{Op: "insert payment", Err: billing.ErrDuplicateReceipt}
		}
		return billing.StoreFailure("insert payment", err)
	}
	p.ID = id
	return nil
}
