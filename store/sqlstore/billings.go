package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/warp/tuition-engine/billing"
)

const billingSelect = `
	SELECT id, student_id, period_id, description, amount, due_date, status, reference, created_at
	FROM ad_hoc_billings`

func scanBilling(r rowScanner) (billing.AdHocBilling, error) {
	var b billing.AdHocBilling
	var period sql.NullInt64
	var reference sql.NullString
	var status, due, created string
	err := r.Scan(&b.ID, &b.StudentID, &period, &b.Description, &b.Amount, &due, &status, &reference, &created)
	b.PeriodID = intPtr(period)
	b.Reference = reference.String
	b.Status = billing.BillingStatus(status)
	b.DueDate = parseTime(due)
	b.CreatedAt = parseTime(created)
	return b, err
}

// GetBilling returns a billing or nil.
func (c *conn) GetBilling(ctx context.Context, id int64) (*billing.AdHocBilling, error) {
	b, err := scanBilling(c.queryRow(ctx, billingSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, billing.StoreFailure("get billing", err)
	}
	return &b, nil
}

// ListBillings returns billings in creation order.
func (c *conn) ListBillings(ctx context.Context, f billing.BillingFilter) ([]billing.AdHocBilling, error) {
	var where []string
	var args []any
	if f.StudentID > 0 {
		where = append(where, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.PeriodID > 0 {
		where = append(where, "period_id = ?")
		args = append(args, f.PeriodID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := billingSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, billing.StoreFailure("list billings", err)
	}
	defer rows.Close()

	var out []billing.AdHocBilling
	for rows.Next() {
		b, err := scanBilling(rows)
		if err != nil {
			return nil, billing.StoreFailure("scan billing", err)
		}
		out = append(out, b)
	}
	return out, billing.StoreFailure("list billings", rows.Err())
}

// BillingReferenceExists reports whether a reference is taken.
func (c *conn) BillingReferenceExists(ctx context.Context, reference string) (bool, error) {
	ok, err := c.exists(ctx, "SELECT 1 FROM ad_hoc_billings WHERE reference = ?", reference)
	return ok, billing.StoreFailure("check billing reference", err)
}

// InsertBilling stores a billing and sets its id.
func (c *conn) InsertBilling(ctx context.Context, b *billing.AdHocBilling) error {
	id, err := c.insert(ctx, `
		INSERT INTO ad_hoc_billings (student_id, period_id, description, amount, due_date, status, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.StudentID, nullInt(b.PeriodID), b.Description, money(b.Amount),
		formatDate(b.DueDate), string(b.Status), nullString(b.Reference), formatTS(b.CreatedAt))
	if err != nil {
		if _, dup := uniqueViolation(err); dup {
			return billing.ErrDuplicateReference
		}
		return billing.StoreFailure("insert billing", err)
	}
	b.ID = id
	return nil
}

// SetBillingStatus changes the status of a billing.
func (c *conn) SetBillingStatus(ctx context.Context, id int64, status billing.BillingStatus) error {
	res, err := c.exec(ctx, "UPDATE ad_hoc_billings SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return billing.StoreFailure("update billing", err)
	}
	return requireRow(res, "Billing", id)
}
