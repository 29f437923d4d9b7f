/*
statement.go - Chronological account statement

PURPOSE:
  Turns a student's charges and credits into an ordered list of rows with
  a running balance, the way a bank statement reads.

ORDERING:
  Rows are sorted by calendar day. Same-day rows keep creation order
  (CreatedAt, then charges before credits, then id) so the output is
  deterministic even though dates have day granularity.

RUNNING BALANCE:
  balance[i] = balance[i-1] + charges[i] - payments[i], starting at 0.
  It is always a fold over the filtered rows, never read from storage.

CONSISTENCY:
  The final running balance equals StudentAggregateOf over the same
  assessments, payments and billings.

SEE ALSO:
  - balance.go: StudentAggregateOf
  - export/statement.go: PDF/XLSX rendering of a Statement
*/
package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RowKind distinguishes statement rows.
type RowKind string

const (
	RowAssessment RowKind = "assessment"
	RowBilling    RowKind = "billing"
	RowPayment    RowKind = "payment"
)

// StatementRow is one line of the statement.
type StatementRow struct {
	Date        time.Time
	Kind        RowKind
	SourceID    int64
	Description string
	Charges     decimal.Decimal
	Payments    decimal.Decimal
	Balance     decimal.Decimal

	createdAt time.Time
}

// Statement is the full statement with its summary.
type Statement struct {
	Rows           []StatementRow
	TotalCharges   decimal.Decimal
	TotalPayments  decimal.Decimal
	CurrentBalance decimal.Decimal
}

// StatementInput holds the already-filtered rows of one student.
type StatementInput struct {
	Assessments []Assessment
	Payments    []Payment
	Billings    []AdHocBilling
}

// BuildStatement orders the input and folds the running balance.
// Payments against assessments outside the input are dropped, as are
// billings that are not Active.
func BuildStatement(in StatementInput) Statement {
	included := make(map[int64]bool, len(in.Assessments))
	rows := make([]StatementRow, 0, len(in.Assessments)+len(in.Payments)+len(in.Billings))

	for _, a := range in.Assessments {
		included[a.ID] = true
		rows = append(rows, StatementRow{
			Date:        DateOnly(a.CreatedAt),
			Kind:        RowAssessment,
			SourceID:    a.ID,
			Description: "Assessment",
			Charges:     a.NetAmount,
			Payments:    decimal.Zero,
			createdAt:   a.CreatedAt,
		})
	}
	for _, b := range in.Billings {
		if b.Status != BillingActive {
			continue
		}
		rows = append(rows, StatementRow{
			Date:        DateOnly(b.CreatedAt),
			Kind:        RowBilling,
			SourceID:    b.ID,
			Description: "Billing - " + b.Description,
			Charges:     b.Amount,
			Payments:    decimal.Zero,
			createdAt:   b.CreatedAt,
		})
	}
	for _, p := range in.Payments {
		if !included[p.AssessmentID] {
			continue
		}
		rows = append(rows, StatementRow{
			Date:        DateOnly(p.PaymentDate),
			Kind:        RowPayment,
			SourceID:    p.ID,
			Description: "Payment - " + p.ORNumber,
			Charges:     decimal.Zero,
			Payments:    p.AmountPaid,
			createdAt:   p.CreatedAt,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		if ra, rb := kindRank(a.Kind), kindRank(b.Kind); ra != rb {
			return ra < rb
		}
		return a.SourceID < b.SourceID
	})

	st := Statement{
		Rows:           rows,
		TotalCharges:   decimal.Zero,
		TotalPayments:  decimal.Zero,
		CurrentBalance: decimal.Zero,
	}
	running := decimal.Zero
	for i := range st.Rows {
		running = running.Add(st.Rows[i].Charges).Sub(st.Rows[i].Payments)
		st.Rows[i].Balance = running
		st.TotalCharges = st.TotalCharges.Add(st.Rows[i].Charges)
		st.TotalPayments = st.TotalPayments.Add(st.Rows[i].Payments)
	}
	st.CurrentBalance = running
	return st
}

func kindRank(k RowKind) int {
	switch k {
	case RowAssessment:
		return 0
	case RowBilling:
		return 1
	default:
		return 2
	}
}
