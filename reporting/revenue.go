package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tuition-engine/billing"
)

// MonthRevenue is one calendar month of collections.
type MonthRevenue struct {
	Month  time.Time // first day of the month, UTC
	Label  string    // "Jan 2025"
	Amount decimal.Decimal
}

// MonthlyRevenue groups payments dated on or after Now minus the revenue
// window into calendar months, oldest first. Months without payments are
// omitted.
func (a *Aggregator) MonthlyRevenue(ctx context.Context) ([]MonthRevenue, error) {
	window := a.RevenueWindow
	if window <= 0 {
		window = DefaultRevenueWindow
	}
	from := billing.DateOnly(a.Now()).AddDate(0, -window, 0)

	payments, err := a.src.ListPayments(ctx, billing.PaymentFilter{From: from})
	if err != nil {
		return nil, err
	}
	return GroupByMonth(payments, from), nil
}

// GroupByMonth buckets payments dated on or after from by calendar month.
func GroupByMonth(payments []billing.Payment, from time.Time) []MonthRevenue {
	buckets := make(map[time.Time]decimal.Decimal)
	for _, p := range payments {
		if p.PaymentDate.Before(from) {
			continue
		}
		month := time.Date(p.PaymentDate.Year(), p.PaymentDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		if cur, ok := buckets[month]; ok {
			buckets[month] = cur.Add(p.AmountPaid)
		} else {
			buckets[month] = p.AmountPaid
		}
	}

	out := make([]MonthRevenue, 0, len(buckets))
	for month, amount := range buckets {
		out = append(out, MonthRevenue{Month: month, Label: month.Format("Jan 2006"), Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// =============================================================================
// PAYMENT REPORT
// =============================================================================

// ReportQuery filters a payment report. Zero dates are open bounds.
type ReportQuery struct {
	From time.Time
	To   time.Time
	Mode string
}

// ModeTotal is the collection of one payment mode.
type ModeTotal struct {
	Mode   string
	Count  int
	Amount decimal.Decimal
}

// PaymentReport lists payments in a date range with totals.
type PaymentReport struct {
	Query      ReportQuery
	Payments   []billing.Payment
	ByMode     []ModeTotal
	TotalCount int
	Total      decimal.Decimal
}

// Payments builds a payment report.
func (a *Aggregator) Payments(ctx context.Context, q ReportQuery) (*PaymentReport, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, billing.Invalid("date_to", "date_to must not be before date_from")
	}
	payments, err := a.src.ListPayments(ctx, billing.PaymentFilter{From: q.From, To: q.To, Mode: q.Mode})
	if err != nil {
		return nil, err
	}

	report := &PaymentReport{Query: q, Payments: payments, Total: decimal.Zero}
	index := make(map[string]int)
	for _, p := range payments {
		i, ok := index[p.PaymentMode]
		if !ok {
			i = len(report.ByMode)
			index[p.PaymentMode] = i
			report.ByMode = append(report.ByMode, ModeTotal{Mode: p.PaymentMode, Amount: decimal.Zero})
		}
		report.ByMode[i].Count++
		report.ByMode[i].Amount = report.ByMode[i].Amount.Add(p.AmountPaid)
		report.TotalCount++
		report.Total = report.Total.Add(p.AmountPaid)
	}
	sort.Slice(report.ByMode, func(i, j int) bool { return report.ByMode[i].Mode < report.ByMode[j].Mode })
	return report, nil
}
