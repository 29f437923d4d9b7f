package billing

import (
	"fmt"
	"math/rand"
	"time"
)

// ReceiptGenerator produces official receipt numbers of the form
// PREFIX + YYYYMMDD + five random digits, e.g. RCP2025011500042.
// Uniqueness is enforced by the store; callers retry on collision.
type ReceiptGenerator struct {
	Prefix string
	Intn   func(n int) int
}

// NewReceiptGenerator returns a generator using math/rand.
func NewReceiptGenerator(prefix string) *ReceiptGenerator {
	if prefix == "" {
		prefix = "RCP"
	}
	return &ReceiptGenerator{Prefix: prefix, Intn: rand.Intn}
}

// Next returns a candidate receipt number for day.
func (g *ReceiptGenerator) Next(day time.Time) string {
	return fmt.Sprintf("%s%s%05d", g.Prefix, day.Format("20060102"), g.Intn(99999)+1)
}
