package sqlstore

import (
	"context"

	"github.com/warp/tuition-engine/billing"
)

// Seeder writes the reference rows the engine only reads: programs,
// students, periods, enrollments, fee types and users.
type Seeder interface {
	InsertProgram(ctx context.Context, p *billing.Program) error
	InsertStudent(ctx context.Context, st *billing.Student) error
	InsertPeriod(ctx context.Context, p *billing.EnrollmentPeriod) error
	InsertEnrollment(ctx context.Context, e *billing.Enrollment) error
	InsertFeeType(ctx context.Context, f *billing.FeeType) error
	InsertUser(ctx context.Context, u *billing.User) error
}

var _ Seeder = (*Store)(nil)

// Seed runs fn in one transaction with both the engine store and the
// seeding methods available.
func (s *Store) Seed(ctx context.Context, fn func(billing.Store, Seeder) error) error {
	return s.WithTx(ctx, func(tx billing.Store) error {
		return fn(tx, tx.(*conn))
	})
}
