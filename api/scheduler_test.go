package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tuition-engine/billing"
)

type fakeAssessor struct {
	calls []time.Time
	err   error
}

func (f *fakeAssessor) AssessPenalties(_ context.Context, asOf time.Time) (*billing.PenaltyRun, error) {
	f.calls = append(f.calls, asOf)
	if f.err != nil {
		return nil, f.err
	}
	return &billing.PenaltyRun{AsOf: asOf, Assessed: 2, Skipped: 1, Total: decimal.NewFromInt(200)}, nil
}

func TestPenaltyScheduler_RunNow(t *testing.T) {
	fake := &fakeAssessor{}
	ps, err := NewPenaltyScheduler(fake, nil, "0 1 * * *")
	require.NoError(t, err)
	ps.Now = func() time.Time { return testNow }

	ps.RunNow()
	require.Len(t, fake.calls, 1)
	assert.Equal(t, testNow, fake.calls[0])

	run, err := ps.LastRun()
	require.NoError(t, err)
	assert.Equal(t, 2, run.Assessed)

	fake.err = errors.New("database is locked")
	ps.RunNow()
	run, err = ps.LastRun()
	assert.Nil(t, run)
	assert.EqualError(t, err, "database is locked")
}

func TestPenaltyScheduler_StartStop(t *testing.T) {
	ps, err := NewPenaltyScheduler(&fakeAssessor{}, nil, "@every 1h")
	require.NoError(t, err)
	ps.Start()
	assert.True(t, ps.NextRun().After(time.Now()))
	ps.Stop()
}

func TestPenaltyScheduler_InvalidSpec(t *testing.T) {
	_, err := NewPenaltyScheduler(&fakeAssessor{}, nil, "every tuesday")
	assert.ErrorIs(t, err, billing.ErrValidation)
}
