/*
scheduler.go - Automated late payment penalty scheduler

PURPOSE:
  Periodically raises late payment penalties for overdue assessments.
  Each run calls billing.Service.AssessPenalties, which is idempotent per
  assessment and month, so overlapping or repeated runs are harmless.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field cron spec)
  - A run in progress is skipped rather than queued
  - Every run is recorded in metrics and in the log

CONFIGURATION:
  - Spec:    cron expression (default: "0 1 * * *", daily at 01:00)
  - Enabled: penalties.enabled in config (default: false)

USAGE:
  scheduler, err := NewPenaltyScheduler(svc, logger, "0 1 * * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: assess_penalties action (manual run)
  - billing/penalty.go: AssessPenalties
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/metrics"
)

// PenaltyAssessor is the part of the billing service the scheduler drives.
type PenaltyAssessor interface {
	AssessPenalties(ctx context.Context, asOf time.Time) (*billing.PenaltyRun, error)
}

// PenaltyScheduler runs penalty assessment on a cron schedule.
type PenaltyScheduler struct {
	Assessor PenaltyAssessor
	Timeout  time.Duration
	Now      func() time.Time

	log     *zap.Logger
	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	lastRun *billing.PenaltyRun
	lastErr error
}

// NewPenaltyScheduler validates spec and builds a stopped scheduler.
func NewPenaltyScheduler(assessor PenaltyAssessor, log *zap.Logger, spec string) (*PenaltyScheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ps := &PenaltyScheduler{
		Assessor: assessor,
		Timeout:  5 * time.Minute,
		Now:      time.Now,
		log:      log.Named("penalties"),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	id, err := ps.cron.AddFunc(spec, ps.RunNow)
	if err != nil {
		return nil, billing.Invalid("schedule", "Invalid penalty schedule %q: %v", spec, err)
	}
	ps.entryID = id
	return ps, nil
}

// Start begins the scheduler.
func (ps *PenaltyScheduler) Start() {
	ps.cron.Start()
	ps.log.Info("scheduler started", zap.Time("next_run", ps.NextRun()))
}

// Stop stops the scheduler and waits for a running job.
func (ps *PenaltyScheduler) Stop() {
	<-ps.cron.Stop().Done()
	ps.log.Info("scheduler stopped")
}

// NextRun returns when the next scheduled run will occur.
func (ps *PenaltyScheduler) NextRun() time.Time {
	return ps.cron.Entry(ps.entryID).Next
}

// RunNow assesses penalties immediately.
func (ps *PenaltyScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), ps.Timeout)
	defer cancel()

	asOf := ps.Now()
	run, err := ps.Assessor.AssessPenalties(ctx, asOf)

	ps.mu.Lock()
	ps.lastRun, ps.lastErr = run, err
	ps.mu.Unlock()

	if err != nil {
		metrics.ObservePenaltyRun(0, err)
		ps.log.Error("penalty run failed", zap.Time("as_of", asOf), zap.Error(err))
		return
	}
	metrics.ObservePenaltyRun(run.Assessed, nil)
	ps.log.Info("penalty run completed",
		zap.Time("as_of", asOf),
		zap.Int("assessed", run.Assessed),
		zap.Int("skipped", run.Skipped),
		zap.String("total", run.Total.StringFixed(2)))
}

// LastRun returns the outcome of the most recent run.
func (ps *PenaltyScheduler) LastRun() (*billing.PenaltyRun, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.lastRun, ps.lastErr
}
