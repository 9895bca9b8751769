package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cityatlas/cityatlas/pkg/audit"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

// Config holds the job schedules. Schedules are cron expressions accepted
// by robfig/cron, including the @hourly/@daily shorthands.
type Config struct {
	InvitationCleanupSchedule string
	AuditSweepSchedule        string
	AuditRetention            time.Duration
}

// Scheduler runs the platform's periodic maintenance jobs: expired
// invitation cleanup and the audit retention sweep. Jobs log failures and
// wait for the next tick; they never crash the process.
type Scheduler struct {
	cron        *cron.Cron
	invitations *tenant.Store
	auditTrail  *audit.DBLogger
	retention   time.Duration
	logger      *observability.Logger
}

// NewScheduler creates a scheduler with the configured jobs registered
func NewScheduler(cfg Config, invitations *tenant.Store, auditTrail *audit.DBLogger, logger *observability.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(),
		invitations: invitations,
		auditTrail:  auditTrail,
		retention:   cfg.AuditRetention,
		logger:      logger,
	}

	if _, err := s.cron.AddFunc(cfg.InvitationCleanupSchedule, func() {
		s.runInvitationCleanup(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule invitation cleanup: %w", err)
	}

	if _, err := s.cron.AddFunc(cfg.AuditSweepSchedule, func() {
		s.runAuditSweep(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule audit sweep: %w", err)
	}

	return s, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("job scheduler stopped")
}

func (s *Scheduler) runInvitationCleanup(ctx context.Context) {
	removed, err := s.invitations.CleanupExpiredInvitations(ctx)
	if err != nil {
		s.logger.WithError(err).Error("invitation cleanup failed")
		return
	}
	s.logger.WithField("removed", removed).Info("invitation cleanup completed")
}

func (s *Scheduler) runAuditSweep(ctx context.Context) {
	removed, err := s.auditTrail.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.WithError(err).Error("audit retention sweep failed")
		return
	}
	s.logger.WithField("removed", removed).Info("audit retention sweep completed")
}
