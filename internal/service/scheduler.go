package service

import (
	"context"
	"time"

	"lingobridge/internal/constants"

	"github.com/sirupsen/logrus"
)

// AuditCleaner prunes old translation audit records.
type AuditCleaner interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) error
}

// AvatarCleaner removes cached avatar files past their age limit.
type AvatarCleaner interface {
	CleanupOldFiles(maxAge time.Duration) error
}

type Scheduler struct {
	audit         AuditCleaner
	avatars       AvatarCleaner
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(audit AuditCleaner, avatars AvatarCleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultAuditRetentionDays
	}
	return &Scheduler{
		audit:         audit,
		avatars:       avatars,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retentionDays", s.retentionDays).Info("Running scheduled cleanup")

	if s.audit != nil {
		if err := s.audit.CleanupOldRecords(ctx, s.retentionDays); err != nil {
			s.logger.WithError(err).Error("Failed to cleanup old audit records")
		}
	}

	if s.avatars != nil {
		maxAge := time.Duration(s.retentionDays) * 24 * time.Hour
		if err := s.avatars.CleanupOldFiles(maxAge); err != nil {
			s.logger.WithError(err).Error("Failed to cleanup old avatar files")
		}
	}
}
