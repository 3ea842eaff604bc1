package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDeadAttempts    = 10
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, deadAttempts int) (int64, error)
}

// OutboxRetentionJobParams configure outbox pruning. DeadAttempts should match the
// publisher's attempt ceiling so only dead-lettered rows are removed.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   outboxPruner
	Metrics      *metrics.MaintenanceMetrics
	Retention    time.Duration
	DeadAttempts int
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxPruner
	metrics      *metrics.MaintenanceMetrics
	retention    time.Duration
	deadAttempts int
	now          func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	deadAttempts := params.DeadAttempts
	if deadAttempts <= 0 {
		deadAttempts = defaultDeadAttempts
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		metrics:      params.Metrics,
		retention:    retention,
		deadAttempts: deadAttempts,
		now:          time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(ctx, nil, cutoff, j.deadAttempts)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.metrics.AddOutboxPruned(deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"dead_attempts": j.deadAttempts,
		"rows_deleted":  deleted,
	}), "outbox retention complete")
	return nil
}
