package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/logger"
)

type fakeOutboxPruner struct {
	cutoff       time.Time
	deadAttempts int
	calls        int
	err          error
}

func (f *fakeOutboxPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, deadAttempts int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.deadAttempts = deadAttempts
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func TestOutboxRetentionUsesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: repo})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, repo.calls)
	require.Equal(t, now.Add(-defaultOutboxRetention), repo.cutoff)
	require.Equal(t, defaultDeadAttempts, repo.deadAttempts)
}

func TestOutboxRetentionHonorsConfiguration(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:       logger.Nop(),
		Repository:   repo,
		Retention:    72 * time.Hour,
		DeadAttempts: 3,
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-72*time.Hour), repo.cutoff)
	require.Equal(t, 3, repo.deadAttempts)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		Repository: &fakeOutboxPruner{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "outbox retention")
}

func TestOutboxRetentionRequiresRepository(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}
