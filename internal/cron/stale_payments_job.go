package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
)

const defaultPaymentFollowUp = 72 * time.Hour

type awaitingPaymentCounter interface {
	CountAwaitingPayment(ctx context.Context, cutoff time.Time) (map[enums.PaymentStatus]int64, error)
}

// StalePaymentsJobParams configure the awaiting-payment report.
type StalePaymentsJobParams struct {
	Logger   *logger.Logger
	Orders   awaitingPaymentCounter
	Metrics  *metrics.MaintenanceMetrics
	FollowUp time.Duration
}

// stalePaymentsJob reports orders that still wait on payment after the follow-up
// window. It never changes order state; an admin decides what happens next.
type stalePaymentsJob struct {
	logg     *logger.Logger
	orders   awaitingPaymentCounter
	metrics  *metrics.MaintenanceMetrics
	followUp time.Duration
	now      func() time.Time
}

func NewStalePaymentsJob(params StalePaymentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	followUp := params.FollowUp
	if followUp <= 0 {
		followUp = defaultPaymentFollowUp
	}
	return &stalePaymentsJob{
		logg:     params.Logger,
		orders:   params.Orders,
		metrics:  params.Metrics,
		followUp: followUp,
		now:      time.Now,
	}, nil
}

func (j *stalePaymentsJob) Name() string { return "stale-payments" }

func (j *stalePaymentsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.followUp)
	counts, err := j.orders.CountAwaitingPayment(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count awaiting payment: %w", err)
	}

	pending := counts[enums.PaymentStatusPending]
	review := counts[enums.PaymentStatusPendingApproval]
	j.metrics.SetAwaitingPayment(string(enums.PaymentStatusPending), pending)
	j.metrics.SetAwaitingPayment(string(enums.PaymentStatusPendingApproval), review)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"pending":          pending,
		"pending_approval": review,
	})
	if pending+review > 0 {
		j.logg.Warn(logCtx, "orders awaiting payment past follow-up window")
		return nil
	}
	j.logg.Info(logCtx, "no stale orders awaiting payment")
	return nil
}
