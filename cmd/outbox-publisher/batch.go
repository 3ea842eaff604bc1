package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDead
	outcomeHeld
)

// batchReport summarises one pass over the outbox.
type batchReport struct {
	fetched   int
	published int
	retried   int
	dead      int
	held      int
	// failures combines every publish error seen in the batch.
	failures error
}

// inflight is a row whose message has been handed to Pub/Sub.
type inflight struct {
	event  models.OutboxEvent
	topic  string
	key    string
	pub    publisher
	result publishResult
}

// processBatch locks a page of unpublished rows, publishes them and records
// each result in the same transaction. Publishes are issued up front so the
// client can batch them, then awaited in row order. Once one event of an
// order fails, that order's later events in the page are held untouched so
// subscribers never see them out of sequence.
func (s *Service) processBatch(ctx context.Context) (batchReport, error) {
	var report batchReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		report = batchReport{fetched: len(events)}
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			item, err := s.send(publishCtx, event)
			if err != nil {
				report.failures = multierr.Append(report.failures, err)
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err); err != nil {
					return err
				}
				report.dead++
				continue
			}
			pending = append(pending, item)
		}

		stalled := map[string]publisher{}
		for _, item := range pending {
			if _, blocked := stalled[item.key]; blocked && item.key != "" {
				report.held++
				s.logg.Info(s.logg.WithFields(ctx, s.fields(item.event, item.topic)), "outbox event held behind failed order event")
				continue
			}

			_, pubErr := item.result.Get(publishCtx)
			switch s.classify(item.event, pubErr) {
			case outcomePublished:
				if err := s.repo.MarkPublishedTx(tx, item.event.ID); err != nil {
					return fmt.Errorf("mark published %s: %w", item.event.ID, err)
				}
				s.metrics.IncPublished(string(item.event.EventType))
				report.published++
				continue
			case outcomeDead:
				reason := enums.OutboxDLQReasonMaxAttempts
				if isNonRetryable(pubErr) {
					reason = enums.OutboxDLQReasonNonRetryable
				}
				if err := s.deadLetter(ctx, tx, item.event, reason, pubErr); err != nil {
					return err
				}
				report.dead++
			default:
				fields := s.fields(item.event, item.topic)
				fields["attempt_count"] = item.event.AttemptCount + 1
				fields["error"] = pubErr.Error()
				s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
				if err := s.repo.MarkFailedTx(tx, item.event.ID, pubErr); err != nil {
					return fmt.Errorf("mark failure %s: %w", item.event.ID, err)
				}
				s.metrics.IncFailed(string(item.event.EventType))
				report.retried++
			}
			report.failures = multierr.Append(report.failures, fmt.Errorf("%s %s: %w", item.event.EventType, item.event.ID, pubErr))
			if item.key != "" {
				stalled[item.key] = item.pub
			}
		}

		for key, pub := range stalled {
			pub.ResumePublish(key)
		}
		return nil
	})
	if err == nil && report.fetched > 0 {
		s.logBatch(ctx, report)
	}
	return report, err
}

// send resolves the row and hands it to its topic's publisher. Errors returned
// here are never worth retrying.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) (inflight, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return inflight{}, err
	}
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return inflight{}, registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	msg := &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	}
	if event.AggregateType == enums.AggregateOrder {
		msg.OrderingKey = event.AggregateID.String()
	}
	result := pub.Publish(ctx, msg)
	if result == nil {
		return inflight{}, registry.NewNonRetryableError(fmt.Errorf("publisher for %q returned no result", topic))
	}
	return inflight{event: event, topic: topic, key: msg.OrderingKey, pub: pub, result: result}, nil
}

func (s *Service) classify(event models.OutboxEvent, err error) outcome {
	switch {
	case err == nil:
		return outcomePublished
	case isNonRetryable(err), event.AttemptCount+1 >= s.maxAttempts:
		return outcomeDead
	default:
		return outcomeRetry
	}
}

func isNonRetryable(err error) bool {
	var nonRetry registry.NonRetryableError
	return errors.As(err, &nonRetry)
}

// deadLetter copies the row into the DLQ and parks it at the attempt ceiling so
// the fetch query skips it from now on.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if reason == enums.OutboxDLQReasonMaxAttempts {
		cause = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, cause)
	}
	fields := s.fields(event, "")
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	msg := cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDLQ(string(event.EventType), string(reason))
	return nil
}

// messageAttributes lets subscribers route and dedupe without decoding the
// payload. event_id is the outbox row id.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if event.AggregateType == enums.AggregateOrder {
		attrs["order_id"] = event.AggregateID.String()
	}
	if resolved != nil && resolved.Envelope.Actor != nil && resolved.Envelope.Actor.Role != "" {
		attrs["actor_role"] = resolved.Envelope.Actor.Role
	}
	return attrs
}

func (s *Service) fields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"order_id":      event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func (s *Service) logBatch(ctx context.Context, report batchReport) {
	fields := map[string]any{
		"fetched":   report.fetched,
		"published": report.published,
		"retried":   report.retried,
		"dead":      report.dead,
		"held":      report.held,
	}
	if errs := multierr.Errors(report.failures); len(errs) > 0 {
		fields["failure_count"] = len(errs)
		fields["first_failure"] = errs[0].Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox batch finished with failures")
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox batch finished")
}
