package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/computers-backend/pkg/outbox/registry"
)

func TestProcessBatchFailureOnOneOrderDoesNotBlockAnother(t *testing.T) {
	first, second := orderEvent(t, uuid.New(), 0), orderEvent(t, uuid.New(), 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("unavailable"), nil}}
	svc := newTestService(t, repo, pub, resolvingRegistry(), &fakeDLQRepo{}, nil)

	report, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.fetched)
	require.Equal(t, 1, report.published)
	require.Equal(t, 1, report.retried)
	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, repo.published)
	require.Equal(t, []string{first.AggregateID.String()}, pub.resumed)
	require.Error(t, report.failures)
}

func TestProcessBatchHoldsLaterEventsOfFailedOrder(t *testing.T) {
	orderID := uuid.New()
	created := orderEvent(t, orderID, 0)
	paid := orderEvent(t, orderID, 0)
	paid.EventType = enums.EventOrderStateChanged
	other := orderEvent(t, uuid.New(), 0)

	repo := &fakeRepo{events: []models.OutboxEvent{created, paid, other}}
	pub := &fakePublisher{errs: []error{errors.New("deadline exceeded"), nil, nil}}
	svc := newTestService(t, repo, pub, resolvingRegistry(), &fakeDLQRepo{}, &config.OutboxConfig{BatchSize: 3, MaxAttempts: 5})

	report, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.held)
	require.Equal(t, []uuid.UUID{created.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{other.ID}, repo.published)
	require.NotContains(t, repo.published, paid.ID)
	require.Equal(t, []string{orderID.String()}, pub.resumed)
}

func TestProcessBatchSetsOrderingKeyAndAttributes(t *testing.T) {
	orderID := uuid.New()
	event := orderEvent(t, orderID, 0)
	event.EventType = enums.EventOrderStateChanged
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{errs: []error{nil}}
	reg := resolvingRegistry()
	reg.actor = &outbox.ActorRef{Role: "admin"}

	promReg := prometheus.NewRegistry()
	svc := newTestService(t, repo, pub, reg, &fakeDLQRepo{}, nil)
	svc.metrics = metrics.NewOutboxMetrics(promReg)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	require.Equal(t, orderID.String(), msg.OrderingKey)
	require.Equal(t, event.ID.String(), msg.Attributes["event_id"])
	require.Equal(t, orderID.String(), msg.Attributes["order_id"])
	require.Equal(t, string(enums.EventOrderStateChanged), msg.Attributes["event_type"])
	require.Equal(t, "admin", msg.Attributes["actor_role"])
	require.JSONEq(t, string(event.Payload), string(msg.Data))

	require.Equal(t, []uuid.UUID{event.ID}, repo.published)
	mfs, err := promReg.Gather()
	require.NoError(t, err)
	var published float64
	for _, mf := range mfs {
		if mf.GetName() == "outbox_published_total" {
			for _, m := range mf.GetMetric() {
				published += m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(1), published)
}

func TestProcessBatchDeadLettersUnresolvableRows(t *testing.T) {
	event := orderEvent(t, uuid.New(), 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("unsupported event type"))}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub, reg, dlq, nil)

	report, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.dead)
	require.Empty(t, pub.sent)
	require.Len(t, dlq.entries, 1)

	entry := dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.JSONEq(t, string(event.Payload), string(entry.Payload))
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersAtAttemptCeiling(t *testing.T) {
	event := orderEvent(t, uuid.New(), 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{errs: []error{errors.New("unavailable")}}
	svc := newTestService(t, repo, pub, resolvingRegistry(), dlq, &config.OutboxConfig{BatchSize: 1, MaxAttempts: 2})

	report, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.dead)
	require.Empty(t, repo.failed)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.Contains(t, *dlq.entries[0].ErrorMessage, "gave up after 2 attempts")
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersWhenTopicHasNoPublisher(t *testing.T) {
	event := orderEvent(t, uuid.New(), 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, nil, resolvingRegistry(), dlq, nil)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchAbortsWhenMarkFails(t *testing.T) {
	event := orderEvent(t, uuid.New(), 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}, markErr: errors.New("connection reset")}
	pub := &fakePublisher{errs: []error{nil}}
	svc := newTestService(t, repo, pub, resolvingRegistry(), &fakeDLQRepo{}, nil)

	_, err := svc.processBatch(context.Background())
	require.ErrorContains(t, err, "mark published")
}

func TestProcessBatchEmptyOutbox(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, resolvingRegistry(), &fakeDLQRepo{}, nil)

	report, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.fetched)
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, resolvingRegistry(), &fakeDLQRepo{}, &config.OutboxConfig{})
	require.Equal(t, defaultBatchSize, svc.batchSize)
	require.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	require.Equal(t, defaultPollInterval, svc.pollInterval)

	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)
}

func TestPollBackoffCapsAndResets(t *testing.T) {
	b := newPollBackoff(4 * time.Second)
	first := b.failure()
	require.GreaterOrEqual(t, first, 8*time.Second)
	require.Less(t, first, 8*time.Second+jitterWindow)

	capped := b.failure()
	require.GreaterOrEqual(t, capped, maxPollBackoff)
	require.Less(t, capped, maxPollBackoff+jitterWindow)

	b.reset()
	require.Equal(t, 4*time.Second, b.current)
	require.Less(t, b.idle(), 4*time.Second+jitterWindow)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		cfg = *override
	}
	factory := func(string) publisher { return pub }
	if pub == nil {
		factory = func(string) publisher { return nil }
	}
	svc, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: factory,
		DLQRepository:    dlq,
	})
	require.NoError(t, err)
	return svc
}

func orderEvent(t *testing.T, orderID uuid.UUID, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:       1,
		EventID:       id.String(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   &orderID,
		OccurredAt:    time.Now().UTC(),
		Data:          json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func resolvingRegistry() *fakeRegistry {
	return &fakeRegistry{topic: "orders-topic"}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher returns errs in publish order; publishes past the end succeed.
type fakePublisher struct {
	errs    []error
	sent    []*gcppubsub.Message
	resumed []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	var err error
	if i := len(f.sent); i < len(f.errs) {
		err = f.errs[i]
	}
	f.sent = append(f.sent, msg)
	return fakePublishResult{err: err}
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakeRegistry struct {
	topic string
	actor *outbox.ActorRef
	err   error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         f.topic,
		},
		Envelope: outbox.PayloadEnvelope{EventID: event.ID.String(), Actor: f.actor},
		Payload:  &payloads.OrderCreatedEvent{},
	}, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
