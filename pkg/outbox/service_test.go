package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, logger.Nop())
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{Role: string(enums.ActorRoleBuyer)},
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, Currency: "THB"},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	rows, err := repo.ListByAggregate(nil, orderID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 || envelope.EventID != rows[0].ID.String() || envelope.Actor == nil {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.EventType != enums.EventOrderCreated || envelope.AggregateID == nil || *envelope.AggregateID != orderID {
		t.Fatalf("envelope missing routing fields %+v", envelope)
	}
	var data payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.OrderID != orderID {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated})
	if err == nil {
		t.Fatal("expected error without tx")
	}
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	orderID := uuid.New()

	cases := map[string]DomainEvent{
		"unknown type":      {EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: orderID, Data: 1},
		"unknown aggregate": {EventType: enums.EventOrderCreated, AggregateType: "cart", AggregateID: orderID, Data: 1},
		"nil aggregate id":  {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Data: 1},
		"no data":           {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: orderID},
	}
	for name, event := range cases {
		if err := svc.Emit(context.Background(), db, event); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	rows, err := NewRepository(db).ListByAggregate(nil, orderID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rejected events must not be stored, got %d rows", len(rows))
	}
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventOrderStateChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"i": i},
			})
		}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	batch, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 pending rows, got %d", len(batch))
	}

	if err := repo.MarkPublishedTx(db, batch[0].ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := repo.MarkFailedTx(db, batch[1].ID, errors.New("transient")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkTerminalTx(db, batch[2].ID, errors.New("poison"), 3); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	remaining, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != batch[1].ID {
		t.Fatalf("expected only the retryable row, got %+v", remaining)
	}
	if remaining[0].AttemptCount != 1 || remaining[0].LastError == nil || *remaining[0].LastError != "transient" {
		t.Fatalf("unexpected failure bookkeeping %+v", remaining[0])
	}
}

func TestDeletePublishedBeforePrunesDeliveredAndDeadRows(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	recent := cutoff.Add(time.Hour)
	aggregate := uuid.New()

	insert := func(createdAt time.Time, publishedAt *time.Time, attempts int) uuid.UUID {
		t.Helper()
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregate,
			Payload:       []byte(`{}`),
			AttemptCount:  attempts,
			PublishedAt:   publishedAt,
			CreatedAt:     createdAt,
		}
		if err := repo.Insert(db, row); err != nil {
			t.Fatalf("insert: %v", err)
		}
		return row.ID
	}

	insert(old, &old, 0)
	insert(old, nil, 10)
	keepRecent := insert(recent, &recent, 0)
	keepPending := insert(old, nil, 2)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, cutoff, 10)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", deleted)
	}

	rows, err := repo.ListByAggregate(nil, aggregate)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	kept := map[uuid.UUID]bool{}
	for _, row := range rows {
		kept[row.ID] = true
	}
	if len(rows) != 2 || !kept[keepRecent] || !kept[keepPending] {
		t.Fatalf("unexpected remaining rows: %+v", kept)
	}
}

func TestTruncateMessageKeepsRunesWhole(t *testing.T) {
	msg := strings.Repeat("a", maxLastErrorLen-1) + "ก"
	got := truncateMessage(msg)
	if len(got) != maxLastErrorLen-1 || !utf8.ValidString(got) {
		t.Fatalf("unexpected truncation: len=%d valid=%v", len(got), utf8.ValidString(got))
	}
	if truncateMessage("short") != "short" {
		t.Fatal("short messages must pass through")
	}
}
