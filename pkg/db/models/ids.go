package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order; used for sqlite auto-migration.
func All() []any {
	return []any{
		&Component{},
		&InventoryItem{},
		&Build{},
		&BuildPart{},
		&SavedAddress{},
		&Order{},
		&OrderLineItem{},
		&OrderTransition{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
