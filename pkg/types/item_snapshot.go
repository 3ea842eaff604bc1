package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemSnapshot freezes one component inside a build at order time.
type ItemSnapshot struct {
	ComponentID        uuid.UUID       `json:"component_id"`
	Name               string          `json:"name"`
	MPN                string          `json:"mpn"`
	Quantity           int             `json:"quantity"`
	PriceAtTimeOfOrder decimal.Decimal `json:"price_at_time_of_order"`
}

// ItemSnapshots is the contained_items column of a build line.
type ItemSnapshots []ItemSnapshot

// UnitTotal sums price × quantity for one unit of the build.
func (s ItemSnapshots) UnitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s {
		total = total.Add(item.PriceAtTimeOfOrder.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
