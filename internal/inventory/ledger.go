package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/internal/repo"
	pkgdb "github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

// Shortage describes one component that cannot cover its requested quantity.
type Shortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Required  int       `json:"required"`
	Available int       `json:"available"`
}

// Ledger is the only writer of inventory_items.quantity.
type Ledger struct {
	base repo.Base
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{base: repo.NewBase(db)}
}

// ApplyDeltas adds every non-zero delta to its product's quantity inside one transaction.
// Rows are touched in ascending product id order. The first failing row aborts the batch.
func (l *Ledger) ApplyDeltas(ctx context.Context, tx *gorm.DB, deltas map[uuid.UUID]int) error {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id, delta := range deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return l.base.Transaction(ctx, tx, func(tx *gorm.DB) error {
		for _, id := range ids {
			delta := deltas[id]
			res := tx.Exec(`
				UPDATE inventory_items
				SET quantity = quantity + ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE product_id = ? AND quantity + ? >= 0
			`, delta, id, delta)
			if res.Error != nil {
				if pkgerrors.IsCheckViolation(res.Error) {
					return pkgerrors.Wrap(pkgerrors.CodeStockConflict, res.Error, "insufficient stock")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust inventory")
			}
			if res.RowsAffected == 1 {
				continue
			}
			return probe(tx, id, delta)
		}
		return nil
	})
}

func probe(tx *gorm.DB, id uuid.UUID, delta int) error {
	var item models.InventoryItem
	err := tx.Where("product_id = ?", id).First(&item).Error
	if pkgdb.IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeDataInconsistency, "inventory record missing for product %s", id)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "probe inventory")
	}
	return pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock").
		WithDetails([]Shortage{{ProductID: id, Required: -delta, Available: item.Quantity}})
}

// Quantities loads inventory records keyed by product id. Missing products are absent from the map.
func (l *Ledger) Quantities(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.InventoryItem, error) {
	out := make(map[uuid.UUID]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.InventoryItem
	if err := l.base.Conn(ctx, tx).Where("product_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	for _, row := range rows {
		out[row.ProductID] = row
	}
	return out, nil
}

// Requirements aggregates the units each component needs across the order's lines.
// BUILD lines contribute part quantity × line quantity.
func Requirements(lines []models.OrderLineItem) map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, line := range lines {
		if line.ItemType == enums.LineItemTypeBuild {
			for _, part := range line.ContainedItems {
				out[part.ComponentID] += part.Quantity * line.Quantity
			}
			continue
		}
		out[line.ProductID] += line.Quantity
	}
	return out
}

// Decrement negates a requirement map into ledger deltas.
func Decrement(req map[uuid.UUID]int) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(req))
	for id, qty := range req {
		out[id] = -qty
	}
	return out
}

// Missing lists the required products that have no inventory record, ordered by product id.
func Missing(req map[uuid.UUID]int, stock map[uuid.UUID]models.InventoryItem) []uuid.UUID {
	var out []uuid.UUID
	for id := range req {
		if _, ok := stock[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Shortages compares requirements with loaded stock, ordered by product id.
func Shortages(req map[uuid.UUID]int, stock map[uuid.UUID]models.InventoryItem) []Shortage {
	var out []Shortage
	for id, qty := range req {
		available := 0
		if item, ok := stock[id]; ok {
			available = item.Quantity
		}
		if available < qty {
			out = append(out, Shortage{ProductID: id, Required: qty, Available: available})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out
}
