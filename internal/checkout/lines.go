package checkout

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

// CartLine is one requested cart entry. ProductID is a component id or a build id.
type CartLine struct {
	ItemType  enums.LineItemType
	ProductID uuid.UUID
	Quantity  int
}

func validateLines(lines []CartLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order cannot be created from an empty cart")
	}
	for i, line := range lines {
		if !line.ItemType.IsValid() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: unknown item type %q", i, line.ItemType)
		}
		if line.ProductID == uuid.Nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: product id required", i)
		}
		if line.Quantity < 1 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be at least 1", i)
		}
	}
	return nil
}

// resolveLines turns cart lines into unpriced order line items with catalog snapshots.
func (s *service) resolveLines(ctx context.Context, lines []CartLine) ([]models.OrderLineItem, error) {
	var componentIDs []uuid.UUID
	for _, line := range lines {
		if line.ItemType == enums.LineItemTypeComponent {
			componentIDs = append(componentIDs, line.ProductID)
		}
	}
	components, err := s.catalog.ComponentsByIDs(ctx, componentIDs)
	if err != nil {
		return nil, err
	}

	builds := map[uuid.UUID]*models.Build{}
	out := make([]models.OrderLineItem, 0, len(lines))
	for i, line := range lines {
		item := models.OrderLineItem{
			Position:  i,
			ItemType:  line.ItemType,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		switch line.ItemType {
		case enums.LineItemTypeComponent:
			component, ok := components[line.ProductID]
			if !ok {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "component %s not found", line.ProductID)
			}
			if !component.IsActive {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "component %s is no longer available", line.ProductID)
			}
			item.Name = component.Name
			item.MPN = component.MPN
			item.ImageURL = component.ImageURL
		case enums.LineItemTypeBuild:
			build, ok := builds[line.ProductID]
			if !ok {
				build, err = s.catalog.FindBuild(ctx, line.ProductID)
				if err != nil {
					return nil, err
				}
				builds[line.ProductID] = build
			}
			snapshots, err := snapshotParts(build)
			if err != nil {
				return nil, err
			}
			item.Name = build.Name
			item.ContainedItems = snapshots
		}
		out = append(out, item)
	}
	return out, nil
}

func snapshotParts(build *models.Build) (types.ItemSnapshots, error) {
	if len(build.Parts) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "build %s has no parts", build.ID)
	}
	parts := append([]models.BuildPart(nil), build.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].ComponentID.String() < parts[j].ComponentID.String() })

	out := make(types.ItemSnapshots, 0, len(parts))
	for _, part := range parts {
		if part.Component == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "component %s in build %s not found", part.ComponentID, build.ID)
		}
		if !part.Component.IsActive {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "component %s in build %s is no longer available", part.ComponentID, build.ID)
		}
		if part.Quantity < 1 {
			return nil, pkgerrors.Newf(pkgerrors.CodeDataInconsistency, "build %s lists component %s with quantity %d", build.ID, part.ComponentID, part.Quantity)
		}
		out = append(out, types.ItemSnapshot{
			ComponentID: part.ComponentID,
			Name:        part.Component.Name,
			MPN:         part.Component.MPN,
			Quantity:    part.Quantity,
		})
	}
	return out, nil
}

// priceLines freezes inventory prices into the lines and returns the subtotal.
// Every referenced product must be present in stock; shortages are checked first.
func priceLines(lines []models.OrderLineItem, stock map[uuid.UUID]models.InventoryItem) decimal.Decimal {
	subtotal := decimal.Zero
	for i := range lines {
		line := &lines[i]
		if line.ItemType == enums.LineItemTypeBuild {
			for j := range line.ContainedItems {
				line.ContainedItems[j].PriceAtTimeOfOrder = stock[line.ContainedItems[j].ComponentID].Price
			}
			line.UnitPrice = line.ContainedItems.UnitTotal()
		} else {
			line.UnitPrice = stock[line.ProductID].Price
		}
		subtotal = subtotal.Add(line.LineTotal())
	}
	return subtotal
}
