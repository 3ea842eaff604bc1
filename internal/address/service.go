package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

// ResolveRequest selects either a saved address or an inline one.
type ResolveRequest struct {
	UserID         uuid.UUID
	SavedAddressID *uuid.UUID
	NewAddress     *types.Address
}

type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (types.Address, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

// Resolve returns the normalized shipping address for checkout. A saved id wins over an inline address.
func (s *service) Resolve(ctx context.Context, req ResolveRequest) (types.Address, error) {
	if s == nil || s.db == nil {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeDependency, "address book unavailable")
	}

	var addr types.Address
	switch {
	case req.SavedAddressID != nil && *req.SavedAddressID != uuid.Nil:
		var saved models.SavedAddress
		err := s.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", *req.SavedAddressID, req.UserID).
			First(&saved).Error
		if pkgdb.IsNotFound(err) {
			return types.Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "saved address not found")
		}
		if err != nil {
			return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load saved address")
		}
		addr = saved.Address
	case req.NewAddress != nil:
		addr = *req.NewAddress
	default:
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	addr = addr.Normalize()
	if err := addr.Validate(); err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return addr, nil
}
