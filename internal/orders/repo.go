package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/pagination"
)

// ListFilters narrows the admin order list.
type ListFilters struct {
	OrderStatus   *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// Repository defines persistence operations for orders and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// SaveVersioned persists the mutable order columns when the stored version still matches.
	SaveVersioned(ctx context.Context, order *models.Order) error
	InsertTransition(ctx context.Context, transition *models.OrderTransition) error
	ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error)
	// CountAwaitingPayment counts orders created before cutoff that are still waiting on payment, by payment status.
	CountAwaitingPayment(ctx context.Context, cutoff time.Time) (map[enums.PaymentStatus]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if pkgdb.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) SaveVersioned(ctx context.Context, order *models.Order) error {
	expected := order.Version
	next := *order
	next.LineItems = nil
	next.Version = expected + 1
	next.UpdatedAt = r.db.NowFunc()

	res := r.db.WithContext(ctx).
		Model(&models.Order{ID: order.ID}).
		Where("version = ?", expected).
		Select("order_status", "payment_status", "payment_details", "shipping_details", "stock_committed", "version", "updated_at").
		UpdateColumns(&next)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "save order")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	}
	order.Version = next.Version
	order.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *repository) InsertTransition(ctx context.Context, transition *models.OrderTransition) error {
	if err := r.db.WithContext(ctx).Create(transition).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order transition")
	}
	return nil
}

func (r *repository) ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error) {
	var rows []models.OrderTransition
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order transitions")
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return orders, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if filters.OrderStatus != nil {
		query = query.Where("order_status = ?", *filters.OrderStatus)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}

	var rows []models.Order
	if err := pagination.Keyset(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) CountAwaitingPayment(ctx context.Context, cutoff time.Time) (map[enums.PaymentStatus]int64, error) {
	var rows []struct {
		PaymentStatus enums.PaymentStatus
		Total         int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("payment_status, COUNT(*) AS total").
		Where("order_status = ?", enums.OrderStatusPendingPayment).
		Where("payment_status IN ?", []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusPendingApproval}).
		Where("created_at < ?", cutoff).
		Group("payment_status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders awaiting payment")
	}
	counts := make(map[enums.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.PaymentStatus] = row.Total
	}
	return counts, nil
}
