package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/internal/address"
	"github.com/angelmondragon/computers-backend/internal/inventory"
	"github.com/angelmondragon/computers-backend/internal/orders"
	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	ComponentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Component, error)
	FindBuild(ctx context.Context, id uuid.UUID) (*models.Build, error)
}

type stockReader interface {
	Quantities(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.InventoryItem, error)
}

type paymentRecorder interface {
	RecordPaymentCreated(ctx context.Context, tx *gorm.DB, actor orders.Actor, order *models.Order) (*orders.PaymentLinkView, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*Result, error)
}

// CheckoutInput captures the buyer, their cart and the chosen address and payment method.
type CheckoutInput struct {
	UserID         uuid.UUID
	Email          string
	Lines          []CartLine
	SavedAddressID *uuid.UUID
	NewAddress     *types.Address
	PaymentMethod  enums.PaymentMethod
}

// Result is the checkout response. Payment fields are only set for PayPal orders.
type Result struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   string    `json:"paypal_payment_id,omitempty"`
	ApprovalURL string    `json:"approval_link,omitempty"`
}

// ServiceParams wires checkout's collaborators.
type ServiceParams struct {
	Tx        txRunner
	Addresses address.Service
	Catalog   catalogReader
	Stock     stockReader
	Orders    orders.Repository
	Payments  paymentRecorder
	Outbox    outbox.Emitter
	Config    config.CheckoutConfig
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	addresses address.Service
	catalog   catalogReader
	stock     stockReader
	orders    orders.Repository
	payments  paymentRecorder
	outbox    outbox.Emitter
	currency  string
	taxRate   decimal.Decimal
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Config.Currency == "" {
		return nil, fmt.Errorf("checkout currency required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{
		tx:        p.Tx,
		addresses: p.Addresses,
		catalog:   p.Catalog,
		stock:     p.Stock,
		orders:    p.Orders,
		payments:  p.Payments,
		outbox:    p.Outbox,
		currency:  p.Config.Currency,
		taxRate:   p.Config.TaxRate,
		logg:      p.Logger,
	}, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", input.PaymentMethod)
	}
	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	shipping, err := s.addresses.Resolve(ctx, address.ResolveRequest{
		UserID:         input.UserID,
		SavedAddressID: input.SavedAddressID,
		NewAddress:     input.NewAddress,
	})
	if err != nil {
		return nil, err
	}
	lines, err := s.resolveLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	actor := orders.Actor{UserID: input.UserID, Role: enums.ActorRoleBuyer}
	var (
		result Result
		order  *models.Order
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		required := inventory.Requirements(lines)
		ids := make([]uuid.UUID, 0, len(required))
		for id := range required {
			ids = append(ids, id)
		}
		stock, err := s.stock.Quantities(ctx, tx, ids)
		if err != nil {
			return err
		}
		if missing := inventory.Missing(required, stock); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeDataInconsistency, "inventory record missing for requested items").
				WithDetails(map[string]any{"product_ids": missing})
		}
		if shortages := inventory.Shortages(required, stock); len(shortages) > 0 {
			return pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock for requested items").WithDetails(shortages)
		}

		subtotal := priceLines(lines, stock)
		tax := subtotal.Mul(s.taxRate).Round(2)
		order = &models.Order{
			UserID:          input.UserID,
			Email:           input.Email,
			ShippingAddress: shipping,
			Currency:        s.currency,
			SubtotalAmount:  subtotal,
			TaxAmount:       tax,
			TotalAmount:     subtotal.Add(tax),
			OrderStatus:     enums.OrderStatusPendingPayment,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentDetails:  types.PaymentDetails{Method: input.PaymentMethod},
			LineItems:       lines,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.emitOrderCreated(ctx, tx, actor, order); err != nil {
			return err
		}
		result.OrderID = order.ID

		if input.PaymentMethod != enums.PaymentMethodPayPal {
			return nil
		}
		link, err := s.payments.RecordPaymentCreated(ctx, tx, actor, order)
		if err != nil {
			return err
		}
		result.PaymentID = link.PaymentID
		result.ApprovalURL = link.ApprovalURL
		return nil
	})
	if err != nil {
		switch {
		case pkgerrors.HasCode(err, pkgerrors.CodeStockConflict):
			s.logg.Warn(s.logg.WithField(ctx, "shortages", pkgerrors.As(err).Details()), "checkout rejected for insufficient stock")
		case pkgerrors.HasCode(err, pkgerrors.CodeDataInconsistency):
			s.logg.Error(s.logg.WithField(ctx, "details", pkgerrors.As(err).Details()), "checkout hit inconsistent inventory", err)
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"payment_method": string(input.PaymentMethod),
		"subtotal":       order.SubtotalAmount.StringFixed(2),
		"tax":            order.TaxAmount.StringFixed(2),
		"total":          order.TotalAmount.StringFixed(2),
		"currency":       order.Currency,
	}), "order created")
	return &result, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, actor orders.Actor, order *models.Order) error {
	userID := actor.UserID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: &userID, Role: string(actor.Role)},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentDetails.Method,
			TotalAmount:   order.TotalAmount,
			Currency:      order.Currency,
			LineCount:     len(order.LineItems),
		},
		Version: 1,
	})
}
