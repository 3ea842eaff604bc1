package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/internal/inventory"
	"github.com/angelmondragon/computers-backend/internal/payments"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/computers-backend/pkg/pagination"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	ApplyDeltas(ctx context.Context, tx *gorm.DB, deltas map[uuid.UUID]int) error
}

// Actor identifies who drives a lifecycle operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// GatewayActor is used for payment-provider callbacks.
func GatewayActor() Actor {
	return Actor{Role: enums.ActorRoleGateway}
}

// ShippingInput carries the carrier data for shipped and shipping_amended.
type ShippingInput struct {
	Provider       string
	TrackingNumber string
}

// PaymentLinkView is returned whenever a hosted payment is created.
type PaymentLinkView struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   string    `json:"paypal_payment_id"`
	ApprovalURL string    `json:"approval_link"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Service is the order lifecycle engine.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	ListMine(ctx context.Context, actor Actor) ([]OrderView, error)
	ListAll(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	ValidNextStatuses(ctx context.Context, orderID uuid.UUID) ([]enums.OrderStatus, error)

	// RecordPaymentCreated runs payment_created inside the caller's checkout transaction.
	RecordPaymentCreated(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order) (*PaymentLinkView, error)
	RetryPayment(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentLinkView, error)
	CapturePayment(ctx context.Context, orderID uuid.UUID, paymentID, payerID string) (*OrderView, error)

	SubmitSlip(ctx context.Context, actor Actor, orderID uuid.UUID, slipURL string) (*OrderView, error)
	ApproveSlip(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	RejectSlip(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error)
	RevertSlipApproval(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error)

	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	Ship(ctx context.Context, actor Actor, orderID uuid.UUID, input ShippingInput) (*OrderView, error)
	AmendShipping(ctx context.Context, actor Actor, orderID uuid.UUID, input ShippingInput) (*OrderView, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus, reason string) (*OrderView, error)

	RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error)
	ApproveRefund(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	RejectRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error)
	ForceRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error)
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Ledger  stockLedger
	Gateway payments.Gateway
	Outbox  outbox.Emitter
	Locker  Locker
	Metrics *metrics.OrderMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  stockLedger
	gateway payments.Gateway
	outbox  outbox.Emitter
	locker  Locker
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the lifecycle engine with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Locker == nil {
		return nil, fmt.Errorf("order locker required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &service{
		repo:    p.Repo,
		tx:      p.Tx,
		ledger:  p.Ledger,
		gateway: p.Gateway,
		outbox:  p.Outbox,
		locker:  p.Locker,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     p.Clock,
	}, nil
}

// effectFunc runs after the guards pass and before any state is written. It may call the
// gateway and may redirect the event to a sibling row with the same source state.
type effectFunc func(ctx context.Context, order *models.Order) (enums.OrderEvent, error)

type command struct {
	event  enums.OrderEvent
	manual bool
	actor  Actor
	target enums.OrderStatus
	reason string
	effect effectFunc
}

type outcome struct {
	event       enums.OrderEvent
	noop        bool
	from        enums.OrderStatus
	to          enums.OrderStatus
	fromPayment enums.PaymentStatus
	toPayment   enums.PaymentStatus
	delta       map[uuid.UUID]int
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, actor); err != nil {
		return nil, err
	}
	view := Project(order)
	return &view, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor) ([]OrderView, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return ProjectAll(rows), nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, err
	}
	return &OrderList{Orders: ProjectAll(rows), NextCursor: next}, nil
}

func (s *service) ValidNextStatuses(ctx context.Context, orderID uuid.UUID) ([]enums.OrderStatus, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := ValidNextStatuses(order.OrderStatus, order.PaymentStatus)
	if out == nil {
		out = []enums.OrderStatus{}
	}
	return out, nil
}

func (s *service) RecordPaymentCreated(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order) (*PaymentLinkView, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for payment creation")
	}
	var link PaymentLinkView
	out, err := s.apply(ctx, tx, order, command{
		event:  enums.OrderEventPaymentCreated,
		actor:  actor,
		effect: s.createPaymentEffect(&link),
	})
	if err != nil {
		return nil, err
	}
	s.observe(ctx, order.ID, out)
	return &link, nil
}

func (s *service) RetryPayment(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentLinkView, error) {
	var link PaymentLinkView
	_, err := s.execute(ctx, orderID, command{
		event:  enums.OrderEventPaymentRetried,
		actor:  actor,
		effect: s.createPaymentEffect(&link),
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *service) createPaymentEffect(link *PaymentLinkView) effectFunc {
	return func(ctx context.Context, order *models.Order) (enums.OrderEvent, error) {
		created, err := s.gateway.CreatePayment(ctx, order)
		if err != nil {
			return "", err
		}
		order.PaymentDetails.TransactionID = created.PaymentID
		order.PaymentDetails.SaleID = ""
		order.PaymentDetails.ProviderStatus = string(enums.ProviderStatusCreatedInPayPal)
		*link = PaymentLinkView{OrderID: order.ID, PaymentID: created.PaymentID, ApprovalURL: created.ApprovalURL}
		return "", nil
	}
}

// CapturePayment executes an approved hosted payment. Stock is reserved before the gateway is
// called. A declined execution releases it and is persisted as capture_declined without error;
// a gateway failure rolls back the reservation and leaves the order untouched.
func (s *service) CapturePayment(ctx context.Context, orderID uuid.UUID, paymentID, payerID string) (*OrderView, error) {
	paymentID = strings.TrimSpace(paymentID)
	payerID = strings.TrimSpace(payerID)
	if paymentID == "" || payerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentId and PayerID are required")
	}
	return s.execute(ctx, orderID, command{
		event: enums.OrderEventCaptureApproved,
		actor: GatewayActor(),
		effect: func(ctx context.Context, order *models.Order) (enums.OrderEvent, error) {
			pd := &order.PaymentDetails
			if pd.TransactionID != "" && pd.TransactionID != paymentID {
				return "", pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to this order")
			}
			res, err := s.gateway.CapturePayment(ctx, paymentID, payerID)
			if err != nil {
				return "", err
			}
			pd.TransactionID = paymentID
			pd.ProviderStatus = res.State
			pd.PayerID = res.PayerID
			pd.PayerEmail = res.PayerEmail
			if !res.Approved {
				return enums.OrderEventCaptureDeclined, nil
			}
			pd.SaleID = res.SaleID
			return "", nil
		},
	})
}

func (s *service) SubmitSlip(ctx context.Context, actor Actor, orderID uuid.UUID, slipURL string) (*OrderView, error) {
	slipURL = strings.TrimSpace(slipURL)
	if slipURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slip image url is required")
	}
	return s.execute(ctx, orderID, command{
		event: enums.OrderEventSlipSubmitted,
		actor: actor,
		effect: func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
			order.PaymentDetails.SlipImageURL = slipURL
			order.PaymentDetails.SlipRejectionReason = ""
			order.PaymentDetails.ProviderStatus = string(enums.ProviderStatusSubmitted)
			return "", nil
		},
	})
}

func (s *service) ApproveSlip(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventSlipApproved,
		actor:  actor,
		effect: providerMarker(enums.ProviderStatusApproved),
	})
}

func (s *service) RejectSlip(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventSlipRejected,
		actor:  actor,
		reason: reason,
		effect: func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
			order.PaymentDetails.SlipRejectionReason = reason
			order.PaymentDetails.ProviderStatus = string(enums.ProviderStatusRejected)
			return "", nil
		},
	})
}

func (s *service) RevertSlipApproval(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventSlipApprovalReverted,
		actor:  actor,
		reason: reason,
		effect: func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
			order.PaymentDetails.SlipRejectionReason = reason
			order.PaymentDetails.ProviderStatus = string(enums.ProviderStatusApprovalReverted)
			return "", nil
		},
	})
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	return s.execute(ctx, orderID, command{event: enums.OrderEventCancelled, actor: actor})
}

func (s *service) Ship(ctx context.Context, actor Actor, orderID uuid.UUID, input ShippingInput) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input, err := normalizeShipping(input)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event: enums.OrderEventShipped,
		actor: actor,
		effect: func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
			order.ShippingDetails = &types.ShippingDetails{
				ShippingProvider: input.Provider,
				TrackingNumber:   input.TrackingNumber,
				ShippedAt:        s.now().UTC(),
			}
			return "", nil
		},
	})
}

func (s *service) AmendShipping(ctx context.Context, actor Actor, orderID uuid.UUID, input ShippingInput) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input, err := normalizeShipping(input)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event: enums.OrderEventShippingAmended,
		actor: actor,
		effect: func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
			if order.ShippingDetails == nil {
				return "", pkgerrors.New(pkgerrors.CodeDataInconsistency, "shipped order has no shipping details")
			}
			order.ShippingDetails.ShippingProvider = input.Provider
			order.ShippingDetails.TrackingNumber = input.TrackingNumber
			return "", nil
		},
	})
}

// UpdateStatus is the manual admin move. REFUND_REJECTED sources go through admin_override.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus, reason string) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", target)
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventStatusMoved,
		manual: true,
		actor:  actor,
		target: target,
		reason: strings.TrimSpace(reason),
	})
}

func (s *service) RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error) {
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventRefundRequested,
		actor:  actor,
		reason: strings.TrimSpace(reason),
	})
}

func (s *service) ApproveRefund(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventRefundApproved,
		actor:  actor,
		effect: s.refundEffect(enums.ProviderStatusManuallyRefundedApproved),
	})
}

func (s *service) RejectRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventRefundRejected,
		actor:  actor,
		reason: strings.TrimSpace(reason),
		effect: providerMarker(enums.ProviderStatusRefundRejectedByAdmin),
	})
}

func (s *service) ForceRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.execute(ctx, orderID, command{
		event:  enums.OrderEventRefundForced,
		actor:  actor,
		reason: strings.TrimSpace(reason),
		effect: s.refundEffect(enums.ProviderStatusManuallyRefundedByAdmin),
	})
}

// refundEffect refunds the full sale through the gateway, or stamps the manual marker for bank transfers.
func (s *service) refundEffect(manual enums.ProviderStatus) effectFunc {
	return func(ctx context.Context, order *models.Order) (enums.OrderEvent, error) {
		pd := &order.PaymentDetails
		if pd.Method != enums.PaymentMethodPayPal {
			pd.ProviderStatus = string(manual)
			return "", nil
		}
		saleID := pd.SaleID
		if saleID == "" {
			if pd.TransactionID == "" {
				return "", pkgerrors.New(pkgerrors.CodeDataInconsistency, "paid order has no gateway reference")
			}
			derived, err := s.gateway.SaleIDForPayment(ctx, pd.TransactionID)
			if err != nil {
				return "", err
			}
			saleID = derived
		}
		res, err := s.gateway.Refund(ctx, saleID, nil, order.Currency)
		if err != nil {
			return "", err
		}
		pd.SaleID = saleID
		pd.TransactionID = res.RefundID
		pd.ProviderStatus = res.State
		return "", nil
	}
}

func providerMarker(status enums.ProviderStatus) effectFunc {
	return func(_ context.Context, order *models.Order) (enums.OrderEvent, error) {
		order.PaymentDetails.ProviderStatus = string(status)
		return "", nil
	}
}

// execute runs one lifecycle operation as a locked read-modify-write unit.
func (s *service) execute(ctx context.Context, orderID uuid.UUID, cmd command) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"event":      string(cmd.event),
		"actor_role": string(cmd.actor.Role),
	})

	release, err := s.locker.Acquire(ctx, orderID)
	if err != nil {
		s.reject(ctx, cmd.event, err)
		return nil, err
	}
	defer release()

	var (
		view OrderView
		out  outcome
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		out, err = s.apply(ctx, tx, order, cmd)
		if err != nil {
			return err
		}
		view = Project(order)
		return nil
	})
	if err != nil {
		s.reject(ctx, cmd.event, err)
		return nil, err
	}
	s.observe(ctx, orderID, out)
	return &view, nil
}

// apply checks the table and guards, applies the ledger delta, runs the effect, then saves,
// audits and emits. The delta always precedes the gateway call.
func (s *service) apply(ctx context.Context, tx *gorm.DB, order *models.Order, cmd command) (outcome, error) {
	if err := authorize(order, cmd.actor); err != nil {
		return outcome{}, err
	}
	event := cmd.event
	if cmd.manual {
		event = ManualEvent(order.OrderStatus)
	}
	if isDuplicateApproval(order, event) {
		return outcome{event: event, noop: true, from: order.OrderStatus, to: order.OrderStatus,
			fromPayment: order.PaymentStatus, toPayment: order.PaymentStatus}, nil
	}

	rule, ok := Lookup(order.OrderStatus, event)
	if !ok {
		return outcome{}, invalidTransition(order, event)
	}
	if err := checkRule(rule, order, event, cmd.actor); err != nil {
		return outcome{}, err
	}
	target, err := resolveTarget(rule, order, event, cmd.target)
	if err != nil {
		return outcome{}, err
	}
	if err := checkStockGuard(rule, order); err != nil {
		return outcome{}, err
	}

	committed := order.StockCommitted
	delta, err := s.applyStock(ctx, tx, rule, order)
	if err != nil {
		return outcome{}, err
	}

	if cmd.effect != nil {
		next, err := cmd.effect(ctx, order)
		if err != nil {
			return outcome{}, err
		}
		if next != "" && next != event {
			event = next
			if rule, ok = Lookup(order.OrderStatus, event); !ok {
				return outcome{}, invalidTransition(order, event)
			}
			target = rule.To
			if delta, err = s.restock(ctx, tx, rule, order, delta, committed); err != nil {
				return outcome{}, err
			}
		}
	}

	out := outcome{
		event:       event,
		from:        order.OrderStatus,
		fromPayment: order.PaymentStatus,
		delta:       delta,
	}
	if target != "" {
		order.OrderStatus = target
	}
	if rule.ToPayment != "" {
		order.PaymentStatus = rule.ToPayment
	}
	out.to = order.OrderStatus
	out.toPayment = order.PaymentStatus

	repo := s.repo.WithTx(tx)
	if err := repo.SaveVersioned(ctx, order); err != nil {
		return outcome{}, err
	}
	if err := repo.InsertTransition(ctx, transitionRow(order.ID, out, cmd)); err != nil {
		return outcome{}, err
	}
	if err := s.emit(ctx, tx, order.ID, out, cmd); err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
	}
	return out, nil
}

// restock reverts the delta applied for the original event and applies the one for the
// event the effect switched to.
func (s *service) restock(ctx context.Context, tx *gorm.DB, rule Rule, order *models.Order, applied map[uuid.UUID]int, committed bool) (map[uuid.UUID]int, error) {
	if len(applied) > 0 {
		if err := s.ledger.ApplyDeltas(ctx, tx, inventory.Decrement(applied)); err != nil {
			return nil, err
		}
	}
	order.StockCommitted = committed
	if err := checkStockGuard(rule, order); err != nil {
		return nil, err
	}
	return s.applyStock(ctx, tx, rule, order)
}

func (s *service) applyStock(ctx context.Context, tx *gorm.DB, rule Rule, order *models.Order) (map[uuid.UUID]int, error) {
	var delta map[uuid.UUID]int
	switch rule.Stock {
	case StockDecrement:
		delta = inventory.Decrement(inventory.Requirements(order.LineItems))
	case StockIncrement:
		delta = inventory.Requirements(order.LineItems)
	default:
		return nil, nil
	}
	if err := s.ledger.ApplyDeltas(ctx, tx, delta); err != nil {
		return nil, err
	}
	order.StockCommitted = rule.Stock == StockDecrement
	return delta, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, out outcome, cmd command) error {
	actor := actorRef(cmd.actor)
	occurred := s.now().UTC()

	var stockDelta map[string]int
	if len(out.delta) > 0 {
		stockDelta = make(map[string]int, len(out.delta))
		for id, qty := range out.delta {
			if qty != 0 {
				stockDelta[id.String()] = qty
			}
		}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actor,
		OccurredAt:    occurred,
		Data: payloads.OrderStateChangedEvent{
			OrderID:           orderID,
			Event:             out.event,
			FromOrderStatus:   out.from,
			ToOrderStatus:     out.to,
			FromPaymentStatus: out.fromPayment,
			ToPaymentStatus:   out.toPayment,
			StockDelta:        stockDelta,
			OccurredAt:        occurred,
		},
	})
	if err != nil || out.event != enums.OrderEventAdminOverride {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderOverrideApplied,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actor,
		OccurredAt:    occurred,
		Data: payloads.OrderOverrideAppliedEvent{
			OrderID:         orderID,
			FromOrderStatus: out.from,
			ToOrderStatus:   out.to,
			AdminID:         actor.UserID,
			Reason:          cmd.reason,
		},
	})
}

func (s *service) observe(ctx context.Context, orderID uuid.UUID, out outcome) {
	fields := map[string]any{
		"order_id":          orderID.String(),
		"event":             string(out.event),
		"from_order_status": string(out.from),
		"to_order_status":   string(out.to),
	}
	if out.noop {
		s.metrics.IncTransition(string(out.event), metrics.ResultNoop)
		s.logg.Info(s.logg.WithFields(ctx, fields), "duplicate approval ignored")
		return
	}
	s.metrics.IncTransition(string(out.event), metrics.ResultApplied)
	for _, qty := range out.delta {
		if qty < 0 {
			s.metrics.AddStock(metrics.DirectionDecrement, -qty)
		} else {
			s.metrics.AddStock(metrics.DirectionIncrement, qty)
		}
	}
	fields["to_payment_status"] = string(out.toPayment)
	s.logg.Info(s.logg.WithFields(ctx, fields), "order transition applied")
}

func (s *service) reject(ctx context.Context, event enums.OrderEvent, err error) {
	s.metrics.IncTransition(string(event), metrics.ResultRejected)
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeDataInconsistency), pkgerrors.HasCode(err, pkgerrors.CodeInternal):
		s.logg.Error(ctx, "order transition failed", err)
	case pkgerrors.HasCode(err, pkgerrors.CodeGateway), pkgerrors.HasCode(err, pkgerrors.CodeDependency):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order transition aborted")
	}
}

func authorize(order *models.Order, actor Actor) error {
	if actor.Role == enums.ActorRoleBuyer && order.UserID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if actor.Role != enums.ActorRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return reason, nil
}

func normalizeShipping(input ShippingInput) (ShippingInput, error) {
	input.Provider = strings.TrimSpace(input.Provider)
	input.TrackingNumber = strings.TrimSpace(input.TrackingNumber)
	if input.Provider == "" || input.TrackingNumber == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "shipping provider and tracking number are required")
	}
	return input, nil
}

// isDuplicateApproval reports a repeated capture or slip approval after payment already settled.
func isDuplicateApproval(order *models.Order, event enums.OrderEvent) bool {
	if event != enums.OrderEventCaptureApproved && event != enums.OrderEventSlipApproved {
		return false
	}
	return order.PaymentStatus == enums.PaymentStatusCompleted || order.PaymentStatus == enums.PaymentStatusRefunded
}

func checkRule(rule Rule, order *models.Order, event enums.OrderEvent, actor Actor) error {
	if !rule.AllowsPayment(order.PaymentStatus) {
		return invalidTransition(order, event)
	}
	if rule.Method != "" && order.PaymentDetails.Method != rule.Method {
		return invalidTransition(order, event)
	}
	if rule.OwnerOnly && (actor.Role != enums.ActorRoleBuyer || actor.UserID != order.UserID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can perform this action")
	}
	return nil
}

func resolveTarget(rule Rule, order *models.Order, event enums.OrderEvent, requested enums.OrderStatus) (enums.OrderStatus, error) {
	if len(rule.Targets) == 0 {
		return rule.To, nil
	}
	for _, allowed := range rule.TargetsFrom(order.OrderStatus) {
		if allowed == requested {
			return requested, nil
		}
	}
	return "", invalidTransition(order, event).WithDetails(map[string]any{
		"requested_status": requested,
		"valid_statuses":   rule.TargetsFrom(order.OrderStatus),
	})
}

func checkStockGuard(rule Rule, order *models.Order) error {
	switch rule.Stock {
	case StockDecrement:
		if order.StockCommitted {
			return pkgerrors.New(pkgerrors.CodeDataInconsistency, "stock already committed for order")
		}
	case StockIncrement:
		if !order.StockCommitted {
			return pkgerrors.New(pkgerrors.CodeDataInconsistency, "no committed stock to restore for order")
		}
	}
	return nil
}

func invalidTransition(order *models.Order, event enums.OrderEvent) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition,
		"cannot apply %s to order in %s/%s", event, order.OrderStatus, order.PaymentStatus)
}

func transitionRow(orderID uuid.UUID, out outcome, cmd command) *models.OrderTransition {
	row := &models.OrderTransition{
		OrderID:           orderID,
		Event:             out.event,
		FromOrderStatus:   out.from,
		ToOrderStatus:     out.to,
		FromPaymentStatus: out.fromPayment,
		ToPaymentStatus:   out.toPayment,
		ActorRole:         cmd.actor.Role,
	}
	if cmd.actor.UserID != uuid.Nil {
		id := cmd.actor.UserID
		row.ActorID = &id
	}
	if cmd.reason != "" {
		reason := cmd.reason
		row.Reason = &reason
	}
	return row
}

func actorRef(actor Actor) *outbox.ActorRef {
	ref := &outbox.ActorRef{Role: string(actor.Role)}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		ref.UserID = &id
	}
	return ref
}
