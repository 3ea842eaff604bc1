package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/computers-backend/api/responses"
	"github.com/angelmondragon/computers-backend/api/validators"
	internalorders "github.com/angelmondragon/computers-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
)

type buyerOrders interface {
	Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)
	ListMine(ctx context.Context, actor internalorders.Actor) ([]internalorders.OrderView, error)
	Cancel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)
	RetryPayment(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.PaymentLinkView, error)
	SubmitSlip(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, slipURL string) (*internalorders.OrderView, error)
	RequestRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)
}

// ListMine returns the caller's orders, newest first.
func ListMine(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMine(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one of the caller's orders.
func Detail(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return buyerAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.Get(ctx, actor, orderID)
	})
}

func Cancel(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return buyerAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.Cancel(ctx, actor, orderID)
	})
}

// RetryPayment creates a fresh hosted payment for a pending or failed PayPal order.
func RetryPayment(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return buyerAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.RetryPayment(ctx, actor, orderID)
	})
}

func SubmitSlip(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return buyerAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		var req submitSlipRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SubmitSlip(ctx, actor, orderID, validators.SanitizeString(req.SlipURL, 0))
	})
}

func RequestRefund(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return buyerAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.RequestRefund(ctx, actor, orderID, validators.SanitizeString(req.Reason, maxReasonLength))
	})
}

type orderAction func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error)

func buyerAction(svc buyerOrders, logg *logger.Logger, fn orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		out, err := fn(ctx, r, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
