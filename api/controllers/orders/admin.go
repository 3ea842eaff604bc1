package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/computers-backend/api/responses"
	"github.com/angelmondragon/computers-backend/api/validators"
	internalorders "github.com/angelmondragon/computers-backend/internal/orders"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/pagination"
)

type adminOrders interface {
	Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)
	ListAll(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
	ValidNextStatuses(ctx context.Context, orderID uuid.UUID) ([]enums.OrderStatus, error)

	ApproveSlip(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)
	RejectSlip(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)
	RevertSlipApproval(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)

	Ship(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.ShippingInput) (*internalorders.OrderView, error)
	AmendShipping(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.ShippingInput) (*internalorders.OrderView, error)
	UpdateStatus(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, target enums.OrderStatus, reason string) (*internalorders.OrderView, error)

	ApproveRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)
	RejectRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)
	ForceRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)
}

// AdminList pages through every order, optionally filtered by order_status and payment_status.
func AdminList(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteAdminError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteAdminError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteAdminError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAll(r.Context(), params, filters)
		if err != nil {
			responses.WriteAdminError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseListFilters(r *http.Request) (internalorders.ListFilters, error) {
	orderStatus, err := validators.ParseQueryEnum(r, "order_status", enums.ParseOrderStatus)
	if err != nil {
		return internalorders.ListFilters{}, err
	}
	paymentStatus, err := validators.ParseQueryEnum(r, "payment_status", enums.ParsePaymentStatus)
	if err != nil {
		return internalorders.ListFilters{}, err
	}
	return internalorders.ListFilters{OrderStatus: orderStatus, PaymentStatus: paymentStatus}, nil
}

// AdminStatuses lists every order status in lifecycle order.
func AdminStatuses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, enums.OrderStatuses())
	}
}

func AdminDetail(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.Get(ctx, actor, orderID)
	})
}

// AdminNextStatuses returns the targets a manual status update may choose from.
func AdminNextStatuses(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, _ internalorders.Actor, orderID uuid.UUID) (any, error) {
		statuses, err := svc.ValidNextStatuses(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"order_id": orderID, "valid_next_statuses": statuses}, nil
	})
}

func ApproveSlip(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.ApproveSlip(ctx, actor, orderID)
	})
}

func RejectSlip(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminReasonAction(svc, logg, adminOrders.RejectSlip)
}

func RevertSlipApproval(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminReasonAction(svc, logg, adminOrders.RevertSlipApproval)
}

func Ship(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminShippingAction(svc, logg, adminOrders.Ship)
}

func AmendShipping(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminShippingAction(svc, logg, adminOrders.AmendShipping)
}

// UpdateStatus is the manual move; a REFUND_REJECTED source is applied as an admin override.
func UpdateStatus(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		var req statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		target := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		return svc.UpdateStatus(ctx, actor, orderID, target, validators.SanitizeString(req.Reason, maxReasonLength))
	})
}

func ApproveRefund(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		return svc.ApproveRefund(ctx, actor, orderID)
	})
}

func RejectRefund(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminReasonAction(svc, logg, adminOrders.RejectRefund)
}

func ForceRefund(svc adminOrders, logg *logger.Logger) http.HandlerFunc {
	return adminReasonAction(svc, logg, adminOrders.ForceRefund)
}

type reasonFunc func(svc adminOrders, ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderView, error)

type shippingFunc func(svc adminOrders, ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.ShippingInput) (*internalorders.OrderView, error)

func adminReasonAction(svc adminOrders, logg *logger.Logger, fn reasonFunc) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return fn(svc, ctx, actor, orderID, validators.SanitizeString(req.Reason, maxReasonLength))
	})
}

func adminShippingAction(svc adminOrders, logg *logger.Logger, fn shippingFunc) http.HandlerFunc {
	return adminAction(svc, logg, func(ctx context.Context, r *http.Request, actor internalorders.Actor, orderID uuid.UUID) (any, error) {
		var req shippingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return fn(svc, ctx, actor, orderID, internalorders.ShippingInput{
			Provider:       validators.SanitizeString(req.ShippingProvider, 100),
			TrackingNumber: validators.SanitizeString(req.TrackingNumber, 100),
		})
	})
}

func adminAction(svc adminOrders, logg *logger.Logger, fn orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteAdminError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteAdminError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteAdminError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		out, err := fn(ctx, r, actor, orderID)
		if err != nil {
			responses.WriteAdminError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
