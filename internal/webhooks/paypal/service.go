package paypalwebhook

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/computers-backend/internal/orders"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
)

const (
	pathSuccess   = "/payment-successful"
	pathFailed    = "/payment-failed"
	pathCancelled = "/payment-cancelled"

	genericFailure = "payment could not be processed"
)

type orderPayments interface {
	CapturePayment(ctx context.Context, orderID uuid.UUID, paymentID, payerID string) (*orders.OrderView, error)
	Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*orders.OrderView, error)
}

type callbackGuard interface {
	CheckAndMark(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

type ServiceParams struct {
	Orders      orderPayments
	Guard       callbackGuard
	FrontendURL string
	Logger      *logger.Logger
}

// Service turns PayPal browser redirects into captures and frontend redirect targets.
type Service struct {
	orders   orderPayments
	guard    callbackGuard
	frontend string
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "callback guard required")
	}
	if strings.TrimSpace(params.FrontendURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "frontend url required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Service{
		orders:   params.Orders,
		guard:    params.Guard,
		frontend: strings.TrimRight(strings.TrimSpace(params.FrontendURL), "/"),
		logg:     params.Logger,
	}, nil
}

// HandleReturn captures the approved payment and returns the frontend URL to redirect the buyer to.
func (s *Service) HandleReturn(ctx context.Context, rawOrderID, paymentID, payerID string) string {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   rawOrderID,
		"payment_id": paymentID,
	})
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return s.failed(ctx, rawOrderID, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
	}
	if strings.TrimSpace(paymentID) == "" || strings.TrimSpace(payerID) == "" {
		return s.failed(ctx, rawOrderID, pkgerrors.New(pkgerrors.CodeValidation, "paymentId and PayerID are required"))
	}

	seen, err := s.guard.CheckAndMark(ctx, paymentID)
	if err != nil {
		return s.failed(ctx, rawOrderID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check callback guard"))
	}
	if seen {
		return s.duplicate(ctx, orderID)
	}

	view, err := s.orders.CapturePayment(ctx, orderID, paymentID, payerID)
	if err != nil {
		if releaseErr := s.guard.Release(ctx, paymentID); releaseErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", releaseErr.Error()), "callback guard release failed")
		}
		return s.failed(ctx, rawOrderID, err)
	}
	if view.PaymentStatus != enums.PaymentStatusCompleted {
		return s.failed(ctx, rawOrderID, pkgerrors.New(pkgerrors.CodeGateway, "payment was not approved"))
	}
	s.logg.Info(ctx, "paypal payment captured")
	return s.redirect(pathSuccess, url.Values{"order_id": {rawOrderID}})
}

// HandleCancel returns the cancellation page. The order stays payable.
func (s *Service) HandleCancel(ctx context.Context, rawOrderID string) string {
	s.logg.Info(s.logg.WithField(ctx, "order_id", rawOrderID), "paypal payment cancelled by buyer")
	return s.redirect(pathCancelled, url.Values{"order_id": {rawOrderID}})
}

// duplicate answers a replayed callback from the order's current state.
func (s *Service) duplicate(ctx context.Context, orderID uuid.UUID) string {
	view, err := s.orders.Get(ctx, orders.GatewayActor(), orderID)
	if err != nil {
		return s.failed(ctx, orderID.String(), err)
	}
	if view.PaymentStatus == enums.PaymentStatusCompleted {
		return s.redirect(pathSuccess, url.Values{"order_id": {orderID.String()}})
	}
	return s.failed(ctx, orderID.String(), pkgerrors.New(pkgerrors.CodeConflict, "payment is already being processed"))
}

func (s *Service) failed(ctx context.Context, rawOrderID string, err error) string {
	message := genericFailure
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		switch typed.Code() {
		case pkgerrors.CodeInternal, pkgerrors.CodeDependency, pkgerrors.CodeDataInconsistency:
			s.logg.Error(ctx, "paypal callback failed", err)
		default:
			message = typed.Message()
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "paypal callback rejected")
		}
	} else {
		s.logg.Error(ctx, "paypal callback failed", err)
	}
	return s.redirect(pathFailed, url.Values{"order_id": {rawOrderID}, "error": {message}})
}

func (s *Service) redirect(path string, query url.Values) string {
	return s.frontend + path + "?" + query.Encode()
}
