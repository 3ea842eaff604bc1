package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/computers-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

// Gateway is the hosted-payment provider seen by the lifecycle engine.
type Gateway interface {
	CreatePayment(ctx context.Context, order *models.Order) (*PaymentLink, error)
	CapturePayment(ctx context.Context, paymentID, payerID string) (*CaptureResult, error)
	Refund(ctx context.Context, saleID string, amount *decimal.Decimal, currency string) (*RefundResult, error)
	SaleIDForPayment(ctx context.Context, paymentID string) (string, error)
}

type PaymentLink struct {
	PaymentID   string
	ApprovalURL string
}

type CaptureResult struct {
	Approved   bool
	State      string
	PayerID    string
	PayerEmail string
	SaleID     string
}

type RefundResult struct {
	RefundID string
	State    string
}

// Unconfigured rejects every call; used when no PayPal credentials are present.
type Unconfigured struct{}

var errUnconfigured = pkgerrors.New(pkgerrors.CodeGateway, "paypal is not configured")

func (Unconfigured) CreatePayment(context.Context, *models.Order) (*PaymentLink, error) {
	return nil, errUnconfigured
}

func (Unconfigured) CapturePayment(context.Context, string, string) (*CaptureResult, error) {
	return nil, errUnconfigured
}

func (Unconfigured) Refund(context.Context, string, *decimal.Decimal, string) (*RefundResult, error) {
	return nil, errUnconfigured
}

func (Unconfigured) SaleIDForPayment(context.Context, string) (string, error) {
	return "", errUnconfigured
}
