package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
	"github.com/angelmondragon/computers-backend/pkg/paypal"
)

type paypalAPI interface {
	CreatePayment(ctx context.Context, payment paypal.Payment) (*paypal.Payment, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*paypal.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paypal.Payment, error)
	RefundSale(ctx context.Context, saleID string, amount *paypal.Amount) (*paypal.Refund, error)
}

// PayPalGateway adapts the v1 Payments API to Gateway.
type PayPalGateway struct {
	api     paypalAPI
	cfg     config.PayPalConfig
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

func NewPayPalGateway(api paypalAPI, cfg config.PayPalConfig, logg *logger.Logger, m *metrics.OrderMetrics) *PayPalGateway {
	if logg == nil {
		logg = logger.Nop()
	}
	return &PayPalGateway{api: api, cfg: cfg, logg: logg, metrics: m}
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, order *models.Order) (*PaymentLink, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	orderID := order.ID.String()
	description := fmt.Sprintf("Order %s", orderID)

	tx, err := itemizedTransaction(order, description)
	if err != nil {
		fields := map[string]any{
			"order_id": orderID,
			"total":    order.TotalAmount.StringFixed(2),
			"reason":   err.Error(),
		}
		g.logg.Warn(g.logg.WithFields(ctx, fields), "paypal itemization fallback to order total")
		tx = totalOnlyTransaction(order, description)
	}

	request := paypal.Payment{
		Intent:       paypal.IntentSale,
		Payer:        paypal.Payer{PaymentMethod: paypal.PaymentMethodPayPal},
		Transactions: []paypal.Transaction{tx},
		RedirectURLs: &paypal.RedirectURLs{
			ReturnURL: fmt.Sprintf(g.cfg.ReturnURLTemplate, orderID),
			CancelURL: fmt.Sprintf(g.cfg.CancelURLTemplate, orderID),
		},
	}

	start := time.Now()
	payment, err := g.api.CreatePayment(ctx, request)
	g.metrics.ObserveGateway("create", time.Since(start), err)
	if err != nil {
		return nil, asGatewayError(err, "create paypal payment")
	}

	link := &PaymentLink{PaymentID: payment.ID, ApprovalURL: payment.ApprovalURL()}
	if link.PaymentID == "" || link.ApprovalURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "paypal payment response missing id or approval link")
	}
	return link, nil
}

func (g *PayPalGateway) CapturePayment(ctx context.Context, paymentID, payerID string) (*CaptureResult, error) {
	start := time.Now()
	payment, err := g.api.ExecutePayment(ctx, paymentID, payerID)
	g.metrics.ObserveGateway("execute", time.Since(start), err)
	if err != nil {
		return nil, asGatewayError(err, "execute paypal payment")
	}

	result := &CaptureResult{
		Approved: strings.EqualFold(payment.State, paypal.StateApproved),
		State:    payment.State,
	}
	if info := payment.Payer.PayerInfo; info != nil {
		result.PayerID = info.PayerID
		result.PayerEmail = info.Email
	}
	if result.PayerID == "" {
		result.PayerID = payerID
	}
	if sale := payment.FirstSale(); sale != nil {
		result.SaleID = sale.ID
	}
	return result, nil
}

func (g *PayPalGateway) Refund(ctx context.Context, saleID string, amount *decimal.Decimal, currency string) (*RefundResult, error) {
	var refundAmount *paypal.Amount
	if amount != nil {
		refundAmount = &paypal.Amount{Currency: currency, Total: amount.StringFixed(2)}
	}

	start := time.Now()
	refund, err := g.api.RefundSale(ctx, saleID, refundAmount)
	g.metrics.ObserveGateway("refund", time.Since(start), err)
	if err != nil {
		return nil, asGatewayError(err, "refund paypal sale")
	}

	state := strings.ToLower(refund.State)
	if state != paypal.StateCompleted && state != paypal.StatePending {
		return nil, pkgerrors.Newf(pkgerrors.CodeGateway, "paypal refund ended in state %q", refund.State)
	}
	return &RefundResult{RefundID: refund.ID, State: state}, nil
}

// SaleIDForPayment derives the sale id for orders captured before sale ids were stored.
func (g *PayPalGateway) SaleIDForPayment(ctx context.Context, paymentID string) (string, error) {
	start := time.Now()
	payment, err := g.api.GetPayment(ctx, paymentID)
	g.metrics.ObserveGateway("get", time.Since(start), err)
	if err != nil {
		return "", asGatewayError(err, "get paypal payment")
	}
	if len(payment.Transactions) == 0 || len(payment.Transactions[0].RelatedResources) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "paypal payment has no related resources")
	}
	sale := payment.Transactions[0].RelatedResources[0].Sale
	if sale == nil || strings.TrimSpace(sale.ID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "paypal payment has no sale")
	}
	return sale.ID, nil
}

func itemizedTransaction(order *models.Order, description string) (paypal.Transaction, error) {
	currency := order.Currency
	items := make([]paypal.Item, 0, len(order.LineItems))
	subtotal := decimal.Zero

	add := func(name, sku string, price decimal.Decimal, qty int) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("line item without a name")
		}
		if qty <= 0 || price.IsNegative() {
			return fmt.Errorf("invalid quantity or price for %q", name)
		}
		rounded := price.Round(2)
		items = append(items, paypal.Item{
			Name:     name,
			SKU:      sku,
			Price:    rounded.StringFixed(2),
			Currency: currency,
			Quantity: strconv.Itoa(qty),
		})
		subtotal = subtotal.Add(rounded.Mul(decimal.NewFromInt(int64(qty))))
		return nil
	}

	for _, line := range order.LineItems {
		if line.ItemType == enums.LineItemTypeBuild && len(line.ContainedItems) > 0 {
			for _, part := range line.ContainedItems {
				if err := add(part.Name, part.MPN, part.PriceAtTimeOfOrder, part.Quantity*line.Quantity); err != nil {
					return paypal.Transaction{}, err
				}
			}
			continue
		}
		sku := line.MPN
		if sku == "" {
			sku = line.ProductID.String()
		}
		if err := add(line.Name, sku, line.UnitPrice, line.Quantity); err != nil {
			return paypal.Transaction{}, err
		}
	}

	tax := order.TaxAmount.Round(2)
	expected := subtotal.Add(tax).Round(2)
	actual := order.TotalAmount.Round(2)
	if !expected.Equal(actual) {
		return paypal.Transaction{}, fmt.Errorf("itemized total %s does not match order total %s", expected.StringFixed(2), actual.StringFixed(2))
	}

	itemList := &paypal.ItemList{Items: items}
	addr := order.ShippingAddress
	if strings.TrimSpace(addr.Line1) != "" {
		code, err := CountryCode(addr.Country)
		if err != nil {
			return paypal.Transaction{}, err
		}
		itemList.ShippingAddress = &paypal.ShippingAddress{
			RecipientName: addr.ContactName,
			Line1:         addr.Line1,
			Line2:         strings.TrimSpace(addr.Line2),
			City:          addr.City(),
			State:         addr.Province,
			PostalCode:    addr.ZipCode,
			CountryCode:   code,
		}
	}

	return paypal.Transaction{
		Amount: paypal.Amount{
			Currency: currency,
			Total:    actual.StringFixed(2),
			Details: &paypal.AmountDetails{
				Subtotal: subtotal.StringFixed(2),
				Tax:      tax.StringFixed(2),
				Shipping: "0.00",
			},
		},
		Description: description,
		ItemList:    itemList,
	}, nil
}

func totalOnlyTransaction(order *models.Order, description string) paypal.Transaction {
	return paypal.Transaction{
		Amount: paypal.Amount{
			Currency: order.Currency,
			Total:    order.TotalAmount.Round(2).StringFixed(2),
		},
		Description: description,
	}
}

func asGatewayError(err error, message string) error {
	if pkgerrors.HasCode(err, pkgerrors.CodeGateway) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, message)
}
