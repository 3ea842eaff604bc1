package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

// OrderView is the read model returned to buyers and admins.
type OrderView struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"user_id"`
	Email           string                 `json:"email"`
	ShippingAddress types.Address          `json:"shipping_address"`
	LineItems       []LineItemView         `json:"line_items"`
	Currency        string                 `json:"currency"`
	SubtotalAmount  decimal.Decimal        `json:"subtotal_amount"`
	TaxAmount       decimal.Decimal        `json:"tax_amount"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
	OrderStatus     enums.OrderStatus      `json:"order_status"`
	PaymentStatus   enums.PaymentStatus    `json:"payment_status"`
	PaymentDetails  PaymentDetailsView     `json:"payment_details"`
	ShippingDetails *types.ShippingDetails `json:"shipping_details,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type LineItemView struct {
	ItemType       enums.LineItemType   `json:"item_type"`
	ProductID      uuid.UUID            `json:"product_id"`
	Name           string               `json:"name"`
	MPN            string               `json:"mpn,omitempty"`
	ImageURL       string               `json:"image_url,omitempty"`
	Quantity       int                  `json:"quantity"`
	UnitPrice      decimal.Decimal      `json:"unit_price"`
	LineTotal      decimal.Decimal      `json:"line_total"`
	ContainedItems []types.ItemSnapshot `json:"contained_items,omitempty"`
}

type PaymentDetailsView struct {
	Method              enums.PaymentMethod `json:"method"`
	TransactionID       string              `json:"transaction_id,omitempty"`
	ProviderStatus      string              `json:"provider_status,omitempty"`
	SlipImageURL        string              `json:"slip_image_url,omitempty"`
	SlipRejectionReason string              `json:"slip_rejection_reason,omitempty"`
	PayerEmail          string              `json:"payer_email,omitempty"`
}

// Project maps an order row to its public view. Concurrency and ledger bookkeeping stay internal.
func Project(order *models.Order) OrderView {
	if order == nil {
		return OrderView{}
	}
	lines := make([]LineItemView, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		lines = append(lines, LineItemView{
			ItemType:       line.ItemType,
			ProductID:      line.ProductID,
			Name:           line.Name,
			MPN:            line.MPN,
			ImageURL:       line.ImageURL,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			LineTotal:      line.LineTotal(),
			ContainedItems: line.ContainedItems,
		})
	}
	var shipping *types.ShippingDetails
	if order.ShippingDetails != nil {
		copied := *order.ShippingDetails
		shipping = &copied
	}
	pd := order.PaymentDetails
	return OrderView{
		ID:              order.ID,
		UserID:          order.UserID,
		Email:           order.Email,
		ShippingAddress: order.ShippingAddress,
		LineItems:       lines,
		Currency:        order.Currency,
		SubtotalAmount:  order.SubtotalAmount,
		TaxAmount:       order.TaxAmount,
		TotalAmount:     order.TotalAmount,
		OrderStatus:     order.OrderStatus,
		PaymentStatus:   order.PaymentStatus,
		PaymentDetails: PaymentDetailsView{
			Method:              pd.Method,
			TransactionID:       pd.TransactionID,
			ProviderStatus:      pd.ProviderStatus,
			SlipImageURL:        pd.SlipImageURL,
			SlipRejectionReason: pd.SlipRejectionReason,
			PayerEmail:          pd.PayerEmail,
		},
		ShippingDetails: shipping,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// ProjectAll maps a slice of orders preserving order.
func ProjectAll(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, Project(&orders[i]))
	}
	return out
}
