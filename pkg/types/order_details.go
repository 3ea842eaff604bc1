package types

import (
	"time"

	"github.com/angelmondragon/computers-backend/pkg/enums"
)

// PaymentDetails is stored as a json document on the order row.
type PaymentDetails struct {
	Method              enums.PaymentMethod `json:"method"`
	TransactionID       string              `json:"transaction_id,omitempty"`
	SaleID              string              `json:"sale_id,omitempty"`
	ProviderStatus      string              `json:"provider_status,omitempty"`
	SlipImageURL        string              `json:"slip_image_url,omitempty"`
	SlipRejectionReason string              `json:"slip_rejection_reason,omitempty"`
	PayerID             string              `json:"payer_id,omitempty"`
	PayerEmail          string              `json:"payer_email,omitempty"`
}

// ShippingDetails is attached once an order ships.
type ShippingDetails struct {
	ShippingProvider string    `json:"shipping_provider"`
	TrackingNumber   string    `json:"tracking_number"`
	ShippedAt        time.Time `json:"shipped_at"`
}
