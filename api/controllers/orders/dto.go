package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/computers-backend/internal/checkout"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

type checkoutItem struct {
	ItemType  string    `json:"item_type" validate:"required,oneof=COMPONENT BUILD"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Items          []checkoutItem `json:"items" validate:"dive"`
	SavedAddressID *uuid.UUID     `json:"saved_address_id,omitempty"`
	NewAddress     *types.Address `json:"new_address,omitempty" validate:"-"`
	PaymentMethod  string         `json:"payment_method" validate:"required,oneof=PAYPAL BANK_TRANSFER"`
}

func (req checkoutRequest) toInput(userID uuid.UUID, email string) checkout.CheckoutInput {
	lines := make([]checkout.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, checkout.CartLine{
			ItemType:  enums.LineItemType(item.ItemType),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return checkout.CheckoutInput{
		UserID:         userID,
		Email:          email,
		Lines:          lines,
		SavedAddressID: req.SavedAddressID,
		NewAddress:     req.NewAddress,
		PaymentMethod:  enums.PaymentMethod(req.PaymentMethod),
	}
}

type submitSlipRequest struct {
	SlipURL string `json:"slip_url" validate:"required,url"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type shippingRequest struct {
	ShippingProvider string `json:"shipping_provider" validate:"required"`
	TrackingNumber   string `json:"tracking_number" validate:"required"`
}

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}
