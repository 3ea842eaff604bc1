package paypal

import "strings"

const (
	IntentSale          = "sale"
	PaymentMethodPayPal = "paypal"

	StateCreated   = "created"
	StateApproved  = "approved"
	StateFailed    = "failed"
	StateCompleted = "completed"
	StatePending   = "pending"

	relApprovalURL = "approval_url"
)

type Amount struct {
	Currency string         `json:"currency"`
	Total    string         `json:"total"`
	Details  *AmountDetails `json:"details,omitempty"`
}

type AmountDetails struct {
	Subtotal string `json:"subtotal,omitempty"`
	Tax      string `json:"tax,omitempty"`
	Shipping string `json:"shipping,omitempty"`
}

type Item struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity string `json:"quantity"`
}

type ShippingAddress struct {
	RecipientName string `json:"recipient_name,omitempty"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code"`
}

type ItemList struct {
	Items           []Item           `json:"items,omitempty"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
}

type Sale struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type RelatedResource struct {
	Sale *Sale `json:"sale,omitempty"`
}

type Transaction struct {
	Amount           Amount            `json:"amount"`
	Description      string            `json:"description,omitempty"`
	ItemList         *ItemList         `json:"item_list,omitempty"`
	RelatedResources []RelatedResource `json:"related_resources,omitempty"`
}

type PayerInfo struct {
	PayerID string `json:"payer_id,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Payer struct {
	PaymentMethod string     `json:"payment_method"`
	PayerInfo     *PayerInfo `json:"payer_info,omitempty"`
}

type RedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Payment mirrors the v1 payment resource.
type Payment struct {
	ID           string        `json:"id,omitempty"`
	Intent       string        `json:"intent"`
	State        string        `json:"state,omitempty"`
	Payer        Payer         `json:"payer"`
	Transactions []Transaction `json:"transactions"`
	RedirectURLs *RedirectURLs `json:"redirect_urls,omitempty"`
	Links        []Link        `json:"links,omitempty"`
}

// ApprovalURL returns the hosted approval link the buyer must visit.
func (p *Payment) ApprovalURL() string {
	if p == nil {
		return ""
	}
	for _, link := range p.Links {
		if strings.EqualFold(link.Rel, relApprovalURL) {
			return link.Href
		}
	}
	return ""
}

// FirstSale returns the sale attached to the first transaction, if any.
func (p *Payment) FirstSale() *Sale {
	if p == nil {
		return nil
	}
	for _, tx := range p.Transactions {
		for _, rr := range tx.RelatedResources {
			if rr.Sale != nil && rr.Sale.ID != "" {
				return rr.Sale
			}
		}
	}
	return nil
}

type Refund struct {
	ID     string  `json:"id"`
	State  string  `json:"state"`
	Amount *Amount `json:"amount,omitempty"`
}
