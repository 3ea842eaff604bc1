package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ppsdk "github.com/plutov/paypal/v4"

	"github.com/angelmondragon/computers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

const (
	defaultTimeout = 15 * time.Second
	paymentsPath   = "/v1/payments/payment"
)

var errCredentialsRequired = errors.New("paypal client id and secret are required")

// APIError is the decoded body of a non-2xx PayPal response.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	DebugID    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("paypal status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paypal status %d %s: %s", e.StatusCode, e.Name, e.Message)
}

// Client wraps the PayPal SDK. Sale refunds use its typed call; the v1 payment
// create and execute resources go through its authenticated request path.
type Client struct {
	api *ppsdk.Client
}

type settings struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*settings)

// WithHTTPClient overrides the transport used for both token and API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithBaseURL overrides the REST host derived from the configured mode.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

func NewClient(cfg config.PayPalConfig, opts ...Option) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	s := settings{baseURL: cfg.APIBaseURL(), timeout: cfg.Timeout}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	api, err := ppsdk.NewClient(clientID, secret, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("init paypal sdk: %w", err)
	}
	httpClient := &http.Client{}
	if s.httpClient != nil {
		copied := *s.httpClient
		httpClient = &copied
	}
	httpClient.Timeout = s.timeout
	api.SetHTTPClient(httpClient)

	return &Client{api: api}, nil
}

// CreatePayment registers a sale-intent payment and returns it with its approval link.
func (c *Client) CreatePayment(ctx context.Context, payment Payment) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "paypal client not configured")
	}
	if payment.Intent == "" {
		payment.Intent = IntentSale
	}
	if payment.Payer.PaymentMethod == "" {
		payment.Payer.PaymentMethod = PaymentMethodPayPal
	}
	var out Payment
	if err := c.send(ctx, http.MethodPost, paymentsPath, payment, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create paypal payment")
	}
	return &out, nil
}

// ExecutePayment captures a buyer-approved payment.
func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "paypal client not configured")
	}
	paymentID = strings.TrimSpace(paymentID)
	payerID = strings.TrimSpace(payerID)
	if paymentID == "" || payerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and payer id are required")
	}
	body := map[string]string{"payer_id": payerID}
	var out Payment
	path := fmt.Sprintf("%s/%s/execute", paymentsPath, url.PathEscape(paymentID))
	if err := c.send(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute paypal payment")
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "paypal client not configured")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var out Payment
	if err := c.send(ctx, http.MethodGet, paymentsPath+"/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "get paypal payment")
	}
	return &out, nil
}

// RefundSale refunds a captured sale. A nil amount refunds it in full.
func (c *Client) RefundSale(ctx context.Context, saleID string, amount *Amount) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "paypal client not configured")
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	var partial *ppsdk.Amount
	if amount != nil {
		partial = &ppsdk.Amount{Currency: amount.Currency, Total: amount.Total}
	}
	refund, err := c.api.RefundSale(ctx, url.PathEscape(saleID), partial)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, translate(err), "refund paypal sale")
	}
	return &Refund{ID: refund.ID, State: refund.State, Amount: amount}, nil
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	req, err := c.api.NewRequest(ctx, method, c.api.APIBase+path, in)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return translate(c.api.SendWithAuth(req, out))
}

// translate maps SDK error bodies onto APIError.
func translate(err error) error {
	var sdkErr *ppsdk.ErrorResponse
	if !errors.As(err, &sdkErr) {
		return err
	}
	apiErr := &APIError{Name: sdkErr.Name, Message: sdkErr.Message, DebugID: sdkErr.DebugID}
	if sdkErr.Response != nil {
		apiErr.StatusCode = sdkErr.Response.StatusCode
	}
	return apiErr
}
