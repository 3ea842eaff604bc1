package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

type sampleBody struct {
	Reason string `json:"reason" validate:"required,max=10"`
	Method string `json:"payment_method" validate:"omitempty,oneof=paypal bank_transfer"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"","payment_method":"cash"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["reason"])
	require.Equal(t, "must be one of [paypal bank_transfer]", details["payment_method"])
}

type buildBody struct {
	Lines []sampleLine `json:"line_items" validate:"required,min=1,dive"`
}

type sampleLine struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func TestDecodeJSONBodyNamesNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"line_items":[{"quantity":2},{"quantity":0}]}`))
	var body buildBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, map[string]string{"line_items[1].quantity": "is required"}, details)
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"trailing": `{"reason":"x"}{"reason":"y"}`,
		"oversize": `{"reason":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
		"syntax":   `{"reason":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var body sampleBody
			err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw)), &body)
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParseQueryInt(req, "limit", 20, 1, 100)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err = ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "blurry image", SanitizeString(" blurry image ", 0))
	require.Equal(t, "สลิปไม่ชัด", SanitizeString("สลิปไม่ชัดเจน", 10))
	require.Equal(t, "line1\nline2", SanitizeString("line1\nline2\x00\x07", 0))
}

func TestParseQueryEnum(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?payment_status=pending_approval", nil)
	status, err := ParseQueryEnum(req, "payment_status", enums.ParsePaymentStatus)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPendingApproval, *status)

	status, err = ParseQueryEnum(httptest.NewRequest(http.MethodGet, "/", nil), "payment_status", enums.ParsePaymentStatus)
	require.NoError(t, err)
	require.Nil(t, status)

	_, err = ParseQueryEnum(httptest.NewRequest(http.MethodGet, "/?payment_status=LOST", nil), "payment_status", enums.ParsePaymentStatus)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
