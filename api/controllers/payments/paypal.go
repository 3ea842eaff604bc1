package payments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/computers-backend/api/responses"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
)

type paypalRedirects interface {
	HandleReturn(ctx context.Context, rawOrderID, paymentID, payerID string) string
	HandleCancel(ctx context.Context, rawOrderID string) string
}

// PayPalCapture handles the buyer's return from PayPal and redirects to the storefront outcome page.
func PayPalCapture(svc paypalRedirects, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal callback service unavailable"))
			return
		}
		query := r.URL.Query()
		target := svc.HandleReturn(r.Context(), chi.URLParam(r, "orderId"), query.Get("paymentId"), query.Get("PayerID"))
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func PayPalCancel(svc paypalRedirects, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal callback service unavailable"))
			return
		}
		http.Redirect(w, r, svc.HandleCancel(r.Context(), chi.URLParam(r, "orderId")), http.StatusFound)
	}
}
