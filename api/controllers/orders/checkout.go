package orders

import (
	"net/http"

	"github.com/angelmondragon/computers-backend/api/middleware"
	"github.com/angelmondragon/computers-backend/api/responses"
	"github.com/angelmondragon/computers-backend/api/validators"
	"github.com/angelmondragon/computers-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
)

// Checkout turns the posted cart into a PENDING_PAYMENT order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.SavedAddressID != nil && req.NewAddress != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "provide either saved_address_id or new_address, not both"))
			return
		}

		result, err := svc.Execute(r.Context(), req.toInput(actor.UserID, middleware.EmailFromContext(r.Context())))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
