package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders the buyer-facing view of err. Codes that are not buyer safe
// collapse to their generic public message and never carry details.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := typedError(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	var details any
	if meta.BuyerSafe {
		if m := typed.Message(); m != "" {
			msg = m
		}
		if meta.DetailsAllowed {
			details = typed.Details()
		}
	}

	logError(ctx, logg, meta, err, typed)
	retryHint(w, meta)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{
		Error: types.APIError{Code: string(typed.Code()), Message: msg, Details: details, RequestID: requestID(w)},
	})
}

// WriteAdminError renders the operator view: the specific code, message and details.
// Internal failures still hide their message.
func WriteAdminError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := typedError(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := typed.Message()
	if msg == "" || typed.Code() == pkgerrors.CodeInternal {
		msg = meta.PublicMessage
	}

	logError(ctx, logg, meta, err, typed)
	retryHint(w, meta)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{
		Error: types.APIError{Code: string(typed.Code()), Message: msg, Details: typed.Details(), RequestID: requestID(w)},
	})
}

// requestID reads the id the RequestID middleware already set on the response.
func requestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-Id")
}

func typedError(err error) *pkgerrors.Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	return typed
}

func logError(ctx context.Context, logg *logger.Logger, meta pkgerrors.Metadata, err error, typed *pkgerrors.Error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)

	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": meta.HTTPStatus,
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_detail"] = dump.PGDetail
		fields["pg_message"] = dump.PGMessage
		fields["pg_table"] = dump.PGTable
		fields["pg_constraint"] = dump.PGConstraint
	}
	if d := typed.Details(); d != nil {
		fields["error_details"] = d
	}

	ctx = logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.error")
}

// retryHint tells clients a lock conflict or an unavailable dependency is worth retrying shortly.
func retryHint(w http.ResponseWriter, meta pkgerrors.Metadata) {
	if meta.Retryable && (meta.HTTPStatus == http.StatusConflict || meta.HTTPStatus == http.StatusServiceUnavailable) {
		w.Header().Set("Retry-After", "1")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
