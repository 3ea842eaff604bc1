package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeStockConflict     Code = "STOCK_CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeGateway           Code = "GATEWAY_ERROR"
	CodeDataInconsistency Code = "DATA_INCONSISTENCY"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata drives how an error code is rendered to API callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	BuyerSafe      bool
}

// buyerFacing codes may show their own message to buyers.
func buyerFacing(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, BuyerSafe: true}
}

// operatorOnly codes show their message and details to admins only; buyers get public.
func operatorOnly(status int, public string, details, retryable bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, Retryable: retryable}
}

const (
	orderBusyMessage    = "order cannot be processed now"
	internalMessage     = "internal server error"
	unavailableMessage  = "dependency unavailable"
	paymentDownMessage  = "payment provider unavailable"
	shortageMessage     = "insufficient stock for one or more items"
	keyReusedMessage    = "idempotency key reused"
	validationMessage   = "validation failed"
	unauthorizedMessage = "authentication required"
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:        buyerFacing(http.StatusBadRequest, validationMessage, true),
	CodeUnauthorized:      buyerFacing(http.StatusUnauthorized, unauthorizedMessage, false),
	CodeForbidden:         buyerFacing(http.StatusForbidden, "access denied", false),
	CodeNotFound:          buyerFacing(http.StatusNotFound, "resource not found", false),
	CodeStockConflict:     buyerFacing(http.StatusConflict, shortageMessage, true),
	CodeIdempotency:       buyerFacing(http.StatusUnprocessableEntity, keyReusedMessage, true),
	CodeConflict:          operatorOnly(http.StatusConflict, orderBusyMessage, false, true),
	CodeInvalidTransition: operatorOnly(http.StatusConflict, orderBusyMessage, true, false),
	CodeGateway:           operatorOnly(http.StatusBadGateway, paymentDownMessage, true, false),
	CodeDataInconsistency: operatorOnly(http.StatusInternalServerError, internalMessage, false, false),
	CodeInternal:          operatorOnly(http.StatusInternalServerError, internalMessage, false, true),
	CodeDependency:        operatorOnly(http.StatusServiceUnavailable, unavailableMessage, true, true),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any typed error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}
