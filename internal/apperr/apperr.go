package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSliceNotFound is returned when a catalog slice does not exist.
	ErrSliceNotFound = errors.New("pizza slice not found")
	// ErrPurchaseNotFound is returned when a purchase record does not exist.
	ErrPurchaseNotFound = errors.New("purchase record not found")
	// ErrInsufficientCoins is returned when the balance cannot cover a purchase.
	ErrInsufficientCoins = errors.New("not enough coins")
	// ErrAlreadyEaten is returned when a purchase record was already logged as eaten.
	ErrAlreadyEaten = errors.New("slice already logged as eaten")
	// ErrNotOwner is returned when a purchase record belongs to another user.
	ErrNotOwner = errors.New("purchase record belongs to another user")
	// ErrEmptyCart is returned when a purchase has no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPurchaseIncomplete is returned when coins were debited but the
	// purchase records could not be written. The debit is not reverted.
	ErrPurchaseIncomplete = errors.New("purchase incomplete: coins debited but records not saved")
)

// Error codes carried in error response bodies.
const (
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeSliceNotFound      = "SLICE_NOT_FOUND"
	CodePurchaseNotFound   = "PURCHASE_NOT_FOUND"
	CodeInsufficientCoins  = "INSUFFICIENT_COINS"
	CodeAlreadyEaten       = "ALREADY_EATEN"
	CodeNotOwner           = "NOT_OWNER"
	CodeEmptyCart          = "EMPTY_CART"
	CodeInvalidInput       = "INVALID_INPUT"
	CodePurchaseIncomplete = "PURCHASE_INCOMPLETE"
	CodeInternal           = "INTERNAL_ERROR"
)

var codes = []struct {
	err    error
	status int
	code   string
}{
	{ErrUserNotFound, http.StatusNotFound, CodeUserNotFound},
	{ErrSliceNotFound, http.StatusNotFound, CodeSliceNotFound},
	{ErrPurchaseNotFound, http.StatusNotFound, CodePurchaseNotFound},
	{ErrInsufficientCoins, http.StatusBadRequest, CodeInsufficientCoins},
	{ErrAlreadyEaten, http.StatusConflict, CodeAlreadyEaten},
	{ErrNotOwner, http.StatusForbidden, CodeNotOwner},
	{ErrEmptyCart, http.StatusBadRequest, CodeEmptyCart},
	{ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput},
	{ErrPurchaseIncomplete, http.StatusInternalServerError, CodePurchaseIncomplete},
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Wrapped errors keep
// their full message.
func MapErrorToHTTP(err error) *HTTPError {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return NewHTTPError(c.status, err.Error(), c.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", CodeInternal)
}

// FromCode returns the sentinel for an error code, or nil when the code is
// unknown. Used by clients to turn response bodies back into sentinels.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
