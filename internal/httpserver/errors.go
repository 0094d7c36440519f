package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

var errInvalidToken = errors.New("invalid or expired token")

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: ErrCartNotFound also matches ErrNotFound.
var errorMappings = []errorMapping{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "sign in or start an anonymous session first"},
	{errInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid or expired token"},
	{customersvc.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid or expired token"},
	{customersvc.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", "resource belongs to another account"},
	{domain.ErrCartNotFound, http.StatusNotFound, "cart_not_found", "no open cart"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "resource not found"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists", "resource already exists"},
	{domain.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart", "cart has no lines"},
	{domain.ErrMissingShippingAddress, http.StatusUnprocessableEntity, "missing_shipping_address", "bind a shipping address before placing the order"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity", "quantity must be positive"},
	{domain.ErrTransactionFailed, http.StatusServiceUnavailable, "transaction_failed", "storage unavailable, try again"},
}

// writeError maps service errors to a status and a stable error code. Only
// transaction failures are retryable.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrValidation) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: err.Error()})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, errorBody{
				Error:     m.code,
				Message:   m.message,
				Retryable: m.target == domain.ErrTransactionFailed,
			})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "unexpected error"})
}

func abortBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}
