package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/catalog"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

// writeError maps domain errors to a status and a stable error code.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "detail": err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, cart.ErrOutOfRange):
		return http.StatusNotFound, "out_of_range"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "unknown_pizza"
	case errors.Is(err, orders.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrStatusMismatch):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, orders.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, orders.ErrStoreUnavailable),
		errors.Is(err, catalog.ErrStoreUnavailable),
		errors.Is(err, cart.ErrSlotUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
