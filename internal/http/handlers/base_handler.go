// README: Base handler utilities (JSON helpers, auth context, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxiride/internal/modules/order"
	"taxiride/internal/modules/reservation"
	"taxiride/internal/modules/wallet"
	"taxiride/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// authedID returns the authenticated caller's id from the auth middleware.
func authedID(c *gin.Context) types.ID {
	v, _ := c.Get("user_id")
	s, _ := v.(string)
	return types.ID(s)
}

func authedRole(c *gin.Context) string {
	v, _ := c.Get("role")
	s, _ := v.(string)
	return s
}

// requireRole aborts with 403 unless the caller carries the role claim.
func requireRole(c *gin.Context, role string) bool {
	if authedRole(c) != role {
		writeError(c, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Unexpected
// errors surface as a generic retryable failure without internal detail.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest) || errors.Is(err, wallet.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "bad request")
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrActiveOrder):
		writeError(c, http.StatusConflict, "passenger already has an active order")
	case errors.Is(err, reservation.ErrOrderUnavailable):
		writeError(c, http.StatusConflict, "order no longer available")
	case errors.Is(err, reservation.ErrDriverNotFound), errors.Is(err, wallet.ErrUserNotFound):
		writeError(c, http.StatusNotFound, "wallet not found")
	case errors.Is(err, wallet.ErrNotFound):
		writeError(c, http.StatusNotFound, "transaction not found")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
