// README: Reservation handlers for driver claim and post-topup capture.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxiride/internal/modules/reservation"
	"taxiride/internal/types"
)

type ReservationHandler struct {
	reservation *reservation.Service
}

func NewReservationHandler(svc *reservation.Service) *ReservationHandler {
	return &ReservationHandler{reservation: svc}
}

func (h *ReservationHandler) Reserve(c *gin.Context) {
	if !requireRole(c, "driver") {
		return
	}
	res, err := h.reservation.Reserve(c.Request.Context(), types.ID(c.Param("id")), authedID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, reservationView(res))
}

func (h *ReservationHandler) Capture(c *gin.Context) {
	if !requireRole(c, "driver") {
		return
	}
	res, err := h.reservation.CaptureAfterTopup(c.Request.Context(), types.ID(c.Param("id")), authedID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, reservationView(res))
}

func reservationView(res *reservation.Result) gin.H {
	return gin.H{
		"status":           res.Status,
		"commission_stars": res.CommissionStars,
		"commission_tx_id": res.CommissionTxID,
		"driver_balance":   res.DriverBalance,
		"needs_topup":      res.NeedsTopup,
	}
}
