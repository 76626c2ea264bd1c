// README: Order handlers for placement, fetch, and the ride lifecycle.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxiride/internal/modules/order"
	"taxiride/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	City        string     `json:"city"`
	Region      string     `json:"region"`
	Country     string     `json:"country"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Cost        int64      `json:"cost"`
	Currency    string     `json:"currency"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "RUB"
	}
	id, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		PassengerID: authedID(c),
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		City:        req.City,
		Region:      req.Region,
		Country:     req.Country,
		ScheduledAt: req.ScheduledAt,
		Cost:        types.Money{Amount: req.Cost, Currency: currency},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (h *OrderHandler) Arrived(c *gin.Context) {
	if !requireRole(c, "driver") {
		return
	}
	applied, err := h.order.MarkDriverArrived(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applied": applied})
}

func (h *OrderHandler) Ready(c *gin.Context) {
	applied, err := h.order.MarkPassengerReady(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applied": applied})
}

func (h *OrderHandler) Start(c *gin.Context) {
	if !requireRole(c, "driver") {
		return
	}
	applied, err := h.order.MarkTripStarted(c.Request.Context(), types.ID(c.Param("id")), authedID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applied": applied})
}

func (h *OrderHandler) Complete(c *gin.Context) {
	if !requireRole(c, "driver") {
		return
	}
	passengerID, err := h.order.Complete(c.Request.Context(), types.ID(c.Param("id")), authedID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"completed": passengerID != nil, "passenger_id": passengerID})
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelOrderReq
	_ = c.ShouldBindJSON(&req)
	info, err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:     types.ID(c.Param("id")),
		InitiatorID: authedID(c),
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if info == nil {
		writeJSON(c, http.StatusOK, gin.H{"canceled": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"canceled":     true,
		"passenger_id": info.PassengerID,
		"driver_id":    info.DriverID,
	})
}

func orderView(o *order.Order) gin.H {
	return gin.H{
		"order_id":         o.ID,
		"passenger_id":     o.PassengerID,
		"driver_id":        o.DriverID,
		"status":           o.Status,
		"from_address":     o.FromAddress,
		"to_address":       o.ToAddress,
		"city":             o.City,
		"cost":             o.Cost.Amount,
		"currency":         o.Cost.Currency,
		"commission_stars": o.CommissionStars,
		"scheduled_at":     o.ScheduledAt,
		"created_at":       o.CreatedAt,
	}
}
