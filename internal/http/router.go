// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxiride/internal/http/handlers"
	"taxiride/internal/http/middleware"
	"taxiride/internal/modules/order"
	"taxiride/internal/modules/reservation"
	"taxiride/internal/modules/wallet"
)

type RouterDeps struct {
	Order       *order.Service
	Reservation *reservation.Service
	Wallet      *wallet.Service
	JWTSecret   string
	Logger      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.JWTSecret))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/arrived", orderHandler.Arrived)
	api.POST("/orders/:id/ready", orderHandler.Ready)
	api.POST("/orders/:id/start", orderHandler.Start)
	api.POST("/orders/:id/complete", orderHandler.Complete)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	reservationHandler := handlers.NewReservationHandler(deps.Reservation)
	api.POST("/orders/:id/reserve", reservationHandler.Reserve)
	api.POST("/orders/:id/capture", reservationHandler.Capture)

	walletHandler := handlers.NewWalletHandler(deps.Wallet, deps.Reservation)
	api.GET("/wallet/balance", walletHandler.Balance)
	api.GET("/wallet/transactions", walletHandler.Transactions)
	api.POST("/wallet/topup", walletHandler.Topup)
	api.POST("/wallet/refund", walletHandler.Refund)

	return r
}
