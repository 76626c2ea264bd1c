// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"taxiride/internal/config"
	httptransport "taxiride/internal/http"
	"taxiride/internal/infra"
	"taxiride/internal/modules/order"
	"taxiride/internal/modules/pricing"
	"taxiride/internal/modules/reservation"
	"taxiride/internal/modules/wallet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	walletStore := wallet.NewStore(dbPool)
	walletSvc := wallet.NewService(walletStore, logger)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, logger)

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(
		pricingStore,
		redisClient,
		pricing.Rate{
			CommissionPct: decimal.NewFromFloat(cfg.Commission.DefaultPct),
			StarValue:     cfg.Commission.StarValue,
		},
		time.Duration(cfg.Commission.RateCacheSeconds)*time.Second,
		logger,
	)

	reservationSvc := reservation.NewService(dbPool, orderStore, walletStore, pricingSvc, logger)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Order:       orderSvc,
		Reservation: reservationSvc,
		Wallet:      walletSvc,
		JWTSecret:   cfg.Auth.JWTSecret,
		Logger:      logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}
