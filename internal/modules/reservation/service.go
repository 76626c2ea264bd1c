// README: Reservation coordinator; order claim, commission debit, deferred capture.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxiride/internal/modules/order"
	"taxiride/internal/modules/pricing"
	"taxiride/internal/modules/wallet"
	"taxiride/internal/types"
)

var (
	ErrOrderUnavailable = errors.New("order unavailable")
	ErrDriverNotFound   = errors.New("driver not found")
)

// Service coordinates the claim and capture flows. Each public operation is
// exactly one store transaction; the order row lock taken inside it is the
// only synchronization point, so claim, capture and cancel are mutually
// exclusive per order.
type Service struct {
	db      *pgxpool.Pool
	orders  *order.Store
	wallet  *wallet.Store
	pricing *pricing.Service
	logger  *slog.Logger
}

func NewService(db *pgxpool.Pool, orders *order.Store, walletStore *wallet.Store, pricingSvc *pricing.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, orders: orders, wallet: walletStore, pricing: pricingSvc, logger: logger}
}

// Reserve claims a pending order for a driver, computes the commission fee
// and either captures it or parks the order in awaiting_fee. A duplicate
// call by the claiming driver is a safe no-op returning the current state;
// any other loser of the claim race gets ErrOrderUnavailable.
func (s *Service) Reserve(ctx context.Context, orderID, driverID types.ID) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	claimed, err := s.orders.Claim(ctx, tx, orderID, driverID)
	if err != nil {
		s.logger.Error("claim failed", "order_id", orderID, "driver_id", driverID, "err", err)
		return nil, fmt.Errorf("claim order: %w", err)
	}

	if !claimed {
		// Lost the race or the order is gone; a retried call by the
		// winning driver resolves idempotently.
		o, err := s.orders.GetTx(ctx, tx, orderID)
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrOrderUnavailable
		}
		if err != nil {
			return nil, err
		}
		if o.DriverID == nil || *o.DriverID != driverID {
			return nil, ErrOrderUnavailable
		}
		res := s.resultFromOrder(ctx, tx, o)
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
		return res, nil
	}

	o, err := s.orders.GetTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	commission, stars, err := s.pricing.CommissionFee(ctx, o.Cost, o.City)
	if err != nil {
		s.logger.Error("commission rate lookup failed", "order_id", orderID, "city", o.City, "err", err)
		return nil, fmt.Errorf("commission fee: %w", err)
	}
	if err := s.orders.SetCommission(ctx, tx, orderID, commission, stars); err != nil {
		return nil, fmt.Errorf("persist commission: %w", err)
	}

	res, err := s.settle(ctx, tx, orderID, driverID, commission, stars)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	s.auditClaim(ctx, orderID, driverID, res)
	return res, nil
}

// CaptureAfterTopup retries the commission debit once the driver's balance
// has been topped up. It re-reads the order under the row lock so a cancel
// racing the capture is observed as a plain status check.
func (s *Service) CaptureAfterTopup(ctx context.Context, orderID, driverID types.ID) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	o, err := s.orders.GetForUpdate(ctx, tx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, ErrOrderUnavailable
	}
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil || *o.DriverID != driverID {
		return nil, ErrOrderUnavailable
	}
	if o.Status == order.StatusAccepted {
		// Fee already captured by a concurrent retry.
		res := &Result{
			Status:          o.Status,
			CommissionStars: o.CommissionStars,
			CommissionTxID:  o.CommissionTxID,
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
		return res, nil
	}
	if o.Status != order.StatusAwaitingFee {
		return nil, ErrOrderUnavailable
	}

	res, err := s.settle(ctx, tx, orderID, driverID, o.Commission, o.CommissionStars)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	if res.Status == order.StatusAccepted {
		s.appendEvent(ctx, orderID, driverID, "commission_captured", map[string]string{
			"stars": strconv.FormatInt(int64(res.CommissionStars), 10),
		})
	}
	return res, nil
}

// settle runs the debit-and-accept tail shared by claim and capture. The
// caller holds the order row lock; the order is in awaiting_fee.
func (s *Service) settle(ctx context.Context, tx pgx.Tx, orderID, driverID types.ID, commission int64, stars types.Stars) (*Result, error) {
	if stars <= 0 {
		if ok, err := s.orders.Accept(ctx, tx, orderID, nil); err != nil {
			return nil, fmt.Errorf("accept order: %w", err)
		} else if !ok {
			return nil, ErrOrderUnavailable
		}
		return &Result{Status: order.StatusAccepted}, nil
	}

	bal, err := s.wallet.GetBalanceTx(ctx, tx, driverID)
	if errors.Is(err, wallet.ErrUserNotFound) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	if bal.Stars < stars {
		b := bal.Stars
		return &Result{
			Status:          order.StatusAwaitingFee,
			CommissionStars: stars,
			DriverBalance:   &b,
			NeedsTopup:      true,
		}, nil
	}

	meta := map[string]string{"commission": strconv.FormatInt(commission, 10)}
	entry, after, err := s.wallet.DebitTx(ctx, tx, driverID, &orderID, stars, wallet.ReasonCommission, meta)
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		// Raced by a concurrent debit for the same driver; degrade to
		// the top-up flow instead of erroring.
		b := bal.Stars
		return &Result{
			Status:          order.StatusAwaitingFee,
			CommissionStars: stars,
			DriverBalance:   &b,
			NeedsTopup:      true,
		}, nil
	}
	if errors.Is(err, wallet.ErrUserNotFound) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		s.logger.Error("commission debit failed", "order_id", orderID, "driver_id", driverID, "stars", stars, "err", err)
		return nil, fmt.Errorf("debit commission: %w", err)
	}

	ok, err := s.orders.Accept(ctx, tx, orderID, &entry.ID)
	if err != nil {
		s.logger.Error("finalize accept failed", "order_id", orderID, "driver_id", driverID, "err", err)
		return nil, fmt.Errorf("accept order: %w", err)
	}
	if !ok {
		return nil, ErrOrderUnavailable
	}
	return &Result{
		Status:          order.StatusAccepted,
		CommissionStars: stars,
		CommissionTxID:  &entry.ID,
		DriverBalance:   &after,
	}, nil
}

// resultFromOrder rebuilds the reservation outcome for an idempotent retry.
func (s *Service) resultFromOrder(ctx context.Context, tx pgx.Tx, o *order.Order) *Result {
	res := &Result{
		Status:          o.Status,
		CommissionStars: o.CommissionStars,
		CommissionTxID:  o.CommissionTxID,
	}
	if o.Status == order.StatusAwaitingFee && o.CommissionStars > 0 {
		res.NeedsTopup = true
		if bal, err := s.wallet.GetBalanceTx(ctx, tx, *o.DriverID); err == nil {
			b := bal.Stars
			res.DriverBalance = &b
		}
	}
	return res
}

func (s *Service) auditClaim(ctx context.Context, orderID, driverID types.ID, res *Result) {
	s.appendEvent(ctx, orderID, driverID, "order_claimed", map[string]string{
		"status": string(res.Status),
	})
	if res.NeedsTopup {
		s.appendEvent(ctx, orderID, driverID, "commission_pending", map[string]string{
			"stars": strconv.FormatInt(int64(res.CommissionStars), 10),
		})
	} else if res.CommissionTxID != nil {
		s.appendEvent(ctx, orderID, driverID, "commission_captured", map[string]string{
			"stars": strconv.FormatInt(int64(res.CommissionStars), 10),
		})
	}
}

func (s *Service) appendEvent(ctx context.Context, orderID, driverID types.ID, name string, payload map[string]string) {
	err := s.orders.AppendEvent(ctx, &order.Event{
		OrderID:   orderID,
		ActorID:   &driverID,
		ActorRole: "driver",
		Name:      name,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit append failed", "order_id", orderID, "event", name, "err", err)
	}
}
