// README: Wallet service; debit/credit surface for the commission and top-up flows.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taxiride/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Service struct {
	store  *Store
	logger *slog.Logger
}

func NewService(store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

type DebitCommand struct {
	UserID  types.ID
	OrderID *types.ID
	Amount  types.Stars
	Meta    map[string]string
}

type CreditCommand struct {
	UserID      types.ID
	OrderID     *types.ID
	Amount      types.Stars
	RelatedTxID *int64
	Meta        map[string]string
}

// DebitCommission charges a service fee against a driver's prepaid balance.
// Callers must not retry a succeeded debit; commission idempotency is
// enforced by the reservation coordinator through order state.
func (s *Service) DebitCommission(ctx context.Context, cmd DebitCommand) (*Transaction, types.Stars, error) {
	if cmd.UserID == "" || cmd.Amount <= 0 {
		return nil, 0, ErrBadRequest
	}
	entry, after, err := s.store.Debit(ctx, cmd.UserID, cmd.OrderID, cmd.Amount, ReasonCommission, cmd.Meta)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrUserNotFound) {
			return nil, 0, err
		}
		s.logger.Error("commission debit failed",
			"user_id", cmd.UserID, "order_id", deref(cmd.OrderID), "amount", cmd.Amount, "err", err)
		return nil, 0, fmt.Errorf("debit commission: %w", err)
	}
	return entry, after, nil
}

// CreditTopup adds purchased Stars to a wallet, creating the wallet row on
// first top-up.
func (s *Service) CreditTopup(ctx context.Context, cmd CreditCommand) (*Transaction, types.Stars, error) {
	if cmd.UserID == "" || cmd.Amount <= 0 {
		return nil, 0, ErrBadRequest
	}
	if err := s.store.EnsureUser(ctx, cmd.UserID); err != nil {
		s.logger.Error("ensure wallet failed", "user_id", cmd.UserID, "err", err)
		return nil, 0, fmt.Errorf("ensure wallet: %w", err)
	}
	entry, after, err := s.store.Credit(ctx, cmd.UserID, cmd.OrderID, cmd.Amount, ReasonTopup, nil, cmd.Meta)
	if err != nil {
		s.logger.Error("topup credit failed", "user_id", cmd.UserID, "amount", cmd.Amount, "err", err)
		return nil, 0, fmt.Errorf("credit topup: %w", err)
	}
	return entry, after, nil
}

// CreditRefund reverses a previous commission debit. The related transaction
// must exist, belong to the same user, and be a debit.
func (s *Service) CreditRefund(ctx context.Context, cmd CreditCommand) (*Transaction, types.Stars, error) {
	if cmd.UserID == "" || cmd.Amount <= 0 || cmd.RelatedTxID == nil {
		return nil, 0, ErrBadRequest
	}
	orig, err := s.store.GetTransaction(ctx, *cmd.RelatedTxID)
	if err != nil {
		return nil, 0, err
	}
	if orig.UserID != cmd.UserID || orig.Direction != DirectionDebit {
		return nil, 0, ErrBadRequest
	}
	if cmd.Amount > orig.AmountStars {
		return nil, 0, ErrBadRequest
	}
	orderID := cmd.OrderID
	if orderID == nil {
		orderID = orig.OrderID
	}
	entry, after, err := s.store.Credit(ctx, cmd.UserID, orderID, cmd.Amount, ReasonRefund, cmd.RelatedTxID, cmd.Meta)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, 0, err
		}
		s.logger.Error("refund credit failed",
			"user_id", cmd.UserID, "related_tx_id", *cmd.RelatedTxID, "err", err)
		return nil, 0, fmt.Errorf("credit refund: %w", err)
	}
	return entry, after, nil
}

func (s *Service) Balance(ctx context.Context, userID types.ID) (Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID types.ID, limit int) ([]*Transaction, error) {
	return s.store.ListTransactions(ctx, userID, limit)
}

func deref(id *types.ID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}
