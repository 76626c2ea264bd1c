// README: Wallet store backed by PostgreSQL; balance and ledger are co-written in one tx.
package wallet

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxiride/internal/types"
)

var (
	ErrUserNotFound        = errors.New("user wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("transaction not found")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureUser(ctx context.Context, userID types.ID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, balance, balance_updated_at)
		VALUES ($1, 0, NOW())
		ON CONFLICT (id) DO NOTHING`,
		string(userID),
	)
	return err
}

func (s *Store) GetBalance(ctx context.Context, userID types.ID) (Balance, error) {
	return s.getBalance(ctx, s.db, userID)
}

// GetBalanceTx reads a balance inside the caller's transaction. The read is
// advisory only; the debit itself is guarded by the conditional decrement.
func (s *Store) GetBalanceTx(ctx context.Context, tx pgx.Tx, userID types.ID) (Balance, error) {
	return s.getBalance(ctx, tx, userID)
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) getBalance(ctx context.Context, q rowQueryer, userID types.ID) (Balance, error) {
	row := q.QueryRow(ctx, `
		SELECT id, balance, balance_updated_at
		FROM users
		WHERE id = $1`, string(userID),
	)
	var b Balance
	err := row.Scan(&b.UserID, &b.Stars, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrUserNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Debit decrements a balance and appends the matching ledger row in a single
// transaction. The decrement is conditional on balance >= amount evaluated at
// commit time, so concurrent debits can never overdraw.
func (s *Store) Debit(ctx context.Context, userID types.ID, orderID *types.ID, amount types.Stars, reason Reason, meta map[string]string) (*Transaction, types.Stars, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, after, err := s.DebitTx(ctx, tx, userID, orderID, amount, reason, meta)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	committed = true
	return entry, after, nil
}

// DebitTx performs the conditional decrement plus ledger insert inside the
// caller's transaction. On ErrInsufficientBalance no row has been touched.
func (s *Store) DebitTx(ctx context.Context, tx pgx.Tx, userID types.ID, orderID *types.ID, amount types.Stars, reason Reason, meta map[string]string) (*Transaction, types.Stars, error) {
	if amount <= 0 {
		return nil, 0, errors.New("debit amount must be positive")
	}

	var after types.Stars
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET balance = balance - $2,
		    balance_updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`,
		string(userID), int64(amount),
	).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		// Zero rows means either no wallet or not enough credit.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
			string(userID),
		).Scan(&exists); err != nil {
			return nil, 0, err
		}
		if !exists {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, ErrInsufficientBalance
	}
	if err != nil {
		return nil, 0, err
	}

	entry, err := s.insertTransaction(ctx, tx, &Transaction{
		Ref:         uuid.NewString(),
		UserID:      userID,
		Direction:   DirectionDebit,
		AmountStars: amount,
		Reason:      reason,
		OrderID:     orderID,
		Meta:        meta,
	})
	if err != nil {
		return nil, 0, err
	}
	return entry, after, nil
}

// Credit increments a balance and appends the matching ledger row atomically.
// relatedTxID links a refund to the debit it reverses.
func (s *Store) Credit(ctx context.Context, userID types.ID, orderID *types.ID, amount types.Stars, reason Reason, relatedTxID *int64, meta map[string]string) (*Transaction, types.Stars, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, after, err := s.CreditTx(ctx, tx, userID, orderID, amount, reason, relatedTxID, meta)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	committed = true
	return entry, after, nil
}

func (s *Store) CreditTx(ctx context.Context, tx pgx.Tx, userID types.ID, orderID *types.ID, amount types.Stars, reason Reason, relatedTxID *int64, meta map[string]string) (*Transaction, types.Stars, error) {
	if amount <= 0 {
		return nil, 0, errors.New("credit amount must be positive")
	}

	var after types.Stars
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET balance = balance + $2,
		    balance_updated_at = NOW()
		WHERE id = $1
		RETURNING balance`,
		string(userID), int64(amount),
	).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrUserNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	entry, err := s.insertTransaction(ctx, tx, &Transaction{
		Ref:         uuid.NewString(),
		UserID:      userID,
		Direction:   DirectionCredit,
		AmountStars: amount,
		Reason:      reason,
		OrderID:     orderID,
		RelatedTxID: relatedTxID,
		Meta:        meta,
	})
	if err != nil {
		return nil, 0, err
	}
	return entry, after, nil
}

func (s *Store) insertTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) (*Transaction, error) {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil {
		return nil, err
	}
	var orderID *string
	if t.OrderID != nil {
		v := string(*t.OrderID)
		orderID = &v
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO users_transactions (
			ref, user_id, direction, amount_stars, reason,
			order_id, related_tx_id, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created_at`,
		t.Ref,
		string(t.UserID),
		string(t.Direction),
		int64(t.AmountStars),
		string(t.Reason),
		orderID,
		t.RelatedTxID,
		metaJSON,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, txID int64) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, ref, user_id, direction, amount_stars, reason,
		       order_id, related_tx_id, meta, created_at
		FROM users_transactions
		WHERE id = $1`, txID,
	)
	return scanTransaction(row)
}

func (s *Store) ListTransactions(ctx context.Context, userID types.ID, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, ref, user_id, direction, amount_stars, reason,
		       order_id, related_tx_id, meta, created_at
		FROM users_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`, string(userID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LedgerSum returns credits minus debits for a user, for reconciliation
// against the materialized balance.
func (s *Store) LedgerSum(ctx context.Context, userID types.ID) (types.Stars, error) {
	var sum int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE direction WHEN 'credit' THEN amount_stars ELSE -amount_stars END), 0)
		FROM users_transactions
		WHERE user_id = $1`, string(userID),
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return types.Stars(sum), nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var orderID *string
	var metaJSON []byte
	err := row.Scan(
		&t.ID, &t.Ref, &t.UserID, &t.Direction, &t.AmountStars, &t.Reason,
		&orderID, &t.RelatedTxID, &metaJSON, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if orderID != nil {
		v := types.ID(*orderID)
		t.OrderID = &v
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &t.Meta)
	}
	return &t, nil
}
