// README: Order store backed by PostgreSQL; every transition is one conditional UPDATE.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxiride/internal/types"
)

var ErrNotFound = errors.New("order not found")

const orderColumns = `
	id, passenger_id, driver_id, status,
	from_address, to_address, city, region, country, scheduled_at,
	cost, currency, commission, commission_stars, commission_tx_id,
	initiator_id, cancel_reason,
	created_at, accepted_at, arrived_at, ready_at, started_at, ended_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	var scheduled *time.Time
	if o.ScheduledAt != nil {
		t := o.ScheduledAt.UTC()
		scheduled = &t
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, passenger_id, status,
			from_address, to_address, city, region, country, scheduled_at,
			cost, currency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(o.ID),
		string(o.PassengerID),
		string(StatusPending),
		o.FromAddress,
		o.ToAddress,
		o.City,
		o.Region,
		o.Country,
		scheduled,
		o.Cost.Amount,
		o.Cost.Currency,
		o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

// GetForUpdate re-reads an order inside the caller's transaction holding the
// row lock. The order row is the unit of mutual exclusion for claim, capture
// and cancel.
func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, id types.ID) (*Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, string(id))
	return scanOrder(row)
}

func (s *Store) GetTx(ctx context.Context, tx pgx.Tx, id types.ID) (*Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

// Claim assigns a driver and moves pending → awaiting_fee in one conditional
// UPDATE. Zero rows affected means the order was already claimed or is gone.
// Inside a transaction the successful UPDATE also locks the row until commit.
func (s *Store) Claim(ctx context.Context, tx pgx.Tx, id, driverID types.ID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET driver_id = $2, status = $3
		WHERE id = $1 AND status = $4 AND driver_id IS NULL`,
		string(id), string(driverID), string(StatusAwaitingFee), string(StatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetCommission persists the computed fee on a freshly claimed order.
func (s *Store) SetCommission(ctx context.Context, tx pgx.Tx, id types.ID, commission int64, stars types.Stars) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders
		SET commission = $2, commission_stars = $3
		WHERE id = $1`,
		string(id), commission, int64(stars),
	)
	return err
}

// Accept finalizes the claim: awaiting_fee → accepted, stamping the
// acceptance time once and the paying ledger transaction if the fee was
// nonzero.
func (s *Store) Accept(ctx context.Context, tx pgx.Tx, id types.ID, commissionTxID *int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    commission_tx_id = $3,
		    accepted_at = COALESCE(accepted_at, NOW())
		WHERE id = $1 AND status = $4`,
		string(id), string(StatusAccepted), commissionTxID, string(StatusAwaitingFee),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// transition applies "SET new status WHERE current status is in the allowed
// predecessor set". Reapplying a transition whose predicate no longer holds
// affects zero rows and is reported as not applied, never as an error.
// Timestamps are first-write-wins.
func (s *Store) transition(ctx context.Context, id types.ID, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    arrived_at = CASE WHEN $1 = 'in_place' THEN COALESCE(arrived_at, NOW()) ELSE arrived_at END,
		    ready_at   = CASE WHEN $1 = 'come_out' THEN COALESCE(ready_at, NOW()) ELSE ready_at END,
		    started_at = CASE WHEN $1 = 'started' THEN COALESCE(started_at, NOW()) ELSE started_at END,
		    ended_at   = CASE WHEN $1 = 'completed' THEN COALESCE(ended_at, NOW()) ELSE ended_at END
		WHERE id = $2 AND status = ANY($3)`,
		string(to), string(id), statusStrings(Predecessors(to)),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkArrived(ctx context.Context, id types.ID) (bool, error) {
	return s.transition(ctx, id, StatusInPlace)
}

func (s *Store) MarkPassengerReady(ctx context.Context, id types.ID) (bool, error) {
	return s.transition(ctx, id, StatusComeOut)
}

func (s *Store) MarkStarted(ctx context.Context, id, driverID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    started_at = COALESCE(started_at, NOW())
		WHERE id = $2 AND driver_id = $3 AND status = ANY($4)`,
		string(StatusStarted), string(id), string(driverID),
		statusStrings(Predecessors(StatusStarted)),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete moves started → completed and returns the passenger to notify.
func (s *Store) Complete(ctx context.Context, id, driverID types.ID) (*types.ID, error) {
	var passengerID string
	err := s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $1,
		    ended_at = COALESCE(ended_at, NOW())
		WHERE id = $2 AND driver_id = $3 AND status = $4
		RETURNING passenger_id`,
		string(StatusCompleted), string(id), string(driverID), string(StatusStarted),
	).Scan(&passengerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pid := types.ID(passengerID)
	return &pid, nil
}

type CancelInfo struct {
	PassengerID types.ID
	DriverID    *types.ID
}

// Cancel terminates an order from any active state, recording the initiator
// and the end time. A race against a stage transition is resolved by
// whichever predicate matches first; the loser sees zero rows.
func (s *Store) Cancel(ctx context.Context, id, initiatorID types.ID, reason string) (*CancelInfo, error) {
	var passengerID string
	var driverID *string
	err := s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $1,
		    initiator_id = $3,
		    cancel_reason = $4,
		    ended_at = COALESCE(ended_at, NOW())
		WHERE id = $2 AND status = ANY($5)
		RETURNING passenger_id, driver_id`,
		string(StatusCanceled), string(id), string(initiatorID), reason,
		statusStrings(Predecessors(StatusCanceled)),
	).Scan(&passengerID, &driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info := &CancelInfo{PassengerID: types.ID(passengerID)}
	if driverID != nil {
		d := types.ID(*driverID)
		info.DriverID = &d
	}
	return info, nil
}

// CancelTx is the capture-side variant used when the caller already holds the
// order row lock.
func (s *Store) CancelTx(ctx context.Context, tx pgx.Tx, id, initiatorID types.ID, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    initiator_id = $3,
		    cancel_reason = $4,
		    ended_at = COALESCE(ended_at, NOW())
		WHERE id = $2 AND status = ANY($5)`,
		string(StatusCanceled), string(id), string(initiatorID), reason,
		statusStrings(Predecessors(StatusCanceled)),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO order_events (order_id, actor_id, actor_role, event, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), actorID, e.ActorRole, e.Name, payload, e.CreatedAt,
	)
	return err
}

func (s *Store) HasActiveByPassenger(ctx context.Context, passengerID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE passenger_id = $1
			  AND status NOT IN ('completed','canceled')
		)`, string(passengerID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var driverID, initiatorID, cancelReason *string
	var scheduledAt, acceptedAt, arrivedAt, readyAt, startedAt, endedAt *time.Time

	err := row.Scan(
		&o.ID, &o.PassengerID, &driverID, &o.Status,
		&o.FromAddress, &o.ToAddress, &o.City, &o.Region, &o.Country, &scheduledAt,
		&o.Cost.Amount, &o.Cost.Currency, &o.Commission, &o.CommissionStars, &o.CommissionTxID,
		&initiatorID, &cancelReason,
		&o.CreatedAt, &acceptedAt, &arrivedAt, &readyAt, &startedAt, &endedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID != nil {
		d := types.ID(*driverID)
		o.DriverID = &d
	}
	if initiatorID != nil {
		i := types.ID(*initiatorID)
		o.InitiatorID = &i
	}
	o.CancelReason = cancelReason
	o.ScheduledAt = scheduledAt
	o.AcceptedAt = acceptedAt
	o.ArrivedAt = arrivedAt
	o.ReadyAt = readyAt
	o.StartedAt = startedAt
	o.EndedAt = endedAt
	return &o, nil
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
