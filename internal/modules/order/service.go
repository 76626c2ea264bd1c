// README: Order service; placement plus the guarded lifecycle transitions.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taxiride/internal/types"
)

var (
	ErrBadRequest  = errors.New("bad request")
	ErrActiveOrder = errors.New("passenger has active order")
)

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

type CreateCommand struct {
	PassengerID types.ID
	FromAddress string
	ToAddress   string
	City        string
	Region      string
	Country     string
	ScheduledAt *time.Time
	Cost        types.Money
}

type CancelCommand struct {
	OrderID     types.ID
	InitiatorID types.ID
	Reason      string
}

// Create inserts a new pending order on behalf of the placement collaborator.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.PassengerID == "" || cmd.FromAddress == "" || cmd.ToAddress == "" {
		return "", ErrBadRequest
	}
	if cmd.Cost.Amount <= 0 {
		return "", ErrBadRequest
	}
	active, err := s.store.HasActiveByPassenger(ctx, cmd.PassengerID)
	if err != nil {
		return "", err
	}
	if active {
		return "", ErrActiveOrder
	}

	id := types.ID(uuid.NewString())
	now := time.Now().UTC()
	o := &Order{
		ID:          id,
		PassengerID: cmd.PassengerID,
		Status:      StatusPending,
		FromAddress: cmd.FromAddress,
		ToAddress:   cmd.ToAddress,
		City:        cmd.City,
		Region:      cmd.Region,
		Country:     cmd.Country,
		ScheduledAt: cmd.ScheduledAt,
		Cost:        cmd.Cost,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	s.appendEvent(ctx, &Event{
		OrderID:   id,
		ActorID:   &cmd.PassengerID,
		ActorRole: "passenger",
		Name:      "order_created",
		Payload:   map[string]string{"city": cmd.City},
		CreatedAt: now,
	})
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// MarkDriverArrived moves accepted → in_place. A false return means the
// predecessor predicate no longer holds; retries are harmless no-ops.
func (s *Service) MarkDriverArrived(ctx context.Context, id types.ID) (bool, error) {
	applied, err := s.store.MarkArrived(ctx, id)
	if err != nil {
		s.logger.Error("mark arrived failed", "order_id", id, "err", err)
		return false, err
	}
	if applied {
		s.appendEvent(ctx, &Event{
			OrderID:   id,
			ActorRole: "driver",
			Name:      "driver_arrived",
			CreatedAt: time.Now().UTC(),
		})
	}
	return applied, nil
}

// MarkPassengerReady moves in_place → come_out.
func (s *Service) MarkPassengerReady(ctx context.Context, id types.ID) (bool, error) {
	applied, err := s.store.MarkPassengerReady(ctx, id)
	if err != nil {
		s.logger.Error("mark passenger ready failed", "order_id", id, "err", err)
		return false, err
	}
	if applied {
		s.appendEvent(ctx, &Event{
			OrderID:   id,
			ActorRole: "passenger",
			Name:      "passenger_ready",
			CreatedAt: time.Now().UTC(),
		})
	}
	return applied, nil
}

// MarkTripStarted moves in_place/come_out → started for the assigned driver.
func (s *Service) MarkTripStarted(ctx context.Context, id, driverID types.ID) (bool, error) {
	applied, err := s.store.MarkStarted(ctx, id, driverID)
	if err != nil {
		s.logger.Error("mark started failed", "order_id", id, "driver_id", driverID, "err", err)
		return false, err
	}
	if applied {
		s.appendEvent(ctx, &Event{
			OrderID:   id,
			ActorID:   &driverID,
			ActorRole: "driver",
			Name:      "trip_started",
			CreatedAt: time.Now().UTC(),
		})
	}
	return applied, nil
}

// Complete moves started → completed and returns the passenger to notify, or
// nil when the transition was not applicable.
func (s *Service) Complete(ctx context.Context, id, driverID types.ID) (*types.ID, error) {
	passengerID, err := s.store.Complete(ctx, id, driverID)
	if err != nil {
		s.logger.Error("complete failed", "order_id", id, "driver_id", driverID, "err", err)
		return nil, err
	}
	if passengerID != nil {
		s.appendEvent(ctx, &Event{
			OrderID:   id,
			ActorID:   &driverID,
			ActorRole: "driver",
			Name:      "order_completed",
			CreatedAt: time.Now().UTC(),
		})
	}
	return passengerID, nil
}

// Cancel terminates an order from any active state. A nil result means the
// order was already terminal (or gone) and nothing changed.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*CancelInfo, error) {
	if cmd.OrderID == "" || cmd.InitiatorID == "" {
		return nil, ErrBadRequest
	}
	info, err := s.store.Cancel(ctx, cmd.OrderID, cmd.InitiatorID, cmd.Reason)
	if err != nil {
		s.logger.Error("cancel failed", "order_id", cmd.OrderID, "initiator_id", cmd.InitiatorID, "err", err)
		return nil, err
	}
	if info != nil {
		s.appendEvent(ctx, &Event{
			OrderID:   cmd.OrderID,
			ActorID:   &cmd.InitiatorID,
			ActorRole: "initiator",
			Name:      "order_canceled",
			Payload:   map[string]string{"reason": cmd.Reason},
			CreatedAt: time.Now().UTC(),
		})
	}
	return info, nil
}

// appendEvent is fire-and-forget: audit failures are logged and swallowed.
func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.logger.Warn("audit append failed", "order_id", e.OrderID, "event", e.Name, "err", err)
	}
}
