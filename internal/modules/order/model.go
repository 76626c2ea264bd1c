// README: Order aggregate, status definitions, and the lifecycle transition table.
package order

import (
	"time"

	"taxiride/internal/types"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusAwaitingFee Status = "awaiting_fee"
	StatusAccepted    Status = "accepted"
	StatusInPlace     Status = "in_place"
	StatusComeOut     Status = "come_out"
	StatusStarted     Status = "started"
	StatusCompleted   Status = "completed"
	StatusCanceled    Status = "canceled"
)

type Order struct {
	ID          types.ID
	PassengerID types.ID
	DriverID    *types.ID
	Status      Status

	FromAddress string
	ToAddress   string
	City        string
	Region      string
	Country     string
	ScheduledAt *time.Time

	Cost            types.Money
	Commission      int64
	CommissionStars types.Stars
	CommissionTxID  *int64

	InitiatorID  *types.ID
	CancelReason *string

	CreatedAt  time.Time
	AcceptedAt *time.Time
	ArrivedAt  *time.Time
	ReadyAt    *time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
}

// Event is a best-effort audit record. Append failures never affect the
// business outcome.
type Event struct {
	ID        int64
	OrderID   types.ID
	ActorID   *types.ID
	ActorRole string
	Name      string
	Payload   map[string]string
	CreatedAt time.Time
}

// AllowedTransitions represents the order state flow as code. A driver can
// start the trip from in_place even if the passenger never confirmed coming
// out; no transition ever moves status backward.
var AllowedTransitions = map[Status][]Status{
	StatusPending:     {StatusAwaitingFee, StatusCanceled},
	StatusAwaitingFee: {StatusAccepted, StatusCanceled},
	StatusAccepted:    {StatusInPlace, StatusCanceled},
	StatusInPlace:     {StatusComeOut, StatusStarted, StatusCanceled},
	StatusComeOut:     {StatusStarted, StatusCanceled},
	StatusStarted:     {StatusCompleted, StatusCanceled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Predecessors returns every status from which `to` is reachable. The store
// uses this set as the WHERE predicate of a conditional transition.
func Predecessors(to Status) []Status {
	var out []Status
	for from, nexts := range AllowedTransitions {
		for _, s := range nexts {
			if s == to {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCanceled
}
