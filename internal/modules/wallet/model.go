// README: Wallet balance and ledger transaction definitions.
package wallet

import (
	"time"

	"taxiride/internal/types"
)

type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

type Reason string

const (
	ReasonCommission Reason = "commission"
	ReasonRefund     Reason = "refund"
	ReasonTopup      Reason = "topup"
)

// Balance is the materialized projection of a user's ledger. It is only
// ever written together with a matching Transaction row.
type Balance struct {
	UserID    types.ID
	Stars     types.Stars
	UpdatedAt time.Time
}

// Transaction is an immutable ledger entry. Rows are never updated or
// deleted; the sum of credits minus debits per user must equal the user's
// current balance.
type Transaction struct {
	ID          int64
	Ref         string
	UserID      types.ID
	Direction   Direction
	AmountStars types.Stars
	Reason      Reason
	OrderID     *types.ID
	RelatedTxID *int64
	Meta        map[string]string
	CreatedAt   time.Time
}
