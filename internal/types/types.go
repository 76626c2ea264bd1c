// README: Common value objects shared across modules.
package types

// ID is an opaque identifier for users and orders.
type ID string

// Money is a cash amount in the smallest unit of Currency.
type Money struct {
	Amount   int64
	Currency string
}

// Stars is a wallet-credit amount. Balances and commission fees are
// denominated in whole Stars.
type Stars int64
