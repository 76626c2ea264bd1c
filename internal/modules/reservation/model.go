// README: Reservation result returned to driver-facing callers.
package reservation

import (
	"taxiride/internal/modules/order"
	"taxiride/internal/types"
)

// Result describes the outcome of a claim or capture attempt. NeedsTopup is
// a business outcome, not an error: the caller prompts a top-up for the
// exact CommissionStars fee.
type Result struct {
	Status          order.Status
	CommissionStars types.Stars
	CommissionTxID  *int64
	DriverBalance   *types.Stars
	NeedsTopup      bool
}
