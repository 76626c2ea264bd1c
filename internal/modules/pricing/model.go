// README: Commission rate definition per city.
package pricing

import "github.com/shopspring/decimal"

// Rate controls how a fare converts into a Stars fee: commission is
// CommissionPct percent of the fare, rounded up to whole cash units, then
// divided by StarValue (cash value of one Star), rounded up to whole Stars.
type Rate struct {
	City          string          `json:"city"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
	StarValue     int64           `json:"star_value"`
}
