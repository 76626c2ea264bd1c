// README: Pricing math tests (rounding behavior).
package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"taxiride/internal/types"
)

// TestFeeForRate verifies that both conversion steps round up: the cash
// commission to whole currency units, then the fee to whole Stars.
func TestFeeForRate(t *testing.T) {
	cases := []struct {
		name           string
		cost           int64
		pct            string
		starValue      int64
		wantCommission int64
		wantStars      types.Stars
	}{
		{"exact division", 100, "5", 1, 5, 5},
		{"commission rounds up", 101, "5", 1, 6, 6},
		{"stars round up", 100, "5", 2, 5, 3},
		{"tiny fare still charges a star", 1, "5", 20, 1, 1},
		{"zero cost", 0, "5", 1, 0, 0},
		{"zero pct", 100, "0", 1, 0, 0},
		{"fractional pct", 1000, "2.5", 1, 25, 25},
		{"fractional pct rounds up", 1001, "2.5", 1, 26, 26},
		{"large fare", 1_000_000, "7.5", 20, 75_000, 3750},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct, err := decimal.NewFromString(tc.pct)
			if err != nil {
				t.Fatalf("parse pct: %v", err)
			}
			commission, stars := FeeForRate(
				types.Money{Amount: tc.cost, Currency: "RUB"},
				Rate{CommissionPct: pct, StarValue: tc.starValue},
			)
			if commission != tc.wantCommission {
				t.Errorf("commission = %d, want %d", commission, tc.wantCommission)
			}
			if stars != tc.wantStars {
				t.Errorf("stars = %d, want %d", stars, tc.wantStars)
			}
		})
	}
}

// TestFeeForRateNeverUndercharges checks the ceil invariant across a range
// of fares: stars * starValue >= commission.
func TestFeeForRateNeverUndercharges(t *testing.T) {
	pct := decimal.NewFromFloat(3.7)
	for cost := int64(1); cost <= 2000; cost++ {
		commission, stars := FeeForRate(
			types.Money{Amount: cost, Currency: "RUB"},
			Rate{CommissionPct: pct, StarValue: 17},
		)
		if commission <= 0 || stars <= 0 {
			t.Fatalf("cost %d: nonpositive fee (%d, %d)", cost, commission, stars)
		}
		if int64(stars)*17 < commission {
			t.Fatalf("cost %d: stars %d undercharge commission %d", cost, stars, commission)
		}
	}
}
