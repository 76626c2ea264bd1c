// README: Pricing service; rate lookup with redis cache and Stars fee math.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"taxiride/internal/types"
)

const cacheKeyPrefix = "commission_rate:"

type Service struct {
	store    *Store
	cache    *redis.Client
	fallback Rate
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewService(store *Store, cache *redis.Client, fallback Rate, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, fallback: fallback, cacheTTL: cacheTTL, logger: logger}
}

// Rate resolves the commission rate for a city: redis cache, then the rates
// table, then the configured fallback. Cache failures degrade to the store.
func (s *Service) Rate(ctx context.Context, city string) (Rate, error) {
	key := cacheKeyPrefix + city
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var r Rate
			if json.Unmarshal(data, &r) == nil {
				return r, nil
			}
		}
	}

	r, err := s.store.GetRate(ctx, city)
	if errors.Is(err, ErrRateNotFound) {
		r = s.fallback
		r.City = city
	} else if err != nil {
		return Rate{}, err
	}

	if s.cache != nil {
		data, _ := json.Marshal(r)
		if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			s.logger.Warn("rate cache set failed", "city", city, "err", err)
		}
	}
	return r, nil
}

// CommissionFee computes the cash commission and its Stars equivalent for a
// fare. Both divisions round up: the marketplace never undercharges by a
// fractional unit.
func (s *Service) CommissionFee(ctx context.Context, cost types.Money, city string) (int64, types.Stars, error) {
	r, err := s.Rate(ctx, city)
	if err != nil {
		return 0, 0, err
	}
	commission, stars := FeeForRate(cost, r)
	return commission, stars, nil
}

// FeeForRate is the pure fee computation for a known rate.
func FeeForRate(cost types.Money, r Rate) (int64, types.Stars) {
	if cost.Amount <= 0 || r.CommissionPct.Sign() <= 0 {
		return 0, 0
	}
	commission := decimal.NewFromInt(cost.Amount).
		Mul(r.CommissionPct).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart()
	if commission <= 0 {
		return 0, 0
	}
	starValue := r.StarValue
	if starValue <= 0 {
		starValue = 1
	}
	stars := decimal.NewFromInt(commission).
		Div(decimal.NewFromInt(starValue)).
		Ceil().
		IntPart()
	return commission, types.Stars(stars)
}
