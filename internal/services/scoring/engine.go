// Package scoring ranks one day's bars by relative liquidity, volatility and
// momentum, assigns each instrument a bucket and selects the mixed Top-N list.
package scoring

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/features"
)

const (
	highVolatilityAt = 85
	lowLiquidityAt   = 10
	largeMoveAt      = 0.08
	metaPrecision    = 6
)

// weights per bucket: primary component first, then supporting components.
type weights struct {
	momentum, stability, liquidity, volatility, calm float64
}

var bucketWeights = map[models.Bucket]weights{
	models.BucketTrend:      {momentum: 0.5, liquidity: 0.3, stability: 0.2},
	models.BucketStable:     {stability: 0.6, liquidity: 0.3, calm: 0.1},
	models.BucketLiquidity:  {liquidity: 0.7, stability: 0.2, momentum: 0.1},
	models.BucketVolatility: {volatility: 0.6, liquidity: 0.2, momentum: 0.2},
}

// Components are the four 0..100 component scores of one instrument.
type Components struct {
	Liquidity  int
	Volatility int
	Momentum   int
	Stability  int
}

// Engine scores a day of bars. It holds no state between calls.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Score computes one DailyScore per bar for date. Bars with a different date
// are scored as given; callers pass a single day's set.
// Returns models.ErrNoDataForDate for an empty input.
func (e *Engine) Score(date time.Time, bars []models.DailyBar) ([]models.DailyScore, error) {
	if len(bars) == 0 {
		return nil, models.ErrNoDataForDate
	}

	fs := make([]features.BarFeatures, len(bars))
	for i, b := range bars {
		fs[i] = features.Extract(b)
	}
	bounds := features.ComputeBounds(fs)

	out := make([]models.DailyScore, len(bars))
	for i, b := range bars {
		out[i] = scoreOne(date, b, fs[i], bounds)
	}
	return out, nil
}

func scoreOne(date time.Time, b models.DailyBar, f features.BarFeatures, bounds features.Bounds) models.DailyScore {
	c := ComputeComponents(f, bounds)
	bucket := AssignBucket(c)

	meta := models.ScoreMeta{
		RangePct: features.RoundTo(f.RangePct, metaPrecision),
		Warnings: Warnings(c, b.Open.Valid && models.Float(b.Open) > 0, f.ChangePct),
	}
	if f.Base > 0 {
		v := features.RoundTo(f.ChangePct, metaPrecision)
		meta.ChangePct = &v
	}

	return models.DailyScore{
		Date:       date,
		Symbol:     b.Symbol,
		Name:       b.Name,
		Bucket:     bucket,
		Total:      Total(bucket, c),
		Liquidity:  c.Liquidity,
		Volatility: c.Volatility,
		Momentum:   c.Momentum,
		Stability:  c.Stability,
		Meta:       meta,
	}
}

// ComputeComponents normalizes features against the day's bounds.
func ComputeComponents(f features.BarFeatures, b features.Bounds) Components {
	liq := features.RoundInt(100 * math.Max(b.Volume.Norm(f.Volume), b.Turnover.Norm(f.Turnover)))
	vol := features.RoundInt(100 * b.RangePct.Norm(f.RangePct))
	mom := features.RoundInt(100 * math.Max(b.ChangeAbs.Norm(f.ChangeAbs), b.ChangePct.Norm(f.ChangePct)))
	return Components{
		Liquidity:  liq,
		Volatility: vol,
		Momentum:   mom,
		Stability:  100 - vol,
	}
}

// AssignBucket picks the bucket whose driving component is strictly largest,
// walking models.BucketPriority so the earlier bucket wins ties.
func AssignBucket(c Components) models.Bucket {
	best := models.BucketPriority[0]
	bestVal := driver(best, c)
	for _, k := range models.BucketPriority[1:] {
		if v := driver(k, c); v > bestVal {
			best, bestVal = k, v
		}
	}
	return best
}

func driver(b models.Bucket, c Components) int {
	switch b {
	case models.BucketTrend:
		return c.Momentum
	case models.BucketStable:
		return c.Stability
	case models.BucketLiquidity:
		return c.Liquidity
	default:
		return c.Volatility
	}
}

// Total applies the bucket's weights, rounds and clamps to [0,100].
func Total(b models.Bucket, c Components) int {
	w := bucketWeights[b]
	t := w.momentum*float64(c.Momentum) +
		w.stability*float64(c.Stability) +
		w.liquidity*float64(c.Liquidity) +
		w.volatility*float64(c.Volatility) +
		w.calm*float64(100-c.Volatility)
	return features.ClampInt(features.RoundInt(t), 0, 100)
}

// Warnings lists risk flags in a fixed order. The large-move flag needs a
// positive open price.
func Warnings(c Components, hasOpen bool, changePct float64) []models.Warning {
	out := []models.Warning{}
	if c.Volatility >= highVolatilityAt {
		out = append(out, models.WarnHighVolatility)
	}
	if c.Liquidity <= lowLiquidityAt {
		out = append(out, models.WarnLowLiquidity)
	}
	if hasOpen && math.Abs(changePct) >= largeMoveAt {
		out = append(out, models.WarnLargeMove)
	}
	return out
}
