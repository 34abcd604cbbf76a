// Package snapshot derives the market-wide health record for one trading day.
package snapshot

import (
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/features"
)

const (
	bigMovePct     = 7.0
	buyFrom        = 70
	watchFrom      = 55
	baseScore      = 50
	extremeCutAt   = 10.0
	extremeCutSize = 10
)

// Aggregator builds snapshots. It reads its inputs and never mutates them.
type Aggregator struct{}

func NewAggregator() *Aggregator { return &Aggregator{} }

// Build combines breadth over bars with the given score distribution.
func (a *Aggregator) Build(date time.Time, bars []models.DailyBar, dist models.ScoreDistribution) models.MarketSnapshot {
	breadth := ComputeBreadth(bars)
	score := MarketScore(breadth, dist)
	return models.MarketSnapshot{
		Date:          date,
		MarketScore:   score,
		MarketState:   State(score),
		CapitalAdvice: CapitalAdvice(score, breadth.ExtremeRatio),
		Thresholds:    Thresholds(),
		Breadth:       breadth,
		Scores:        dist,
	}
}

// ComputeBreadth counts advancers, decliners, big movers and the distribution
// of percent changes against the previous close (close - change).
func ComputeBreadth(bars []models.DailyBar) models.Breadth {
	var b models.Breadth
	pcts := make([]float64, 0, len(bars))

	for _, bar := range bars {
		chg := models.Float(bar.Change)
		prev := models.Float(bar.Close) - chg
		pct := 0.0
		if prev != 0 {
			pct = chg / prev * 100
		}
		pcts = append(pcts, pct)

		switch {
		case chg > 0:
			b.Adv++
		case chg < 0:
			b.Dec++
		default:
			b.Flat++
		}
		if pct >= bigMovePct {
			b.BigUp++
		}
		if pct <= -bigMovePct {
			b.BigDown++
		}
		b.SumVolume += models.IntOrZero(bar.Volume)
		b.SumTurnover += models.IntOrZero(bar.Turnover)
	}

	b.Total = len(bars)
	if b.Total > 0 {
		total := float64(b.Total)
		b.AdvRatio = features.RoundTo(float64(b.Adv)/total*100, 1)
		b.DecRatio = features.RoundTo(float64(b.Dec)/total*100, 1)
		b.ExtremeRatio = features.RoundTo(float64(b.BigUp+b.BigDown)/total*100, 1)
	}

	sort.Float64s(pcts)
	b.MedianChangePct = features.RoundTo(features.PercentileSorted(pcts, 50), 2)
	b.P10ChangePct = features.RoundTo(features.PercentileSorted(pcts, 10), 2)
	b.P90ChangePct = features.RoundTo(features.PercentileSorted(pcts, 90), 2)
	return b
}

// DistributionFromScores summarizes score totals in memory. Stores compute the
// same figures with SQL aggregates.
func DistributionFromScores(scores []models.DailyScore) models.ScoreDistribution {
	d := models.ScoreDistribution{N: len(scores)}
	if d.N == 0 {
		return d
	}
	sum := 0
	lo, hi := scores[0].Total, scores[0].Total
	for _, s := range scores {
		sum += s.Total
		if s.Total < lo {
			lo = s.Total
		}
		if s.Total > hi {
			hi = s.Total
		}
		switch {
		case s.Total >= buyFrom:
			d.BuyGE70++
		case s.Total >= watchFrom:
			d.Watch55to69++
		default:
			d.AvoidLT55++
		}
	}
	avg := features.RoundTo(float64(sum)/float64(d.N), 1)
	d.Avg, d.Min, d.Max = &avg, &lo, &hi
	return d
}

// MarketScore starts at 50 and applies breadth, average-score and extreme-move
// adjustments, each taking the first matching rung.
func MarketScore(b models.Breadth, d models.ScoreDistribution) int {
	s := float64(baseScore)

	switch adv := b.AdvRatio; {
	case adv >= 60:
		s += 15
	case adv >= 52:
		s += 8
	case adv <= 40:
		s -= 15
	case adv <= 48:
		s -= 8
	}

	if d.Avg != nil {
		switch avg := *d.Avg; {
		case avg >= 62:
			s += 10
		case avg >= 58:
			s += 6
		case avg <= 50:
			s -= 10
		case avg <= 54:
			s -= 6
		}
	}

	switch ext := b.ExtremeRatio; {
	case ext >= 12:
		s -= 8
	case ext >= 8:
		s -= 4
	}

	return features.ClampInt(features.RoundInt(s), 0, 100)
}

// State labels a market score.
func State(score int) models.MarketState {
	switch {
	case score >= 70:
		return models.StateRiskOn
	case score >= 60:
		return models.StateBullish
	case score <= 35:
		return models.StateRiskOff
	case score <= 45:
		return models.StateBearish
	default:
		return models.StateNeutral
	}
}

// CapitalAdvice is the market score, cut by 10 (floor 0) on extreme days.
func CapitalAdvice(score int, extremeRatio float64) int {
	advice := score
	if extremeRatio >= extremeCutAt {
		advice -= extremeCutSize
		if advice < 0 {
			advice = 0
		}
	}
	return features.ClampInt(advice, 0, 100)
}
