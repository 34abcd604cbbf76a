package models

import "time"

// Bucket is the behavioral category an instrument is assigned to for a day.
type Bucket string

const (
	BucketTrend      Bucket = "trend"
	BucketStable     Bucket = "stable"
	BucketLiquidity  Bucket = "liquidity"
	BucketVolatility Bucket = "volatility"
)

// BucketPriority is the order used both for bucket tie-breaks and for the
// concatenation of the Top-N list.
var BucketPriority = []Bucket{BucketTrend, BucketStable, BucketLiquidity, BucketVolatility}

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	for _, k := range BucketPriority {
		if b == k {
			return true
		}
	}
	return false
}

// Warning is a risk flag attached to a daily score.
type Warning string

const (
	WarnHighVolatility Warning = "high volatility"
	WarnLowLiquidity   Warning = "low liquidity"
	WarnLargeMove      Warning = "single-day move ≥8%"
)

// ScoreMeta carries the diagnostics stored alongside a score.
type ScoreMeta struct {
	RangePct  float64   `json:"range_pct"`
	ChangePct *float64  `json:"change_pct"`
	Warnings  []Warning `json:"warnings"`
}

// DailyScore is the per-instrument result of scoring one date.
// Stability is always 100 - Volatility and is not persisted.
type DailyScore struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name,omitempty"`
	Bucket     Bucket    `json:"bucket"`
	Total      int       `json:"score_total"`
	Liquidity  int       `json:"score_liquidity"`
	Volatility int       `json:"score_volatility"`
	Momentum   int       `json:"score_momentum"`
	Stability  int       `json:"score_stability"`
	Meta       ScoreMeta `json:"meta"`
}

// Signals is the component breakdown exposed in the Top-N list.
type Signals struct {
	Liquidity  int `json:"liquidity"`
	Volatility int `json:"volatility"`
	Momentum   int `json:"momentum"`
}

// TopEntry is one row of the daily Top-N list.
type TopEntry struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	Bucket     Bucket    `json:"bucket"`
	ScoreTotal int       `json:"score_total"`
	Signals    Signals   `json:"signals"`
	Warnings   []Warning `json:"warnings"`
}

// NewTopEntry projects a score into a Top-N row.
func NewTopEntry(s DailyScore) TopEntry {
	name := s.Name
	if name == "" {
		name = s.Symbol
	}
	warnings := s.Meta.Warnings
	if warnings == nil {
		warnings = []Warning{}
	}
	return TopEntry{
		Symbol:     s.Symbol,
		Name:       name,
		Bucket:     s.Bucket,
		ScoreTotal: s.Total,
		Signals: Signals{
			Liquidity:  s.Liquidity,
			Volatility: s.Volatility,
			Momentum:   s.Momentum,
		},
		Warnings: warnings,
	}
}
