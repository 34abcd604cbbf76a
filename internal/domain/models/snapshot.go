package models

import "time"

// MarketState is the label derived from the market score.
type MarketState string

const (
	StateRiskOn  MarketState = "risk_on"
	StateBullish MarketState = "bullish"
	StateNeutral MarketState = "neutral"
	StateBearish MarketState = "bearish"
	StateRiskOff MarketState = "risk_off"
)

// Breadth summarizes advancers, decliners and the change distribution for a day.
type Breadth struct {
	Total           int     `json:"total"`
	Adv             int     `json:"adv"`
	Dec             int     `json:"dec"`
	Flat            int     `json:"flat"`
	AdvRatio        float64 `json:"adv_ratio"`
	DecRatio        float64 `json:"dec_ratio"`
	BigUp           int     `json:"big_up_pct_ge_7"`
	BigDown         int     `json:"big_down_pct_le_-7"`
	ExtremeRatio    float64 `json:"extreme_ratio"`
	MedianChangePct float64 `json:"median_change_pct"`
	P10ChangePct    float64 `json:"p10_change_pct"`
	P90ChangePct    float64 `json:"p90_change_pct"`
	SumVolume       int64   `json:"sum_volume"`
	SumTurnover     int64   `json:"sum_turnover"`
}

// ScoreDistribution summarizes the day's score totals.
type ScoreDistribution struct {
	N           int      `json:"n"`
	Avg         *float64 `json:"avg"`
	Min         *int     `json:"min"`
	Max         *int     `json:"max"`
	BuyGE70     int      `json:"buy_ge_70"`
	Watch55to69 int      `json:"watch_55_69"`
	AvoidLT55   int      `json:"avoid_lt_55"`
}

// ActionThreshold is one row of the static guidance table.
type ActionThreshold struct {
	Range  string `json:"range"`
	Action string `json:"action"`
	Note   string `json:"note"`
}

// MarketSnapshot is the market-wide health record for one date.
type MarketSnapshot struct {
	Date          time.Time         `json:"date"`
	MarketScore   int               `json:"market_score"`
	MarketState   MarketState       `json:"market_state"`
	CapitalAdvice int               `json:"capital_advice"`
	Thresholds    []ActionThreshold `json:"thresholds"`
	Breadth       Breadth           `json:"breadth"`
	Scores        ScoreDistribution `json:"scores"`
}
