package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar is one instrument's end-of-day record. Any numeric field may be
// missing in the source feed; at most one bar exists per (Symbol, Date).
type DailyBar struct {
	Symbol   string              `json:"symbol"`
	Name     string              `json:"name"`
	Market   string              `json:"market"`
	Date     time.Time           `json:"date"`
	Open     decimal.NullDecimal `json:"open"`
	High     decimal.NullDecimal `json:"high"`
	Low      decimal.NullDecimal `json:"low"`
	Close    decimal.NullDecimal `json:"close"`
	Change   decimal.NullDecimal `json:"change"`
	Volume   *int64              `json:"volume"`
	Turnover *int64              `json:"turnover"`
}

// Float returns the value of a nullable decimal, or 0 when it is absent.
func Float(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	f, _ := d.Decimal.Float64()
	return f
}

// IntOrZero returns *v or 0.
func IntOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
