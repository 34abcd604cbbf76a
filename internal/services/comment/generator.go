// Package comment renders the rule-based commentary stored with a daily report.
package comment

import (
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
)

var bucketTitles = map[models.Bucket]string{
	models.BucketTrend:      "Trend/Momentum",
	models.BucketStable:     "Stable/Low volatility",
	models.BucketLiquidity:  "Volume/Liquidity",
	models.BucketVolatility: "Volatility/Event",
}

var bucketReadings = map[models.Bucket]string{
	models.BucketTrend:      "Momentum stands out (the day's move ranks near the top of the market); check that volume and range confirm it.",
	models.BucketStable:     "Range is relatively low and price action steady; weak volume alongside it can turn into liquidity risk.",
	models.BucketLiquidity:  "Volume and turnover are relatively strong, easy to enter and exit; still weigh volatility and momentum.",
	models.BucketVolatility: "Intraday range is relatively wide, an event or volatility name; higher risk, size small and keep stops tight.",
}

const fallbackReading = "Not a clear fit for a main bucket, but the combined score still ranks near the top."

// Generator renders fixed templates per bucket. It is deterministic.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate returns the commentary for a Top-N list, or models.ErrEmptyTopList.
func (g *Generator) Generate(date time.Time, top []models.TopEntry) (string, error) {
	if len(top) == 0 {
		return "", models.ErrEmptyTopList
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top%d reading for %s (v1, rule-based, single-day data)\n", len(top), date.Format("2006-01-02"))
	sb.WriteString("Note: ranks are relative to the same day's OHLC and volume only. Not investment advice.\n")

	for i, it := range top {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%02d) %s | %s (%s | total %d)\n", i+1, it.Symbol, it.Name, BucketTitle(it.Bucket), it.ScoreTotal)
		fmt.Fprintf(&sb, "    signals: liquidity %d | volatility %d | momentum %d\n",
			it.Signals.Liquidity, it.Signals.Volatility, it.Signals.Momentum)
		fmt.Fprintf(&sb, "    reading: %s %s\n", reading(it.Bucket), warningText(it.Warnings))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// BucketTitle is the display title for a bucket; unknown buckets echo their key.
func BucketTitle(b models.Bucket) string {
	if t, ok := bucketTitles[b]; ok {
		return t
	}
	return string(b)
}

func reading(b models.Bucket) string {
	if r, ok := bucketReadings[b]; ok {
		return r
	}
	return fallbackReading
}

func warningText(ws []models.Warning) string {
	if len(ws) == 0 {
		return "(no extra warnings)"
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = string(w)
	}
	return "⚠ " + strings.Join(parts, ", ")
}
