package scoring

import (
	"sort"

	"MarketPulse/internal/domain/models"
)

// Quota is the number of Top-N slots reserved for a bucket.
type Quota struct {
	Bucket models.Bucket
	Limit  int
}

// DefaultQuotas yields the 20-row mixed list: 6 trend, 6 stable, 4 liquidity, 4 volatility.
var DefaultQuotas = []Quota{
	{models.BucketTrend, 6},
	{models.BucketStable, 6},
	{models.BucketLiquidity, 4},
	{models.BucketVolatility, 4},
}

// SelectTop picks up to Limit rows per bucket by score_total descending,
// symbol ascending on ties, and concatenates the groups in quota order.
// Buckets with fewer members contribute what they have.
func SelectTop(scores []models.DailyScore, quotas []Quota) []models.TopEntry {
	byBucket := make(map[models.Bucket][]models.DailyScore, len(quotas))
	for _, s := range scores {
		byBucket[s.Bucket] = append(byBucket[s.Bucket], s)
	}

	out := make([]models.TopEntry, 0, totalLimit(quotas))
	for _, q := range quotas {
		rows := byBucket[q.Bucket]
		SortByScore(rows)
		if len(rows) > q.Limit {
			rows = rows[:q.Limit]
		}
		for _, r := range rows {
			out = append(out, models.NewTopEntry(r))
		}
	}
	return out
}

// SortByScore orders scores by total descending, then symbol ascending.
func SortByScore(rows []models.DailyScore) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Symbol < rows[j].Symbol
	})
}

func totalLimit(quotas []Quota) int {
	n := 0
	for _, q := range quotas {
		n += q.Limit
	}
	return n
}
