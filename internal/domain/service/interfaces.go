package service

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// BarSource fetches the latest end-of-day snapshot of the whole market.
// Rows without their own date take fallbackDate.
type BarSource interface {
	FetchBars(ctx context.Context, fallbackDate time.Time) ([]models.DailyBar, error)
}

// Scorer turns one day's bars into per-instrument scores.
type Scorer interface {
	Score(date time.Time, bars []models.DailyBar) ([]models.DailyScore, error)
}

// SnapshotBuilder derives the market snapshot for a day.
type SnapshotBuilder interface {
	Build(date time.Time, bars []models.DailyBar, dist models.ScoreDistribution) models.MarketSnapshot
}

// CommentGenerator renders commentary for a Top-N list.
type CommentGenerator interface {
	Generate(date time.Time, top []models.TopEntry) (string, error)
}
