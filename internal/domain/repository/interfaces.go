package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// BarStore persists daily bars and the instrument identity they carry.
type BarStore interface {
	Init(ctx context.Context) error
	UpsertBars(ctx context.Context, bars []models.DailyBar) error
	BarsForDate(ctx context.Context, date time.Time) ([]models.DailyBar, error)
	// LatestDate returns the most recent date with bars; ok is false when the store is empty.
	LatestDate(ctx context.Context) (date time.Time, ok bool, err error)
}

// ScoreStore persists daily scores. ReplaceScores is all-or-nothing: readers
// observe either the previous set for the date or the new one.
type ScoreStore interface {
	ReplaceScores(ctx context.Context, date time.Time, scores []models.DailyScore) error
	// ListScores returns the visible scores for date ordered by total desc, symbol asc.
	// An empty bucket means all buckets; limit <= 0 means no limit.
	ListScores(ctx context.Context, date time.Time, bucket models.Bucket, limit int) ([]models.DailyScore, error)
	Distribution(ctx context.Context, date time.Time) (models.ScoreDistribution, error)
}

// ReportStore persists one report row per date.
type ReportStore interface {
	// UpsertReport writes summary, warnings and Top-N, keeping any comment and
	// snapshot fields already stored for the date.
	UpsertReport(ctx context.Context, r models.DailyReport) error
	// GetReport returns models.ErrMissingReport when no row exists.
	GetReport(ctx context.Context, date time.Time) (*models.DailyReport, error)
	LatestReportDate(ctx context.Context) (date time.Time, ok bool, err error)
	SaveComment(ctx context.Context, date time.Time, text string) error
	SaveSnapshot(ctx context.Context, snap models.MarketSnapshot, fields models.SnapshotFields) error
}

// EventPublisher announces completed runs.
type EventPublisher interface {
	PublishReport(ctx context.Context, evt models.ReportEvent) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordStage(stage, outcome string, seconds float64)
	RecordError(kind string)
	RecordBars(count int)
	RecordMalformed(fields int)
	RecordSnapshot(snap models.MarketSnapshot)
}
