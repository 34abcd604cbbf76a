package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/scoring"
	applogger "MarketPulse/pkg/logger"
)

const (
	// MarketSummary is the summary line stored with every daily report.
	MarketSummary = "TWSE after-close snapshot: daily bars stored and Top20 generated (v1 day-0 scoring)"
	// SingleDayWarning is the report-level limitation notice for day-0 scoring.
	SingleDayWarning = "v1 limitation: single-day data only; moving averages, drawdown, historical volatility and institutional flow are not used yet"
)

// ScoreResult is what a scoring pass produced for one date.
type ScoreResult struct {
	Date   time.Time
	Scored int
	Top    []models.TopEntry
}

// DailyScoringUseCase scores every instrument of a day, replaces the stored
// scores and writes the report with the mixed Top-N.
type DailyScoringUseCase struct {
	bars    domrepo.BarStore
	scores  domrepo.ScoreStore
	reports domrepo.ReportStore
	scorer  domsvc.Scorer
	quotas  []scoring.Quota
	l       *applogger.Logger
	m       domrepo.Metrics
}

func NewDailyScoringUseCase(bars domrepo.BarStore, scores domrepo.ScoreStore, reports domrepo.ReportStore, scorer domsvc.Scorer, m domrepo.Metrics) *DailyScoringUseCase {
	return &DailyScoringUseCase{
		bars:    bars,
		scores:  scores,
		reports: reports,
		scorer:  scorer,
		quotas:  scoring.DefaultQuotas,
		m:       m,
	}
}

// SetLogger injects a structured logger.
func (uc *DailyScoringUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// ScoreDay returns models.ErrNoDataForDate without writing anything when the
// date has no bars.
func (uc *DailyScoringUseCase) ScoreDay(ctx context.Context, date time.Time) (res *ScoreResult, err error) {
	start := time.Now()
	defer func() { observeStage(uc.m, "score", start, err) }()

	bars, err := uc.bars.BarsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, models.ErrNoDataForDate
	}

	scores, err := uc.scorer.Score(date, bars)
	if err != nil {
		return nil, err
	}
	if err := uc.scores.ReplaceScores(ctx, date, scores); err != nil {
		return nil, err
	}

	top := scoring.SelectTop(scores, uc.quotas)
	if err := uc.reports.UpsertReport(ctx, models.DailyReport{
		Date:          date,
		MarketSummary: MarketSummary,
		Warnings:      []string{SingleDayWarning},
		Top20:         top,
	}); err != nil {
		return nil, err
	}

	if uc.l != nil {
		uc.l.Info("scoring ok",
			applogger.Date("date", date),
			applogger.Int("bars", len(bars)),
			applogger.Int("scored", len(scores)),
			applogger.Int("top", len(top)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &ScoreResult{Date: date, Scored: len(scores), Top: top}, nil
}
