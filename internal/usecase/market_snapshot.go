package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	applogger "MarketPulse/pkg/logger"
)

// MarketSnapshotUseCase builds the market snapshot for a date and writes the
// configured fields onto the report.
type MarketSnapshotUseCase struct {
	bars    domrepo.BarStore
	scores  domrepo.ScoreStore
	reports domrepo.ReportStore
	builder domsvc.SnapshotBuilder
	fields  models.SnapshotFields
	l       *applogger.Logger
	m       domrepo.Metrics
}

func NewMarketSnapshotUseCase(bars domrepo.BarStore, scores domrepo.ScoreStore, reports domrepo.ReportStore, builder domsvc.SnapshotBuilder, fields models.SnapshotFields, m domrepo.Metrics) *MarketSnapshotUseCase {
	return &MarketSnapshotUseCase{bars: bars, scores: scores, reports: reports, builder: builder, fields: fields, m: m}
}

// SetLogger injects a structured logger.
func (uc *MarketSnapshotUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// Fields returns the snapshot fields the report sink writes.
func (uc *MarketSnapshotUseCase) Fields() models.SnapshotFields { return uc.fields }

// Build computes the snapshot from the stored bars and scores. A day without
// bars still yields a snapshot.
func (uc *MarketSnapshotUseCase) Build(ctx context.Context, date time.Time) (models.MarketSnapshot, error) {
	bars, err := uc.bars.BarsForDate(ctx, date)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	dist, err := uc.scores.Distribution(ctx, date)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	return uc.builder.Build(date, bars, dist), nil
}

// Store writes the enabled fields of snap onto its report.
func (uc *MarketSnapshotUseCase) Store(ctx context.Context, snap models.MarketSnapshot, fields models.SnapshotFields) error {
	if !fields.Any() {
		return nil
	}
	return uc.reports.SaveSnapshot(ctx, snap, fields)
}

// BuildAndStore builds the snapshot and persists the configured fields.
func (uc *MarketSnapshotUseCase) BuildAndStore(ctx context.Context, date time.Time) (snap models.MarketSnapshot, err error) {
	start := time.Now()
	defer func() { observeStage(uc.m, "snapshot", start, err) }()

	snap, err = uc.Build(ctx, date)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	if err := uc.Store(ctx, snap, uc.fields); err != nil {
		return models.MarketSnapshot{}, err
	}
	if uc.m != nil {
		uc.m.RecordSnapshot(snap)
	}
	if uc.l != nil {
		uc.l.Info("snapshot stored",
			applogger.Date("date", date),
			applogger.Int("market_score", snap.MarketScore),
			applogger.String("market_state", string(snap.MarketState)),
			applogger.Int("capital_advice", snap.CapitalAdvice),
			applogger.Int("bars", snap.Breadth.Total),
		)
	}
	return snap, nil
}
