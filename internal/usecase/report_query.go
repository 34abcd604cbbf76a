package usecase

import (
	"context"
	"errors"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	svcmetrics "MarketPulse/internal/service/metrics"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

const (
	reportKeyPrefix   = "report"
	snapshotKeyPrefix = "snapshot"
	scoresKeyPrefix   = "scores"
	latestReportKey   = "report:latest"
)

func reportKey(date time.Time) string {
	return cache.GenerateKey(reportKeyPrefix, util.FormatDate(date))
}

func snapshotKey(date time.Time) string {
	return cache.GenerateKey(snapshotKeyPrefix, util.FormatDate(date))
}

func scoresKey(date time.Time, bucket models.Bucket, limit int) string {
	return cache.GenerateKeyWithParams(scoresKeyPrefix, util.FormatDate(date), string(bucket), limit)
}

// invalidateDate drops every cached response derived from date.
func invalidateDate(ctx context.Context, c cache.Service, date time.Time) error {
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, reportKey(date), snapshotKey(date), latestReportKey); err != nil {
		return err
	}
	return c.DeleteByPattern(ctx, cache.BuildPattern(cache.GenerateKey(scoresKeyPrefix, util.FormatDate(date))+":"))
}

// ReportQueryUseCase serves the read side: reports, scores and snapshots,
// cached through cache.Service.
type ReportQueryUseCase struct {
	bars      domrepo.BarStore
	scores    domrepo.ScoreStore
	reports   domrepo.ReportStore
	snapshots *MarketSnapshotUseCase
	cache     cache.Service
	ttl       time.Duration
	l         *applogger.Logger
}

func NewReportQueryUseCase(bars domrepo.BarStore, scores domrepo.ScoreStore, reports domrepo.ReportStore, snapshots *MarketSnapshotUseCase, c cache.Service, ttl time.Duration) *ReportQueryUseCase {
	return &ReportQueryUseCase{bars: bars, scores: scores, reports: reports, snapshots: snapshots, cache: c, ttl: ttl}
}

// SetLogger injects a structured logger.
func (uc *ReportQueryUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// LatestDate returns the most recent report date or models.ErrMissingReport.
func (uc *ReportQueryUseCase) LatestDate(ctx context.Context) (time.Time, error) {
	return cached(ctx, uc.cache, "latest", latestReportKey, uc.ttl, func(ctx context.Context) (time.Time, error) {
		d, ok, err := uc.reports.LatestReportDate(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if !ok {
			return time.Time{}, models.ErrMissingReport
		}
		return d, nil
	})
}

// Latest returns the most recent report.
func (uc *ReportQueryUseCase) Latest(ctx context.Context) (*models.DailyReport, error) {
	d, err := uc.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	return uc.Report(ctx, d)
}

// Report returns the report for date. A report stored without a snapshot gets
// one built from the day's bars; the missing fields are persisted best-effort.
func (uc *ReportQueryUseCase) Report(ctx context.Context, date time.Time) (*models.DailyReport, error) {
	return cached(ctx, uc.cache, "report", reportKey(date), uc.ttl, func(ctx context.Context) (*models.DailyReport, error) {
		r, err := uc.reports.GetReport(ctx, date)
		if err != nil {
			return nil, err
		}
		if r.Snapshot == nil && uc.snapshots != nil {
			uc.fillSnapshot(ctx, r)
		}
		if r.Snapshot != nil {
			fillFromSnapshot(r, *r.Snapshot)
		}
		return r, nil
	})
}

func (uc *ReportQueryUseCase) fillSnapshot(ctx context.Context, r *models.DailyReport) {
	snap, err := uc.snapshots.Build(ctx, r.Date)
	if err != nil {
		uc.warn("lazy snapshot build failed", r.Date, err)
		return
	}
	if snap.Breadth.Total == 0 {
		return
	}
	svcmetrics.LazySnapshots.Inc()

	configured := uc.snapshots.Fields()
	missing := models.SnapshotFields{
		Snapshot:      configured.Snapshot,
		MarketScore:   configured.MarketScore && r.MarketScore == nil,
		MarketState:   configured.MarketState && r.MarketState == nil,
		CapitalAdvice: configured.CapitalAdvice && r.CapitalAdvice == nil,
	}
	if err := uc.snapshots.Store(ctx, snap, missing); err != nil {
		uc.warn("lazy snapshot persist failed", r.Date, err)
	}
	r.Snapshot = &snap
}

// fillFromSnapshot sets score, state and advice from the snapshot where the
// report has none.
func fillFromSnapshot(r *models.DailyReport, snap models.MarketSnapshot) {
	if r.MarketScore == nil {
		v := snap.MarketScore
		r.MarketScore = &v
	}
	if r.MarketState == nil {
		v := snap.MarketState
		r.MarketState = &v
	}
	if r.CapitalAdvice == nil {
		v := snap.CapitalAdvice
		r.CapitalAdvice = &v
	}
}

// Scores lists the visible scores for date. An empty bucket means all buckets.
func (uc *ReportQueryUseCase) Scores(ctx context.Context, date time.Time, bucket models.Bucket, limit int) ([]models.DailyScore, error) {
	return cached(ctx, uc.cache, "scores", scoresKey(date, bucket, limit), uc.ttl, func(ctx context.Context) ([]models.DailyScore, error) {
		rows, err := uc.scores.ListScores(ctx, date, bucket, limit)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, models.ErrNoDataForDate
		}
		return rows, nil
	})
}

// Snapshot returns the stored snapshot for date, or builds one from the bars.
// A date without a stored snapshot or bars yields models.ErrNoDataForDate.
func (uc *ReportQueryUseCase) Snapshot(ctx context.Context, date time.Time) (*models.MarketSnapshot, error) {
	return cached(ctx, uc.cache, "snapshot", snapshotKey(date), uc.ttl, func(ctx context.Context) (*models.MarketSnapshot, error) {
		r, err := uc.reports.GetReport(ctx, date)
		switch {
		case err == nil && r.Snapshot != nil:
			return r.Snapshot, nil
		case err != nil && !errors.Is(err, models.ErrMissingReport):
			return nil, err
		}
		snap, err := uc.snapshots.Build(ctx, date)
		if err != nil {
			return nil, err
		}
		if snap.Breadth.Total == 0 {
			return nil, models.ErrNoDataForDate
		}
		return &snap, nil
	})
}

func (uc *ReportQueryUseCase) warn(msg string, date time.Time, err error) {
	if uc.l != nil {
		uc.l.Warn(msg, applogger.Date("date", date), applogger.Error(err))
	}
}

// cached wraps cache.GetOrLoad and counts hits and misses per endpoint.
func cached[T any](ctx context.Context, c cache.Service, endpoint, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	hit := true
	v, err := cache.GetOrLoad(ctx, c, key, ttl, func(ctx context.Context) (T, error) {
		hit = false
		return load(ctx)
	})
	result := "hit"
	if !hit {
		result = "miss"
	}
	svcmetrics.CacheLookups.WithLabelValues(endpoint, result).Inc()
	return v, err
}
