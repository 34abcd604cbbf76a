package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// Runner runs the daily pipeline for a date.
type Runner interface {
	Run(ctx context.Context, requested time.Time) (*RunResult, error)
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Requested time.Time             `json:"requested"`
	Date      time.Time             `json:"date"`
	Aligned   bool                  `json:"aligned"`
	Fetched   int                   `json:"fetched"`
	Scored    int                   `json:"scored"`
	TopCount  int                   `json:"top_count"`
	Comment   bool                  `json:"comment"`
	Snapshot  models.MarketSnapshot `json:"snapshot"`
}

func lockKey(date time.Time) string {
	return cache.GenerateKey("lock:run", util.FormatDate(date))
}

// DailyPipeline runs fetch, scoring, comment and snapshot for one trading day.
// Runs for the same date are serialized through a cache lock.
type DailyPipeline struct {
	fetch     *FetchBarsUseCase
	bars      domrepo.BarStore
	scoring   *DailyScoringUseCase
	comment   *CommentUseCase
	snapshot  *MarketSnapshotUseCase
	publisher domrepo.EventPublisher
	cache     cache.Service
	lockTTL   time.Duration
	l         *applogger.Logger
	m         domrepo.Metrics
	now       func() time.Time
}

var _ Runner = (*DailyPipeline)(nil)

func NewDailyPipeline(
	fetch *FetchBarsUseCase,
	bars domrepo.BarStore,
	scoring *DailyScoringUseCase,
	comment *CommentUseCase,
	snapshot *MarketSnapshotUseCase,
	publisher domrepo.EventPublisher,
	c cache.Service,
	lockTTL time.Duration,
	m domrepo.Metrics,
) *DailyPipeline {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &DailyPipeline{
		fetch:     fetch,
		bars:      bars,
		scoring:   scoring,
		comment:   comment,
		snapshot:  snapshot,
		publisher: publisher,
		cache:     c,
		lockTTL:   lockTTL,
		m:         m,
		now:       time.Now,
	}
}

// SetLogger injects a structured logger.
func (p *DailyPipeline) SetLogger(l *applogger.Logger) { p.l = l }

// Run fetches the latest bars, then scores the latest stored trading date.
// The feed always serves the most recent session, so the run aligns to the
// newest date in the bar store rather than the requested one.
func (p *DailyPipeline) Run(ctx context.Context, requested time.Time) (res *RunResult, err error) {
	start := time.Now()
	defer func() { observeStage(p.m, "run", start, err) }()

	requested = util.TruncateDay(requested)
	res = &RunResult{Requested: requested}

	if p.fetch != nil {
		fr, ferr := p.fetch.Fetch(ctx, requested)
		if ferr != nil {
			p.warn("fetch failed, scoring stored bars", requested, ferr)
		} else {
			res.Fetched = fr.Bars
		}
	}

	date, ok, err := p.bars.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNoDataForDate
	}
	date = util.TruncateDay(date)
	res.Date = date
	res.Aligned = !date.Equal(requested)
	if res.Aligned && p.l != nil {
		p.l.Info("run aligned to latest trading date",
			applogger.Date("requested", requested),
			applogger.Date("date", date),
		)
	}

	unlock, err := p.lock(ctx, date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sr, err := p.scoring.ScoreDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", util.FormatDate(date), err)
	}
	res.Scored, res.TopCount = sr.Scored, len(sr.Top)

	if _, err := p.comment.Comment(ctx, date); err != nil {
		if !errors.Is(err, models.ErrEmptyTopList) {
			return nil, fmt.Errorf("comment %s: %w", util.FormatDate(date), err)
		}
		p.warn("comment skipped", date, err)
	} else {
		res.Comment = true
	}

	snap, err := p.snapshot.BuildAndStore(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", util.FormatDate(date), err)
	}
	res.Snapshot = snap

	if p.publisher != nil {
		evt := models.ReportEvent{
			Date:          util.FormatDate(date),
			Scored:        res.Scored,
			TopCount:      res.TopCount,
			MarketScore:   snap.MarketScore,
			MarketState:   snap.MarketState,
			CapitalAdvice: snap.CapitalAdvice,
			GeneratedAt:   p.now().UTC(),
		}
		if err := p.publisher.PublishReport(ctx, evt); err != nil {
			p.warn("publish report event failed", date, err)
		}
	}
	if err := invalidateDate(ctx, p.cache, date); err != nil {
		p.warn("cache invalidation failed", date, err)
	}

	if p.l != nil {
		p.l.Info("daily run ok",
			applogger.Date("date", date),
			applogger.Bool("aligned", res.Aligned),
			applogger.Int("fetched", res.Fetched),
			applogger.Int("scored", res.Scored),
			applogger.Int("market_score", snap.MarketScore),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return res, nil
}

// Exclusive runs a single stage for date under the same lock as Run, then
// drops the cached responses for that date. Returns models.ErrRunInProgress
// when a run for the date holds the lock.
func (p *DailyPipeline) Exclusive(ctx context.Context, date time.Time, stage func(context.Context) error) error {
	date = util.TruncateDay(date)
	unlock, err := p.lock(ctx, date)
	if err != nil {
		return err
	}
	defer unlock()

	if err := stage(ctx); err != nil {
		return err
	}
	if err := invalidateDate(ctx, p.cache, date); err != nil {
		p.warn("cache invalidation failed", date, err)
	}
	return nil
}

func (p *DailyPipeline) lock(ctx context.Context, date time.Time) (func(), error) {
	if p.cache == nil {
		return func() {}, nil
	}
	key := lockKey(date)
	ok, err := p.cache.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, models.ErrRunInProgress
	}
	return func() {
		// the run context may be cancelled by now
		if err := p.cache.Unlock(context.Background(), key); err != nil {
			p.warn("release run lock failed", date, err)
		}
	}, nil
}

func (p *DailyPipeline) warn(msg string, date time.Time, err error) {
	if p.l != nil {
		p.l.Warn(msg, applogger.Date("date", date), applogger.Error(err))
	}
}
