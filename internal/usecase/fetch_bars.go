package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	applogger "MarketPulse/pkg/logger"
)

// FetchBarsUseCase downloads the market snapshot and stores it.
type FetchBarsUseCase struct {
	src  domsvc.BarSource
	bars domrepo.BarStore
	l    *applogger.Logger
	m    domrepo.Metrics
}

func NewFetchBarsUseCase(src domsvc.BarSource, bars domrepo.BarStore, m domrepo.Metrics) *FetchBarsUseCase {
	return &FetchBarsUseCase{src: src, bars: bars, m: m}
}

// SetLogger injects a structured logger.
func (uc *FetchBarsUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// FetchResult describes what a fetch stored.
type FetchResult struct {
	Bars   int
	Dates  []time.Time
	Latest time.Time
}

// Fetch pulls bars and upserts them. Rows without a date take fallback.
func (uc *FetchBarsUseCase) Fetch(ctx context.Context, fallback time.Time) (res *FetchResult, err error) {
	start := time.Now()
	defer func() { observeStage(uc.m, "store_bars", start, err) }()

	bars, err := uc.src.FetchBars(ctx, fallback)
	if err != nil {
		return nil, err
	}
	if err := uc.bars.UpsertBars(ctx, bars); err != nil {
		return nil, models.NewPersistenceError("upsert bars", fallback, err)
	}

	res = &FetchResult{Bars: len(bars), Dates: distinctDates(bars)}
	if n := len(res.Dates); n > 0 {
		res.Latest = res.Dates[n-1]
	}
	if uc.l != nil {
		uc.l.Info("bars stored",
			applogger.Int("bars", res.Bars),
			applogger.Int("dates", len(res.Dates)),
			applogger.Date("latest", res.Latest),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return res, nil
}

func distinctDates(bars []models.DailyBar) []time.Time {
	seen := make(map[time.Time]struct{})
	out := make([]time.Time, 0, 1)
	for _, b := range bars {
		if _, ok := seen[b.Date]; ok {
			continue
		}
		seen[b.Date] = struct{}{}
		out = append(out, b.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (r *FetchResult) String() string {
	if r == nil {
		return "no fetch"
	}
	return fmt.Sprintf("%d bars over %d date(s)", r.Bars, len(r.Dates))
}
