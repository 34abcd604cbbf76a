package usecase

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/comment"
	"MarketPulse/internal/services/scoring"
	"MarketPulse/internal/services/snapshot"
	"MarketPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	src      *fakeSource
	bars     *fakeBarStore
	scores   *fakeScoreStore
	reports  *fakeReportStore
	pub      *fakePublisher
	metrics  *fakeMetrics
	cache    *cache.MemoryCache
	pipeline *DailyPipeline
	query    *ReportQueryUseCase
	snaps    *MarketSnapshotUseCase
}

func newHarness(t *testing.T, fields models.SnapshotFields, stored ...models.DailyBar) *harness {
	t.Helper()
	h := &harness{
		src:     &fakeSource{},
		bars:    newFakeBarStore(stored...),
		scores:  newFakeScoreStore(),
		reports: newFakeReportStore(),
		pub:     &fakePublisher{},
		metrics: newFakeMetrics(),
		cache:   cache.NewMemoryCache(),
	}
	t.Cleanup(func() { _ = h.cache.Close() })

	fetch := NewFetchBarsUseCase(h.src, h.bars, h.metrics)
	scorer := NewDailyScoringUseCase(h.bars, h.scores, h.reports, scoring.NewEngine(), h.metrics)
	commenter := NewCommentUseCase(h.reports, comment.NewGenerator(), h.metrics)
	h.snaps = NewMarketSnapshotUseCase(h.bars, h.scores, h.reports, snapshot.NewAggregator(), fields, h.metrics)
	h.pipeline = NewDailyPipeline(fetch, h.bars, scorer, commenter, h.snaps, h.pub, h.cache, time.Minute, h.metrics)
	h.query = NewReportQueryUseCase(h.bars, h.scores, h.reports, h.snaps, h.cache, time.Minute)
	return h
}

func TestPipelineAlignsToLatestBarDate(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields())
	h.src.bars = twoBars(day)

	requested := day.AddDate(0, 0, 1)
	res, err := h.pipeline.Run(context.Background(), requested)
	require.NoError(t, err)

	assert.Equal(t, requested, res.Requested)
	assert.Equal(t, day, res.Date)
	assert.True(t, res.Aligned)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, 2, res.TopCount)
	assert.True(t, res.Comment)

	r := h.reports.get(day)
	assert.NotEmpty(t, r.Comment)
	require.NotNil(t, r.Snapshot)
	require.NotNil(t, r.MarketScore)
	assert.Equal(t, res.Snapshot.MarketScore, *r.MarketScore)
	assert.Equal(t, res.Snapshot.MarketState, *r.MarketState)

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, "2026-02-10", h.pub.events[0].Date)
	assert.Equal(t, res.Snapshot.MarketScore, h.pub.events[0].MarketScore)
	assert.Equal(t, 1, h.metrics.stages["run/ok"])
}

func TestPipelineScoresStoredBarsWhenFetchFails(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	h.src.err = errBoom

	res, err := h.pipeline.Run(context.Background(), day)
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)
	assert.False(t, res.Aligned)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, 1, h.metrics.stages["store_bars/error"])
}

func TestPipelineWithoutAnyBars(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields())
	h.src.err = errBoom

	_, err := h.pipeline.Run(context.Background(), day)
	assert.ErrorIs(t, err, models.ErrNoDataForDate)
	assert.Zero(t, h.scores.replaces)
	assert.Empty(t, h.pub.events)
}

func TestPipelineRejectsConcurrentRunForSameDate(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	ok, err := h.cache.TryLock(ctx, lockKey(day), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.pipeline.Run(ctx, day)
	assert.ErrorIs(t, err, models.ErrRunInProgress)
	assert.Zero(t, h.scores.replaces)

	require.NoError(t, h.cache.Unlock(ctx, lockKey(day)))
	_, err = h.pipeline.Run(ctx, day)
	require.NoError(t, err)

	// the lock is released after a run
	ok, err = h.cache.TryLock(ctx, lockKey(day), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPipelinePublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	h.pub.err = errBoom

	_, err := h.pipeline.Run(context.Background(), day)
	require.NoError(t, err)
	assert.NotNil(t, h.reports.get(day).Snapshot)
}

func TestPipelineInvalidatesCachedResponses(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, day)
	require.NoError(t, err)
	first, err := h.query.Scores(ctx, day, "", 50)
	require.NoError(t, err)
	require.Len(t, first, 2)

	h.bars = newFakeBarStore(append(twoBars(day), bar("2454", day, 900, 950, 890, 940, 40, 5_000, 4_700_000))...)
	h.pipeline.bars = h.bars
	h.pipeline.scoring.bars = h.bars
	h.pipeline.snapshot.bars = h.bars

	cachedRows, err := h.query.Scores(ctx, day, "", 50)
	require.NoError(t, err)
	assert.Len(t, cachedRows, 2)

	_, err = h.pipeline.Run(ctx, day)
	require.NoError(t, err)
	fresh, err := h.query.Scores(ctx, day, "", 50)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}

func TestPipelineWithoutSnapshotFieldsLeavesReportColumnsEmpty(t *testing.T) {
	h := newHarness(t, models.SnapshotFields{}, twoBars(day)...)

	res, err := h.pipeline.Run(context.Background(), day)
	require.NoError(t, err)
	assert.NotZero(t, res.Snapshot.Breadth.Total)

	r := h.reports.get(day)
	assert.Nil(t, r.Snapshot)
	assert.Nil(t, r.MarketScore)
	assert.Empty(t, h.reports.snapSaves)
}

func TestExclusiveStageWaitsForRunLock(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	ok, err := h.cache.TryLock(ctx, lockKey(day), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = h.pipeline.Exclusive(ctx, day, func(ctx context.Context) error {
		called = true
		_, err := h.pipeline.scoring.ScoreDay(ctx, day)
		return err
	})
	assert.ErrorIs(t, err, models.ErrRunInProgress)
	assert.False(t, called)
	assert.Zero(t, h.scores.replaces)

	require.NoError(t, h.cache.Unlock(ctx, lockKey(day)))
	err = h.pipeline.Exclusive(ctx, day, func(ctx context.Context) error {
		_, err := h.pipeline.scoring.ScoreDay(ctx, day)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.scores.replaces)

	// released once the stage returns
	ok, err = h.cache.TryLock(ctx, lockKey(day), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExclusiveStageInvalidatesCachedResponses(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, day)
	require.NoError(t, err)
	before, err := h.query.Report(ctx, day)
	require.NoError(t, err)
	require.NotEmpty(t, before.Comment)

	err = h.pipeline.Exclusive(ctx, day, func(ctx context.Context) error {
		return h.reports.SaveComment(ctx, day, "rewritten")
	})
	require.NoError(t, err)

	after, err := h.query.Report(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", after.Comment)
}

func TestExclusiveStageErrorKeepsCache(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, day)
	require.NoError(t, err)
	_, err = h.query.Report(ctx, day)
	require.NoError(t, err)

	err = h.pipeline.Exclusive(ctx, day, func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	var cached models.DailyReport
	assert.NoError(t, h.cache.Get(ctx, reportKey(day), &cached))
}
