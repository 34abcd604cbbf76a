package usecase

import (
	"context"
	"errors"
	"testing"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/comment"
	"MarketPulse/internal/services/scoring"
	"MarketPulse/internal/services/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreDayWithoutBarsWritesNothing(t *testing.T) {
	scores, reports, m := newFakeScoreStore(), newFakeReportStore(), newFakeMetrics()
	uc := NewDailyScoringUseCase(newFakeBarStore(), scores, reports, scoring.NewEngine(), m)

	_, err := uc.ScoreDay(context.Background(), day)
	assert.ErrorIs(t, err, models.ErrNoDataForDate)
	assert.Zero(t, scores.replaces)
	assert.Empty(t, reports.reports)
	assert.Equal(t, 1, m.stages["score/error"])
}

func TestScoreDayStoresScoresAndReport(t *testing.T) {
	scores, reports, m := newFakeScoreStore(), newFakeReportStore(), newFakeMetrics()
	uc := NewDailyScoringUseCase(newFakeBarStore(twoBars(day)...), scores, reports, scoring.NewEngine(), m)

	res, err := uc.ScoreDay(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scored)
	assert.Len(t, res.Top, 2)
	assert.Len(t, scores.scores[day], 2)

	r := reports.get(day)
	assert.Equal(t, MarketSummary, r.MarketSummary)
	assert.Equal(t, []string{SingleDayWarning}, r.Warnings)
	assert.Equal(t, res.Top, r.Top20)
	assert.Equal(t, 1, m.stages["score/ok"])
}

func TestScoreDayRerunKeepsCommentAndReplacesScores(t *testing.T) {
	ctx := context.Background()
	bars := newFakeBarStore(twoBars(day)...)
	scores, reports := newFakeScoreStore(), newFakeReportStore()
	uc := NewDailyScoringUseCase(bars, scores, reports, scoring.NewEngine(), nil)
	cuc := NewCommentUseCase(reports, comment.NewGenerator(), nil)

	_, err := uc.ScoreDay(ctx, day)
	require.NoError(t, err)
	first := append([]models.DailyScore(nil), scores.scores[day]...)
	firstTop := reports.get(day).Top20
	text, err := cuc.Comment(ctx, day)
	require.NoError(t, err)

	_, err = uc.ScoreDay(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, scores.replaces)
	assert.Equal(t, first, scores.scores[day])
	assert.Equal(t, firstTop, reports.get(day).Top20)
	assert.Equal(t, text, reports.get(day).Comment)
}

func TestScoreDayReplaceFailureLeavesReportUntouched(t *testing.T) {
	scores, reports := newFakeScoreStore(), newFakeReportStore()
	scores.err = errBoom
	uc := NewDailyScoringUseCase(newFakeBarStore(twoBars(day)...), scores, reports, scoring.NewEngine(), nil)

	_, err := uc.ScoreDay(context.Background(), day)
	var pe *models.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "replace scores", pe.Op)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, reports.reports)
}

func TestCommentRequiresReport(t *testing.T) {
	uc := NewCommentUseCase(newFakeReportStore(), comment.NewGenerator(), nil)
	_, err := uc.Comment(context.Background(), day)
	assert.ErrorIs(t, err, models.ErrMissingReport)
}

func TestCommentRejectsEmptyTopList(t *testing.T) {
	reports := newFakeReportStore()
	require.NoError(t, reports.UpsertReport(context.Background(), models.DailyReport{Date: day, MarketSummary: MarketSummary}))
	uc := NewCommentUseCase(reports, comment.NewGenerator(), nil)

	_, err := uc.Comment(context.Background(), day)
	assert.ErrorIs(t, err, models.ErrEmptyTopList)
	assert.Empty(t, reports.get(day).Comment)
}

func TestSnapshotWithoutBarsIsRiskOff(t *testing.T) {
	uc := NewMarketSnapshotUseCase(newFakeBarStore(), newFakeScoreStore(), newFakeReportStore(), snapshot.NewAggregator(), models.AllSnapshotFields(), nil)

	snap, err := uc.Build(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 35, snap.MarketScore)
	assert.Equal(t, models.StateRiskOff, snap.MarketState)
	assert.Zero(t, snap.Breadth.Total)
}

func TestSnapshotStoreWritesOnlyConfiguredFields(t *testing.T) {
	ctx := context.Background()
	bars, scores, reports := newFakeBarStore(twoBars(day)...), newFakeScoreStore(), newFakeReportStore()
	_, err := NewDailyScoringUseCase(bars, scores, reports, scoring.NewEngine(), nil).ScoreDay(ctx, day)
	require.NoError(t, err)

	fields := models.SnapshotFields{MarketScore: true}
	m := newFakeMetrics()
	uc := NewMarketSnapshotUseCase(bars, scores, reports, snapshot.NewAggregator(), fields, m)
	snap, err := uc.BuildAndStore(ctx, day)
	require.NoError(t, err)

	r := reports.get(day)
	require.NotNil(t, r.MarketScore)
	assert.Equal(t, snap.MarketScore, *r.MarketScore)
	assert.Nil(t, r.Snapshot)
	assert.Nil(t, r.MarketState)
	assert.Nil(t, r.CapitalAdvice)
	assert.Equal(t, 1, m.snapshots)
}

func TestSnapshotStoreWithNoFieldsSkipsSink(t *testing.T) {
	reports := newFakeReportStore()
	uc := NewMarketSnapshotUseCase(newFakeBarStore(), newFakeScoreStore(), reports, snapshot.NewAggregator(), models.SnapshotFields{}, nil)

	_, err := uc.BuildAndStore(context.Background(), day)
	require.NoError(t, err)
	assert.Empty(t, reports.snapSaves)
}
