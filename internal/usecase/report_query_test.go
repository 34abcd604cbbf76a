package usecase

import (
	"context"
	"testing"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedReport scores the day so a report exists without snapshot columns.
func seedReport(t *testing.T, h *harness) {
	t.Helper()
	_, err := NewDailyScoringUseCase(h.bars, h.scores, h.reports, scoring.NewEngine(), nil).ScoreDay(context.Background(), day)
	require.NoError(t, err)
}

func TestReportBuildsMissingSnapshot(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	seedReport(t, h)

	r, err := h.query.Report(context.Background(), day)
	require.NoError(t, err)
	require.NotNil(t, r.Snapshot)
	require.NotNil(t, r.MarketScore)
	require.NotNil(t, r.MarketState)
	require.NotNil(t, r.CapitalAdvice)
	assert.Equal(t, r.Snapshot.MarketScore, *r.MarketScore)

	require.Len(t, h.reports.snapSaves, 1)
	assert.Equal(t, models.AllSnapshotFields(), h.reports.snapSaves[0])
	assert.NotNil(t, h.reports.get(day).Snapshot)
}

func TestReportLazySnapshotKeepsStoredColumns(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	seedReport(t, h)
	stored := 80
	r := h.reports.get(day)
	r.MarketScore = &stored
	h.reports.reports[day] = r

	got, err := h.query.Report(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 80, *got.MarketScore)

	require.Len(t, h.reports.snapSaves, 1)
	saved := h.reports.snapSaves[0]
	assert.True(t, saved.Snapshot)
	assert.False(t, saved.MarketScore)
	assert.True(t, saved.MarketState)
}

func TestReportWithoutBarsHasNoSnapshot(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields())
	require.NoError(t, h.reports.UpsertReport(context.Background(), models.DailyReport{Date: day, MarketSummary: MarketSummary}))

	r, err := h.query.Report(context.Background(), day)
	require.NoError(t, err)
	assert.Nil(t, r.Snapshot)
	assert.Nil(t, r.MarketScore)
	assert.Empty(t, h.reports.snapSaves)
}

func TestReportMissing(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields())

	_, err := h.query.Report(context.Background(), day)
	assert.ErrorIs(t, err, models.ErrMissingReport)
	_, err = h.query.Latest(context.Background())
	assert.ErrorIs(t, err, models.ErrMissingReport)
}

func TestLatestReturnsNewestReport(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()
	older := day.AddDate(0, 0, -1)
	require.NoError(t, h.reports.UpsertReport(ctx, models.DailyReport{Date: older, MarketSummary: MarketSummary}))
	seedReport(t, h)

	r, err := h.query.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, day, r.Date)
}

func TestScoresFilterAndMissingDate(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	seedReport(t, h)
	ctx := context.Background()

	rows, err := h.query.Scores(ctx, day, "", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	b := h.scores.scores[day][0].Bucket
	rows, err = h.query.Scores(ctx, day, b, 0)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, b, r.Bucket)
	}

	_, err = h.query.Scores(ctx, day.AddDate(0, 0, 1), "", 50)
	assert.ErrorIs(t, err, models.ErrNoDataForDate)
}

func TestSnapshotPrefersStoredThenBars(t *testing.T) {
	h := newHarness(t, models.AllSnapshotFields(), twoBars(day)...)
	ctx := context.Background()

	built, err := h.query.Snapshot(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, built.Breadth.Total)

	_, err = h.query.Snapshot(ctx, day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, models.ErrNoDataForDate)
}
