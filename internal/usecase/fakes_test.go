package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/snapshot"

	"github.com/shopspring/decimal"
)

var day = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

func dec(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

func i64(v int64) *int64 { return &v }

func bar(symbol string, date time.Time, open, high, low, close, change float64, volume, turnover int64) models.DailyBar {
	return models.DailyBar{
		Symbol: symbol, Name: symbol + " Corp", Market: "TWSE", Date: date,
		Open: dec(open), High: dec(high), Low: dec(low), Close: dec(close), Change: dec(change),
		Volume: i64(volume), Turnover: i64(turnover),
	}
}

func twoBars(date time.Time) []models.DailyBar {
	return []models.DailyBar{
		bar("2330", date, 100, 110, 95, 108, 8, 10_000, 1_000_000),
		bar("2317", date, 50, 51, 49, 50, 0, 1_000, 50_000),
	}
}

type fakeSource struct {
	bars []models.DailyBar
	err  error
}

func (s *fakeSource) FetchBars(_ context.Context, _ time.Time) ([]models.DailyBar, error) {
	return s.bars, s.err
}

type fakeBarStore struct {
	mu   sync.Mutex
	bars map[time.Time][]models.DailyBar
}

func newFakeBarStore(bars ...models.DailyBar) *fakeBarStore {
	s := &fakeBarStore{bars: map[time.Time][]models.DailyBar{}}
	_ = s.UpsertBars(context.Background(), bars)
	return s
}

func (s *fakeBarStore) Init(context.Context) error { return nil }

func (s *fakeBarStore) UpsertBars(_ context.Context, bars []models.DailyBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		rows := s.bars[b.Date]
		replaced := false
		for i := range rows {
			if rows[i].Symbol == b.Symbol {
				rows[i], replaced = b, true
			}
		}
		if !replaced {
			rows = append(rows, b)
		}
		s.bars[b.Date] = rows
	}
	return nil
}

func (s *fakeBarStore) BarsForDate(_ context.Context, date time.Time) ([]models.DailyBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DailyBar(nil), s.bars[date]...), nil
}

func (s *fakeBarStore) LatestDate(context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for d := range s.bars {
		if d.After(last) {
			last = d
		}
	}
	return last, !last.IsZero(), nil
}

type fakeScoreStore struct {
	mu       sync.Mutex
	scores   map[time.Time][]models.DailyScore
	replaces int
	err      error
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{scores: map[time.Time][]models.DailyScore{}}
}

func (s *fakeScoreStore) ReplaceScores(_ context.Context, date time.Time, scores []models.DailyScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.NewPersistenceError("replace scores", date, s.err)
	}
	s.replaces++
	s.scores[date] = append([]models.DailyScore(nil), scores...)
	return nil
}

func (s *fakeScoreStore) ListScores(_ context.Context, date time.Time, bucket models.Bucket, limit int) ([]models.DailyScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailyScore
	for _, sc := range s.scores[date] {
		if bucket == "" || sc.Bucket == bucket {
			out = append(out, sc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeScoreStore) Distribution(_ context.Context, date time.Time) (models.ScoreDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.DistributionFromScores(s.scores[date]), nil
}

type fakeReportStore struct {
	mu        sync.Mutex
	reports   map[time.Time]models.DailyReport
	snapSaves []models.SnapshotFields
	getErr    error
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: map[time.Time]models.DailyReport{}}
}

func (s *fakeReportStore) UpsertReport(_ context.Context, r models.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.reports[r.Date]; ok {
		r.Comment = old.Comment
		r.Snapshot = old.Snapshot
		r.MarketScore = old.MarketScore
		r.MarketState = old.MarketState
		r.CapitalAdvice = old.CapitalAdvice
	}
	s.reports[r.Date] = r
	return nil
}

func (s *fakeReportStore) GetReport(_ context.Context, date time.Time) (*models.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.reports[date]
	if !ok {
		return nil, models.ErrMissingReport
	}
	return &r, nil
}

func (s *fakeReportStore) LatestReportDate(context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for d := range s.reports {
		if d.After(last) {
			last = d
		}
	}
	return last, !last.IsZero(), nil
}

func (s *fakeReportStore) SaveComment(_ context.Context, date time.Time, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[date]
	if !ok {
		return models.ErrMissingReport
	}
	r.Comment = text
	s.reports[date] = r
	return nil
}

func (s *fakeReportStore) SaveSnapshot(_ context.Context, snap models.MarketSnapshot, fields models.SnapshotFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[snap.Date]
	if !ok {
		return models.ErrMissingReport
	}
	fields.Apply(&r, snap)
	s.reports[snap.Date] = r
	s.snapSaves = append(s.snapSaves, fields)
	return nil
}

func (s *fakeReportStore) get(date time.Time) models.DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[date]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ReportEvent
	err    error
}

func (p *fakePublisher) PublishReport(_ context.Context, evt models.ReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu        sync.Mutex
	stages    map[string]int
	errors    map[string]int
	snapshots int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{stages: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordStage(stage, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage+"/"+outcome]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordBars(int)      {}
func (m *fakeMetrics) RecordMalformed(int) {}

func (m *fakeMetrics) RecordSnapshot(models.MarketSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
}

type fakeRunner struct {
	mu    sync.Mutex
	dates []time.Time
	err   error
}

func (r *fakeRunner) Run(_ context.Context, date time.Time) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date)
	if r.err != nil {
		return nil, r.err
	}
	return &RunResult{Requested: date, Date: date}, nil
}

var errBoom = errors.New("boom")
