package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
)

// CHReportStore implements ReportStore backed by ClickHouse. Every write
// inserts a full new version of the date's row; reads use FINAL.
type CHReportStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

var _ domrepo.ReportStore = (*CHReportStore)(nil)

func NewCHReportStore(db *sql.DB) *CHReportStore {
	return &CHReportStore{db: db, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHReportStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHReportStore) UpsertReport(ctx context.Context, r models.DailyReport) error {
	existing, err := s.GetReport(ctx, r.Date)
	switch {
	case errors.Is(err, models.ErrMissingReport):
	case err != nil:
		return models.NewPersistenceError("upsert report", r.Date, err)
	default:
		r.Comment = existing.Comment
		r.Snapshot = existing.Snapshot
		r.MarketScore = existing.MarketScore
		r.MarketState = existing.MarketState
		r.CapitalAdvice = existing.CapitalAdvice
	}
	if err := s.insert(ctx, &r); err != nil {
		return models.NewPersistenceError("upsert report", r.Date, err)
	}
	return nil
}

func (s *CHReportStore) GetReport(ctx context.Context, date time.Time) (*models.DailyReport, error) {
	const q = `
        SELECT date, market_summary, warnings, top20, ai_comment,
               market_snapshot, market_score, market_state, capital_advice, updated_at
        FROM daily_reports FINAL
        WHERE date = ?
        LIMIT 1
    `
	var (
		r                    models.DailyReport
		warnings, top        string
		comment, snap, state sql.NullString
		score, advice        sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, date).Scan(
		&r.Date, &r.MarketSummary, &warnings, &top, &comment,
		&snap, &score, &state, &advice, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrMissingReport
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_report query error", applogger.Date("date", date), applogger.Error(err))
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if err := json.Unmarshal([]byte(top), &r.Top20); err != nil {
		return nil, fmt.Errorf("decode top20: %w", err)
	}
	r.Comment = comment.String
	if snap.Valid && snap.String != "" {
		var ms models.MarketSnapshot
		if err := json.Unmarshal([]byte(snap.String), &ms); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		r.Snapshot = &ms
	}
	if score.Valid {
		v := int(score.Int64)
		r.MarketScore = &v
	}
	if state.Valid {
		v := models.MarketState(state.String)
		r.MarketState = &v
	}
	if advice.Valid {
		v := int(advice.Int64)
		r.CapitalAdvice = &v
	}
	return &r, nil
}

func (s *CHReportStore) LatestReportDate(ctx context.Context) (time.Time, bool, error) {
	return latestDate(ctx, s.db, "daily_reports")
}

// SaveComment stores commentary on an existing report.
func (s *CHReportStore) SaveComment(ctx context.Context, date time.Time, text string) error {
	r, err := s.GetReport(ctx, date)
	if err != nil {
		return err
	}
	r.Comment = text
	if err := s.insert(ctx, r); err != nil {
		return models.NewPersistenceError("save comment", date, err)
	}
	return nil
}

// SaveSnapshot writes the enabled snapshot fields onto an existing report.
func (s *CHReportStore) SaveSnapshot(ctx context.Context, snap models.MarketSnapshot, fields models.SnapshotFields) error {
	r, err := s.GetReport(ctx, snap.Date)
	if err != nil {
		return err
	}
	fields.Apply(r, snap)
	if err := s.insert(ctx, r); err != nil {
		return models.NewPersistenceError("save snapshot", snap.Date, err)
	}
	return nil
}

func (s *CHReportStore) insert(ctx context.Context, r *models.DailyReport) error {
	start := s.now()
	r.UpdatedAt = start.UTC()

	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	w, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	top := r.Top20
	if top == nil {
		top = []models.TopEntry{}
	}
	t, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("marshal top20: %w", err)
	}

	var comment, snap, state *string
	var score, advice *uint8
	if r.Comment != "" {
		comment = &r.Comment
	}
	if r.Snapshot != nil {
		b, err := json.Marshal(r.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		v := string(b)
		snap = &v
	}
	if r.MarketScore != nil {
		v := uint8(*r.MarketScore)
		score = &v
	}
	if r.MarketState != nil {
		v := string(*r.MarketState)
		state = &v
	}
	if r.CapitalAdvice != nil {
		v := uint8(*r.CapitalAdvice)
		advice = &v
	}

	const q = `
        INSERT INTO daily_reports (date, market_summary, warnings, top20, ai_comment,
            market_snapshot, market_score, market_state, capital_advice, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		r.Date, r.MarketSummary, string(w), string(t), comment,
		snap, score, state, advice, r.UpdatedAt,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert_report error", applogger.Date("date", r.Date), applogger.Error(err))
		}
		return fmt.Errorf("insert report: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse insert_report ok",
			applogger.Date("date", r.Date),
			applogger.Bool("has_comment", comment != nil),
			applogger.Bool("has_snapshot", snap != nil),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}
