package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"

	"github.com/google/uuid"
)

const (
	currentRun = `(SELECT argMax(run_id, version) FROM daily_score_runs WHERE date = ?)`

	supersededCleanup = `ALTER TABLE daily_scores DELETE WHERE date = ? AND run_id IN (SELECT run_id FROM daily_score_runs WHERE date = ? AND version < ?)`
)

// CHScoreStore implements ScoreStore backed by ClickHouse. Each replace writes
// a new run and then moves the date's run pointer to it.
type CHScoreStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

var _ domrepo.ScoreStore = (*CHScoreStore)(nil)

func NewCHScoreStore(db *sql.DB) *CHScoreStore {
	return &CHScoreStore{db: db, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHScoreStore) SetLogger(l *applogger.Logger) { s.l = l }

// ReplaceScores makes scores the only visible set for date. If any step before
// the pointer switch fails the previous set stays visible.
func (s *CHScoreStore) ReplaceScores(ctx context.Context, date time.Time, scores []models.DailyScore) error {
	start := s.now()
	runID := uuid.New()
	createdAt := start.UTC()

	err := inBatch(ctx, s.db, `INSERT INTO daily_scores (date, run_id, symbol, bucket, score_total, score_liquidity, score_volatility, score_momentum, meta, created_at)`, func(stmt *sql.Stmt) error {
		for _, sc := range scores {
			meta, err := json.Marshal(sc.Meta)
			if err != nil {
				return fmt.Errorf("marshal meta %s: %w", sc.Symbol, err)
			}
			if _, err := stmt.ExecContext(ctx,
				date, runID, sc.Symbol, string(sc.Bucket),
				uint8(sc.Total), uint8(sc.Liquidity), uint8(sc.Volatility), uint8(sc.Momentum),
				string(meta), createdAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError("clickhouse replace_scores insert error", date, err)
		return models.NewPersistenceError("replace scores", date, err)
	}

	version := uint64(start.UnixNano())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_score_runs (date, run_id, version, rows, created_at) VALUES (?, ?, ?, ?, ?)`,
		date, runID, version, uint32(len(scores)), createdAt,
	); err != nil {
		s.logError("clickhouse replace_scores switch error", date, err)
		return models.NewPersistenceError("replace scores", date, err)
	}

	// Only runs that were current before this one are removed. Rows of a run
	// that has not switched its pointer yet are left alone.
	if _, err := s.db.ExecContext(ctx, supersededCleanup, date, date, version); err != nil && s.l != nil {
		s.l.Warn("clickhouse replace_scores cleanup failed",
			applogger.Date("date", date),
			applogger.Error(err),
		)
	}

	if s.l != nil {
		s.l.Info("clickhouse replace_scores ok",
			applogger.Date("date", date),
			applogger.String("run_id", runID.String()),
			applogger.Int("rows", len(scores)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHScoreStore) ListScores(ctx context.Context, date time.Time, bucket models.Bucket, limit int) ([]models.DailyScore, error) {
	q := `
        SELECT s.symbol, i.name, s.bucket, s.score_total, s.score_liquidity, s.score_volatility, s.score_momentum, s.meta
        FROM daily_scores AS s
        LEFT JOIN ` + instrumentsLatest + ` AS i ON i.symbol = s.symbol
        WHERE s.date = ? AND s.run_id = ` + currentRun
	args := []interface{}{date, date}
	if bucket != "" {
		q += ` AND s.bucket = ?`
		args = append(args, string(bucket))
	}
	q += ` ORDER BY s.score_total DESC, s.symbol ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logError("clickhouse list_scores query error", date, err)
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyScore, 0, 256)
	for rows.Next() {
		var (
			sc   models.DailyScore
			name sql.NullString
			bkt  string
			meta string
		)
		if err := rows.Scan(&sc.Symbol, &name, &bkt, &sc.Total, &sc.Liquidity, &sc.Volatility, &sc.Momentum, &meta); err != nil {
			s.logError("clickhouse list_scores scan error", date, err)
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &sc.Meta); err != nil {
			return nil, fmt.Errorf("decode meta %s: %w", sc.Symbol, err)
		}
		sc.Date = date
		sc.Name = name.String
		sc.Bucket = models.Bucket(bkt)
		sc.Stability = 100 - sc.Volatility
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Distribution computes the score summary with SQL aggregates over the visible run.
func (s *CHScoreStore) Distribution(ctx context.Context, date time.Time) (models.ScoreDistribution, error) {
	q := `
        SELECT count(), avg(score_total), min(score_total), max(score_total),
               countIf(score_total >= 70),
               countIf(score_total >= 55 AND score_total < 70),
               countIf(score_total < 55)
        FROM daily_scores
        WHERE date = ? AND run_id = ` + currentRun

	var (
		n, buy, watch, avoid uint64
		avg                  float64
		lo, hi               int
	)
	if err := s.db.QueryRowContext(ctx, q, date, date).Scan(&n, &avg, &lo, &hi, &buy, &watch, &avoid); err != nil {
		s.logError("clickhouse score_distribution query error", date, err)
		return models.ScoreDistribution{}, fmt.Errorf("score distribution: %w", err)
	}

	d := models.ScoreDistribution{
		N:           int(n),
		BuyGE70:     int(buy),
		Watch55to69: int(watch),
		AvoidLT55:   int(avoid),
	}
	if n > 0 && !math.IsNaN(avg) {
		a := math.Round(avg*10) / 10
		d.Avg, d.Min, d.Max = &a, &lo, &hi
	}
	return d, nil
}

func (s *CHScoreStore) logError(msg string, date time.Time, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.Date("date", date), applogger.Error(err))
	}
}
