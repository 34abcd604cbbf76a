package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"

	"github.com/shopspring/decimal"
)

const instrumentsLatest = `(
        SELECT symbol, argMax(name, updated_at) AS name, argMax(market, updated_at) AS market
        FROM instruments
        GROUP BY symbol
    )`

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.BarStore = (*CHBarStore)(nil)

func NewCHBarStore(db *sql.DB) *CHBarStore {
	return &CHBarStore{db: db}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates every table the stores use.
func (s *CHBarStore) Init(ctx context.Context) error {
	for _, stmt := range SchemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// UpsertBars writes instrument identities, then bars. ReplacingMergeTree keeps
// the newest row per (date, symbol).
func (s *CHBarStore) UpsertBars(ctx context.Context, bars []models.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	now := start.UTC()

	seen := make(map[string]struct{}, len(bars))
	err := inBatch(ctx, s.db, `INSERT INTO instruments (symbol, name, market, updated_at)`, func(stmt *sql.Stmt) error {
		for _, b := range bars {
			if _, dup := seen[b.Symbol]; dup {
				continue
			}
			seen[b.Symbol] = struct{}{}
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Name, b.Market, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError("clickhouse upsert_instruments error", err)
		return fmt.Errorf("upsert instruments: %w", err)
	}

	err = inBatch(ctx, s.db, `INSERT INTO daily_bars (date, symbol, open, high, low, close, change, volume, turnover, updated_at)`, func(stmt *sql.Stmt) error {
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx,
				b.Date, b.Symbol,
				decPtr(b.Open), decPtr(b.High), decPtr(b.Low), decPtr(b.Close), decPtr(b.Change),
				b.Volume, b.Turnover, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError("clickhouse upsert_bars error", err)
		return fmt.Errorf("upsert bars: %w", err)
	}

	if s.l != nil {
		s.l.Info("clickhouse upsert_bars ok",
			applogger.Int("bars", len(bars)),
			applogger.Int("instruments", len(seen)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHBarStore) BarsForDate(ctx context.Context, date time.Time) ([]models.DailyBar, error) {
	q := `
        SELECT b.symbol, i.name, i.market, b.date,
               toString(b.open), toString(b.high), toString(b.low), toString(b.close), toString(b.change),
               b.volume, b.turnover
        FROM daily_bars AS b FINAL
        LEFT JOIN ` + instrumentsLatest + ` AS i ON i.symbol = b.symbol
        WHERE b.date = ?
        ORDER BY b.symbol ASC
    `
	rows, err := s.db.QueryContext(ctx, q, date)
	if err != nil {
		s.logError("clickhouse bars_for_date query error", err)
		return nil, fmt.Errorf("bars for date: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyBar, 0, 1024)
	for rows.Next() {
		var (
			b                models.DailyBar
			name, market     sql.NullString
			volume, turnover sql.NullInt64
		)
		if err := rows.Scan(&b.Symbol, &name, &market, &b.Date,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Change,
			&volume, &turnover); err != nil {
			s.logError("clickhouse bars_for_date scan error", err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Name = name.String
		if b.Name == "" {
			b.Name = b.Symbol
		}
		b.Market = market.String
		b.Volume = int64Ptr(volume)
		b.Turnover = int64Ptr(turnover)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	return latestDate(ctx, s.db, "daily_bars")
}

func (s *CHBarStore) logError(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.Error(err))
	}
}

// inBatch runs a prepared INSERT inside a transaction; the ClickHouse driver
// sends the whole batch on commit.
func inBatch(ctx context.Context, db *sql.DB, insert string, fill func(*sql.Stmt) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	if err := fill(stmt); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return fmt.Errorf("append: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func latestDate(ctx context.Context, db *sql.DB, table string) (time.Time, bool, error) {
	var (
		n    uint64
		last time.Time
	)
	q := fmt.Sprintf(`SELECT count(), max(date) FROM %s`, table)
	if err := db.QueryRowContext(ctx, q).Scan(&n, &last); err != nil {
		return time.Time{}, false, fmt.Errorf("latest date %s: %w", table, err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return last, true, nil
}

func decPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
