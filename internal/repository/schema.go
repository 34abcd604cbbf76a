package repository

// SchemaStatements creates the tables used by the stores. All statements are idempotent.
//
// daily_scores rows are grouped by run_id; daily_score_runs keeps one row per
// switched run and the highest version is current, so a replace becomes
// visible in one step. Older pointer rows stay so their score rows can be
// found for cleanup.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
        symbol     String,
        name       String,
        market     LowCardinality(String),
        updated_at DateTime64(3)
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY symbol`,

	`CREATE TABLE IF NOT EXISTS daily_bars (
        date       Date,
        symbol     String,
        open       Nullable(Decimal(18, 4)),
        high       Nullable(Decimal(18, 4)),
        low        Nullable(Decimal(18, 4)),
        close      Nullable(Decimal(18, 4)),
        change     Nullable(Decimal(18, 4)),
        volume     Nullable(Int64),
        turnover   Nullable(Int64),
        updated_at DateTime64(3)
    ) ENGINE = ReplacingMergeTree(updated_at)
    PARTITION BY toYYYYMM(date)
    ORDER BY (date, symbol)`,

	`CREATE TABLE IF NOT EXISTS daily_scores (
        date             Date,
        run_id           UUID,
        symbol           String,
        bucket           LowCardinality(String),
        score_total      UInt8,
        score_liquidity  UInt8,
        score_volatility UInt8,
        score_momentum   UInt8,
        meta             String,
        created_at       DateTime64(3)
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(date)
    ORDER BY (date, run_id, bucket, symbol)`,

	`CREATE TABLE IF NOT EXISTS daily_score_runs (
        date       Date,
        run_id     UUID,
        version    UInt64,
        rows       UInt32,
        created_at DateTime64(3)
    ) ENGINE = MergeTree
    ORDER BY (date, version)`,

	`CREATE TABLE IF NOT EXISTS daily_reports (
        date            Date,
        market_summary  String,
        warnings        String,
        top20           String,
        ai_comment      Nullable(String),
        market_snapshot Nullable(String),
        market_score    Nullable(UInt8),
        market_state    Nullable(String),
        capital_advice  Nullable(UInt8),
        updated_at      DateTime64(3)
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY date`,
}
