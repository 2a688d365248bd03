package budget

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the discovery_usage table. Execute it via
// [PostgresLedger.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS discovery_usage (
    id                BIGSERIAL PRIMARY KEY,
    query             TEXT NOT NULL,
    hints             JSONB NOT NULL DEFAULT '{}',
    result_count      INTEGER NOT NULL DEFAULT 0,
    ingested_count    INTEGER NOT NULL DEFAULT 0,
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    cost_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
    latency_ms        BIGINT NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'ok',
    error_message     TEXT NOT NULL DEFAULT '',
    requested_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_discovery_usage_requested_at ON discovery_usage(requested_at);
`

// DB is the database interface used by [PostgresLedger]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLedger is a Ledger that owns the usage table directly instead of
// going through the ledger HTTP service. The daily cap is configuration
// rather than table state.
type PostgresLedger struct {
	db     DB
	capUSD float64
}

// Compile-time interface check.
var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a ledger over the given connection or pool with
// the given daily spend cap. The caller is responsible for calling
// [PostgresLedger.Migrate] to ensure the schema exists before issuing
// queries.
func NewPostgresLedger(db DB, capUSD float64) (*PostgresLedger, error) {
	if db == nil {
		return nil, fmt.Errorf("budget: db must not be nil")
	}
	if capUSD <= 0 {
		return nil, fmt.Errorf("budget: capUSD must be positive, got %v", capUSD)
	}
	return &PostgresLedger{db: db, capUSD: capUSD}, nil
}

// Migrate executes the [Schema] DDL against the database.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("budget: migrate: %w", err)
	}
	return nil
}

// Status implements Ledger. Today is the ledger database's local day.
func (l *PostgresLedger) Status(ctx context.Context) (*Status, error) {
	const query = `
		SELECT
			coalesce(sum(cost_usd), 0),
			count(*),
			coalesce(sum(prompt_tokens + completion_tokens), 0),
			coalesce(sum(cost_usd) FILTER (WHERE requested_at >= now() - interval '1 hour'), 0)
		FROM discovery_usage
		WHERE requested_at >= date_trunc('day', now())`

	st := Status{CapUSD: l.capUSD}
	err := l.db.QueryRow(ctx, query).Scan(&st.SpentUSD, &st.RequestsToday, &st.TokensToday, &st.SpendRatePerHour)
	if err != nil {
		return nil, fmt.Errorf("budget: status: %w", err)
	}
	st.RemainingUSD = max(0, st.CapUSD-st.SpentUSD)
	return &st, nil
}

// CanMakeRequest implements Ledger. The request is allowed while today's
// spend is under the cap.
func (l *PostgresLedger) CanMakeRequest(ctx context.Context) (*Decision, error) {
	st, err := l.Status(ctx)
	if err != nil {
		return nil, err
	}
	d := &Decision{Allowed: st.SpentUSD < st.CapUSD, Status: *st}
	if !d.Allowed {
		d.Reason = fmt.Sprintf("daily budget exhausted: spent $%.2f of $%.2f", st.SpentUSD, st.CapUSD)
	}
	return d, nil
}

// RecordRequest implements Ledger.
func (l *PostgresLedger) RecordRequest(ctx context.Context, rec UsageRecord) error {
	hintsJSON, err := json.Marshal(rec.Hints)
	if err != nil {
		return fmt.Errorf("budget: marshal hints: %w", err)
	}

	const query = `
		INSERT INTO discovery_usage (
			query, hints, result_count, ingested_count,
			prompt_tokens, completion_tokens, cost_usd,
			latency_ms, status, error_message
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = l.db.Exec(ctx, query,
		rec.Query, hintsJSON, rec.ResultCount, rec.IngestedCount,
		rec.PromptTokens, rec.CompletionTokens, rec.CostUSD,
		rec.LatencyMS, rec.Status, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("budget: record request: %w", err)
	}
	return nil
}
