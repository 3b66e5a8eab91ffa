package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"sentinel/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS operational_log (
	id BIGSERIAL PRIMARY KEY,
	logged_at TIMESTAMPTZ NOT NULL,
	severity VARCHAR(16) NOT NULL,
	message TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS portfolio_samples (
	id BIGSERIAL PRIMARY KEY,
	taken_at TIMESTAMPTZ NOT NULL,
	connected BOOLEAN NOT NULL,
	halted BOOLEAN NOT NULL,
	total_value NUMERIC(24, 8) NOT NULL,
	cash_balance NUMERIC(24, 8) NOT NULL,
	holdings_pnl NUMERIC(24, 8) NOT NULL,
	aggregate_roi NUMERIC(24, 8) NOT NULL,
	asset_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS price_ticks (
	id BIGSERIAL PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	exchange VARCHAR(50) NOT NULL,
	pair VARCHAR(20) NOT NULL,
	bid NUMERIC(20, 8) NOT NULL,
	ask NUMERIC(20, 8) NOT NULL
);`

// PostgresRepository writes the journal to PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects a pool to the given DSN.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

// Migrate creates the journal tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, schema)
	return errors.Wrap(err, "migrate journal")
}

func (r *PostgresRepository) LogEntry(ctx context.Context, entry model.LogEntry) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO operational_log (logged_at, severity, message) VALUES ($1, $2, $3)`,
		entry.Timestamp, string(entry.Type), entry.Message,
	)
	return errors.Wrap(err, "insert log entry")
}

func (r *PostgresRepository) LogSample(ctx context.Context, s Sample) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO portfolio_samples
			(taken_at, connected, halted, total_value, cash_balance, holdings_pnl, aggregate_roi, asset_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.TakenAt, s.Connected, s.Halted, s.TotalValue, s.CashBalance, s.HoldingsPnL, s.AggregateROI, s.AssetCount,
	)
	return errors.Wrap(err, "insert sample")
}

func (r *PostgresRepository) LogPriceTick(ctx context.Context, tick model.PriceTick) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO price_ticks (received_at, exchange, pair, bid, ask) VALUES ($1, $2, $3, $4, $5)`,
		tick.ReceivedAt, tick.Exchange, tick.Pair, tick.Bid, tick.Ask,
	)
	return errors.Wrap(err, "insert price tick")
}
