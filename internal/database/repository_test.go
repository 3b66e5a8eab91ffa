package database

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"sentinel/internal/model"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		// no docker available, integration tests skip themselves
		log.Printf("could not start postgres container: %s", err)
		os.Exit(m.Run())
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	pool = repo.Pool

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate: %s", err)
	}

	code := m.Run()

	pool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("could not stop postgres container: %s", err)
	}
	os.Exit(code)
}

func requirePool(t *testing.T) *PostgresRepository {
	t.Helper()
	if pool == nil {
		t.Skip("postgres container not available")
	}
	return &PostgresRepository{Pool: pool}
}

func TestPostgresRepository_Migrate(t *testing.T) {
	repo := requirePool(t)
	// idempotent
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestPostgresRepository_LogEntry(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	entry := model.LogEntry{Timestamp: time.Now(), Message: "EMERGENCY STOP PROTOCOL INITIATED", Type: model.SeverityError}
	require.NoError(t, repo.LogEntry(ctx, entry))

	var severity, message string
	err := pool.QueryRow(ctx, "SELECT severity, message FROM operational_log ORDER BY id DESC LIMIT 1").Scan(&severity, &message)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", severity)
	assert.Equal(t, entry.Message, message)
}

func TestPostgresRepository_LogSample(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	sample := Sample{TakenAt: time.Now(), Connected: true, TotalValue: 630, CashBalance: 500, HoldingsPnL: 10, AssetCount: 2}
	require.NoError(t, repo.LogSample(ctx, sample))

	var total, pnl float64
	var connected bool
	err := pool.QueryRow(ctx, "SELECT total_value::float8, holdings_pnl::float8, connected FROM portfolio_samples ORDER BY id DESC LIMIT 1").
		Scan(&total, &pnl, &connected)
	require.NoError(t, err)
	assert.Equal(t, 630.0, total)
	assert.Equal(t, 10.0, pnl)
	assert.True(t, connected)
}

func TestPostgresRepository_LogPriceTick(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	tick := model.PriceTick{Exchange: "kraken", Pair: "BTC/EUR", Bid: 60000, Ask: 60050, ReceivedAt: time.Now()}
	require.NoError(t, repo.LogPriceTick(ctx, tick))

	var exchange, pair string
	err := pool.QueryRow(ctx, "SELECT exchange, pair FROM price_ticks WHERE exchange = 'kraken' ORDER BY id DESC LIMIT 1").Scan(&exchange, &pair)
	require.NoError(t, err)
	assert.Equal(t, "BTC/EUR", pair)
}
