//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func getPostgresConfig(t *testing.T) models.PostgresConfig {
	t.Helper()

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("TEST_POSTGRES_HOST not set")
	}

	portStr := os.Getenv("TEST_POSTGRES_PORT")
	if portStr == "" {
		portStr = "5432"
	}
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	database := os.Getenv("TEST_POSTGRES_DB")
	if database == "" {
		t.Skip("TEST_POSTGRES_DB not set")
	}

	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	return models.PostgresConfig{
		Host:     host,
		Port:     port,
		Database: database,
		Username: user,
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
		SSLMode:  os.Getenv("TEST_POSTGRES_SSLMODE"),
	}
}

// newPool migrates the test database and returns a pool closed at cleanup.
func newPool(t *testing.T, cfg models.PostgresConfig) *pgxpool.Pool {
	t.Helper()

	require.NoError(t, db.RunMigrations(cfg.URL()))

	pool, err := db.NewPool(context.Background(), cfg.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}
