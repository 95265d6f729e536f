package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/models"
)

// setupSQLiteDB opens a migrated SQLite database in a temp directory
func setupSQLiteDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db, database.LatestVersion, nil))
	return db
}

// setupPostgresDB sets up a PostgreSQL test container and returns a migrated connection
func setupPostgresDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_bpmetrics"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute)),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(&config.DatabaseConfig{
		Driver:                config.DriverPostgres,
		URL:                   connStr,
		MaxConnections:        5,
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db, database.LatestVersion, nil))
	return db
}

// newLibraryRecord builds an unsaved library record and its stats
func newLibraryRecord(t *testing.T, date string, start, end int64, points ...models.DataPoint) (*models.LibraryRecord, models.Stats) {
	t.Helper()

	d, err := models.ParseDate(date)
	require.NoError(t, err)
	rec, err := models.NewWatchRecord(uuid.New(), d, points, start, end)
	require.NoError(t, err)

	lr := models.NewLibraryRecord(rec, date)
	return lr, models.ComputeStats(rec.DataPoints, rec.Duration())
}
