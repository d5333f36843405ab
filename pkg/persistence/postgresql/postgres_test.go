package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/callflow/pkg/persistence"
	"github.com/dukex/callflow/pkg/persistence/postgresql"
	"github.com/dukex/callflow/pkg/testutil"
	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			slog.Error("failed to terminate postgres container", "error", err)
		}
	}

	os.Exit(code)
}

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("callflow_test"),
			postgres.WithUsername("callflow"),
			postgres.WithPassword("callflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflows')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflows table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	snapshot := testutil.CreateBillingSnapshot()
	snapshot.SavedAt = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, p.Save(ctx, snapshot))

	loaded, err := p.Load(ctx, snapshot.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(snapshot, loaded); diff != "" {
		t.Errorf("loaded snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistence_SaveOverwrites(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	snapshot := testutil.CreateBillingSnapshot()
	require.NoError(t, p.Save(ctx, snapshot))

	snapshot.Name = "Renamed"
	snapshot.Nodes = snapshot.Nodes[:1]
	snapshot.Edges = nil
	require.NoError(t, p.Save(ctx, snapshot))

	summaries, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Renamed", summaries[0].Name)
	assert.Equal(t, 1, summaries[0].NodeCount)
}

func TestPersistence_ListOrdersByName(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	for _, name := range []string{"Support", "Billing", "Sales"} {
		snapshot := testutil.CreateBillingSnapshot()
		snapshot.Name = name
		require.NoError(t, p.Save(ctx, snapshot))
	}

	summaries, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "Billing", summaries[0].Name)
	assert.Equal(t, "Sales", summaries[1].Name)
	assert.Equal(t, "Support", summaries[2].Name)
}

func TestPersistence_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.Load(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.Delete(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_Delete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	snapshot := testutil.CreateBillingSnapshot()
	require.NoError(t, p.Save(ctx, snapshot))
	require.NoError(t, p.Delete(ctx, snapshot.ID))

	_, err := p.Load(ctx, snapshot.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
