package database

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/cassany-backend/internal/config"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5433", DBUser: "cassany", DBPass: "pw", DBName: "shop"}
	assert.Equal(t, "host=db user=cassany password=pw dbname=shop port=5433 sslmode=disable", DSN(cfg))

	cfg.InstanceConnectionName = "proj:region:inst"
	assert.Equal(t, "host=/cloudsql/proj:region:inst user=cassany password=pw dbname=shop sslmode=disable", DSN(cfg))

	cfg.DatabaseURL = "postgres://u:p@h/db"
	assert.Equal(t, "postgres://u:p@h/db", DSN(cfg))
}

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite("sqlite://cassany.db"))
	assert.True(t, IsSQLite("file::memory:?cache=shared"))
	assert.False(t, IsSQLite("postgres://u:p@h/db"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		Environment: "test",
		DatabaseURL: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}
	log := zaptest.NewLogger(t)
	db, err := Connect(cfg, log)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db, log))
	require.NoError(t, Migrate(db, log))
	assert.Error(t, Rollback(db, log))

	store := storage.NewGormStore(db)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, models.NewSession("cliente_573001112233", time.Now())))
	got, err := store.GetSession(ctx, "cliente_573001112233")
	require.NoError(t, err)
	assert.Equal(t, "573001112233", got.Phone)
}
