package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lpjform/lpj-backend/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../migrations"))
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// A second run must not duplicate or fail.
	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'lpj_history'`,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAndGetByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	reportDate := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	id, err := repo.Record(ctx, "REQ-240101-001", reportDate, "/out/LPJ_PUM_Output_x.pdf")
	require.NoError(t, err)
	require.Positive(t, id)

	entry, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "REQ-240101-001", entry.NoRequest)
	assert.Equal(t, "/out/LPJ_PUM_Output_x.pdf", entry.FilePath)
	assert.Equal(t, "2024-01-01", entry.TglLPJ.Format("2006-01-02"))
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestGetByIDUnknown(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db.DB, zap.NewNop())

	entry, err := repo.GetByID(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	for _, req := range []string{"REQ-1", "REQ-2", "REQ-3"} {
		_, err := repo.Record(ctx, req, date, "/out/"+req+".pdf")
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "REQ-3", entries[0].NoRequest)
	assert.Equal(t, "REQ-1", entries[2].NoRequest)
}

func TestListEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db.DB, zap.NewNop())

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestConcurrentRecordsGetDistinctIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	date := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	const n = 12
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.Record(ctx, "REQ-CONC", date, "/out/conc.pdf")
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
