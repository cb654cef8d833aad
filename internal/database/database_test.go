package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "portal.db")

	db, err := NewDB(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestNewDB_MigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.migrate(context.Background()))
}

func TestEditJournal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	recs := []*models.EditRecord{
		{BookingID: "B123", Field: models.FieldInvoiceSent, OldValue: "false", NewValue: "true", Outcome: models.EditRolledBack, Error: "backend: nicht erlaubt", OccurredAt: base},
		{BookingID: "B124", Field: models.FieldPaidDate, NewValue: "2026-03-01", Outcome: models.EditApplied, OccurredAt: base.Add(time.Minute)},
		{BookingID: "B123", Field: models.FieldAppeared, OldValue: "false", NewValue: "true", Outcome: models.EditApplied, OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, r := range recs {
		require.NoError(t, db.RecordEdit(ctx, r))
		assert.NotZero(t, r.ID)
	}

	all, err := db.ListEdits(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.FieldAppeared, all[0].Field, "newest first")

	forB123, err := db.ListEdits(ctx, "B123", 10)
	require.NoError(t, err)
	require.Len(t, forB123, 2)
	assert.Equal(t, models.EditRolledBack, forB123[1].Outcome)
	assert.Equal(t, "backend: nicht erlaubt", forB123[1].Error)

	limited, err := db.ListEdits(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSyncQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "mirror", BookingID: "B1", Payload: `{"bookings":[]}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, SyncPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "B1", tasks[0].BookingID)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, SyncCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	t.Run("Retry", func(t *testing.T) {
		task := &models.SyncTask{TaskType: "mirror", BookingID: "B2"}
		require.NoError(t, db.CreateSyncTask(ctx, task))

		future := time.Now().Add(time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, SyncRetry, "quota", &future))
		tasks, _ := db.GetPendingSyncTasks(ctx, 10)
		assert.Empty(t, tasks, "not due yet")

		past := time.Now().Add(-time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, SyncRetry, "quota", &past))
		tasks, _ = db.GetPendingSyncTasks(ctx, 10)
		require.Len(t, tasks, 1)
		assert.Equal(t, 2, tasks[0].RetryCount)
		require.NotNil(t, tasks[0].LastError)
		assert.Equal(t, "quota", *tasks[0].LastError)
	})

	t.Run("Failed", func(t *testing.T) {
		task := &models.SyncTask{TaskType: "mirror", BookingID: "B3"}
		require.NoError(t, db.CreateSyncTask(ctx, task))
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, SyncFailed, "permission denied", nil))

		failed, err := db.GetFailedSyncTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "B3", failed[0].BookingID)
		assert.NotNil(t, failed[0].ProcessedAt)
	})

	t.Run("UnknownID", func(t *testing.T) {
		assert.Error(t, db.UpdateSyncTaskStatus(ctx, 9999, SyncCompleted, "", nil))
	})
}

func TestBackupService(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "portal.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RecordEdit(context.Background(), &models.EditRecord{BookingID: "B1", Field: "appeared", Outcome: models.EditApplied}))

	storage := filepath.Join(dir, "backups")
	logger := zerolog.Nop()
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storage, RetentionDays: 1}, &logger)

	path, err := s.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	old := filepath.Join(storage, backupPrefix+"old.db")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	stale := time.Now().AddDate(0, 0, -2)
	require.NoError(t, os.Chtimes(old, stale, stale))
	foreign := filepath.Join(storage, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(foreign, stale, stale))

	s.CleanupOldBackups()

	assert.NoFileExists(t, old)
	assert.FileExists(t, path)
	assert.FileExists(t, foreign, "only backup files are pruned")
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
