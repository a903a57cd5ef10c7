package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStoreFromDB(db), mock
}

func TestSaveSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO t_settings_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveSnapshot(context.Background(), "exam-week", `{"schedule_structure":{}}`)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSnapshot(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		rows := sqlmock.NewRows([]string{"name", "payload", "created_at", "updated_at"}).
			AddRow("exam-week", `{"schedule_structure":{}}`, now, now)
		mock.ExpectQuery("SELECT name, payload").WillReturnRows(rows)

		snap, err := store.GetSnapshot(context.Background(), "exam-week")
		require.NoError(t, err)
		assert.Equal(t, "exam-week", snap.Name)
		assert.Equal(t, `{"schedule_structure":{}}`, snap.Payload)
	})

	t.Run("Missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT name, payload").WillReturnError(sql.ErrNoRows)

		_, err := store.GetSnapshot(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})
}

func TestDeleteSnapshot(t *testing.T) {
	t.Run("Deleted", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM t_settings_snapshots").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.DeleteSnapshot(context.Background(), "exam-week"))
	})

	t.Run("Missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM t_settings_snapshots").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.DeleteSnapshot(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})
}

func TestListSnapshots(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"name", "payload", "created_at", "updated_at"}).
		AddRow("exam-week", "", now, now).
		AddRow("semester-1", "", now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT name, '' AS payload").WillReturnRows(rows)

	snaps, err := store.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "exam-week", snaps[0].Name)
	assert.Empty(t, snaps[0].Payload)
}

func TestCurrentSettings(t *testing.T) {
	t.Run("SaveAndGet", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectExec("INSERT INTO t_settings_snapshots").
			WithArgs(CurrentSettingsName, `{"schedule_structure":{}}`, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, store.SaveCurrentSettings(context.Background(), `{"schedule_structure":{}}`))

		rows := sqlmock.NewRows([]string{"name", "payload", "created_at", "updated_at"}).
			AddRow(CurrentSettingsName, `{"schedule_structure":{}}`, now, now)
		mock.ExpectQuery("SELECT name, payload").WillReturnRows(rows)

		payload, err := store.GetCurrentSettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, `{"schedule_structure":{}}`, payload)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NeverSaved", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT name, payload").WillReturnError(sql.ErrNoRows)

		_, err := store.GetCurrentSettings(context.Background())
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("HiddenFromListing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT name, '' AS payload(.|\n)*WHERE name <>`).
			WithArgs(CurrentSettingsName).
			WillReturnRows(sqlmock.NewRows([]string{"name", "payload", "created_at", "updated_at"}))

		snaps, err := store.ListSnapshots(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snaps)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunLifecycle(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO t_generation_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_generation_runs SET progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_generation_runs SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, "run-1", `{}`))
	require.NoError(t, store.UpdateRunProgress(ctx, "run-1", 42.5))
	require.NoError(t, store.FinishRun(ctx, "run-1", "DONE", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM t_generation_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows([]string{
		"run_id", "status", "progress", "settings", "detail",
		"created_at", "updated_at", "finished_at",
	}).
		AddRow("run-2", "DONE", 100.0, "{}", "", now, now, now).
		AddRow("run-1", "FAILED", 30.0, "{}", "stream interrupted", now.Add(-time.Hour), nil, nil)
	mock.ExpectQuery("SELECT run_id, status, progress").WillReturnRows(rows)

	runs, total, err := store.ListRuns(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, 100.0, runs[0].Progress)
	assert.Equal(t, "stream interrupted", runs[1].Detail)
	assert.False(t, runs[1].FinishedAt.Valid)
}

func TestFindStaleRuns(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"run_id"}).AddRow("run-7").AddRow("run-9")
	mock.ExpectQuery("SELECT run_id FROM t_generation_runs").WillReturnRows(rows)

	ids, err := store.FindStaleRuns(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-7", "run-9"}, ids)
}

func TestMarkRunsFailed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE t_generation_runs SET status = 'FAILED'").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.MarkRunsFailed(context.Background(), []string{"run-7", "run-9"}, "abandoned after restart")
	assert.NoError(t, err)

	// Nothing to mark is a no-op, no query issued.
	assert.NoError(t, store.MarkRunsFailed(context.Background(), nil, "abandoned after restart"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStats(t *testing.T) {
	store, mock := newMockStore(t)

	counts := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("DONE", 8).
		AddRow("FAILED", 2)
	mock.ExpectQuery("SELECT status, COUNT").WillReturnRows(counts)
	mock.ExpectQuery("SELECT AVG").
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(73.5))

	stats, err := store.RunStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"DONE": 8, "FAILED": 2}, stats["status_counts"])
	assert.Equal(t, 73.5, stats["avg_duration_seconds"])
}
