package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/timetable-lab/console-service/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ErrSnapshotNotFound is returned when a named snapshot does not exist.
var ErrSnapshotNotFound = errors.New("storage: snapshot not found")

// CurrentSettingsName keys the unnamed working record in the snapshot
// table. It is reserved: hidden from listings and rejected as a snapshot
// name.
const CurrentSettingsName = "main_settings"

type MySQLStore struct {
	db *sqlx.DB
}

func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	return &MySQLStore{db: db}, nil
}

// NewMySQLStoreFromDB wraps an existing connection; used by tests.
func NewMySQLStoreFromDB(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: sqlx.NewDb(db, "mysql")}
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) InitSchema(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS t_settings_snapshots (
  name VARCHAR(190) PRIMARY KEY,
  payload LONGTEXT NOT NULL,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);
`, `
CREATE TABLE IF NOT EXISTS t_generation_runs (
  run_id CHAR(36) PRIMARY KEY,
  status VARCHAR(20) NOT NULL DEFAULT 'REQUESTING',
  progress DOUBLE NOT NULL DEFAULT 0,
  settings LONGTEXT,
  detail TEXT,
  created_at DATETIME NOT NULL,
  updated_at DATETIME,
  finished_at DATETIME,
  INDEX idx_status_created (status, created_at)
);
`}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts a named settings record.
func (s *MySQLStore) SaveSnapshot(ctx context.Context, name, payload string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO t_settings_snapshots (name, payload, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)
`, name, payload, now, now)
	return err
}

func (s *MySQLStore) GetSnapshot(ctx context.Context, name string) (*models.SettingsSnapshot, error) {
	var snap models.SettingsSnapshot
	err := s.db.GetContext(ctx, &snap, `
SELECT name, payload, created_at, updated_at
FROM t_settings_snapshots WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MySQLStore) DeleteSnapshot(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM t_settings_snapshots WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// ListSnapshots returns snapshot names with timestamps, newest first. The
// payloads are omitted; they can be large. The working record is excluded.
func (s *MySQLStore) ListSnapshots(ctx context.Context) ([]models.SettingsSnapshot, error) {
	var snaps []models.SettingsSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
SELECT name, '' AS payload, created_at, updated_at
FROM t_settings_snapshots WHERE name <> ? ORDER BY updated_at DESC`, CurrentSettingsName)
	return snaps, err
}

// SaveCurrentSettings persists the unnamed working record. It survives
// restarts and is reloaded into the workspace on startup.
func (s *MySQLStore) SaveCurrentSettings(ctx context.Context, payload string) error {
	return s.SaveSnapshot(ctx, CurrentSettingsName, payload)
}

// GetCurrentSettings returns the persisted working record, or
// ErrSnapshotNotFound when none was ever saved.
func (s *MySQLStore) GetCurrentSettings(ctx context.Context) (string, error) {
	snap, err := s.GetSnapshot(ctx, CurrentSettingsName)
	if err != nil {
		return "", err
	}
	return snap.Payload, nil
}

func (s *MySQLStore) InsertRun(ctx context.Context, runID, settingsJSON string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO t_generation_runs (run_id, status, progress, settings, created_at, updated_at)
VALUES (?, 'REQUESTING', 0, ?, ?, ?)
`, runID, settingsJSON, now, now)
	return err
}

func (s *MySQLStore) UpdateRunProgress(ctx context.Context, runID string, progress float64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE t_generation_runs SET progress = ?, status = 'STREAMING', updated_at = ? WHERE run_id = ?
`, progress, time.Now(), runID)
	return err
}

func (s *MySQLStore) FinishRun(ctx context.Context, runID, status, detail string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
UPDATE t_generation_runs SET status = ?, detail = ?, finished_at = ?, updated_at = ? WHERE run_id = ?
`, status, detail, now, now, runID)
	return err
}

func (s *MySQLStore) GetRun(ctx context.Context, runID string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	err := s.db.GetContext(ctx, &run, `
SELECT run_id, status, progress,
       COALESCE(settings, '') AS settings,
       COALESCE(detail, '') AS detail,
       created_at, updated_at, finished_at
FROM t_generation_runs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns paginated run history, newest first.
func (s *MySQLStore) ListRuns(ctx context.Context, status string, page, pageSize int) ([]models.GenerationRun, int, error) {
	args := []any{}
	where := "WHERE 1=1"
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM t_generation_runs "+where, args...); err != nil {
		return nil, 0, err
	}

	query := `
SELECT run_id, status, progress,
       COALESCE(settings, '') AS settings,
       COALESCE(detail, '') AS detail,
       created_at, updated_at, finished_at
FROM t_generation_runs ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	queryArgs := append(args, pageSize, (page-1)*pageSize)
	var runs []models.GenerationRun
	if err := s.db.SelectContext(ctx, &runs, query, queryArgs...); err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// FindStaleRuns finds runs stuck in STREAMING longer than timeout. The
// scheduler marks them failed when the process restarted mid-stream.
func (s *MySQLStore) FindStaleRuns(ctx context.Context, timeout time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-timeout)
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
SELECT run_id FROM t_generation_runs
WHERE status IN ('REQUESTING', 'STREAMING') AND updated_at < ?`, cutoff)
	return ids, err
}

func (s *MySQLStore) MarkRunsFailed(ctx context.Context, runIDs []string, detail string) error {
	if len(runIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
UPDATE t_generation_runs SET status = 'FAILED', detail = ?, finished_at = ?, updated_at = ?
WHERE run_id IN (?)`, detail, time.Now(), time.Now(), runIDs)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// RunStats aggregates run counts by status plus mean duration of done runs.
func (s *MySQLStore) RunStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	rows, err := s.db.QueryxContext(ctx, `
SELECT status, COUNT(*) AS count FROM t_generation_runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		counts[status] = count
	}
	stats["status_counts"] = counts

	var avg sql.NullFloat64
	_ = s.db.GetContext(ctx, &avg, `
SELECT AVG(TIMESTAMPDIFF(SECOND, created_at, finished_at))
FROM t_generation_runs WHERE status = 'DONE' AND finished_at IS NOT NULL`)
	if avg.Valid {
		stats["avg_duration_seconds"] = avg.Float64
	}

	return stats, nil
}
