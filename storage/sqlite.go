package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"propsift/models"
)

// SQLiteStore is the operational database: run history, run-scoped logs,
// operator commands, per-source stats and resume cursors. Listing data
// never lands here; that is the warehouse's job.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY,
		source_id TEXT,
		batch_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		urls_found INTEGER DEFAULT 0,
		docs_fetched INTEGER DEFAULT 0,
		docs_parsed INTEGER DEFAULT 0,
		docs_blocked INTEGER DEFAULT 0,
		docs_rejected INTEGER DEFAULT 0,
		rows_written INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS ingest_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS source_stats (
		source_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_listings INTEGER DEFAULT 0,
		total_blocked INTEGER DEFAULT 0,
		success_rate REAL,
		avg_run_duration_sec INTEGER,
		resume_zip_index INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON ingest_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON ingest_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON ingest_runs(source_id, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ============================================================
// Runs
// ============================================================

func (s *SQLiteStore) CreateRun(run *models.IngestRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (source_id, batch_id, started_at, status,
			urls_found, docs_fetched, docs_parsed, docs_blocked, docs_rejected, rows_written, errors_count)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, 0, 0, 0)`,
		run.SourceID, run.BatchID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.IngestRun) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs SET finished_at = ?, status = ?, urls_found = ?,
			docs_fetched = ?, docs_parsed = ?, docs_blocked = ?, docs_rejected = ?,
			rows_written = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.URLsFound,
		run.DocsFetched, run.DocsParsed, run.DocsBlocked, run.DocsRejected,
		run.RowsWritten, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.IngestRun, error) {
	row := s.db.QueryRow(`
		SELECT id, source_id, batch_id, started_at, finished_at, status,
			urls_found, docs_fetched, docs_parsed, docs_blocked, docs_rejected, rows_written, errors_count
		FROM ingest_runs WHERE id = ?`, id)

	var run models.IngestRun
	err := row.Scan(&run.ID, &run.SourceID, &run.BatchID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.URLsFound, &run.DocsFetched, &run.DocsParsed, &run.DocsBlocked, &run.DocsRejected,
		&run.RowsWritten, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, source_id, batch_id, started_at, finished_at, status,
			urls_found, docs_fetched, docs_parsed, docs_blocked, docs_rejected, rows_written, errors_count
		FROM ingest_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.IngestRun
	for rows.Next() {
		var run models.IngestRun
		if err := rows.Scan(&run.ID, &run.SourceID, &run.BatchID, &run.StartedAt, &run.FinishedAt, &run.Status,
			&run.URLsFound, &run.DocsFetched, &run.DocsParsed, &run.DocsBlocked, &run.DocsRejected,
			&run.RowsWritten, &run.ErrorsCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ============================================================
// Logs
// ============================================================

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, sourceID string) error {
	_, err := s.db.Exec(`
		INSERT INTO ingest_logs (run_id, timestamp, level, message, source_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, sourceID)
	return err
}

func (s *SQLiteStore) GetRecentLogs(limit int) ([]models.IngestLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source_id
		FROM ingest_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.IngestLog
	for rows.Next() {
		var entry models.IngestLog
		var sourceID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Timestamp, &entry.Level, &entry.Message, &sourceID); err != nil {
			return nil, err
		}
		entry.SourceID = sourceID.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// ============================================================
// Source stats
// ============================================================

// UpdateSourceStats recomputes the rolled-up view for one source from its
// run history.
func (s *SQLiteStore) UpdateSourceStats(sourceID string) error {
	_, err := s.db.Exec(`
		INSERT INTO source_stats (source_id, last_run_at, last_run_status, total_listings,
			total_blocked, success_rate, avg_run_duration_sec)
		SELECT
			?,
			COALESCE(
				(SELECT started_at FROM ingest_runs WHERE source_id = ? AND status = 'completed' ORDER BY started_at DESC LIMIT 1),
				(SELECT started_at FROM ingest_runs WHERE source_id = ? ORDER BY started_at DESC LIMIT 1)
			),
			(SELECT status FROM ingest_runs WHERE source_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COALESCE(SUM(docs_parsed), 0) FROM ingest_runs WHERE source_id = ?),
			(SELECT COALESCE(SUM(docs_blocked), 0) FROM ingest_runs WHERE source_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM ingest_runs WHERE source_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM ingest_runs WHERE source_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(source_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_listings = excluded.total_listings,
			total_blocked = excluded.total_blocked,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		sourceID, sourceID, sourceID, sourceID, sourceID, sourceID, sourceID, sourceID)
	return err
}

func (s *SQLiteStore) GetSourceStats() ([]models.SourceStats, error) {
	rows, err := s.db.Query(`
		SELECT source_id, last_run_at, last_run_status, total_listings, total_blocked,
			COALESCE(success_rate, 0), COALESCE(avg_run_duration_sec, 0)
		FROM source_stats ORDER BY source_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.SourceStats
	for rows.Next() {
		var st models.SourceStats
		var status sql.NullString
		if err := rows.Scan(&st.SourceID, &st.LastRunAt, &status, &st.TotalListings,
			&st.TotalBlocked, &st.SuccessRate, &st.AvgRunDurationSec); err != nil {
			return nil, err
		}
		st.LastRunStatus = status.String
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) GetLastRunTime(sourceID string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run_at FROM source_stats WHERE source_id = ?`, sourceID).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}

// ============================================================
// Commands
// ============================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var paramsJSON []byte
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return 0, fmt.Errorf("marshal command params: %w", err)
		}
	}

	result, err := s.db.Exec(`
		INSERT INTO commands (command, params) VALUES (?, ?)`,
		string(cmd), paramsJSON)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ============================================================
// Resume cursors
// ============================================================

// Resume cursors remember how far through a source's zip list an
// interrupted run got, so the next pass picks up instead of restarting.

func (s *SQLiteStore) GetResumeZip(sourceID string) (int, error) {
	var index int
	err := s.db.QueryRow(`
		SELECT COALESCE(resume_zip_index, 0) FROM source_stats WHERE source_id = ?`, sourceID).Scan(&index)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return index, err
}

func (s *SQLiteStore) SetResumeZip(sourceID string, index int) error {
	_, err := s.db.Exec(`
		INSERT INTO source_stats (source_id, resume_zip_index)
		VALUES (?, ?)
		ON CONFLICT(source_id) DO UPDATE SET resume_zip_index = ?`, sourceID, index, index)
	return err
}

func (s *SQLiteStore) ClearResumeZip(sourceID string) error {
	_, err := s.db.Exec(`
		UPDATE source_stats SET resume_zip_index = 0 WHERE source_id = ?`, sourceID)
	return err
}

func (s *SQLiteStore) GetSourcesWithResume() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT source_id FROM source_stats WHERE resume_zip_index > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var sourceID string
		if err := rows.Scan(&sourceID); err != nil {
			return nil, err
		}
		sources = append(sources, sourceID)
	}
	return sources, rows.Err()
}

// ResetAllData clears every operational table. Used by the TUI reset
// command only.
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"ingest_logs",
		"ingest_runs",
		"source_stats",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
