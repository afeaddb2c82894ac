package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/browserflow/browserflow/pkg/replay"
)

// SQLiteHistoryRepository persists replay reports for later inspection.
// It implements replay.HistoryRecorder.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// HistoryEntry is one stored replay outcome.
type HistoryEntry struct {
	ID         string         `json:"id"`
	ScenarioID string         `json:"scenario_id"`
	Scenario   string         `json:"scenario_name"`
	Success    bool           `json:"success"`
	Report     *replay.Report `json:"report"`
	ReplayedAt time.Time      `json:"replayed_at"`
}

// NewSQLiteHistoryRepository creates a repository at the default location
// (~/.browserflow/browserflow.db).
func NewSQLiteHistoryRepository() (*SQLiteHistoryRepository, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	baseDir := filepath.Join(homeDir, ".browserflow")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create app directory: %w", err)
	}

	return NewSQLiteHistoryRepositoryWithPath(filepath.Join(baseDir, "browserflow.db"))
}

// NewSQLiteHistoryRepositoryWithPath creates a repository backed by the
// given database file. Useful for testing.
func NewSQLiteHistoryRepositoryWithPath(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLiteHistoryRepository{db: db}
	if err := repo.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

// init creates the schema if it does not exist.
func (r *SQLiteHistoryRepository) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS replay_history (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		success INTEGER NOT NULL,
		executed_steps INTEGER NOT NULL,
		failed_steps INTEGER NOT NULL,
		report TEXT NOT NULL,
		replayed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_replay_history_scenario ON replay_history(scenario_id);
	CREATE INDEX IF NOT EXISTS idx_replay_history_replayed_at ON replay_history(replayed_at);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record stores a finished replay report.
func (r *SQLiteHistoryRepository) Record(report *replay.Report) error {
	if report == nil {
		return fmt.Errorf("cannot record nil report")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	success := 0
	if report.Success() {
		success = 1
	}

	_, err = r.db.Exec(
		`INSERT INTO replay_history (id, scenario_id, scenario_name, success, executed_steps, failed_steps, report, replayed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		report.ScenarioID.String(),
		report.ScenarioName,
		success,
		report.ExecutedSteps,
		report.FailedSteps,
		string(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert replay history: %w", err)
	}

	return nil
}

// List returns the most recent replays, newest first. A scenario filter
// narrows results to one scenario id or name; empty matches all.
func (r *SQLiteHistoryRepository) List(scenarioFilter string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, scenario_id, scenario_name, success, report, replayed_at
		FROM replay_history`
	args := []interface{}{}

	if scenarioFilter != "" {
		query += ` WHERE scenario_id = ? OR scenario_name = ?`
		args = append(args, scenarioFilter, scenarioFilter)
	}

	query += ` ORDER BY replayed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query replay history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		var success int
		var reportJSON, replayedAt string

		if err := rows.Scan(&entry.ID, &entry.ScenarioID, &entry.Scenario, &success, &reportJSON, &replayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan replay history row: %w", err)
		}

		entry.Success = success == 1
		if err := json.Unmarshal([]byte(reportJSON), &entry.Report); err != nil {
			return nil, fmt.Errorf("failed to parse stored report: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, replayedAt); err == nil {
			entry.ReplayedAt = t
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Close releases the database handle.
func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}
