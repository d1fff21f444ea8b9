package trajectory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Archiver persists finished trajectories to a local sqlite database so
// completed runs survive process restarts and can be inspected later.
type Archiver struct {
	db *sql.DB
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS runs (
	task_id    TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	goal       TEXT NOT NULL,
	status     TEXT NOT NULL,
	steps      INTEGER NOT NULL,
	started_at TIMESTAMP,
	ended_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS run_steps (
	task_id     TEXT NOT NULL,
	step_index  INTEGER NOT NULL,
	thinking    TEXT,
	prediction  TEXT,
	action_json TEXT,
	conclusion  TEXT,
	app         TEXT,
	model_name  TEXT,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (task_id, step_index)
);
CREATE INDEX IF NOT EXISTS idx_runs_device ON runs(device_id, ended_at);
`

// NewArchiver opens (or creates) the archive database at path.
func NewArchiver(path string) (*Archiver, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return &Archiver{db: db}, nil
}

// Archive writes one finished run. Screenshots are deliberately not
// persisted; they dominate trajectory size and the archive exists for
// audit, not replay.
func (a *Archiver) Archive(ctx context.Context, deviceID, agentType, status string, mem *Memory) error {
	steps := mem.Steps()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	var startedAt interface{}
	if len(steps) > 0 {
		startedAt = steps[0].Timestamp
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (task_id, device_id, agent_type, goal, status, steps, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.TaskID(), deviceID, agentType, mem.TaskGoal(), status, len(steps), startedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}

	for _, s := range steps {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_steps (task_id, step_index, thinking, prediction, action_json, conclusion, app, model_name, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			mem.TaskID(), s.Index, s.Thinking, s.Prediction, s.ActionJSON, s.Conclusion, s.App, s.ModelName, s.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to archive step %d: %w", s.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	log.Debug().
		Str("task_id", mem.TaskID()).
		Str("device_id", deviceID).
		Int("steps", len(steps)).
		Str("status", status).
		Msg("trajectory archived")
	return nil
}

// RunSummary is one archived run row.
type RunSummary struct {
	TaskID    string    `json:"task_id"`
	DeviceID  string    `json:"device_id"`
	AgentType string    `json:"agent_type"`
	Goal      string    `json:"goal"`
	Status    string    `json:"status"`
	Steps     int       `json:"steps"`
	EndedAt   time.Time `json:"ended_at"`
}

// RecentRuns lists the most recent archived runs for a device.
func (a *Archiver) RecentRuns(ctx context.Context, deviceID string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT task_id, device_id, agent_type, goal, status, steps, ended_at
		 FROM runs WHERE device_id = ? ORDER BY ended_at DESC LIMIT ?`,
		deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.TaskID, &r.DeviceID, &r.AgentType, &r.Goal, &r.Status, &r.Steps, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying database.
func (a *Archiver) Close() error {
	return a.db.Close()
}
