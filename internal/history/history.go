// Package history records finished orchestration runs in sqlite so
// they survive the process and can be listed from the CLI.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Pricepro2006/crewd/internal/plan"
)

// Run is one archived orchestration request.
type Run struct {
	ID          string            `json:"id"`
	PlanID      string            `json:"planId"`
	Query       string            `json:"query"`
	Success     bool              `json:"success"`
	Summary     string            `json:"summary"`
	Completed   int               `json:"completedSteps"`
	Failed      int               `json:"failedSteps"`
	Replans     int               `json:"replans"`
	StepResults []plan.StepResult `json:"stepResults,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Store persists runs in a sqlite database under the data directory.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the history database in dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		query TEXT NOT NULL,
		success INTEGER NOT NULL,
		summary TEXT NOT NULL,
		completed_steps INTEGER NOT NULL DEFAULT 0,
		failed_steps INTEGER NOT NULL DEFAULT 0,
		replans INTEGER NOT NULL DEFAULT 0,
		step_results_json TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives one finished execution and returns the run id.
func (s *Store) SaveRun(ctx context.Context, query string, res *plan.ExecutionResult, replans int) (string, error) {
	if res == nil {
		return "", fmt.Errorf("nil execution result")
	}

	stepsJSON, err := json.Marshal(res.StepResults)
	if err != nil {
		return "", fmt.Errorf("marshal step results: %w", err)
	}

	id := "run-" + uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, query, success, summary, completed_steps, failed_steps, replans, step_results_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, res.PlanID, query, res.Success, res.Summary,
		res.CompletedSteps, res.FailedSteps, replans, string(stepsJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. Step results are
// omitted from listings.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, query, success, summary, completed_steps, failed_steps, replans, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.PlanID, &r.Query, &r.Success, &r.Summary,
			&r.Completed, &r.Failed, &r.Replans, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run including its step results.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var stepsJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, query, success, summary, completed_steps, failed_steps, replans, step_results_json, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.PlanID, &r.Query, &r.Success, &r.Summary,
		&r.Completed, &r.Failed, &r.Replans, &stepsJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if stepsJSON.Valid {
		json.Unmarshal([]byte(stepsJSON.String), &r.StepResults)
	}
	return &r, nil
}
