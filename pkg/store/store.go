// Package store persists route plans in SQLite. Saving a plan atomically
// supersedes any prior plan for the same task: the current-plan row, the
// history append, and the stats counters move in one transaction, so readers
// never observe a half-written or dual-current state.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zen-systems/taskroute/pkg/schema"
)

// Store is a SQLite-backed route plan store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the plan store at the given path.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schemaSQL := `
	-- Current plan per task. Column names route_plan, requirements,
	-- selected_instance_id and router_version are a stable contract read by
	-- the task-execution subsystem.
	CREATE TABLE IF NOT EXISTS route_plans (
		task_id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		route_plan TEXT NOT NULL,
		requirements TEXT NOT NULL,
		selected_instance_id TEXT NOT NULL,
		router_version TEXT NOT NULL,
		state TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Append-only record of every plan ever saved, including superseded ones.
	CREATE TABLE IF NOT EXISTS plan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		cause TEXT NOT NULL,
		route_plan TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_task ON plan_history(task_id);

	CREATE TABLE IF NOT EXISTS routing_stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_routed INTEGER NOT NULL DEFAULT 0,
		reroute_count INTEGER NOT NULL DEFAULT 0,
		override_count INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO routing_stats (id) VALUES (1);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// SavePlan persists the plan as the current plan for its task, superseding
// any prior plan, appending to history and bumping the counter matching the
// cause, all in one transaction.
func (s *Store) SavePlan(ctx context.Context, plan *schema.RoutePlan, cause schema.SaveCause) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	counter, err := counterFor(cause)
	if err != nil {
		return err
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	reqJSON, err := json.Marshal(plan.Requirements)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO route_plans (task_id, plan_id, route_plan, requirements, selected_instance_id, router_version, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			plan_id = excluded.plan_id,
			route_plan = excluded.route_plan,
			requirements = excluded.requirements,
			selected_instance_id = excluded.selected_instance_id,
			router_version = excluded.router_version,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		plan.TaskID, plan.PlanID, string(planJSON), string(reqJSON),
		plan.Selected, plan.RouterVersion, string(plan.State), now)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_history (task_id, plan_id, cause, route_plan, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		plan.TaskID, plan.PlanID, string(cause), string(planJSON), now)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE routing_stats SET %s = %s + 1 WHERE id = 1`, counter, counter))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MarkVerified records a successful no-op re-check of the current plan. It
// has no effect if the plan has already been superseded.
func (s *Store) MarkVerified(ctx context.Context, taskID, planID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE route_plans SET state = ?, updated_at = ?
		WHERE task_id = ? AND plan_id = ? AND state != ?`,
		string(schema.PlanVerified), time.Now().UTC(), taskID, planID, string(schema.PlanSuperseded))
	return err
}

// LoadPlan returns the most recently saved plan for the task, or nil when no
// plan exists.
func (s *Store) LoadPlan(ctx context.Context, taskID string) (*schema.RoutePlan, error) {
	var planJSON, state string
	err := s.db.QueryRowContext(ctx,
		`SELECT route_plan, state FROM route_plans WHERE task_id = ?`, taskID).
		Scan(&planJSON, &state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plan schema.RoutePlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("corrupt plan for task %s: %w", taskID, err)
	}
	// The state column is authoritative; the JSON blob is the plan as saved.
	plan.State = schema.PlanState(state)
	return &plan, nil
}

// History returns every plan ever saved for the task, oldest first.
func (s *Store) History(ctx context.Context, taskID string) ([]schema.RoutePlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT route_plan FROM plan_history WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []schema.RoutePlan
	for rows.Next() {
		var planJSON string
		if err := rows.Scan(&planJSON); err != nil {
			return nil, err
		}
		var plan schema.RoutePlan
		if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Stats returns the aggregate routing counters.
func (s *Store) Stats(ctx context.Context) (schema.RoutingStats, error) {
	var stats schema.RoutingStats
	err := s.db.QueryRowContext(ctx,
		`SELECT total_routed, reroute_count, override_count FROM routing_stats WHERE id = 1`).
		Scan(&stats.TotalRouted, &stats.RerouteCount, &stats.OverrideCount)
	return stats, err
}

func counterFor(cause schema.SaveCause) (string, error) {
	switch cause {
	case schema.CauseRouted:
		return "total_routed", nil
	case schema.CauseRerouted:
		return "reroute_count", nil
	case schema.CauseOverridden:
		return "override_count", nil
	default:
		return "", fmt.Errorf("unknown save cause %q", cause)
	}
}
