// Package storage provides the concrete Postgres/Redis collaborators
// the core's Repository and Cache interfaces are satisfied by, plus a
// Redis-Streams EventBus for task-update fan-out (§6).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/coordinator"
)

// Postgres implements coordinator.Repository over a pgx connection pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ coordinator.Repository = (*Postgres)(nil)

// NewPostgres opens and pings a pgx pool against dsn.
func NewPostgres(dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return &Postgres{db: pool, logger: logger}, nil
}

// Migrate applies every .up.sql migration file in migrationsDir, in
// filename order.
func (p *Postgres) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := p.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		p.logger.Info("migration applied", zap.String("file", f))
	}
	return nil
}

// Close shuts down the connection pool.
func (p *Postgres) Close() {
	p.db.Close()
}

func (p *Postgres) CreateSession(ctx context.Context, metadata map[string]any) (*coordinator.Session, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal session metadata: %w", err)
	}
	sess := &coordinator.Session{ID: uuid.New().String(), Metadata: metadata, CreatedAt: time.Now()}
	userID, _ := metadata["user_id"].(string)
	sess.UserID = userID
	_, err = p.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, metadata, created_at) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, metaJSON, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*coordinator.Session, error) {
	var sess coordinator.Session
	var metaJSON []byte
	err := p.db.QueryRow(ctx,
		`SELECT id, user_id, metadata, created_at, ended_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &metaJSON, &sess.CreatedAt, &sess.EndedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal session metadata: %w", err)
		}
	}
	return &sess, nil
}

func (p *Postgres) EndSession(ctx context.Context, id string) error {
	_, err := p.db.Exec(ctx, `UPDATE sessions SET ended_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) ListActiveSessions(ctx context.Context, limit int) ([]*coordinator.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.Query(ctx,
		`SELECT id, user_id, metadata, created_at, ended_at FROM sessions
		 WHERE ended_at IS NULL ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var out []*coordinator.Session
	for rows.Next() {
		var sess coordinator.Session
		var metaJSON []byte
		if err := rows.Scan(&sess.ID, &sess.UserID, &metaJSON, &sess.CreatedAt, &sess.EndedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &sess.Metadata)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateTask(ctx context.Context, sessionID, prompt, agentID, status string) (string, error) {
	id := uuid.New().String()
	_, err := p.db.Exec(ctx,
		`INSERT INTO tasks (id, session_id, prompt, agent_id, status, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, now())`,
		id, sessionID, prompt, agentID, status,
	)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

func (p *Postgres) GetTask(ctx context.Context, id string) (map[string]any, error) {
	var sessionID, prompt, status string
	var agentID *string
	var resultJSON []byte
	var createdAt time.Time
	err := p.db.QueryRow(ctx,
		`SELECT session_id, prompt, agent_id, status, result, created_at FROM tasks WHERE id = $1`, id,
	).Scan(&sessionID, &prompt, &agentID, &status, &resultJSON, &createdAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	row := map[string]any{
		"id": id, "session_id": sessionID, "prompt": prompt, "status": status, "created_at": createdAt,
	}
	if agentID != nil {
		row["agent_id"] = *agentID
	}
	if len(resultJSON) > 0 {
		var result map[string]any
		if err := json.Unmarshal(resultJSON, &result); err == nil {
			row["result"] = result
		}
	}
	return row, nil
}

func (p *Postgres) UpdateTaskStatus(ctx context.Context, id, status string, result map[string]any) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
	}
	_, err := p.db.Exec(ctx,
		`UPDATE tasks SET status = $2, result = COALESCE($3, result), updated_at = now() WHERE id = $1`,
		id, status, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	return nil
}

func (p *Postgres) ListTasksBySession(ctx context.Context, sessionID string) ([]map[string]any, error) {
	return p.listTasks(ctx, `session_id = $1 ORDER BY created_at ASC`, sessionID)
}

func (p *Postgres) ListTasksByAgent(ctx context.Context, agentID string) ([]map[string]any, error) {
	return p.listTasks(ctx, `agent_id = $1 ORDER BY created_at ASC`, agentID)
}

func (p *Postgres) listTasks(ctx context.Context, whereClause string, arg string) ([]map[string]any, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, session_id, prompt, agent_id, status, result, created_at FROM tasks WHERE `+whereClause, arg)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id, sessionID, prompt, status string
		var agentID *string
		var resultJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &sessionID, &prompt, &agentID, &status, &resultJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		row := map[string]any{"id": id, "session_id": sessionID, "prompt": prompt, "status": status, "created_at": createdAt}
		if agentID != nil {
			row["agent_id"] = *agentID
		}
		if len(resultJSON) > 0 {
			var result map[string]any
			if err := json.Unmarshal(resultJSON, &result); err == nil {
				row["result"] = result
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateCheckpoint(ctx context.Context, taskID string, stateData map[string]any) (*coordinator.Checkpoint, error) {
	dataJSON, err := json.Marshal(stateData)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint state: %w", err)
	}
	cp := &coordinator.Checkpoint{TaskID: taskID, StateData: stateData, CreatedAt: time.Now()}
	_, err = p.db.Exec(ctx,
		`INSERT INTO checkpoints (task_id, state_data, created_at) VALUES ($1, $2, $3)`,
		taskID, dataJSON, cp.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint: %w", err)
	}
	return cp, nil
}

func (p *Postgres) GetLatestCheckpoint(ctx context.Context, taskID string) (*coordinator.Checkpoint, error) {
	var cp coordinator.Checkpoint
	var dataJSON []byte
	cp.TaskID = taskID
	err := p.db.QueryRow(ctx,
		`SELECT state_data, created_at FROM checkpoints WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1`, taskID,
	).Scan(&dataJSON, &cp.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("get latest checkpoint for %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest checkpoint for %s: %w", taskID, err)
	}
	if err := json.Unmarshal(dataJSON, &cp.StateData); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint state: %w", err)
	}
	return &cp, nil
}

func (p *Postgres) CreateAgentExecution(ctx context.Context, agentID, taskID, status string) (*coordinator.AgentExecution, error) {
	exec := &coordinator.AgentExecution{ID: uuid.New().String(), AgentID: agentID, TaskID: taskID, Status: status}
	_, err := p.db.Exec(ctx,
		`INSERT INTO agent_executions (id, agent_id, task_id, status, created_at) VALUES ($1, $2, $3, $4, now())`,
		exec.ID, agentID, taskID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("create agent execution: %w", err)
	}
	return exec, nil
}

func (p *Postgres) CompleteAgentExecution(ctx context.Context, id, status, output string) error {
	_, err := p.db.Exec(ctx,
		`UPDATE agent_executions SET status = $2, output = $3, completed_at = now() WHERE id = $1`,
		id, status, output,
	)
	if err != nil {
		return fmt.Errorf("complete agent execution %s: %w", id, err)
	}
	return nil
}
