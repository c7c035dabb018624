package storage

import (
	"context"
	"testing"
	"time"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

const testSchema = `
CREATE TABLE sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE TABLE tasks (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	agent_id TEXT,
	status TEXT NOT NULL,
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ
);
CREATE TABLE checkpoints (
	task_id TEXT NOT NULL,
	state_data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE agent_executions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	status TEXT NOT NULL,
	output TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);
`

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}
	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("hivemind_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}

	pg, err := NewPostgres(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(pg.Close)

	if _, err := pg.db.Exec(ctx, testSchema); err != nil {
		t.Fatalf("apply test schema: %v", err)
	}
	return pg
}

func TestPostgresSessionLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	sess, err := pg.CreateSession(ctx, map[string]any{"user_id": "u1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := pg.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("expected user_id u1, got %q", got.UserID)
	}

	if err := pg.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	got, err = pg.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession after end: %v", err)
	}
	if got.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}

	active, err := pg.ListActiveSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListActiveSessions: %v", err)
	}
	for _, s := range active {
		if s.ID == sess.ID {
			t.Fatalf("ended session should not appear in active list")
		}
	}
}

func TestPostgresTaskLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	sess, err := pg.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	taskID, err := pg.CreateTask(ctx, sess.ID, "build a widget", "", "pending")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := pg.UpdateTaskStatus(ctx, taskID, "completed", map[string]any{"output": "done"}); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	row, err := pg.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if row["status"] != "completed" {
		t.Fatalf("expected status completed, got %v", row["status"])
	}

	tasks, err := pg.ListTasksBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListTasksBySession: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
}

func TestPostgresCheckpointRoundTrip(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	sess, _ := pg.CreateSession(ctx, nil)
	taskID, _ := pg.CreateTask(ctx, sess.ID, "investigate", "", "running")

	if _, err := pg.CreateCheckpoint(ctx, taskID, map[string]any{"step": 1}); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := pg.CreateCheckpoint(ctx, taskID, map[string]any{"step": 2}); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	latest, err := pg.GetLatestCheckpoint(ctx, taskID)
	if err != nil {
		t.Fatalf("GetLatestCheckpoint: %v", err)
	}
	step, _ := latest.StateData["step"].(float64)
	if int(step) != 2 {
		t.Fatalf("expected latest checkpoint step=2, got %v", latest.StateData["step"])
	}
}

func TestPostgresAgentExecutionLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	sess, _ := pg.CreateSession(ctx, nil)
	taskID, _ := pg.CreateTask(ctx, sess.ID, "scan network", "", "running")

	exec, err := pg.CreateAgentExecution(ctx, "INF-002", taskID, "running")
	if err != nil {
		t.Fatalf("CreateAgentExecution: %v", err)
	}
	if err := pg.CompleteAgentExecution(ctx, exec.ID, "completed", "scan complete"); err != nil {
		t.Fatalf("CompleteAgentExecution: %v", err)
	}
}

func TestPostgresGetSessionNotFound(t *testing.T) {
	pg := newTestPostgres(t)
	_, err := pg.GetSession(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatalf("expected an error for a missing session")
	}
}
