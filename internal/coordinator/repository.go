package coordinator

import (
	"context"
	"time"
)

// Session is a persisted conversation/session record (§6, Repository
// collaborator).
type Session struct {
	ID        string
	UserID    string
	Metadata  map[string]any
	CreatedAt time.Time
	EndedAt   *time.Time
}

// Checkpoint is a persisted snapshot of a task's in-flight state, used to
// resume work across process restarts.
type Checkpoint struct {
	TaskID    string
	StateData map[string]any
	CreatedAt time.Time
}

// AgentExecution is a persisted record of one agent invocation against a
// task, independent of the in-memory task.Result it shadows.
type AgentExecution struct {
	ID      string
	AgentID string
	TaskID  string
	Status  string
	Output  string
}

// Repository is the persistence collaborator the core consumes. The core
// treats every call as potentially failing transiently; a Repository
// failure is logged and retried by the caller, never allowed to fail a task
// mid-flight (see spec's RepositoryTransient error kind).
type Repository interface {
	CreateSession(ctx context.Context, metadata map[string]any) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	EndSession(ctx context.Context, id string) error
	ListActiveSessions(ctx context.Context, limit int) ([]*Session, error)

	CreateTask(ctx context.Context, sessionID, prompt, agentID, status string) (string, error)
	GetTask(ctx context.Context, id string) (map[string]any, error)
	UpdateTaskStatus(ctx context.Context, id, status string, result map[string]any) error
	ListTasksBySession(ctx context.Context, sessionID string) ([]map[string]any, error)
	ListTasksByAgent(ctx context.Context, agentID string) ([]map[string]any, error)

	CreateCheckpoint(ctx context.Context, taskID string, stateData map[string]any) (*Checkpoint, error)
	GetLatestCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error)

	CreateAgentExecution(ctx context.Context, agentID, taskID, status string) (*AgentExecution, error)
	CompleteAgentExecution(ctx context.Context, id, status, output string) error
}

// Cache is a best-effort accelerator: a key-value store with TTL, hash, and
// list primitives. Cache failures must never fail a task; callers log and
// proceed as if the cache were empty.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// SessionContextKey builds the cache key HIVEMIND stores per-session
// context under, per §6's "session:{id}:context" convention.
func SessionContextKey(sessionID string) string {
	return "session:" + sessionID + ":context"
}
