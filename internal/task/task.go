// Package task defines the Task and Result data model shared by the
// Coordinator (which owns Task values) and the Dispatcher (which holds
// non-owning references to them while executing).
package task

import (
	"sync"
	"time"
)

// Priority is the task's scheduling priority; higher values run first.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// State is the task's position in its state machine. Terminal states are
// Completed, Failed, and Cancelled; transitions out of a terminal state are
// never permitted.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s is one of the three terminal states.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Result is one (task, agent) execution outcome. Appended to a Task's
// result list in arrival order; never mutated in place once appended.
type Result struct {
	TaskID            string
	AgentID           string
	TeamID            string
	Success           bool
	Output            string
	Error             string
	ExecutionTimeSecs float64
	Metadata          map[string]any
}

// Task is the unit of work routed to one or more agents. ID, Prompt,
// Priority, CreatedAt, SessionID and ParentTaskID are fixed at
// construction and safe to read without synchronization. Every other
// field is mutated by the Coordinator/Dispatcher pipeline from the
// background goroutine driving the task (internal/httpapi's `go
// s.process(t)`) while HTTP handlers read the same Task concurrently
// from request goroutines, so those fields are guarded by mu and
// exposed only through the locked methods below.
type Task struct {
	ID           string
	Prompt       string
	Priority     Priority
	CreatedAt    time.Time
	SessionID    string
	ParentTaskID string

	mu                  sync.RWMutex
	state               State
	startedAt           *time.Time
	completedAt         *time.Time
	keywords            []string
	targetTeams         []string
	targetAgents        []string
	results             []Result
	synthesizedResponse string
	errMsg              string
}

// New constructs a Task in the PENDING state.
func New(id, prompt string, priority Priority, sessionID string) *Task {
	return &Task{
		ID:        id,
		Prompt:    prompt,
		Priority:  priority,
		CreatedAt: time.Now(),
		SessionID: sessionID,
		state:     StatePending,
	}
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// StartedAt returns when the task transitioned to RUNNING, or nil.
func (t *Task) StartedAt() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

// CompletedAt returns when the task reached a terminal state, or nil.
func (t *Task) CompletedAt() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completedAt
}

// Keywords returns the keywords AnalyzeTask extracted from the prompt.
func (t *Task) Keywords() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.keywords
}

// TargetTeams returns the team ids the task was routed to.
func (t *Task) TargetTeams() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetTeams
}

// TargetAgents returns the agent ids the task was routed to.
func (t *Task) TargetAgents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetAgents
}

// Results returns the task's accumulated execution results, in arrival
// order.
func (t *Task) Results() []Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.results
}

// SynthesizedResponse returns the task's synthesized user-facing response.
func (t *Task) SynthesizedResponse() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.synthesizedResponse
}

// Error returns the task's terminal error message, if any.
func (t *Task) Error() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

// SetKeywords records the keywords AnalyzeTask extracted from the prompt.
func (t *Task) SetKeywords(keywords []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keywords = keywords
}

// SetRouting records the team/agent ids the task was routed to.
func (t *Task) SetRouting(teams, agents []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targetTeams = teams
	t.targetAgents = agents
}

// SetSynthesizedResponse records the task's synthesized user-facing
// response.
func (t *Task) SetSynthesizedResponse(response string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.synthesizedResponse = response
}

// SetError records a non-terminal error message (e.g. a routing failure
// surfaced before Complete is called).
func (t *Task) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errMsg = msg
}

// IsComplete reports whether the task has reached a terminal state.
func (t *Task) IsComplete() bool {
	return t.State().IsTerminal()
}

// transition moves the task to newState. It is a no-op (returns false) if
// the task is already in a terminal state, preserving the monotonic
// transition invariant. Caller must hold t.mu.
func (t *Task) transition(newState State) bool {
	if t.state.IsTerminal() {
		return false
	}
	t.state = newState
	return true
}

// Start marks the task RUNNING and records StartedAt.
func (t *Task) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.transition(StateRunning) {
		return false
	}
	now := time.Now()
	t.startedAt = &now
	return true
}

// Complete transitions to COMPLETED or FAILED and records CompletedAt.
func (t *Task) Complete(success bool, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := StateCompleted
	if !success {
		target = StateFailed
	}
	if !t.transition(target) {
		return false
	}
	now := time.Now()
	t.completedAt = &now
	if !success {
		t.errMsg = errMsg
	}
	return true
}

// Cancel transitions to CANCELLED, provided the task is not already
// terminal.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.transition(StateCancelled) {
		return false
	}
	now := time.Now()
	t.completedAt = &now
	return true
}

// AppendResult appends r to the task's result list in arrival order.
func (t *Task) AppendResult(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
}
