// Package agentpool implements the Agent Pool: the in-memory registry of
// agents and teams with availability accounting.
package agentpool

import (
	"strings"
	"sync"
	"time"
)

// AgentState is the agent execution state.
type AgentState string

const (
	StateIdle    AgentState = "idle"
	StatePending AgentState = "pending"
	StateRunning AgentState = "running"
	StateSuccess AgentState = "success"
	StateError   AgentState = "error"
	StatePaused  AgentState = "paused"
)

// Agent is a bounded role executed as a subprocess LLM call. Identity
// fields are immutable after construction; state, CurrentTaskID,
// LastActivity, SuccessCount and ErrorCount are mutated only while the
// Dispatcher holds this agent's semaphore (see internal/dispatcher).
type Agent struct {
	ID           string
	Name         string
	Team         string
	Description  string
	Capabilities []string
	Keywords     []string
	SystemPrompt string

	mu            sync.Mutex
	state         AgentState
	currentTaskID string
	lastActivity  time.Time
	successCount  int
	errorCount    int
}

// NewAgent constructs an Agent in the IDLE state.
func NewAgent(id, name, team, description string, capabilities, keywords []string, systemPrompt string) *Agent {
	return &Agent{
		ID:           id,
		Name:         name,
		Team:         team,
		Description:  description,
		Capabilities: capabilities,
		Keywords:     keywords,
		SystemPrompt: systemPrompt,
		state:        StateIdle,
	}
}

// State returns the agent's current state.
func (a *Agent) State() AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CurrentTaskID returns the task currently assigned to the agent, or "".
func (a *Agent) CurrentTaskID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentTaskID
}

// Counts returns (successCount, errorCount).
func (a *Agent) Counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successCount, a.errorCount
}

// IsAvailable reports whether the agent can accept a new task.
func (a *Agent) IsAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return isAvailable(a.state)
}

func isAvailable(s AgentState) bool {
	return s == StateIdle || s == StateSuccess || s == StateError
}

// IsBusy reports whether the agent is mid-task.
func (a *Agent) IsBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StatePending || a.state == StateRunning
}

// CanHandle reports whether the agent's keyword set intersects kws.
func (a *Agent) CanHandle(kws []string) bool {
	return len(matchedKeywords(a.Keywords, kws)) > 0
}

func matchedKeywords(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, kw := range b {
		set[strings.ToLower(kw)] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, kw := range a {
		lower := strings.ToLower(kw)
		if _, ok := set[lower]; !ok {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

// transitionTo moves the agent to newState and updates bookkeeping.
// Invariant maintained: currentTaskID != "" iff state in {PENDING, RUNNING}.
func (a *Agent) transitionTo(newState AgentState) {
	a.state = newState
	a.lastActivity = time.Now()
	switch newState {
	case StateSuccess:
		a.successCount++
	case StateError:
		a.errorCount++
	}
}

// AssignTask marks the agent PENDING and records the task id.
func (a *Agent) AssignTask(taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentTaskID = taskID
	a.transitionTo(StatePending)
}

// StartExecution marks the agent RUNNING.
func (a *Agent) StartExecution() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitionTo(StateRunning)
}

// CompleteTask clears the current task and moves to SUCCESS or ERROR.
func (a *Agent) CompleteTask(success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentTaskID = ""
	if success {
		a.transitionTo(StateSuccess)
	} else {
		a.transitionTo(StateError)
	}
}

// Reset returns the agent to IDLE with no assigned task.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentTaskID = ""
	a.transitionTo(StateIdle)
}

// Snapshot is an immutable point-in-time view of an agent, safe to hand to
// callers outside the pool's lock.
type Snapshot struct {
	ID            string
	Name          string
	Team          string
	Description   string
	Capabilities  []string
	Keywords      []string
	State         AgentState
	CurrentTaskID string
	LastActivity  time.Time
	SuccessCount  int
	ErrorCount    int
}

// Snapshot captures the agent's current mutable state.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		ID:            a.ID,
		Name:          a.Name,
		Team:          a.Team,
		Description:   a.Description,
		Capabilities:  a.Capabilities,
		Keywords:      a.Keywords,
		State:         a.state,
		CurrentTaskID: a.currentTaskID,
		LastActivity:  a.lastActivity,
		SuccessCount:  a.successCount,
		ErrorCount:    a.errorCount,
	}
}
