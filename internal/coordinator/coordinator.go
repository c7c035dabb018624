// Package coordinator implements the Coordinator: the task state machine
// and pipeline driver tying the Router and Dispatcher together.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nidhogg/hivemind/internal/dispatcher"
	"github.com/nidhogg/hivemind/internal/router"
	"github.com/nidhogg/hivemind/internal/task"
	"go.uber.org/zap"
)

// RoutingConfig bounds how many teams/agents the Router may select for one
// task.
type RoutingConfig struct {
	MaxTeams         int
	MaxAgentsPerTeam int
}

// DefaultRoutingConfig allows up to 3 teams and 2 agents per team.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{MaxTeams: 3, MaxAgentsPerTeam: 2}
}

// Coordinator owns Task values keyed by id and drives them through
// analyze → route → execute → synthesize.
type Coordinator struct {
	router     *router.Router
	dispatcher *dispatcher.Dispatcher
	routing    RoutingConfig
	logger     *zap.Logger

	mu        sync.RWMutex
	tasks     map[string]*task.Task
	taskOrder []string
}

// New constructs a Coordinator over an already-wired Router and Dispatcher.
func New(r *router.Router, d *dispatcher.Dispatcher, routing RoutingConfig, logger *zap.Logger) *Coordinator {
	if routing.MaxTeams <= 0 || routing.MaxAgentsPerTeam <= 0 {
		routing = DefaultRoutingConfig()
	}
	logger.Info("coordinator initialized")
	return &Coordinator{
		router:     r,
		dispatcher: d,
		routing:    routing,
		logger:     logger,
		tasks:      make(map[string]*task.Task),
	}
}

// CreateTask assigns a UUID, stores the task in-memory in PENDING state,
// and returns it.
func (c *Coordinator) CreateTask(prompt string, priority task.Priority, sessionID string) *task.Task {
	t := task.New(uuid.New().String(), prompt, priority, sessionID)

	c.mu.Lock()
	c.tasks[t.ID] = t
	c.taskOrder = append(c.taskOrder, t.ID)
	c.mu.Unlock()

	c.logger.Info("task created", zap.String("task_id", t.ID), zap.Int("priority", int(priority)), zap.String("session_id", sessionID))
	return t
}

// AnalyzeTask extracts keywords from the task's prompt using the Router's
// algorithm (the single implementation; see DESIGN.md resolved decision 1)
// and stores them on the task.
func (c *Coordinator) AnalyzeTask(t *task.Task) {
	keywords := router.ExtractKeywords(t.Prompt)
	t.SetKeywords(keywords)
	c.logger.Debug("task analyzed", zap.String("task_id", t.ID), zap.Strings("keywords", keywords))
}

// RouteTask asks the Router for (team, agent) routes and records the
// resulting team/agent ids on the task.
func (c *Coordinator) RouteTask(t *task.Task) []router.Route {
	routes := c.router.Route(t.Keywords(), c.routing.MaxTeams, c.routing.MaxAgentsPerTeam)

	teams := make([]string, 0, len(routes))
	agents := make([]string, 0, len(routes))
	for _, rt := range routes {
		if rt.Team != nil {
			teams = append(teams, rt.Team.ID)
		}
		if rt.Agent != nil {
			agents = append(agents, rt.Agent.ID)
		}
	}
	t.SetRouting(teams, agents)

	c.logger.Info("task routed", zap.String("task_id", t.ID), zap.Strings("teams", teams), zap.Strings("agents", agents))
	return routes
}

// ExecuteTask transitions t to RUNNING, fans out to the Dispatcher for each
// route in parallel, and gathers every TaskResult (partial failures are
// retained, not reraised). Transitions to FAILED if any result failed or
// the pipeline itself errored; otherwise COMPLETED.
func (c *Coordinator) ExecuteTask(ctx context.Context, t *task.Task, routes []router.Route) {
	t.Start()

	var wg sync.WaitGroup
	results := make(chan task.Result, len(routes))

	for _, rt := range routes {
		if rt.Agent == nil {
			continue
		}
		wg.Add(1)
		go func(rt router.Route) {
			defer wg.Done()
			result, err := c.dispatcher.Execute(ctx, t, rt.Agent, 0)
			if err != nil {
				results <- task.Result{
					TaskID: t.ID, AgentID: rt.Agent.ID, TeamID: rt.Agent.Team,
					Success: false, Error: err.Error(),
				}
				return
			}
			results <- *result
		}(rt)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	anyFailed := false
	for r := range results {
		t.AppendResult(r)
		if !r.Success {
			anyFailed = true
		}
	}

	if anyFailed {
		t.Complete(false, "one or more agent executions failed")
	} else {
		t.Complete(true, "")
	}

	c.logger.Info("task execution complete", zap.String("task_id", t.ID), zap.String("state", string(t.State())))
}

// SynthesizeResponse collapses the task's results into one user-facing
// string: the sole output if exactly one result succeeded, a concatenation
// of "[team] output" sections in arrival order if multiple succeeded, or
// "All agent executions failed." if none did.
func (c *Coordinator) SynthesizeResponse(t *task.Task) string {
	results := t.Results()
	if len(results) == 0 {
		return "No results to synthesize."
	}

	var succeeded []task.Result
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r)
		}
	}
	if len(succeeded) == 1 {
		return succeeded[0].Output
	}

	var parts []string
	for _, r := range results {
		if r.Success {
			parts = append(parts, fmt.Sprintf("[%s] %s", r.TeamID, r.Output))
		}
	}
	if len(parts) == 0 {
		return "All agent executions failed."
	}

	synthesized := joinBlank(parts)
	t.SetSynthesizedResponse(synthesized)
	c.logger.Info("response synthesized", zap.String("task_id", t.ID), zap.Int("result_count", len(results)))
	return synthesized
}

func joinBlank(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n\n" + p
	}
	return out
}

// ProcessTask runs a prompt through the full pipeline: create, analyze,
// route, execute, synthesize. Returns the task and its synthesized
// response (or the routing/pipeline error message on failure).
func (c *Coordinator) ProcessTask(ctx context.Context, prompt string, priority task.Priority, sessionID string) (*task.Task, string) {
	t := c.CreateTask(prompt, priority, sessionID)

	c.AnalyzeTask(t)

	routes := c.RouteTask(t)
	if len(routes) == 0 {
		const errMsg = "No suitable agents found for task"
		t.Complete(false, errMsg)
		return t, errMsg
	}

	c.ExecuteTask(ctx, t, routes)

	response := c.SynthesizeResponse(t)
	return t, response
}

// GetTask returns the task with the given id, or nil.
func (c *Coordinator) GetTask(id string) *task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tasks[id]
}

// GetAllTasks returns every task in creation order.
func (c *Coordinator) GetAllTasks() []*task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*task.Task, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		out = append(out, c.tasks[id])
	}
	return out
}

// GetTasksByState returns every task currently in the given state.
func (c *Coordinator) GetTasksByState(state task.State) []*task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*task.Task
	for _, id := range c.taskOrder {
		if t := c.tasks[id]; t.State() == state {
			out = append(out, t)
		}
	}
	return out
}

// GetTasksBySession returns every task created under the given session id.
func (c *Coordinator) GetTasksBySession(sessionID string) []*task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*task.Task
	for _, id := range c.taskOrder {
		if t := c.tasks[id]; t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out
}

// CancelTask marks a running task CANCELLED, provided it is not already
// terminal, and asks the Dispatcher to signal its in-flight execution.
// Coordinator owns the task-state transition; Dispatcher owns killing the
// execution itself (see DESIGN.md resolved decision 2).
func (c *Coordinator) CancelTask(taskID string) bool {
	t := c.GetTask(taskID)
	if t == nil || t.IsComplete() {
		return false
	}

	if !t.Cancel() {
		return false
	}
	c.dispatcher.CancelExecution(taskID)
	c.logger.Info("task cancelled", zap.String("task_id", taskID))
	return true
}
