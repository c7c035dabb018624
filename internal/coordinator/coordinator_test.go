package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/dispatcher"
	"github.com/nidhogg/hivemind/internal/roster"
	"github.com/nidhogg/hivemind/internal/router"
	"github.com/nidhogg/hivemind/internal/task"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T, executor dispatcher.ExecutorFn) *Coordinator {
	t.Helper()
	pool := agentpool.New(zap.NewNop())
	if err := pool.Initialize(roster.Teams, roster.DefaultAgents); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r := router.New(pool, zap.NewNop())
	d := dispatcher.New(dispatcher.DefaultConfig(), executor, zap.NewNop())
	return New(r, d, DefaultRoutingConfig(), zap.NewNop())
}

func TestProcessTaskSuccessPath(t *testing.T) {
	c := newTestCoordinator(t, func(ctx context.Context, tk *task.Task, a *agentpool.Agent) (*task.Result, error) {
		return &task.Result{TaskID: tk.ID, AgentID: a.ID, TeamID: a.Team, Success: true, Output: "ok from " + a.ID}, nil
	})

	tk, response := c.ProcessTask(context.Background(), "please deploy the kubernetes cluster with docker and terraform", task.PriorityNormal, "sess-1")

	if tk.State() != task.StateCompleted {
		t.Fatalf("state = %v, want COMPLETED", tk.State())
	}
	if response == "" {
		t.Error("expected non-empty synthesized response")
	}
	if tk.StartedAt() == nil || tk.CompletedAt() == nil {
		t.Error("expected StartedAt and CompletedAt to be set")
	}
}

func TestProcessTaskNoRouteFails(t *testing.T) {
	c := newTestCoordinator(t, nil)

	tk, response := c.ProcessTask(context.Background(), "asdfghjkl qwertyuiop", task.PriorityNormal, "")

	if tk.State() != task.StateFailed {
		t.Fatalf("state = %v, want FAILED", tk.State())
	}
	if response != "No suitable agents found for task" {
		t.Errorf("response = %q, want the no-suitable-agents message", response)
	}
	if len(tk.Results()) != 0 {
		t.Errorf("expected no results recorded for an unrouted task, got %d", len(tk.Results()))
	}
}

func TestProcessTaskPartialFailureStillFails(t *testing.T) {
	calls := 0
	c := newTestCoordinator(t, func(ctx context.Context, tk *task.Task, a *agentpool.Agent) (*task.Result, error) {
		calls++
		if calls == 1 {
			return &task.Result{TaskID: tk.ID, AgentID: a.ID, TeamID: a.Team, Success: false, Error: "boom"}, nil
		}
		return &task.Result{TaskID: tk.ID, AgentID: a.ID, TeamID: a.Team, Success: true, Output: "ok"}, nil
	})

	tk, _ := c.ProcessTask(context.Background(), "deploy to aws cloud with terraform and ansible", task.PriorityNormal, "")
	if tk.State() != task.StateFailed {
		t.Errorf("state = %v, want FAILED on partial failure", tk.State())
	}
	hasFailure := false
	for _, r := range tk.Results() {
		if !r.Success {
			hasFailure = true
		}
	}
	if !hasFailure {
		t.Error("expected at least one retained failing result")
	}
}

func TestSynthesizeResponseSingleResultReturnsOutputVerbatim(t *testing.T) {
	c := newTestCoordinator(t, nil)
	tk := task.New("t-1", "x", task.PriorityNormal, "")
	tk.AppendResult(task.Result{TaskID: "t-1", TeamID: "DEV", Success: true, Output: "the answer"})

	if got := c.SynthesizeResponse(tk); got != "the answer" {
		t.Errorf("SynthesizeResponse = %q, want %q", got, "the answer")
	}
}

func TestSynthesizeResponseMultipleResultsConcatenatesByTeam(t *testing.T) {
	c := newTestCoordinator(t, nil)
	tk := task.New("t-2", "x", task.PriorityNormal, "")
	tk.AppendResult(task.Result{TaskID: "t-2", TeamID: "DEV", Success: true, Output: "dev output"})
	tk.AppendResult(task.Result{TaskID: "t-2", TeamID: "QA", Success: true, Output: "qa output"})

	got := c.SynthesizeResponse(tk)
	want := "[DEV] dev output\n\n[QA] qa output"
	if got != want {
		t.Errorf("SynthesizeResponse = %q, want %q", got, want)
	}
}

func TestSynthesizeResponseAllFailed(t *testing.T) {
	c := newTestCoordinator(t, nil)
	tk := task.New("t-3", "x", task.PriorityNormal, "")
	tk.AppendResult(task.Result{TaskID: "t-3", TeamID: "DEV", Success: false, Error: "boom"})
	tk.AppendResult(task.Result{TaskID: "t-3", TeamID: "QA", Success: false, Error: "bust"})

	if got := c.SynthesizeResponse(tk); got != "All agent executions failed." {
		t.Errorf("SynthesizeResponse = %q, want the all-failed message", got)
	}
}

func TestCancelTaskFromRunningTransitionsAndStopsBeingCancellableTwice(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestCoordinator(t, func(ctx context.Context, tk *task.Task, a *agentpool.Agent) (*task.Result, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &task.Result{TaskID: tk.ID, Success: true}, nil
		}
	})

	tk := c.CreateTask("implement a new backend api module and refactor the code", task.PriorityNormal, "")
	c.AnalyzeTask(tk)
	routes := c.RouteTask(tk)
	if len(routes) == 0 {
		t.Fatal("expected at least one route for backend prompt")
	}

	done := make(chan struct{})
	go func() {
		c.ExecuteTask(context.Background(), tk, routes)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("executor never started")
	}

	if !c.CancelTask(tk.ID) {
		t.Fatal("CancelTask returned false while task was running")
	}
	if tk.State() != task.StateCancelled {
		t.Fatalf("state = %v, want CANCELLED", tk.State())
	}
	if c.CancelTask(tk.ID) {
		t.Error("CancelTask returned true for an already-terminal task")
	}

	close(release)
	<-done
}

func TestGetTasksByStateAndSession(t *testing.T) {
	c := newTestCoordinator(t, func(ctx context.Context, tk *task.Task, a *agentpool.Agent) (*task.Result, error) {
		return &task.Result{TaskID: tk.ID, Success: true, Output: "ok"}, nil
	})

	c.ProcessTask(context.Background(), "write unit and integration test coverage", task.PriorityNormal, "sess-a")
	c.ProcessTask(context.Background(), "asdfghjkl qwertyuiop", task.PriorityNormal, "sess-a")

	if got := len(c.GetTasksBySession("sess-a")); got != 2 {
		t.Errorf("GetTasksBySession = %d tasks, want 2", got)
	}
	if got := len(c.GetTasksByState(task.StateCompleted)); got != 1 {
		t.Errorf("GetTasksByState(COMPLETED) = %d, want 1", got)
	}
	if got := len(c.GetTasksByState(task.StateFailed)); got != 1 {
		t.Errorf("GetTasksByState(FAILED) = %d, want 1", got)
	}
	if got := len(c.GetAllTasks()); got != 2 {
		t.Errorf("GetAllTasks = %d, want 2", got)
	}
}
