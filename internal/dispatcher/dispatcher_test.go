package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/task"
	"go.uber.org/zap"
)

func testAgent(id, team string) *agentpool.Agent {
	return agentpool.NewAgent(id, "Agent "+id, team, "", nil, nil, "")
}

func TestExecuteSuccessUpdatesAgentAndResult(t *testing.T) {
	a := testAgent("A-1", "DEV")
	executed := make(chan struct{})
	d := New(DefaultConfig(), func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
		close(executed)
		if ag.State() != agentpool.StateRunning {
			t.Errorf("agent state during execution = %v, want RUNNING", ag.State())
		}
		return &task.Result{TaskID: tk.ID, AgentID: ag.ID, TeamID: ag.Team, Success: true, Output: "done"}, nil
	}, zap.NewNop())

	tk := task.New("t-1", "do the thing", task.PriorityNormal, "")
	result, err := d.Execute(context.Background(), tk, a, time.Second)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	<-executed
	if !result.Success {
		t.Errorf("result.Success = false, want true")
	}
	if a.State() != agentpool.StateSuccess {
		t.Errorf("agent state after execute = %v, want SUCCESS", a.State())
	}
}

func TestExecuteTimeoutMarksAgentError(t *testing.T) {
	a := testAgent("A-2", "DEV")
	d := New(DefaultConfig(), func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, zap.NewNop())

	tk := task.New("t-2", "slow task", task.PriorityNormal, "")
	result, err := d.Execute(context.Background(), tk, a, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Success {
		t.Error("result.Success = true, want false on timeout")
	}
	if a.State() != agentpool.StateError {
		t.Errorf("agent state after timeout = %v, want ERROR", a.State())
	}
}

func TestExecutePerAgentSemaphoreSerializesSameAgent(t *testing.T) {
	a := testAgent("A-3", "DEV")
	var concurrent int32
	var maxConcurrent int32
	d := New(Config{MaxGlobalConcurrent: 8, MaxPerTeam: 8, MaxPerAgent: 1, DefaultTimeout: time.Second},
		func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
			n := atomic.AddInt32(&concurrent, 1)
			defer atomic.AddInt32(&concurrent, -1)
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return &task.Result{TaskID: tk.ID, Success: true}, nil
		}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tk := task.New("t-serial", "x", task.PriorityNormal, "")
			d.Execute(context.Background(), tk, a, time.Second)
		}(i)
	}
	wg.Wait()

	if maxConcurrent > 1 {
		t.Errorf("max concurrent executions against one agent = %d, want <= 1", maxConcurrent)
	}
}

func TestCancelExecutionCancelsContext(t *testing.T) {
	a := testAgent("A-4", "DEV")
	observed := make(chan error, 1)
	d := New(DefaultConfig(), func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
		<-ctx.Done()
		observed <- ctx.Err()
		return nil, ctx.Err()
	}, zap.NewNop())

	tk := task.New("t-cancel", "x", task.PriorityNormal, "")
	go d.Execute(context.Background(), tk, a, time.Minute)

	time.Sleep(10 * time.Millisecond)
	if !d.CancelExecution("t-cancel") {
		t.Fatal("CancelExecution returned false for in-flight task")
	}
	select {
	case err := <-observed:
		if err != context.Canceled {
			t.Errorf("ctx.Err() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("executor never observed cancellation")
	}
}

func TestCancelExecutionUnknownTaskReturnsFalse(t *testing.T) {
	d := New(DefaultConfig(), nil, zap.NewNop())
	if d.CancelExecution("no-such-task") {
		t.Error("CancelExecution = true for unknown task, want false")
	}
}

func TestSubmitAndWorkerDrainsQueueInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	a := testAgent("A-5", "DEV")
	d := New(Config{MaxGlobalConcurrent: 1, MaxPerTeam: 1, MaxPerAgent: 1, DefaultTimeout: time.Second},
		func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
			mu.Lock()
			order = append(order, tk.ID)
			mu.Unlock()
			return &task.Result{TaskID: tk.ID, Success: true}, nil
		}, zap.NewNop())

	low := task.New("low", "x", task.PriorityLow, "")
	high := task.New("high", "x", task.PriorityHigh, "")
	d.Submit(low, a, task.PriorityLow)
	d.Submit(high, a, task.PriorityHigh)

	d.Start(1)
	defer d.Stop(time.Second)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue never drained both tasks")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "high" || order[1] != "low" {
		t.Errorf("execution order = %v, want [high low]", order)
	}
}

func TestGetConcurrencyStatusReportsLayers(t *testing.T) {
	a := testAgent("A-6", "DEV")
	d := New(DefaultConfig(), func(ctx context.Context, tk *task.Task, ag *agentpool.Agent) (*task.Result, error) {
		return &task.Result{TaskID: tk.ID, Success: true}, nil
	}, zap.NewNop())

	tk := task.New("t-status", "x", task.PriorityNormal, "")
	d.Execute(context.Background(), tk, a, time.Second)

	status := d.GetConcurrencyStatus()
	if status.Global.Max != DefaultConfig().MaxGlobalConcurrent {
		t.Errorf("global max = %d, want %d", status.Global.Max, DefaultConfig().MaxGlobalConcurrent)
	}
	if _, ok := status.Agents["A-6"]; !ok {
		t.Error("expected agent A-6 to appear in concurrency status after execution")
	}
}
