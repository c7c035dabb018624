// Package dispatcher implements the Dispatcher: layered-semaphore
// concurrency control with a priority queue, executing tasks under a
// deadline via an injected ExecutorFn.
package dispatcher

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/task"
	"go.uber.org/zap"
)

// ExecutorFn runs one task against one agent and returns its result. It is
// the single injection point differentiating agents: behaviour is uniform,
// only the agent's system prompt and keywords vary (see DESIGN.md).
type ExecutorFn func(ctx context.Context, t *task.Task, a *agentpool.Agent) (*task.Result, error)

// Config holds the Dispatcher's concurrency limits and default timeout.
type Config struct {
	MaxGlobalConcurrent int
	MaxPerTeam          int
	MaxPerAgent         int
	DefaultTimeout      time.Duration
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxGlobalConcurrent: 32,
		MaxPerTeam:          4,
		MaxPerAgent:         1,
		DefaultTimeout:      300 * time.Second,
	}
}

// Dispatcher controls how many tasks run concurrently, globally and at team
// and agent granularity, and executes tasks under a timeout.
type Dispatcher struct {
	cfg        Config
	executorFn ExecutorFn
	logger     *zap.Logger

	globalSem chan struct{}

	teamMu    sync.Mutex
	teamSems  map[string]chan struct{}
	agentMu   sync.Mutex
	agentSems map[string]chan struct{}

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     priorityQueue

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	metrics *metrics

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	workers sync.WaitGroup
}

// New constructs a Dispatcher. A nil executorFn makes execute return a
// default stub success result, matching the source's development fallback.
func New(cfg Config, executorFn ExecutorFn, logger *zap.Logger) *Dispatcher {
	if cfg.MaxGlobalConcurrent <= 0 {
		cfg.MaxGlobalConcurrent = DefaultConfig().MaxGlobalConcurrent
	}
	if cfg.MaxPerTeam <= 0 {
		cfg.MaxPerTeam = DefaultConfig().MaxPerTeam
	}
	if cfg.MaxPerAgent <= 0 {
		cfg.MaxPerAgent = DefaultConfig().MaxPerAgent
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}

	d := &Dispatcher{
		cfg:        cfg,
		executorFn: executorFn,
		logger:     logger,
		globalSem:  make(chan struct{}, cfg.MaxGlobalConcurrent),
		teamSems:   make(map[string]chan struct{}),
		agentSems:  make(map[string]chan struct{}),
		cancels:    make(map[string]context.CancelFunc),
		metrics:    newMetrics(),
	}
	d.queueCond = sync.NewCond(&d.queueMu)

	logger.Info("dispatcher initialized",
		zap.Int("max_global", cfg.MaxGlobalConcurrent),
		zap.Int("max_per_team", cfg.MaxPerTeam),
		zap.Int("max_per_agent", cfg.MaxPerAgent),
		zap.Duration("default_timeout", cfg.DefaultTimeout),
	)
	return d
}

func (d *Dispatcher) getTeamSem(teamID string) chan struct{} {
	d.teamMu.Lock()
	defer d.teamMu.Unlock()
	sem, ok := d.teamSems[teamID]
	if !ok {
		sem = make(chan struct{}, d.cfg.MaxPerTeam)
		d.teamSems[teamID] = sem
	}
	return sem
}

func (d *Dispatcher) getAgentSem(agentID string) chan struct{} {
	d.agentMu.Lock()
	defer d.agentMu.Unlock()
	sem, ok := d.agentSems[agentID]
	if !ok {
		sem = make(chan struct{}, d.cfg.MaxPerAgent)
		d.agentSems[agentID] = sem
	}
	return sem
}

// Submit enqueues t/a for later dispatch by a worker loop, ordered
// (priority desc, queued_at asc). Execute may also be called directly to
// bypass the queue.
func (d *Dispatcher) Submit(t *task.Task, a *agentpool.Agent, priority task.Priority) *QueuedTask {
	qt := &QueuedTask{
		Task:     t,
		Agent:    a,
		Priority: priority,
		QueuedAt: time.Now(),
		Status:   ExecutionQueued,
	}

	d.queueMu.Lock()
	heap.Push(&d.queue, qt)
	d.metrics.setQueueSize(len(d.queue))
	d.queueCond.Signal()
	d.queueMu.Unlock()

	d.logger.Info("task submitted to queue",
		zap.String("task_id", t.ID), zap.String("agent_id", a.ID),
		zap.String("team_id", a.Team), zap.Int("priority", int(priority)),
	)
	return qt
}

// Execute acquires global, team, and agent semaphores in that order, runs
// the executor under timeout (defaulting to the configured default), and
// releases semaphores in reverse order on every exit path.
func (d *Dispatcher) Execute(ctx context.Context, t *task.Task, a *agentpool.Agent, timeout time.Duration) (*task.Result, error) {
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}

	select {
	case d.globalSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.globalSem }()

	teamSem := d.getTeamSem(a.Team)
	select {
	case teamSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-teamSem }()

	agentSem := d.getAgentSem(a.ID)
	select {
	case agentSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-agentSem }()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	d.cancelMu.Lock()
	d.cancels[t.ID] = cancel
	d.cancelMu.Unlock()
	defer func() {
		cancel()
		d.cancelMu.Lock()
		delete(d.cancels, t.ID)
		d.cancelMu.Unlock()
	}()

	a.AssignTask(t.ID)
	a.StartExecution()
	d.metrics.incInProgress(a.Team, a.ID)
	defer d.metrics.decInProgress(a.Team, a.ID)

	start := time.Now()
	result, err := d.runExecutor(execCtx, t, a)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		result.ExecutionTimeSecs = elapsed
		a.CompleteTask(true)
		d.metrics.incTasksTotal("success", a.Team, a.ID)
		d.metrics.observeDuration(a.Team, a.ID, elapsed)
		d.logger.Info("task executed successfully",
			zap.String("task_id", t.ID), zap.String("agent_id", a.ID), zap.Float64("execution_time", elapsed))
		return result, nil

	case execCtx.Err() == context.DeadlineExceeded:
		a.CompleteTask(false)
		d.metrics.incTasksTotal("timeout", a.Team, a.ID)
		d.logger.Error("task execution timeout",
			zap.String("task_id", t.ID), zap.String("agent_id", a.ID), zap.Duration("timeout", timeout))
		return &task.Result{
			TaskID: t.ID, AgentID: a.ID, TeamID: a.Team,
			Success: false, Error: fmt.Sprintf("timeout after %gs", timeout.Seconds()),
			ExecutionTimeSecs: elapsed,
		}, nil

	case errors.Is(execCtx.Err(), context.Canceled):
		a.CompleteTask(false)
		d.metrics.incTasksTotal("cancelled", a.Team, a.ID)
		d.logger.Warn("task execution cancelled",
			zap.String("task_id", t.ID), zap.String("agent_id", a.ID))
		return &task.Result{
			TaskID: t.ID, AgentID: a.ID, TeamID: a.Team,
			Success: false, Error: "cancelled", ExecutionTimeSecs: elapsed,
		}, nil

	default:
		a.CompleteTask(false)
		d.metrics.incTasksTotal("error", a.Team, a.ID)
		d.logger.Error("task execution failed",
			zap.String("task_id", t.ID), zap.String("agent_id", a.ID), zap.Error(err))
		return &task.Result{
			TaskID: t.ID, AgentID: a.ID, TeamID: a.Team,
			Success: false, Error: err.Error(), ExecutionTimeSecs: elapsed,
		}, nil
	}
}

// runExecutor invokes the injected ExecutorFn, converting a panic inside it
// into a failed task.Result rather than letting it crash the worker (§4.3
// step 6: a misbehaving agent must not take down the dispatcher).
func (d *Dispatcher) runExecutor(ctx context.Context, t *task.Task, a *agentpool.Agent) (result *task.Result, err error) {
	if d.executorFn == nil {
		return &task.Result{
			TaskID: t.ID, AgentID: a.ID, TeamID: a.Team,
			Success: true, Output: "Task executed (no executor provided)",
		}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("executor panicked",
				zap.String("task_id", t.ID), zap.String("agent_id", a.ID), zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	return d.executorFn(ctx, t, a)
}

// CancelExecution signals the in-flight execution for taskID, if any, by
// cancelling its derived context. The executor (subprocess case: the
// engine adapter) must observe ctx.Done() and kill its process group.
// Reports whether a running execution was found.
func (d *Dispatcher) CancelExecution(taskID string) bool {
	d.cancelMu.Lock()
	cancel, ok := d.cancels[taskID]
	d.cancelMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Start launches numWorkers worker goroutines pulling from the queue.
func (d *Dispatcher) Start(numWorkers int) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.running {
		d.logger.Warn("dispatcher already running")
		return
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	d.running = true
	d.stopCh = make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		d.workers.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", zap.Int("num_workers", numWorkers))
}

// Stop signals all worker loops to exit and waits up to timeout.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.runMu.Lock()
	if !d.running {
		d.runMu.Unlock()
		d.logger.Warn("dispatcher not running")
		return
	}
	d.running = false
	close(d.stopCh)
	d.runMu.Unlock()

	d.queueMu.Lock()
	d.queueCond.Broadcast()
	d.queueMu.Unlock()

	done := make(chan struct{})
	go func() { d.workers.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("dispatcher workers did not stop gracefully")
	}
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) worker(id int) {
	defer d.workers.Done()
	d.logger.Info("dispatcher worker started", zap.Int("worker_id", id))

	for {
		qt := d.dequeue()
		if qt == nil {
			return // stopped
		}

		qt.Status = ExecutionRunning
		now := time.Now()
		qt.StartedAt = &now

		result, err := d.Execute(context.Background(), qt.Task, qt.Agent, 0)
		completed := time.Now()
		qt.CompletedAt = &completed
		if err != nil {
			d.logger.Error("worker task execution failed", zap.String("task_id", qt.Task.ID), zap.Error(err))
			qt.Status = ExecutionFailed
			continue
		}
		if result.Success {
			qt.Status = ExecutionCompleted
		} else {
			qt.Status = ExecutionFailed
		}
	}
}

// dequeue blocks until a QueuedTask is available or the dispatcher is
// stopped, in which case it returns nil.
func (d *Dispatcher) dequeue() *QueuedTask {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	for len(d.queue) == 0 {
		select {
		case <-d.stopCh:
			return nil
		default:
		}
		d.queueCond.Wait()
		select {
		case <-d.stopCh:
			return nil
		default:
		}
	}
	qt := heap.Pop(&d.queue).(*QueuedTask)
	d.metrics.setQueueSize(len(d.queue))
	return qt
}

// LayerStatus reports max/available/in_use for one concurrency layer.
type LayerStatus struct {
	Max       int
	Available int
	InUse     int
}

// ConcurrencyStatus is the full GetConcurrencyStatus report.
type ConcurrencyStatus struct {
	Global    LayerStatus
	Teams     map[string]LayerStatus
	Agents    map[string]LayerStatus
	QueueSize int
}

func layerStatus(max int, sem chan struct{}) LayerStatus {
	inUse := len(sem)
	return LayerStatus{Max: max, Available: max - inUse, InUse: inUse}
}

// GetConcurrencyStatus reports max/available/in_use for each layer and the
// current queue depth, for admission-control and observability.
func (d *Dispatcher) GetConcurrencyStatus() ConcurrencyStatus {
	status := ConcurrencyStatus{
		Global: layerStatus(d.cfg.MaxGlobalConcurrent, d.globalSem),
		Teams:  make(map[string]LayerStatus),
		Agents: make(map[string]LayerStatus),
	}

	d.teamMu.Lock()
	for id, sem := range d.teamSems {
		status.Teams[id] = layerStatus(d.cfg.MaxPerTeam, sem)
	}
	d.teamMu.Unlock()

	d.agentMu.Lock()
	for id, sem := range d.agentSems {
		status.Agents[id] = layerStatus(d.cfg.MaxPerAgent, sem)
	}
	d.agentMu.Unlock()

	d.queueMu.Lock()
	status.QueueSize = len(d.queue)
	d.queueMu.Unlock()

	return status
}

// MetricsSnapshot exposes the dispatcher's internal counters.
func (d *Dispatcher) MetricsSnapshot() Snapshot {
	return d.metrics.snapshot()
}
