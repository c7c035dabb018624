package dispatcher

import (
	"container/heap"
	"time"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/task"
)

// ExecutionStatus is a QueuedTask's lifecycle status within the dispatcher.
type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "queued"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// QueuedTask is a task waiting for (or currently undergoing) dispatch.
type QueuedTask struct {
	Task        *task.Task
	Agent       *agentpool.Agent
	Priority    task.Priority
	QueuedAt    time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Status      ExecutionStatus

	index int // heap.Interface bookkeeping
}

// priorityQueue orders QueuedTask by (priority desc, queued_at asc). It
// implements container/heap.Interface; callers must hold queueMu while
// calling heap.Push/Pop on it.
type priorityQueue []*QueuedTask

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].QueuedAt.Before(pq[j].QueuedAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	qt := x.(*QueuedTask)
	qt.index = len(*pq)
	*pq = append(*pq, qt)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
