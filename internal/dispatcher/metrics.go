package dispatcher

import "sync"

// metricsKey identifies one team/agent bucket for a counter.
type metricsKey struct {
	status string
	team   string
	agent  string
}

// metrics accumulates the dispatcher's counters. No Prometheus (or other)
// client is wired anywhere in this module's source corpus, and the one
// present transitively (go.opentelemetry.io/otel/metric, pulled in only by
// testcontainers-go) has no call site to ground direct use on. A plain
// mutex-guarded map is therefore used here rather than inventing a client
// dependency nothing else exercises; GetConcurrencyStatus exposes the same
// shape an observability consumer would scrape.
type metrics struct {
	mu            sync.Mutex
	tasksTotal    map[metricsKey]int
	inProgress    map[[2]string]int // [team, agent] -> count
	queueSize     int
	durationCount map[[2]string]int
	durationSum   map[[2]string]float64
}

func newMetrics() *metrics {
	return &metrics{
		tasksTotal:    make(map[metricsKey]int),
		inProgress:    make(map[[2]string]int),
		durationCount: make(map[[2]string]int),
		durationSum:   make(map[[2]string]float64),
	}
}

func (m *metrics) incTasksTotal(status, team, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksTotal[metricsKey{status: status, team: team, agent: agent}]++
}

func (m *metrics) incInProgress(team, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inProgress[[2]string{team, agent}]++
}

func (m *metrics) decInProgress(team, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inProgress[[2]string{team, agent}]--
}

func (m *metrics) observeDuration(team, agent string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{team, agent}
	m.durationCount[key]++
	m.durationSum[key] += seconds
}

func (m *metrics) setQueueSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueSize = n
}

// Snapshot is a point-in-time, immutable view of the counters.
type Snapshot struct {
	TasksTotal map[string]int // "status|team|agent" -> count
	InProgress map[string]int // "team|agent" -> count
	QueueSize  int
}

func (m *metrics) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		TasksTotal: make(map[string]int, len(m.tasksTotal)),
		InProgress: make(map[string]int, len(m.inProgress)),
		QueueSize:  m.queueSize,
	}
	for k, v := range m.tasksTotal {
		s.TasksTotal[k.status+"|"+k.team+"|"+k.agent] = v
	}
	for k, v := range m.inProgress {
		s.InProgress[k[0]+"|"+k[1]] = v
	}
	return s
}
