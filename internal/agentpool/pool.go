package agentpool

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nidhogg/hivemind/internal/roster"
	"go.uber.org/zap"
)

// Pool is the central registry for all agents and teams. It exclusively
// owns Agent values; Team holds only non-owning references into it.
type Pool struct {
	logger *zap.Logger

	mu          sync.RWMutex
	initialized bool
	teamOrder   []string
	teams       map[string]*Team
	agents      map[string]*Agent
	agentOrder  []string
}

// New constructs an empty, uninitialized Pool.
func New(logger *zap.Logger) *Pool {
	return &Pool{
		logger: logger,
		teams:  make(map[string]*Team),
		agents: make(map[string]*Agent),
	}
}

// Initialize builds the fixed team table then attaches each agent definition
// to its declared team. Idempotent: a second call is a no-op. Fails if an
// agent declares an unknown team id or duplicate agent id.
func (p *Pool) Initialize(teamDefs []roster.TeamConfig, agentDefs []roster.AgentDef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	for _, td := range teamDefs {
		p.teams[td.ID] = newTeam(td.ID, td.Name, td.Description, td.Keywords, td.Color)
		p.teamOrder = append(p.teamOrder, td.ID)
	}

	for _, ad := range agentDefs {
		if _, dup := p.agents[ad.ID]; dup {
			return fmt.Errorf("agentpool: duplicate agent id %q", ad.ID)
		}
		team, ok := p.teams[ad.Team]
		if !ok {
			return fmt.Errorf("agentpool: agent %q declares unknown team %q", ad.ID, ad.Team)
		}
		agent := NewAgent(ad.ID, ad.Name, ad.Team, ad.Description, ad.Capabilities, ad.Keywords, ad.SystemPrompt)
		p.agents[ad.ID] = agent
		p.agentOrder = append(p.agentOrder, ad.ID)
		team.addAgent(agent)
	}

	p.initialized = true
	p.logger.Info("agent pool initialized",
		zap.Int("total_agents", len(p.agents)),
		zap.Int("teams", len(p.teams)),
	)
	return nil
}

// GetAgent returns the agent with the given id, or nil.
func (p *Pool) GetAgent(id string) *Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.agents[id]
}

// GetTeam returns the team with the given id, or nil.
func (p *Pool) GetTeam(id string) *Team {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.teams[id]
}

// Teams returns all teams in declaration order.
func (p *Pool) Teams() []*Team {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Team, 0, len(p.teamOrder))
	for _, id := range p.teamOrder {
		out = append(out, p.teams[id])
	}
	return out
}

// Agents returns all agents in insertion order.
func (p *Pool) Agents() []*Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Agent, 0, len(p.agentOrder))
	for _, id := range p.agentOrder {
		out = append(out, p.agents[id])
	}
	return out
}

// TotalAgents returns |agents|. Invariant: equals the sum of each team's
// Size() since every agent belongs to exactly one team.
func (p *Pool) TotalAgents() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

type scoredAgent struct {
	agent *Agent
	score int
	order int
}

// FindAgentsByKeywords scores every agent by |lowered(agent.keywords) ∩
// lowered(kws)| and returns those with score > 0, sorted by score
// descending, ties broken by insertion order.
func (p *Pool) FindAgentsByKeywords(kws []string) []*Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lowered := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		lowered[strings.ToLower(kw)] = struct{}{}
	}

	var scored []scoredAgent
	for i, id := range p.agentOrder {
		a := p.agents[id]
		score := 0
		for _, kw := range a.Keywords {
			if _, ok := lowered[strings.ToLower(kw)]; ok {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, scoredAgent{agent: a, score: score, order: i})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].order < scored[j].order
	})

	out := make([]*Agent, len(scored))
	for i, s := range scored {
		out[i] = s.agent
	}
	return out
}

// FindTeamsByKeywords returns every team whose own keyword vocabulary
// overlaps kws, in declaration order.
func (p *Pool) FindTeamsByKeywords(kws []string) []*Team {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Team
	for _, id := range p.teamOrder {
		t := p.teams[id]
		if t.CanHandle(kws) {
			out = append(out, t)
		}
	}
	return out
}

// GetBestAgentForTask asks each matching team for its best available agent
// and returns the first non-nil; if no team matches, falls back to any
// available agent pool-wide; else nil.
func (p *Pool) GetBestAgentForTask(kws []string) *Agent {
	teams := p.FindTeamsByKeywords(kws)
	if len(teams) == 0 {
		p.mu.RLock()
		defer p.mu.RUnlock()
		for _, id := range p.agentOrder {
			if p.agents[id].IsAvailable() {
				return p.agents[id]
			}
		}
		return nil
	}
	for _, t := range teams {
		if agent := t.GetBestAgent(kws); agent != nil {
			return agent
		}
	}
	return nil
}
