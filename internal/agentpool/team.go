package agentpool

import "strings"

// Team is a named group of agents sharing a domain and keyword vocabulary.
// Team.agents is a non-owning view: the Pool is the sole owner of Agent
// values; a Team never outlives or independently constructs one.
type Team struct {
	ID          string
	Name        string
	Description string
	Keywords    []string
	Color       string

	agents []*Agent
}

func newTeam(id, name, description string, keywords []string, color string) *Team {
	return &Team{ID: id, Name: name, Description: description, Keywords: keywords, Color: color}
}

func (t *Team) addAgent(a *Agent) {
	t.agents = append(t.agents, a)
}

// Agents returns the team's member agents in insertion order.
func (t *Team) Agents() []*Agent {
	out := make([]*Agent, len(t.agents))
	copy(out, t.agents)
	return out
}

// Size returns the number of agents on the team.
func (t *Team) Size() int { return len(t.agents) }

// AvailableAgents returns the team's currently available agents, in
// insertion order. Computed fresh on every call against each agent's live
// state, so it can never return a stale availability snapshot (see
// DESIGN.md, resolved design decision 4).
func (t *Team) AvailableAgents() []*Agent {
	var out []*Agent
	for _, a := range t.agents {
		if a.IsAvailable() {
			out = append(out, a)
		}
	}
	return out
}

// CanHandle reports whether the team's own keyword vocabulary intersects kws.
func (t *Team) CanHandle(kws []string) bool {
	return len(matchedKeywords(t.Keywords, kws)) > 0
}

// GetBestAgent returns the team's highest keyword-overlap-scoring available
// agent, or nil. Ties go to the agent that comes first in insertion order.
func (t *Team) GetBestAgent(kws []string) *Agent {
	lowered := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		lowered[strings.ToLower(kw)] = struct{}{}
	}

	var best *Agent
	bestScore := 0
	for _, a := range t.AvailableAgents() {
		score := 0
		for _, kw := range a.Keywords {
			if _, ok := lowered[strings.ToLower(kw)]; ok {
				score++
			}
		}
		if score > 0 && score > bestScore {
			best = a
			bestScore = score
		}
	}
	return best
}
