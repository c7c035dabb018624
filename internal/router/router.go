// Package router implements the Router: keyword-scored team and agent
// selection over an agentpool.Pool.
package router

import (
	"sort"
	"strings"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"go.uber.org/zap"
)

// stopWords is the fixed English stop-word set keyword extraction drops.
// Compile-time constant per the Design Notes; ~60 tokens.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "may": {}, "might": {}, "can": {}, "must": {}, "i": {}, "you": {}, "he": {}, "she": {}, "it": {},
	"we": {}, "they": {}, "what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "to": {}, "from": {}, "in": {}, "on": {}, "at": {}, "by": {},
	"for": {}, "with": {}, "about": {}, "as": {}, "of": {}, "and": {}, "or": {}, "but": {}, "not": {}, "if": {},
	"then": {}, "so": {}, "because": {}, "while": {}, "there": {}, "here": {}, "just": {}, "now": {}, "some": {},
}

const trimCutset = ".,;:!?()[]{}\"'"

// ExtractKeywords lowercases prompt, splits on whitespace, strips trailing
// punctuation, drops tokens of length <= 2 and stop words, and deduplicates
// while preserving first occurrence. It is a pure function for testability
// and is the single implementation Coordinator.AnalyzeTask reuses (see
// DESIGN.md, resolved design decision 1).
func ExtractKeywords(prompt string) []string {
	words := strings.Fields(strings.ToLower(prompt))

	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		cleaned := strings.Trim(w, trimCutset)
		if len(cleaned) <= 2 {
			continue
		}
		if _, stop := stopWords[cleaned]; stop {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		keywords = append(keywords, cleaned)
	}
	return keywords
}

// MatchKeywords scores candidate keywords c against task keywords t using
// the harmonic mean of task coverage and candidate coverage. Returns 0 and
// no matches if either set is empty or they don't intersect.
func MatchKeywords(t, c []string) (float64, []string) {
	if len(t) == 0 || len(c) == 0 {
		return 0, nil
	}

	taskSet := toLowerSet(t)
	candSet := toLowerSet(c)

	var matched []string
	for kw := range taskSet {
		if _, ok := candSet[kw]; ok {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	taskCov := float64(len(matched)) / float64(len(taskSet))
	candCov := float64(len(matched)) / float64(len(candSet))
	score := 2 * (taskCov * candCov) / (taskCov + candCov)

	sort.Strings(matched)
	return score, matched
}

func toLowerSet(xs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		out[strings.ToLower(x)] = struct{}{}
	}
	return out
}

// Route is a single (team, agent) selection produced by the Router.
type Route struct {
	Team  *agentpool.Team
	Agent *agentpool.Agent
}

// Router ranks teams and agents for a keyword set using a bounded,
// reproducible score.
type Router struct {
	pool   *agentpool.Pool
	logger *zap.Logger

	// MultiTeamThreshold: if the top team's score is >= this, route to
	// that team alone.
	MultiTeamThreshold float64
	// MinMatchScore: candidates scoring below this are discarded.
	MinMatchScore float64
}

// New constructs a Router over pool with the default thresholds
// (MinMatchScore=0.3, MultiTeamThreshold=0.7).
func New(pool *agentpool.Pool, logger *zap.Logger) *Router {
	return &Router{
		pool:               pool,
		logger:             logger,
		MultiTeamThreshold: 0.7,
		MinMatchScore:      0.3,
	}
}

type teamScore struct {
	team  *agentpool.Team
	score float64
	order int
}

type agentScore struct {
	agent *agentpool.Agent
	score float64
	order int
}

func (r *Router) scoreTeams(kws []string) []teamScore {
	var scores []teamScore
	for i, t := range r.pool.Teams() {
		score, _ := MatchKeywords(kws, t.Keywords)
		if score >= r.MinMatchScore {
			scores = append(scores, teamScore{team: t, score: score, order: i})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].order < scores[j].order
	})
	return scores
}

func (r *Router) scoreAgents(kws []string, team *agentpool.Team) []agentScore {
	var scores []agentScore
	for i, a := range team.Agents() {
		if !a.IsAvailable() {
			continue
		}
		score, _ := MatchKeywords(kws, a.Keywords)
		if score >= r.MinMatchScore {
			scores = append(scores, agentScore{agent: a, score: score, order: i})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].order < scores[j].order
	})
	return scores
}

// Route selects teams and agents for kws. If kws is empty no teams will
// score above threshold and an empty route list is returned.
func (r *Router) Route(kws []string, maxTeams, maxAgentsPerTeam int) []Route {
	teamScores := r.scoreTeams(kws)
	if len(teamScores) == 0 {
		r.logger.Warn("no teams matched keywords", zap.Strings("keywords", kws))
		return nil
	}

	var selected []teamScore
	if teamScores[0].score >= r.MultiTeamThreshold {
		selected = teamScores[:1]
	} else {
		for _, s := range teamScores {
			if len(selected) >= maxTeams {
				break
			}
			if s.score >= r.MinMatchScore {
				selected = append(selected, s)
			}
		}
	}

	var routes []Route
	for _, ts := range selected {
		agentScores := r.scoreAgents(kws, ts.team)
		if len(agentScores) == 0 {
			available := ts.team.AvailableAgents()
			if len(available) > 0 {
				routes = append(routes, Route{Team: ts.team, Agent: available[0]})
				r.logger.Info("using fallback agent", zap.String("team", ts.team.ID), zap.String("agent", available[0].ID))
			} else {
				r.logger.Warn("no available agents in team", zap.String("team", ts.team.ID))
			}
			continue
		}
		for i, as := range agentScores {
			if i >= maxAgentsPerTeam {
				break
			}
			routes = append(routes, Route{Team: ts.team, Agent: as.agent})
		}
	}

	return routes
}

// RouteFromPrompt extracts keywords from prompt and routes them.
func (r *Router) RouteFromPrompt(prompt string, maxTeams, maxAgentsPerTeam int) []Route {
	return r.Route(ExtractKeywords(prompt), maxTeams, maxAgentsPerTeam)
}

// CanRoute reports whether at least one route would be found for kws.
func (r *Router) CanRoute(kws []string) bool {
	return len(r.scoreTeams(kws)) > 0
}
