package router

import (
	"testing"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/roster"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T) *agentpool.Pool {
	t.Helper()
	p := agentpool.New(zap.NewNop())
	if err := p.Initialize(roster.Teams, roster.DefaultAgents); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p
}

func TestExtractKeywordsDropsStopWordsAndShortTokens(t *testing.T) {
	kws := ExtractKeywords("Can you fix the bug in the API authentication module?")
	want := map[string]bool{"fix": true, "bug": true, "api": true, "authentication": true, "module": true}
	if len(kws) != len(want) {
		t.Fatalf("got %v, want keys matching %v", kws, want)
	}
	for _, kw := range kws {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
	}
}

func TestExtractKeywordsDeduplicatesPreservingOrder(t *testing.T) {
	kws := ExtractKeywords("deploy deploy the deployment pipeline pipeline")
	if len(kws) != 3 {
		t.Fatalf("got %v, want 3 unique keywords", kws)
	}
	if kws[0] != "deploy" || kws[1] != "deployment" || kws[2] != "pipeline" {
		t.Errorf("got %v, want [deploy deployment pipeline] deduped in order", kws)
	}
}

func TestMatchKeywordsEmptyInputsScoreZero(t *testing.T) {
	if score, matched := MatchKeywords(nil, []string{"a"}); score != 0 || matched != nil {
		t.Errorf("MatchKeywords(nil, _) = (%v, %v), want (0, nil)", score, matched)
	}
	if score, matched := MatchKeywords([]string{"a"}, nil); score != 0 || matched != nil {
		t.Errorf("MatchKeywords(_, nil) = (%v, %v), want (0, nil)", score, matched)
	}
}

func TestMatchKeywordsScoreBounds(t *testing.T) {
	score, matched := MatchKeywords([]string{"deploy", "kubernetes"}, []string{"deploy", "kubernetes", "docker"})
	if score <= 0 || score > 1 {
		t.Fatalf("score = %v, want in (0, 1]", score)
	}
	if len(matched) != 2 {
		t.Errorf("matched = %v, want 2 entries", matched)
	}
}

func TestMatchKeywordsIdenticalSetsScoreOne(t *testing.T) {
	score, _ := MatchKeywords([]string{"deploy", "cluster"}, []string{"deploy", "cluster"})
	if score != 1 {
		t.Errorf("score = %v, want 1", score)
	}
}

func TestRouteSingleTeamAboveThreshold(t *testing.T) {
	pool := newTestPool(t)
	r := New(pool, zap.NewNop())

	kws := ExtractKeywords("please deploy the kubernetes cluster to aws using terraform")
	routes := r.Route(kws, 3, 2)
	if len(routes) == 0 {
		t.Fatal("expected at least one route")
	}
	for _, rt := range routes {
		if rt.Team.ID != "INF" {
			t.Errorf("route team = %q, want INF", rt.Team.ID)
		}
	}
}

func TestRouteNoMatchReturnsEmpty(t *testing.T) {
	pool := newTestPool(t)
	r := New(pool, zap.NewNop())

	routes := r.Route([]string{"xyzzy", "plugh"}, 3, 2)
	if len(routes) != 0 {
		t.Errorf("routes = %v, want none", routes)
	}
}

func TestRouteOnlySelectsAvailableAgents(t *testing.T) {
	pool := newTestPool(t)
	r := New(pool, zap.NewNop())

	for _, a := range pool.GetTeam("DEV").Agents() {
		a.AssignTask("busy-task")
		a.StartExecution()
	}

	kws := ExtractKeywords("implement a new backend api module and refactor the code")
	routes := r.Route(kws, 3, 2)
	for _, rt := range routes {
		if rt.Team.ID == "DEV" {
			t.Errorf("route selected busy team DEV's agent %q", rt.Agent.ID)
		}
	}
}

func TestCanRoute(t *testing.T) {
	pool := newTestPool(t)
	r := New(pool, zap.NewNop())

	if !r.CanRoute(ExtractKeywords("write unit and integration test coverage")) {
		t.Error("CanRoute = false, want true for QA-shaped prompt")
	}
	if r.CanRoute([]string{"zzzzz"}) {
		t.Error("CanRoute = true, want false for nonsense keyword")
	}
}
