package dialogue

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

type fakePrimary struct {
	proposeCalls int
	refineCalls  int
}

func (f *fakePrimary) Propose(ctx context.Context, request, liveNotes string) (string, error) {
	f.proposeCalls++
	return fmt.Sprintf("proposal for %q", request), nil
}

func (f *fakePrimary) Refine(ctx context.Context, request, proposal, feedback, liveNotes string) (string, error) {
	f.refineCalls++
	return proposal + " (refined)", nil
}

// agreesAfter evaluates as disagreeing for the first N calls, then agrees.
type agreesAfter struct {
	n       int
	calls   int
	agents  []string
}

func (a *agreesAfter) Evaluate(ctx context.Context, request, proposal string, history []Turn) (Evaluation, error) {
	a.calls++
	if a.calls > a.n {
		return Evaluation{Agrees: true, Feedback: "AGREED, looks good", SuggestedAgents: a.agents}, nil
	}
	return Evaluation{Agrees: false, Feedback: fmt.Sprintf("needs work (round %d)", a.calls)}, nil
}

func (a *agreesAfter) Verify(ctx context.Context, request, output string) (bool, string, error) {
	return true, "", nil
}

func (a *agreesAfter) KnownAgentIDs() []string { return []string{"DEV-001", "SEC-001"} }

type neverAgrees struct{}

func (neverAgrees) Evaluate(ctx context.Context, request, proposal string, history []Turn) (Evaluation, error) {
	return Evaluation{Agrees: false, Feedback: "still not convinced"}, nil
}
func (neverAgrees) Verify(ctx context.Context, request, output string) (bool, string, error) {
	return false, "incomplete", nil
}
func (neverAgrees) KnownAgentIDs() []string { return nil }

func TestDiscussReachesConsensusImmediately(t *testing.T) {
	p := &fakePrimary{}
	c := &agreesAfter{n: 0, agents: []string{"DEV-001"}}
	d := New(p, c, nil, DefaultConfig(), zap.NewNop())

	result := d.Discuss(context.Background(), "build a widget")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.AgentsUsed) != 1 || result.AgentsUsed[0] != "DEV-001" {
		t.Fatalf("expected DEV-001 agent, got %+v", result.AgentsUsed)
	}
	if p.proposeCalls != 1 || p.refineCalls != 0 {
		t.Fatalf("expected exactly one proposal and no refinements, got propose=%d refine=%d", p.proposeCalls, p.refineCalls)
	}
}

func TestDiscussRefinesUntilConsensus(t *testing.T) {
	p := &fakePrimary{}
	c := &agreesAfter{n: 2}
	d := New(p, c, nil, DefaultConfig(), zap.NewNop())

	result := d.Discuss(context.Background(), "investigate an incident")
	if !result.Success {
		t.Fatalf("expected eventual success, got %+v", result)
	}
	if p.refineCalls != 2 {
		t.Fatalf("expected 2 refinements before agreement, got %d", p.refineCalls)
	}
	if result.Turns != 1+2*2+1 { // initial propose + (evaluate+refine)*2 + final agreeing evaluate
		t.Fatalf("unexpected turn accounting: %d", result.Turns)
	}
}

func TestDiscussExhaustsMaxTurnsWithoutAgreement(t *testing.T) {
	p := &fakePrimary{}
	c := neverAgrees{}
	cfg := Config{MaxTurns: 3}
	d := New(p, c, nil, cfg, zap.NewNop())

	result := d.Discuss(context.Background(), "do something vague")
	if result.Success {
		t.Fatalf("expected failure to reach consensus, got %+v", result)
	}
	if result.Plan == "" {
		t.Fatalf("expected a best-effort plan even without consensus")
	}
}

func TestScanAgreementCaseInsensitive(t *testing.T) {
	cases := []string{"AGREED", "agreed, let's go", "I Agree with this", "no marker here"}
	want := []bool{true, true, true, false}
	for i, c := range cases {
		if got := ScanAgreement(c); got != want[i] {
			t.Fatalf("ScanAgreement(%q) = %v, want %v", c, got, want[i])
		}
	}
}

func TestScanSuggestedAgentsOnlyReturnsKnownIDsPresentInText(t *testing.T) {
	known := []string{"DEV-001", "SEC-002", "INF-003"}
	text := "I'd bring in DEV-001 and INF-003 for this."
	got := ScanSuggestedAgents(text, known)
	if len(got) != 2 || got[0] != "DEV-001" || got[1] != "INF-003" {
		t.Fatalf("unexpected suggested agents: %+v", got)
	}
}

func TestScanVerified(t *testing.T) {
	if !ScanVerified("Looks complete. VERIFIED.") {
		t.Fatalf("expected VERIFIED marker to be detected")
	}
	if ScanVerified("still missing tests") {
		t.Fatalf("did not expect VERIFIED to be detected")
	}
}

func TestNoLiveInputAlwaysEmpty(t *testing.T) {
	var src LiveInputSource = NoLiveInput{}
	if notes := src.ConsumePending(context.Background()); notes != nil {
		t.Fatalf("expected no pending notes, got %+v", notes)
	}
}
