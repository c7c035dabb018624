// Package dialogue implements the primary/consultant consensus loop
// (§4.6): the primary engine proposes an approach, the consultant
// evaluates it, and the two iterate until the consultant agrees or
// max_turns is exhausted.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/engine"
)

const DefaultMaxTurns = 10

// Turn is a single entry in the dialogue transcript.
type Turn struct {
	Speaker    string // "primary" or "consultant"
	Content    string
	TurnNumber int
}

// ConsensusResult is the outcome of the propose/evaluate loop.
type ConsensusResult struct {
	Agreed      bool
	Plan        string
	AgentsNeeded []string
	NeedsAgents bool
	Response    string
}

// Result is the outer result returned to callers of Discuss.
type Result struct {
	Success     bool
	Plan        string
	Turns       int
	AgentsUsed  []string
	Error       string
}

// Evaluation is the consultant's judgment of a proposal.
type Evaluation struct {
	Agrees           bool
	Feedback         string
	SuggestedAgents  []string
}

// LiveInputSource lets an external surface (chat, TUI) inject
// freshly-arrived user notes into an in-flight dialogue turn. Core
// HIVEMIND ships no such surface; NoLiveInput is the default.
type LiveInputSource interface {
	ConsumePending(ctx context.Context) []string
}

// NoLiveInput is a LiveInputSource that never has anything pending.
type NoLiveInput struct{}

func (NoLiveInput) ConsumePending(ctx context.Context) []string { return nil }

// Primary generates and refines proposals.
type Primary interface {
	Propose(ctx context.Context, request, liveNotes string) (string, error)
	Refine(ctx context.Context, request, proposal, feedback, liveNotes string) (string, error)
}

// Consultant evaluates proposals, optionally verifies finished output, and
// lists the agent ids it may suggest.
type Consultant interface {
	Evaluate(ctx context.Context, request, proposal string, history []Turn) (Evaluation, error)
	Verify(ctx context.Context, request, output string) (bool, string, error)
	KnownAgentIDs() []string
}

// Config tunes one Dialogue run.
type Config struct {
	MaxTurns     int
	VerifyResults bool
}

func DefaultConfig() Config {
	return Config{MaxTurns: DefaultMaxTurns, VerifyResults: false}
}

// Dialogue drives one primary/consultant consensus session.
type Dialogue struct {
	primary    Primary
	consultant Consultant
	liveInput  LiveInputSource
	cfg        Config
	logger     *zap.Logger

	history   []Turn
	turnCount int
}

func New(primary Primary, consultant Consultant, liveInput LiveInputSource, cfg Config, logger *zap.Logger) *Dialogue {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if liveInput == nil {
		liveInput = NoLiveInput{}
	}
	return &Dialogue{primary: primary, consultant: consultant, liveInput: liveInput, cfg: cfg, logger: logger}
}

func (d *Dialogue) logTurn(speaker, content string) {
	d.turnCount++
	d.history = append(d.history, Turn{Speaker: speaker, Content: content, TurnNumber: d.turnCount})
}

func formatLiveNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	return strings.Join(notes, "\n")
}

func liveBlock(notes string) string {
	if notes == "" {
		return ""
	}
	return fmt.Sprintf("\nLive User Input:\n%s\n", notes)
}

func (d *Dialogue) reachConsensus(ctx context.Context, request string) (ConsensusResult, error) {
	notes := formatLiveNotes(d.liveInput.ConsumePending(ctx))
	proposal, err := d.primary.Propose(ctx, request, liveBlock(notes))
	if err != nil {
		proposal = fmt.Sprintf("working with the consultant to determine the best approach for: %s", request)
	}
	d.logTurn("primary", proposal)

	var lastEval Evaluation
	haveEval := false

	turn := 0
	for {
		if d.cfg.MaxTurns > 0 && turn >= d.cfg.MaxTurns {
			if !haveEval {
				return ConsensusResult{Agreed: false, Plan: proposal, Response: "consensus not reached"}, nil
			}
			return ConsensusResult{
				Agreed:       false,
				Plan:         proposal,
				AgentsNeeded: lastEval.SuggestedAgents,
				NeedsAgents:  len(lastEval.SuggestedAgents) > 0,
				Response:     lastEval.Feedback,
			}, nil
		}

		newNotes := formatLiveNotes(d.liveInput.ConsumePending(ctx))
		proposalForConsultant := proposal
		if newNotes != "" {
			proposalForConsultant = fmt.Sprintf("%s\n\nLive User Input:\n%s", proposal, newNotes)
		}

		eval, err := d.consultant.Evaluate(ctx, request, proposalForConsultant, d.history)
		if err != nil {
			eval = Evaluation{Agrees: false, Feedback: fmt.Sprintf("failed to evaluate: %v", err)}
		}
		d.logTurn("consultant", eval.Feedback)
		lastEval = eval
		haveEval = true

		if eval.Agrees {
			return ConsensusResult{
				Agreed:       true,
				Plan:         proposal,
				AgentsNeeded: eval.SuggestedAgents,
				NeedsAgents:  len(eval.SuggestedAgents) > 0,
			}, nil
		}

		refined, err := d.primary.Refine(ctx, request, proposal, eval.Feedback, liveBlock(newNotes))
		if err != nil {
			tail := eval.Feedback
			if len(tail) > 200 {
				tail = tail[:200]
			}
			refined = fmt.Sprintf("incorporating feedback: %s...", tail)
		}
		proposal = refined
		d.logTurn("primary", proposal)
		turn++
	}
}

// Discuss is the main entry point: dialogue until consensus (or
// max_turns exhaustion), returning the agreed plan and agent list.
func (d *Dialogue) Discuss(ctx context.Context, request string) Result {
	consensus, err := d.reachConsensus(ctx, request)
	if err != nil {
		return Result{Success: false, Plan: request, Turns: d.turnCount, Error: err.Error()}
	}
	return Result{
		Success:    consensus.Agreed,
		Plan:       consensus.Plan,
		Turns:      d.turnCount,
		AgentsUsed: consensus.AgentsNeeded,
	}
}

// Verify runs the consultant's post-execution verification pass over a
// synthesized response, gated on the dialogue's VerifyResults config (the
// verifier-pass supplement). When disabled it returns true immediately
// with no consultant round-trip.
func (d *Dialogue) Verify(ctx context.Context, request, output string) (bool, string, error) {
	if !d.cfg.VerifyResults {
		return true, "", nil
	}
	return d.consultant.Verify(ctx, request, output)
}

// History returns the dialogue transcript accumulated so far.
func (d *Dialogue) History() []Turn {
	out := make([]Turn, len(d.history))
	copy(out, d.history)
	return out
}

// ScanAgreement reports whether response carries the literal "AGREED"
// marker or the phrase "I AGREE" (both case-insensitive), per §4.6 step 2.
func ScanAgreement(response string) bool {
	upper := strings.ToUpper(response)
	return strings.Contains(upper, "AGREED") || strings.Contains(upper, "I AGREE")
}

// ScanSuggestedAgents returns every known agent id that appears
// verbatim in response, in knownIDs order.
func ScanSuggestedAgents(response string, knownIDs []string) []string {
	var out []string
	for _, id := range knownIDs {
		if strings.Contains(response, id) {
			out = append(out, id)
		}
	}
	return out
}

// ScanVerified reports whether response carries the literal "VERIFIED"
// marker (case-insensitive), per the post-execution verification
// supplement.
func ScanVerified(response string) bool {
	return strings.Contains(strings.ToUpper(response), "VERIFIED")
}

// EventsToText is a small convenience bridging engine.Event streams
// (as returned by the Engine Adapter) into the plain-text responses
// Primary/Consultant implementations work with.
func EventsToText(events []engine.Event) string {
	return engine.ExtractTextContent(events)
}
