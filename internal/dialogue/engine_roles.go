package dialogue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/engine"
	"github.com/nidhogg/hivemind/internal/roster"
)

const (
	proposalPromptTemplate = `You are the primary coordinator, working with a consultant on a user request.

User Request: %s
%s
Propose an approach to handle this request. Consider:
1. Is this something that needs specialized agents, or can it be answered directly?
2. If agents are needed, which ones?
3. What's the success criteria?

Keep your proposal concise and actionable.`

	refinePromptTemplate = `You are the primary coordinator, refining your proposal based on the consultant's feedback.

User Request: %s
%s
Your Previous Proposal:
%s

Consultant's Feedback:
%s

Refine your proposal based on the feedback. If you now agree with the suggestions, incorporate them.`

	evaluatePromptTemplate = `You are the consultant, evaluating a proposal from the primary coordinator.

User Request: %s

Proposal:
%s

Respond with your evaluation and whether you agree with the approach.
If you agree, state "AGREED" clearly.
If you disagree, explain why and propose modifications.`

	verifyPromptTemplate = `You are the consultant, verifying a completed agent output.

User Request: %s

Output:
%s

Check for completeness, correctness, and quality.
If the output is acceptable, state "VERIFIED" clearly.
If issues exist, describe what needs to be fixed.`
)

// EnginePrimary implements Primary by driving the primary engine's CLI
// through the Engine Adapter.
type EnginePrimary struct {
	adapter      *engine.Adapter
	model        string
	systemPrompt string
	logger       *zap.Logger
}

func NewEnginePrimary(adapter *engine.Adapter, model, systemPrompt string, logger *zap.Logger) *EnginePrimary {
	return &EnginePrimary{adapter: adapter, model: model, systemPrompt: systemPrompt, logger: logger}
}

func (p *EnginePrimary) run(ctx context.Context, prompt string) (string, error) {
	events, err := p.adapter.Generate(ctx, prompt, p.model, p.systemPrompt, nil)
	if err != nil {
		return "", err
	}
	if engine.HasError(events) {
		return "", fmt.Errorf("primary engine reported an error")
	}
	return engine.ExtractTextContent(events), nil
}

func (p *EnginePrimary) Propose(ctx context.Context, request, liveNotes string) (string, error) {
	return p.run(ctx, fmt.Sprintf(proposalPromptTemplate, request, liveNotes))
}

func (p *EnginePrimary) Refine(ctx context.Context, request, proposal, feedback, liveNotes string) (string, error) {
	return p.run(ctx, fmt.Sprintf(refinePromptTemplate, request, liveNotes, proposal, feedback))
}

// EngineConsultant implements Consultant by driving the consultant
// engine's CLI, and additionally executes a named agent role by
// replaying that role's system prompt through a second CLI call.
type EngineConsultant struct {
	adapter *engine.Adapter
	model   string
	logger  *zap.Logger
	agents  map[string]roster.AgentDef
}

func NewEngineConsultant(adapter *engine.Adapter, model string, agents []roster.AgentDef, logger *zap.Logger) *EngineConsultant {
	byID := make(map[string]roster.AgentDef, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return &EngineConsultant{adapter: adapter, model: model, agents: byID, logger: logger}
}

func (c *EngineConsultant) KnownAgentIDs() []string {
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	return ids
}

func (c *EngineConsultant) Evaluate(ctx context.Context, request, proposal string, history []Turn) (Evaluation, error) {
	prompt := fmt.Sprintf(evaluatePromptTemplate, request, proposal)
	events, err := c.adapter.Generate(ctx, prompt, c.model, "", nil)
	if err != nil {
		return Evaluation{}, err
	}
	if engine.HasError(events) {
		msg := "consultant engine reported an error"
		return Evaluation{Agrees: false, Feedback: fmt.Sprintf("failed to evaluate: %s", msg)}, nil
	}
	response := engine.ExtractTextContent(events)
	return Evaluation{
		Agrees:          ScanAgreement(response),
		Feedback:        response,
		SuggestedAgents: ScanSuggestedAgents(response, c.KnownAgentIDs()),
	}, nil
}

func (c *EngineConsultant) Verify(ctx context.Context, request, output string) (bool, string, error) {
	prompt := fmt.Sprintf(verifyPromptTemplate, request, output)
	events, err := c.adapter.Generate(ctx, prompt, c.model, "", nil)
	if err != nil {
		return false, "", err
	}
	if engine.HasError(events) {
		return false, "verification failed", nil
	}
	response := engine.ExtractTextContent(events)
	if ScanVerified(response) {
		return true, "", nil
	}
	return false, response, nil
}

// ExecuteAgentRole runs the named agent's role as a one-shot CLI call,
// using its SystemPrompt. cmd/hivemindd wraps it as the Dispatcher's
// ExecutorFn, so each agent chosen after consensus runs through it under
// the Dispatcher's concurrency limits and timeout.
func (c *EngineConsultant) ExecuteAgentRole(ctx context.Context, agentID, task string) (string, error) {
	def, ok := c.agents[agentID]
	if !ok {
		return "", fmt.Errorf("dialogue: unknown agent id %q", agentID)
	}
	events, err := c.adapter.Generate(ctx, task, c.model, def.SystemPrompt, nil)
	if err != nil {
		return "", err
	}
	if engine.HasError(events) {
		return "", fmt.Errorf("agent %s execution reported an error", agentID)
	}
	return engine.ExtractTextContent(events), nil
}
