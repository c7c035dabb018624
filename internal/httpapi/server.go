// Package httpapi exposes the core's submission surface (§6) over HTTP
// using chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/coordinator"
	"github.com/nidhogg/hivemind/internal/dialogue"
	"github.com/nidhogg/hivemind/internal/router"
	"github.com/nidhogg/hivemind/internal/task"
)

// ErrAlreadyTerminal is returned by task-cancel when the task has
// already reached a terminal state.
var ErrAlreadyTerminal = errors.New("httpapi: task already terminal")

// Server wires the Coordinator and agent Pool behind chi routes
// matching §6's submission surface.
type Server struct {
	coordinator *coordinator.Coordinator
	pool        *agentpool.Pool
	repo        coordinator.Repository
	primary     dialogue.Primary
	newDialogue func() *dialogue.Dialogue
	logger      *zap.Logger
}

// New wires a Server. newDialogue constructs a fresh Dialogue per
// non-trivial prompt, since a Dialogue carries its own turn transcript
// and must not be shared across concurrent requests.
func New(coord *coordinator.Coordinator, pool *agentpool.Pool, repo coordinator.Repository, primary dialogue.Primary, newDialogue func() *dialogue.Dialogue, logger *zap.Logger) *Server {
	return &Server{coordinator: coord, pool: pool, repo: repo, primary: primary, newDialogue: newDialogue, logger: logger}
}

// Routes returns a chi router implementing §6's HTTP method/path table.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/v1/completions", func(r chi.Router) {
		r.Post("/", s.createCompletion)
		r.Get("/", s.listCompletions)
		r.Get("/{id}", s.getCompletion)
		r.Get("/{id}/result", s.getCompletionResult)
		r.Delete("/{id}", s.cancelCompletion)
	})
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/{id}", s.getSession)
		r.Delete("/{id}", s.endSession)
	})
	r.Get("/v1/agents", s.listAgents)

	return r
}

type completionRequest struct {
	Prompt    string `json:"prompt"`
	Priority  string `json:"priority,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type completionResponse struct {
	TaskID string     `json:"task_id"`
	State  task.State `json:"state"`
}

func parsePriority(s string) task.Priority {
	switch s {
	case "low":
		return task.PriorityLow
	case "high":
		return task.PriorityHigh
	case "critical":
		return task.PriorityCritical
	default:
		return task.PriorityNormal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) createCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	t := s.coordinator.CreateTask(req.Prompt, parsePriority(req.Priority), req.SessionID)
	go s.process(t)

	writeJSON(w, http.StatusAccepted, completionResponse{TaskID: t.ID, State: t.State()})
}

// process runs the full pipeline for a freshly created task (§4.6, §6):
// trivial prompts get a direct primary reply; everything else goes
// through the dialogue loop to decide which agents, if any, should run.
func (s *Server) process(t *task.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if !dialogue.ShouldEngage(t.Prompt) {
		reply, err := s.primary.Propose(ctx, t.Prompt, "")
		if err != nil {
			t.Complete(false, err.Error())
			return
		}
		t.Start()
		t.SetSynthesizedResponse(reply)
		t.Complete(true, "")
		return
	}

	d := s.newDialogue()
	result := d.Discuss(ctx, t.Prompt)
	if !result.Success {
		t.Start()
		if result.Error != "" {
			t.Complete(false, result.Error)
			return
		}
		t.SetSynthesizedResponse(result.Plan)
		t.Complete(true, "")
		return
	}

	if len(result.AgentsUsed) == 0 {
		t.Start()
		t.SetSynthesizedResponse(result.Plan)
		t.Complete(true, "")
		return
	}

	s.coordinator.AnalyzeTask(t)
	routes := s.routesForAgents(result.AgentsUsed)
	if len(routes) == 0 {
		const errMsg = "No suitable agents found for task"
		t.Complete(false, errMsg)
		return
	}
	t.SetRouting(nil, result.AgentsUsed)
	s.coordinator.ExecuteTask(ctx, t, routes)
	response := s.coordinator.SynthesizeResponse(t)

	if verified, feedback, err := d.Verify(ctx, t.Prompt, response); err != nil {
		s.logger.Warn("verification pass failed", zap.String("task_id", t.ID), zap.Error(err))
	} else if !verified {
		s.logger.Warn("verification pass flagged response", zap.String("task_id", t.ID), zap.String("feedback", feedback))
	}

	t.SetSynthesizedResponse(response)
}

// routesForAgents builds router.Route values directly from the dialogue
// consultant's named agent ids, bypassing keyword scoring (§4.6: "the
// suggested agents are handed to the dispatcher").
func (s *Server) routesForAgents(agentIDs []string) []router.Route {
	var routes []router.Route
	for _, id := range agentIDs {
		agent := s.pool.GetAgent(id)
		if agent == nil {
			s.logger.Warn("dialogue suggested unknown agent id", zap.String("agent_id", id))
			continue
		}
		team := s.pool.GetTeam(agent.Team)
		routes = append(routes, router.Route{Team: team, Agent: agent})
	}
	return routes
}

type taskStatusResponse struct {
	TaskID      string        `json:"task_id"`
	State       task.State    `json:"state"`
	TargetTeams []string      `json:"target_teams,omitempty"`
	TargetAgents []string     `json:"target_agents,omitempty"`
	Results     []task.Result `json:"results,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func toStatus(t *task.Task) taskStatusResponse {
	return taskStatusResponse{
		TaskID:       t.ID,
		State:        t.State(),
		TargetTeams:  t.TargetTeams(),
		TargetAgents: t.TargetAgents(),
		Results:      t.Results(),
		Error:        t.Error(),
	}
}

func (s *Server) getCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.coordinator.GetTask(id)
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, toStatus(t))
}

func (s *Server) getCompletionResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.coordinator.GetTask(id)
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !t.IsComplete() {
		writeError(w, http.StatusTooEarly, "task not yet terminal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task_id":  t.ID,
		"response": t.SynthesizedResponse(),
	})
}

func (s *Server) cancelCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.coordinator.GetTask(id)
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !s.coordinator.CancelTask(id) {
		writeError(w, http.StatusConflict, ErrAlreadyTerminal.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCompletions(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	state := r.URL.Query().Get("state")
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	var tasks []*task.Task
	switch {
	case sessionID != "":
		tasks = s.coordinator.GetTasksBySession(sessionID)
	case state != "":
		tasks = s.coordinator.GetTasksByState(task.State(state))
	default:
		tasks = s.coordinator.GetAllTasks()
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	out := make([]taskStatusResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toStatus(t)
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionRequest struct {
	UserID   string         `json:"user_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if req.UserID != "" {
		metadata["user_id"] = req.UserID
	}

	sess, err := s.repo.CreateSession(r.Context(), metadata)
	if err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.repo.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	messages, err := s.repo.ListTasksBySession(r.Context(), id)
	if err != nil {
		s.logger.Warn("list session tasks failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "messages": messages})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.EndSession(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type agentResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Team         string   `json:"team"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	State        string   `json:"state"`
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.pool.Agents()
	out := make([]agentResponse, len(agents))
	for i, a := range agents {
		snap := a.Snapshot()
		out[i] = agentResponse{
			ID:           snap.ID,
			Name:         snap.Name,
			Team:         snap.Team,
			Description:  snap.Description,
			Capabilities: snap.Capabilities,
			State:        string(snap.State),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
