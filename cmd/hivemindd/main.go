// Command hivemindd runs the HIVEMIND core: the Coordinator, Router and
// Dispatcher wired to the HTTP submission surface and the WebSocket
// streaming surface, backed by Postgres, Redis, and the engine adapter.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/agentpool"
	"github.com/nidhogg/hivemind/internal/config"
	"github.com/nidhogg/hivemind/internal/coordinator"
	"github.com/nidhogg/hivemind/internal/dialogue"
	"github.com/nidhogg/hivemind/internal/dispatcher"
	"github.com/nidhogg/hivemind/internal/engine"
	"github.com/nidhogg/hivemind/internal/httpapi"
	"github.com/nidhogg/hivemind/internal/roster"
	"github.com/nidhogg/hivemind/internal/router"
	"github.com/nidhogg/hivemind/internal/storage"
	"github.com/nidhogg/hivemind/internal/task"
	"github.com/nidhogg/hivemind/internal/wsapi"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("starting hivemind core")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/hivemind.json"
	}
	dotenvPath := os.Getenv("DOTENV_PATH")
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	cfg, err := config.Load(cfgPath, dotenvPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("config loaded", zap.String("path", cfgPath))

	repo, err := storage.NewPostgres(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer repo.Close()
	if err := repo.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	cache, err := storage.NewRedisCache(cfg.Database.Redis.URL, logger)
	if err != nil {
		logger.Fatal("redis cache unavailable", zap.Error(err))
	}
	defer cache.Close()

	bus, err := storage.NewEventBus(cfg.MessageBus.URL, logger)
	if err != nil {
		logger.Fatal("event bus unavailable", zap.Error(err))
	}
	defer bus.Close()

	pool := agentpool.New(logger)
	if err := pool.Initialize(roster.Teams, roster.DefaultAgents); err != nil {
		logger.Fatal("agent pool initialization failed", zap.Error(err))
	}

	primaryAdapter := engine.New(engine.Profile{
		CLIPath:        cfg.Engines.Primary.CLIPath,
		DefaultModel:   cfg.Engines.Primary.DefaultModel,
		MaxTokens:      cfg.Engines.Primary.MaxTokens,
		OutputFormat:   cfg.Engines.Primary.OutputFormat,
		AllowedTools:   cfg.Engines.Primary.AllowedTools,
		SystemPrompt:   cfg.Engines.Primary.SystemPrompt,
		TimeoutSeconds: cfg.Engines.Primary.TimeoutSeconds,
	}, logger)

	consultantAdapter := engine.New(engine.Profile{
		CLIPath:         cfg.Engines.Consultant.CLIPath,
		DefaultModel:    cfg.Engines.Consultant.DefaultModel,
		MaxTokens:       cfg.Engines.Consultant.MaxTokens,
		OutputFormat:    cfg.Engines.Consultant.OutputFormat,
		AllowedTools:    cfg.Engines.Consultant.AllowedTools,
		SystemPrompt:    cfg.Engines.Consultant.SystemPrompt,
		TimeoutSeconds:  cfg.Engines.Consultant.TimeoutSeconds,
		ReasoningEffort: cfg.Engines.Consultant.ReasoningEffort,
	}, logger).WithStatusInterval(5 * time.Second)

	primary := dialogue.NewEnginePrimary(primaryAdapter, cfg.Engines.Primary.DefaultModel, cfg.Engines.Primary.SystemPrompt, logger)
	consultant := dialogue.NewEngineConsultant(consultantAdapter, cfg.Engines.Consultant.DefaultModel, roster.DefaultAgents, logger)

	routingCfg := coordinator.RoutingConfig{
		MaxTeams:         cfg.Routing.MaxTeams,
		MaxAgentsPerTeam: cfg.Routing.MaxAgentsPerTeam,
	}

	executor := func(ctx context.Context, t *task.Task, a *agentpool.Agent) (*task.Result, error) {
		output, err := consultant.ExecuteAgentRole(ctx, a.ID, t.Prompt)
		if err != nil {
			return nil, err
		}
		return &task.Result{
			TaskID:  t.ID,
			AgentID: a.ID,
			TeamID:  a.Team,
			Success: true,
			Output:  output,
		}, nil
	}

	dispatcherCfg := dispatcher.Config{
		MaxGlobalConcurrent: cfg.Dispatcher.MaxGlobalConcurrent,
		MaxPerTeam:          cfg.Dispatcher.MaxPerTeam,
		MaxPerAgent:         cfg.Dispatcher.MaxPerAgent,
		DefaultTimeout:      cfg.Dispatcher.DefaultTimeout(),
	}
	disp := dispatcher.New(dispatcherCfg, executor, logger)

	r := router.New(pool, logger)
	coord := coordinator.New(r, disp, routingCfg, logger)

	// The dialogue loop is the path a non-trivial prompt takes to reach a
	// primary/consultant consensus plan before any agent runs (§4.6). Each
	// request gets its own Dialogue instance since a Dialogue accumulates
	// a per-session turn transcript.
	dialogueCfg := dialogue.Config{MaxTurns: cfg.Dialogue.MaxTurns, VerifyResults: cfg.Dialogue.VerifyResults}
	newDialogue := func() *dialogue.Dialogue {
		return dialogue.New(primary, consultant, dialogue.NoLiveInput{}, dialogueCfg, logger)
	}

	httpServer := httpapi.New(coord, pool, repo, primary, newDialogue, logger)
	wsServer := wsapi.New(bus, logger)

	mux := chi.NewRouter()
	mux.Mount("/", httpServer.Routes())
	mux.Get("/v1/stream", wsServer.HandleWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("hivemind core listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down hivemind core")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
