package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
	"github.com/ekaya-inc/canvas-engine/pkg/config"
	"github.com/ekaya-inc/canvas-engine/pkg/handlers"
	"github.com/ekaya-inc/canvas-engine/pkg/middleware"
	"github.com/ekaya-inc/canvas-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("metadata_base_url", cfg.Metadata.BaseURL),
		zap.String("runner_base_url", cfg.Runner.BaseURL))

	store := metadata.NewClient(cfg.Metadata.BaseURL, cfg.Metadata.Timeout(), logger)
	backend := runner.NewClient(cfg.Runner.BaseURL, cfg.Runner.Timeout(), logger)

	panels := services.NewPanelManager(store, backend, services.PanelOptions{
		EchoWindow:        cfg.Sync.SelectionEchoWindow(),
		BoardSaveDebounce: cfg.Sync.BoardSaveDebounce(),
		GraphSaveDebounce: cfg.Sync.GraphSaveDebounce(),
	}, logger)
	defer panels.Close()

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	workflowHandler := handlers.NewWorkflowHandler(panels, logger)
	workflowHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting canvas-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger builds the root logger: human-readable locally, JSON elsewhere.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
