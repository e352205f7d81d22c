package api

import (
	"fmt"
	"log/slog"

	"github.com/JaimeStill/attest/internal/agent"
	"github.com/JaimeStill/attest/internal/config"
	"github.com/JaimeStill/attest/internal/infrastructure"
	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/database"
	"github.com/JaimeStill/attest/pkg/lifecycle"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/storage"
)

// Runtime is what the API domains are built from: the shared systems, an
// API-scoped logger, the evaluation backend and the engine tuning.
type Runtime struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System

	Agent      workflow.Client
	Engine     workflow.Config
	Pagination pagination.Config

	MaxUploadSize   int64
	MaxContextBytes int64
}

// NewRuntime derives the API runtime from infrastructure. It fails when the
// configured agent provider cannot be built.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	logger := infra.Logger.With("module", "api")

	client, err := agent.New(&cfg.Agent, logger)
	if err != nil {
		return nil, fmt.Errorf("agent init failed: %w", err)
	}

	return &Runtime{
		Lifecycle:       infra.Lifecycle,
		Logger:          logger,
		Database:        infra.Database,
		Storage:         infra.Storage,
		Agent:           client,
		Engine:          EngineConfig(&cfg.Analysis),
		Pagination:      cfg.API.Pagination,
		MaxUploadSize:   cfg.API.MaxUploadSizeBytes(),
		MaxContextBytes: cfg.Analysis.MaxContextBytes(),
	}, nil
}

// EngineConfig translates the analysis settings into orchestrator tuning.
func EngineConfig(cfg *config.AnalysisConfig) workflow.Config {
	return workflow.Config{
		Concurrency: cfg.Concurrency,
		Evaluator: workflow.EvaluatorConfig{
			MaxAttempts: cfg.MaxAttempts,
			RetryDelay:  cfg.RetryDelayDuration(),
			Jitter:      cfg.Jitter(),
			Timeout:     cfg.EvaluationTimeoutDuration(),
		},
		JobTimeout:       cfg.JobTimeoutDuration(),
		PersistTimeout:   cfg.PersistTimeoutDuration(),
		RetainWindow:     cfg.RetainWindowDuration(),
		SubscriberBuffer: cfg.SubscriberBuffer,
	}
}
