package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/datamorph/datamorph/pkg/apiserver"
	"github.com/datamorph/datamorph/pkg/artifact"
	"github.com/datamorph/datamorph/pkg/auth"
	"github.com/datamorph/datamorph/pkg/config"
	"github.com/datamorph/datamorph/pkg/eventbus"
	"github.com/datamorph/datamorph/pkg/gateway"
	"github.com/datamorph/datamorph/pkg/orchestrator"
	"github.com/datamorph/datamorph/pkg/phase"
	"github.com/datamorph/datamorph/pkg/retry"
	"github.com/datamorph/datamorph/pkg/store/postgres"
	redisclient "github.com/datamorph/datamorph/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	runs := postgres.NewRunRepository(db.DB())
	logs := postgres.NewLogRepository(db.DB())

	var bus orchestrator.EventPublisher
	if len(cfg.Redis.Addresses) > 0 {
		redis, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		bus = eventbus.NewBus(redis.Client())
	}

	warehouse, err := gateway.NewQueryClient(&cfg.Warehouse)
	if err != nil {
		logger.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer warehouse.Close()

	inference := gateway.NewInferenceClient(&cfg.Inference)

	var backend gateway.ExecutionBackend
	switch cfg.Execution.Backend {
	case "kubernetes":
		k8sClient, err := gateway.NewKubernetesClient(&cfg.Execution)
		if err != nil {
			logger.Fatal("Failed to build kubernetes client", zap.Error(err))
		}
		backend = gateway.NewKubernetesExecutionBackend(k8sClient, &cfg.Execution)
	case "invoke":
		invoker := gateway.NewInvocationClient(cfg.Pipeline.InvokeTimeout)
		backend = gateway.NewInvokeExecutionBackend(invoker, &cfg.Execution)
	default:
		backend = gateway.NewHTTPExecutionBackend(&cfg.Execution)
	}
	execGateway := gateway.NewExecutionGateway(backend, cfg.Execution.PollInterval, cfg.Execution.WaitBudget, logger)

	artifacts, err := artifact.NewStore(context.Background(), &cfg.Artifacts)
	if err != nil {
		logger.Warn("Artifact store unavailable, artifacts disabled", zap.Error(err))
		artifacts = nil
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	var artifactStore phase.ArtifactStore
	if artifacts != nil {
		artifactStore = artifacts
	}

	phases := orchestrator.Phases{
		Specs: &phase.SpecGenerator{
			Inference: inference,
			Retry:     policy,
			Artifacts: artifactStore,
			SpecsPath: cfg.Artifacts.SpecsPath,
			Logger:    logger,
		},
		Code: &phase.CodeGenerator{
			Inference: inference,
			Retry:     policy,
			Artifacts: artifactStore,
			CodePath:  cfg.Artifacts.CodePath,
			Logger:    logger,
		},
		Execute:   &phase.Executor{Gateway: execGateway, Retry: policy, Logger: logger},
		Tests:     &phase.TestGenerator{Inference: inference, Retry: policy},
		Queries:   &phase.QueryGenerator{Inference: inference, Retry: policy},
		QueryRun:  &phase.QueryRunner{Query: warehouse, Retry: policy, Logger: logger},
		Aggregate: &phase.Aggregator{},
		Remediate: &phase.Remediator{Inference: inference, Retry: policy},
	}

	orch := orchestrator.New(logs, runs, bus, phases, cfg.Pipeline.MaxRemediationIterations, logger)
	manager := orchestrator.NewManager(orch, runs, logger)

	var tokens *auth.RunTokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewRunTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	}

	server := apiserver.NewServer(manager, logs, tokens, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	go func() {
		logger.Info("Starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	manager.Shutdown()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
