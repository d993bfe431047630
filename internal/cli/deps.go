package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ideaforge/fab/internal/agent"
	"github.com/ideaforge/fab/internal/config"
	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/lifecycle"
	"github.com/ideaforge/fab/internal/pipeline"
	"github.com/ideaforge/fab/internal/registry"
	"github.com/ideaforge/fab/internal/sandbox"
)

// deps holds the production dependency graph built for one command
// invocation.
type deps struct {
	cfg          *config.Config
	store        registry.Store
	manager      *lifecycle.Manager
	orchestrator *pipeline.Orchestrator
}

// buildDeps loads configuration and wires the store, lifecycle manager,
// agent runner, sandbox engine, and orchestrator.
func buildDeps(ctx context.Context, logger zerolog.Logger) (*deps, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	storeHome, err := cfg.StoreHome()
	if err != nil {
		return nil, err
	}
	fileStore, err := registry.NewFileStore(storeHome)
	if err != nil {
		return nil, err
	}

	var store registry.Store = fileStore
	if cfg.Registry.CacheSize > 0 {
		cached, err := registry.NewCachingStore(fileStore, cfg.Registry.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create record cache")
		}
		store = cached
	}

	manager := lifecycle.NewManager(store, lifecycle.WithLogger(logger))

	runner := agent.NewRunner(
		cfg.Agent.Command,
		cfg.Agent.Args,
		cfg.Agent.Model,
		agent.WithRunnerLogger(logger),
	)

	engine := sandbox.NewEngine(sandbox.Options{
		AgentCommand:     cfg.Agent.Command,
		AgentArgs:        cfg.Agent.Args,
		NoCommitFlag:     cfg.Agent.NoCommitFlag,
		WorkRoot:         cfg.Sandbox.WorkRoot,
		RequiredEnv:      cfg.Agent.EnvAllowlist,
		IsolationWrapper: cfg.Sandbox.IsolationWrapper,
	}, sandbox.WithEngineLogger(logger))

	orchestrator := pipeline.NewOrchestrator(manager, runner, runner, engine, pipeline.Options{
		Model: cfg.Agent.Model,
		DefaultBudget: domain.ResourceBudget{
			MemoryLimitMB: cfg.Sandbox.MemoryLimitMB,
			CPUSeconds:    cfg.Sandbox.CPUSeconds,
			Timeout:       cfg.Sandbox.Timeout,
		},
		EnvAllowlist: cfg.Agent.EnvAllowlist,
	}, pipeline.WithOrchestratorLogger(logger))

	return &deps{
		cfg:          cfg,
		store:        store,
		manager:      manager,
		orchestrator: orchestrator,
	}, nil
}
