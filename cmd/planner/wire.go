package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"activityplanner/internal/browser"
	"activityplanner/internal/config"
	"activityplanner/internal/domain"
	"activityplanner/internal/memory"
	"activityplanner/internal/metrics"
	"activityplanner/internal/provider"
	"activityplanner/internal/sandbox"
	"activityplanner/internal/tool"
)

// app holds the capability clients and the observed tool invoker built
// from one immutable config.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	llm     domain.Provider // nil when no provider is configured
	memory  domain.MemoryStore
	invoker tool.Invoker
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	if llm, err := provider.FromConfig(cfg.LLM, logger); err != nil {
		logger.Warn("no LLM provider available; analysis, browser and agent features will fail", "err", err)
	} else {
		a.llm = llm
	}

	if cfg.Capabilities.HasMemory() {
		store, err := openMemory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.memory = store
	}

	bridge := browser.NewBridge(browser.BridgeConfig{
		Endpoints: cfg.Browser.Endpoints,
		Headless:  cfg.Browser.Headless,
		MaxChars:  cfg.Browser.MaxChars,
		Logger:    logger,
	})
	runner := browser.NewAgent(browser.AgentConfig{
		LLM:      a.llm,
		MaxSteps: cfg.Browser.MaxSteps,
		Logger:   logger,
	})
	docker := sandbox.NewDocker(sandbox.DockerConfig{
		Images:    cfg.Sandbox.Images,
		Timeout:   time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		MaxMemory: cfg.Sandbox.MaxMemory,
		MaxCPU:    cfg.Sandbox.MaxCPU,
		Logger:    logger,
	})

	planner := tool.NewPlanner(tool.PlannerConfig{
		Capabilities:   cfg.Capabilities,
		Identity:       cfg.Identity,
		Browser:        bridge,
		TaskRunner:     runner,
		BrowserTimeout: time.Duration(cfg.Browser.TimeoutMs) * time.Millisecond,
		StartURL:       cfg.Browser.StartURL,
		LLM:            a.llm,
		Sandbox:        docker,
		Memory:         a.memory,
		OnReleaseError: func(capability string, err error) {
			logger.Warn("capability release failed", "capability", capability, "err", err)
			a.metrics.ReleaseFailed(capability)
		},
	})
	a.invoker = tool.NewObserved(planner, logger, a.metrics)

	logCapabilities(cfg.Capabilities)
	return a, nil
}

func (a *app) Close() error {
	if a.memory != nil {
		return a.memory.Close()
	}
	return nil
}

// openMemory opens the configured memory backend, namespaced by the memory id.
func openMemory(ctx context.Context, cfg *config.Config) (domain.MemoryStore, error) {
	switch cfg.Memory.Backend {
	case "redis":
		store := memory.NewRedisStore(memory.RedisConfig{
			Addr:     cfg.Memory.Redis.Addr,
			Password: cfg.Memory.Redis.Password,
			DB:       cfg.Memory.Redis.DB,
			Prefix:   cfg.Memory.Redis.Prefix,
			MemoryID: cfg.Capabilities.MemoryID,
			MaxScan:  cfg.Memory.MaxScan,
			Logger:   logger,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis memory: %w", err)
		}
		return store, nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Memory.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create memory dir: %w", err)
			}
		}
		return memory.NewSQLiteStore(memory.SQLiteConfig{
			DBPath:   cfg.Memory.DBPath,
			MemoryID: cfg.Capabilities.MemoryID,
			MaxScan:  cfg.Memory.MaxScan,
			Logger:   logger,
		})
	default:
		return nil, errors.New("unknown memory backend: " + cfg.Memory.Backend)
	}
}

func logCapabilities(c config.Capabilities) {
	logger.Info("enabled capabilities",
		"region", c.Region,
		"browser", c.HasBrowser(),
		"code_interpreter", c.HasCodeInterpreter(),
		"memory", c.HasMemory(),
	)
}
