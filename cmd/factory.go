package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
	"github.com/Taichi-iskw/yt-skip/internal/service/engine"
	"github.com/Taichi-iskw/yt-skip/internal/service/llm"
)

// openStore creates the key/value store selected by storage.driver
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return repository.NewMemoryStore(), nil

	case config.StoragePostgres:
		dbPool, err := config.NewDatabasePool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repository.NewPostgresStore(dbPool), nil

	default:
		path, err := cfg.StorePath()
		if err != nil {
			return nil, err
		}
		store, err := repository.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store %s: %w", path, err)
		}
		return store, nil
	}
}

// builtEngine is the engine selected by engine.kind. automation is set only
// for the automation engine, which needs HTTP routes of its own.
type builtEngine struct {
	engine     engine.Engine
	automation *engine.AutomationEngine
}

// buildEngine creates the analysis engine selected by engine.kind
func buildEngine(cfg *config.Config, logger *slog.Logger) (builtEngine, error) {
	cmdRunner := common.NewCmdRunner()

	switch cfg.Engine.Kind {
	case config.EngineAutomation:
		automation := engine.NewAutomationEngine(cmdRunner, engine.AutomationConfig{
			OpenerCommand: cfg.Engine.Opener.Command,
			OpenerArgs:    cfg.Engine.Opener.Args,
			OpenCooldown:  cfg.Engine.ReadyTimeout.Std(),
			Logger:        logger,
		})
		return builtEngine{engine: automation, automation: automation}, nil

	case config.EngineOpenAI:
		analyzer, err := newOpenAIAnalyzer(cfg, logger)
		if err != nil {
			return builtEngine{}, err
		}
		return builtEngine{engine: engine.NewChatEngine(analyzer, cfg.OpenAI.Model, cfg.Engine.ResponseTimeout.Std(), logger)}, nil

	default:
		return builtEngine{engine: engine.NewBridgeEngine(cmdRunner, engine.BridgeConfig{
			Command: cfg.Engine.Bridge.Command,
			Args:    cfg.Engine.Bridge.Args,
			Model:   cfg.Engine.Model,
			Timeout: cfg.Engine.ResponseTimeout.Std(),
			Logger:  logger,
		})}, nil
	}
}

func newOpenAIAnalyzer(cfg *config.Config, logger *slog.Logger) (*llm.Analyzer, error) {
	analyzer, err := llm.NewAnalyzer(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI analyzer: %w", err)
	}
	return analyzer, nil
}
