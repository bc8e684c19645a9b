package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liamcoop/ruleweave/assistant"
	"github.com/liamcoop/ruleweave/internal/config"
	"github.com/liamcoop/ruleweave/internal/logger"
	"github.com/liamcoop/ruleweave/migrations"
	"github.com/liamcoop/ruleweave/rules"
	_ "github.com/lib/pq"
)

// backend bundles the configured Storage with its health check and cleanup
type backend struct {
	Storage rules.Storage
	Ping    func(context.Context) error
	Close   func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	noop := func() {}

	switch cfg.StorageBackend {
	case config.BackendMemory:
		return &backend{Storage: rules.NewMemoryStorage(), Close: noop}, nil

	case config.BackendFile:
		return &backend{Storage: rules.NewFileStorage(cfg.RulesFile), Close: noop}, nil

	case config.BackendPostgres:
		version, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database schema ready", "version", version)

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		return &backend{
			Storage: rules.NewPostgresStorage(db, cfg.StorageKey),
			Ping:    db.PingContext,
			Close:   func() { db.Close() },
		}, nil

	case config.BackendRedis:
		client, err := rules.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return &backend{
			Storage: rules.NewRedisStorage(client, cfg.StorageKey),
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Close:   func() { client.Close() },
		}, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func newCompleter(cfg *config.Config) assistant.Completer {
	if cfg.LLMProvider == config.ProviderGemini {
		return assistant.NewGeminiCompleter(cfg.LLMRatePerSecond, cfg.LLMBurst)
	}

	ac := assistant.DefaultAnthropicConfig()
	ac.BaseURL = cfg.AnthropicBaseURL
	ac.Timeout = cfg.LLMTimeout
	ac.MaxRetries = cfg.LLMMaxRetries
	ac.RatePerSecond = cfg.LLMRatePerSecond
	ac.Burst = cfg.LLMBurst
	return assistant.NewAnthropicCompleter(ac)
}

// modelsFor returns the configured models, defaulting per provider
func modelsFor(cfg *config.Config) assistant.Models {
	defaults := assistant.DefaultAnthropicModels
	if cfg.LLMProvider == config.ProviderGemini {
		defaults = assistant.DefaultGeminiModels
	}

	m := assistant.Models{Main: cfg.MainModel, Light: cfg.LightModel}
	if m.Main == "" {
		m.Main = defaults.Main
	}
	if m.Light == "" {
		m.Light = defaults.Light
	}
	return m
}
