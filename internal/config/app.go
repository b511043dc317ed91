package config

import (
	"context"
	"fmt"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/api"
	"unlabel/backend/internal/pipeline"
)

// ServerConfig builds the providers and optional archive and returns the API
// server configuration for c.
func (c Config) ServerConfig(ctx context.Context) (api.Config, error) {
	gateway, err := c.AI.NewGateway(ctx)
	if err != nil {
		return api.Config{}, fmt.Errorf("build capability gateway: %w", err)
	}

	cfg := api.Config{
		DBPath:         c.Server.DBPath,
		SilentDB:       c.Server.SilentDB,
		AllowedOrigins: c.Server.AllowedOrigins,
		Capability:     gateway,
		Pipeline:       pipeline.Options{MaxTranslations: c.Pipeline.MaxTranslations},
		Agent: agent.Config{
			MaxSteps:    c.Agent.MaxSteps,
			EnforcePlan: c.Agent.EnforcePlan,
		},
		Food: c.Food.ClientConfig(),
	}

	store, err := c.Archive.NewArchive(ctx)
	if err != nil {
		return api.Config{}, fmt.Errorf("build image archive: %w", err)
	}
	// A nil *S3Archive must not become a non-nil interface value.
	if store != nil {
		cfg.Archive = store
	}
	return cfg, nil
}
