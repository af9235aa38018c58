// Package studio assembles the client components around one gateway.
package studio

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/agents"
	"github.com/bizmatters/agent-builder/studio-client/internal/chat"
	"github.com/bizmatters/agent-builder/studio-client/internal/config"
	"github.com/bizmatters/agent-builder/studio-client/internal/deliverables"
	"github.com/bizmatters/agent-builder/studio-client/internal/gateway"
	"github.com/bizmatters/agent-builder/studio-client/internal/knowledge"
	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
	"github.com/bizmatters/agent-builder/studio-client/internal/projects"
)

// Studio owns every stateful component. Components share the gateway, the
// agent directory and the metrics instruments.
type Studio struct {
	Gateway      *gateway.Client
	Agents       *agents.Directory
	Projects     *projects.Store
	Deliverables *deliverables.Session
	Chats        *chat.Registry
	Knowledge    *knowledge.Engine

	logger *zap.Logger
}

// New wires the components from cfg
func New(cfg *config.Config, logger *zap.Logger) (*Studio, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m, err := metrics.NewSyncMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	client := gateway.NewClient(cfg.API, logger.Named("gateway"))
	directory := agents.NewDirectory(client, cfg.Cache.AgentTTL, logger)
	store := projects.NewStore(client, logger, m)

	return &Studio{
		Gateway:      client,
		Agents:       directory,
		Projects:     store,
		Deliverables: deliverables.NewSession(client, store, logger, m),
		Chats:        chat.NewRegistry(directory, client, logger, m),
		Knowledge:    knowledge.NewEngine(client, directory, logger, m),
		logger:       logger,
	}, nil
}

// OpenProject loads a project, makes it current and points the deliverable
// session at it
func (s *Studio) OpenProject(ctx context.Context, id int64) error {
	if _, err := s.Projects.LoadOne(ctx, id); err != nil {
		return err
	}
	s.Deliverables.Open(id)
	return nil
}

// Healthy reports whether the backend answers its health endpoint
func (s *Studio) Healthy(ctx context.Context) bool {
	healthy := s.Gateway.IsHealthy(ctx)
	if !healthy {
		s.logger.Warn("backend unhealthy", zap.String("base_url", s.Gateway.BaseURL()))
	}
	return healthy
}
