// Package agents caches the agent directory and per-agent knowledge.
package agents

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/flight"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

const listKey = "agents"

// Backend is the subset of the gateway the directory needs
type Backend interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	AgentKnowledge(ctx context.Context, name string) ([]models.KnowledgeItem, error)
}

// Directory answers agent lookups from a TTL cache, fetching from the
// backend on a miss. Concurrent misses for the same key share one request.
type Directory struct {
	backend Backend
	cache   *cache.Cache
	flight  flight.Group
	logger  *zap.Logger
	// epoch moves on every Invalidate; fetches that straddle one are not cached
	epoch atomic.Uint64
}

// NewDirectory creates a directory whose entries live for ttl
func NewDirectory(backend Backend, ttl time.Duration, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{
		backend: backend,
		cache:   cache.New(ttl, 2*ttl),
		logger:  logger.With(zap.String("component", "agents")),
	}
}

// List returns every agent in server order
func (d *Directory) List(ctx context.Context) ([]models.Agent, error) {
	if x, found := d.cache.Get(listKey); found {
		return append([]models.Agent(nil), x.([]models.Agent)...), nil
	}

	v, err, _ := d.flight.Do(ctx, listKey, func(ctx context.Context) (interface{}, error) {
		epoch := d.epoch.Load()
		list, err := d.backend.ListAgents(ctx)
		if err != nil {
			return nil, err
		}
		d.store(epoch, listKey, list)
		return list, nil
	})
	if err != nil {
		d.logger.Warn("failed to list agents", zap.Error(err))
		return nil, err
	}
	return append([]models.Agent(nil), v.([]models.Agent)...), nil
}

// Lookup finds one agent by name. An unknown name yields an error matching
// models.ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, name string) (models.Agent, error) {
	list, err := d.List(ctx)
	if err != nil {
		return models.Agent{}, err
	}
	for _, a := range list {
		if a.Name == name {
			return a, nil
		}
	}
	return models.Agent{}, fmt.Errorf("agent %q: %w", name, models.ErrNotFound)
}

// Knowledge returns the knowledge slice of one agent
func (d *Directory) Knowledge(ctx context.Context, name string) ([]models.KnowledgeItem, error) {
	key := "knowledge:" + name
	if x, found := d.cache.Get(key); found {
		return append([]models.KnowledgeItem(nil), x.([]models.KnowledgeItem)...), nil
	}

	v, err, _ := d.flight.Do(ctx, key, func(ctx context.Context) (interface{}, error) {
		epoch := d.epoch.Load()
		items, err := d.backend.AgentKnowledge(ctx, name)
		if err != nil {
			return nil, err
		}
		d.store(epoch, key, items)
		return items, nil
	})
	if err != nil {
		d.logger.Warn("failed to load agent knowledge", zap.String("agent", name), zap.Error(err))
		return nil, err
	}
	return append([]models.KnowledgeItem(nil), v.([]models.KnowledgeItem)...), nil
}

func (d *Directory) store(epoch uint64, key string, v interface{}) {
	if d.epoch.Load() != epoch {
		return
	}
	d.cache.Set(key, v, cache.DefaultExpiration)
}

// Invalidate drops the cached knowledge of the named agents, or everything
// when no name is given. A fetch already running is not reused afterwards.
func (d *Directory) Invalidate(names ...string) {
	d.epoch.Add(1)
	if len(names) == 0 {
		d.flight.Forget(listKey)
		d.cache.Flush()
		return
	}
	for _, name := range names {
		key := "knowledge:" + name
		d.flight.Forget(key)
		d.cache.Delete(key)
	}
}
