package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
)

// Registry keeps one session per agent; histories are never shared
type Registry struct {
	dir       Directory
	messenger Messenger
	logger    *zap.Logger
	metrics   *metrics.SyncMetrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry(dir Directory, messenger Messenger, logger *zap.Logger, m *metrics.SyncMetrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dir:       dir,
		messenger: messenger,
		logger:    logger,
		metrics:   m,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the session for the named agent, creating and initializing it
// on first use. A session that failed to initialize is retried.
func (r *Registry) Open(ctx context.Context, name string) (*Session, error) {
	r.mu.Lock()
	session, ok := r.sessions[name]
	if !ok {
		session = NewSession(name, r.dir, r.messenger, r.logger, r.metrics)
		r.sessions[name] = session
	}
	r.mu.Unlock()

	return session, session.Init(ctx)
}

// Get returns an already opened session
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[name]
	return session, ok
}

// Close discards the session of the named agent
func (r *Registry) Close(name string) {
	r.mu.Lock()
	session, ok := r.sessions[name]
	delete(r.sessions, name)
	r.mu.Unlock()

	if ok {
		session.Close()
	}
}
