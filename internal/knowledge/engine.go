// Package knowledge implements the knowledge base browser: category browsing
// and free-text search over one shared result list.
package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizmatters/agent-builder/studio-client/internal/flight"
	"github.com/bizmatters/agent-builder/studio-client/internal/gateway"
	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
	"github.com/bizmatters/agent-builder/studio-client/internal/observe"
)

const component = "knowledge"

// Backend is the subset of the gateway the engine needs
type Backend interface {
	KnowledgeCategories(ctx context.Context) ([]string, error)
	KnowledgeByCategory(ctx context.Context, category string) ([]models.KnowledgeItem, error)
	SearchKnowledge(ctx context.Context, term string) ([]models.KnowledgeItem, error)
}

// AgentSource lists agents for attributing knowledge items
type AgentSource interface {
	List(ctx context.Context) ([]models.Agent, error)
}

// Mode selects what the active selector means
type Mode int

const (
	ModeCategory Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "category"
}

// Snapshot is a point-in-time copy of the engine state
type Snapshot struct {
	Categories []string
	Mode       Mode
	Selector   string
	// ActiveCategory is empty while searching
	ActiveCategory string
	Results        []models.KnowledgeItem
	Loading        bool
	Err            string
	Bootstrapped   bool
}

// Engine holds the knowledge query state. Results always belong to the
// current mode and selector; completions for an older selector are dropped.
type Engine struct {
	backend  Backend
	agents   AgentSource
	logger   *zap.Logger
	metrics  *metrics.SyncMetrics
	flight   flight.Group
	notifier observe.Notifier

	mu            sync.Mutex
	bootstrapped  bool
	bootstrapping bool
	categories    []string
	agentList     []models.Agent
	mode          Mode
	selector      string
	results       []models.KnowledgeItem
	loading       bool
	err           string
	gen           uint64
}

// NewEngine creates an engine; call Bootstrap before use
func NewEngine(backend Backend, agents AgentSource, logger *zap.Logger, m *metrics.SyncMetrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		backend: backend,
		agents:  agents,
		logger:  logger.With(zap.String("component", component)),
		metrics: m,
	}
}

// Subscribe registers fn to run after every state change
func (e *Engine) Subscribe(fn func()) (unsubscribe func()) {
	return e.notifier.Subscribe(fn)
}

// Bootstrap loads the category list and the agent directory together, then
// selects the first category. It runs once; after a failure it may be
// called again. A failing agent directory only costs attribution.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	if e.bootstrapped || e.bootstrapping {
		e.mu.Unlock()
		return nil
	}
	e.bootstrapping = true
	e.err = ""
	e.mu.Unlock()
	e.notifier.Notify()

	start := time.Now()
	e.metrics.RecordLoadStarted(ctx, component, "bootstrap")

	var categories []string
	var agents []models.Agent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := e.backend.KnowledgeCategories(gctx)
		if err != nil {
			return err
		}
		categories = list
		return nil
	})
	if e.agents != nil {
		g.Go(func() error {
			list, err := e.agents.List(gctx)
			if err != nil {
				e.logger.Warn("failed to load agents for attribution", zap.Error(err))
				return nil
			}
			agents = list
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	e.bootstrapping = false
	if err != nil {
		if e.selector == "" {
			e.err = gateway.Message(err)
		}
		e.mu.Unlock()
		e.notifier.Notify()

		e.logger.Warn("failed to load knowledge categories", zap.Error(err))
		e.metrics.RecordLoadFailed(ctx, component, "bootstrap", metrics.ErrorType(err), time.Since(start))
		return err
	}
	e.bootstrapped = true
	e.categories = append([]string(nil), categories...)
	e.agentList = agents
	// the user may already have picked something while we were loading
	pickDefault := len(e.categories) > 0 && e.selector == ""
	first := ""
	if pickDefault {
		first = e.categories[0]
	}
	e.mu.Unlock()
	e.notifier.Notify()
	e.metrics.RecordLoadCompleted(ctx, component, "bootstrap", time.Since(start))

	if pickDefault {
		return e.SelectCategory(ctx, first)
	}
	return nil
}

// SelectCategory switches to category mode and loads the category's items
func (e *Engine) SelectCategory(ctx context.Context, category string) error {
	gen := e.begin(ModeCategory, category)
	return e.fetch(ctx, gen, ModeCategory, category)
}

// Search switches to search mode and loads global results for term. A blank
// term changes nothing and returns a *models.ValidationError.
func (e *Engine) Search(ctx context.Context, term string) error {
	if strings.TrimSpace(term) == "" {
		return models.NewValidationError("term", "search term is required")
	}
	gen := e.begin(ModeSearch, term)
	return e.fetch(ctx, gen, ModeSearch, term)
}

// Reset leaves search mode and returns to the first category
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if len(e.categories) > 0 {
		first := e.categories[0]
		e.mu.Unlock()
		return e.SelectCategory(ctx, first)
	}
	e.gen++
	e.mode = ModeCategory
	e.selector = ""
	e.results = nil
	e.loading = false
	e.err = ""
	e.mu.Unlock()
	e.notifier.Notify()
	return nil
}

// begin applies a selector change and returns the generation owning it.
// Results are cleared so nothing from the previous selector stays visible.
func (e *Engine) begin(mode Mode, selector string) uint64 {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.mode = mode
	e.selector = selector
	e.results = nil
	e.loading = true
	e.err = ""
	e.mu.Unlock()
	e.notifier.Notify()
	return gen
}

func (e *Engine) fetch(ctx context.Context, gen uint64, mode Mode, selector string) error {
	op := mode.String()
	start := time.Now()
	e.metrics.RecordLoadStarted(ctx, component, op)

	v, err, _ := e.flight.Do(ctx, op+":"+selector, func(ctx context.Context) (interface{}, error) {
		if mode == ModeSearch {
			return e.backend.SearchKnowledge(ctx, selector)
		}
		return e.backend.KnowledgeByCategory(ctx, selector)
	})

	e.mu.Lock()
	if flight.Abandoned(ctx, err) {
		// the selector stays; only the spinner stops
		current := gen == e.gen
		if current {
			e.loading = false
		}
		e.mu.Unlock()
		if current {
			e.notifier.Notify()
		}
		e.logger.Debug("knowledge load abandoned",
			zap.String("mode", op),
			zap.String("selector", selector),
			zap.Error(err),
		)
		e.metrics.RecordLoadDiscarded(ctx, component, op)
		return err
	}
	if gen != e.gen {
		e.mu.Unlock()
		e.logger.Debug("discarding stale knowledge results",
			zap.String("mode", op),
			zap.String("selector", selector),
		)
		e.metrics.RecordLoadDiscarded(ctx, component, op)
		return nil
	}

	e.loading = false
	if err != nil {
		e.results = nil
		e.err = gateway.Message(err)
		e.mu.Unlock()
		e.notifier.Notify()

		e.logger.Warn("failed to load knowledge",
			zap.String("mode", op),
			zap.String("selector", selector),
			zap.Error(err),
		)
		e.metrics.RecordLoadFailed(ctx, component, op, metrics.ErrorType(err), time.Since(start))
		return err
	}

	items, _ := v.([]models.KnowledgeItem)
	e.results = append([]models.KnowledgeItem{}, items...)
	e.mu.Unlock()
	e.notifier.Notify()

	e.metrics.RecordLoadCompleted(ctx, component, op, time.Since(start))
	return nil
}

// AgentFor resolves the author of a knowledge item, falling back to an agent
// titled with its own name
func (e *Engine) AgentFor(name string) models.Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.agentList {
		if a.Name == name {
			return a
		}
	}
	return models.Agent{Name: name, Title: name}
}

// ActiveCategory returns the highlighted category, or "" while searching
func (e *Engine) ActiveCategory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeCategoryLocked()
}

func (e *Engine) activeCategoryLocked() string {
	if e.mode == ModeSearch {
		return ""
	}
	return e.selector
}

// Snapshot returns the whole state at once
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Categories:     append([]string(nil), e.categories...),
		Mode:           e.mode,
		Selector:       e.selector,
		ActiveCategory: e.activeCategoryLocked(),
		Results:        append([]models.KnowledgeItem(nil), e.results...),
		Loading:        e.loading || e.bootstrapping,
		Err:            e.err,
		Bootstrapped:   e.bootstrapped,
	}
}
