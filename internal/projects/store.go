// Package projects holds the in-memory cache of the project list and the
// currently open project.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/flight"
	"github.com/bizmatters/agent-builder/studio-client/internal/gateway"
	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
	"github.com/bizmatters/agent-builder/studio-client/internal/observe"
)

const (
	component = "projects"
	listKey   = "list"
)

// Backend is the subset of the gateway the store needs
type Backend interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	CreateProject(ctx context.Context, form models.ProjectForm) (*models.Project, error)
	ArchiveProject(ctx context.Context, id int64) error
	WorkflowStatus(ctx context.Context, id int64) (models.WorkflowStatus, error)
}

// Snapshot is a point-in-time copy of the store state. The project pointers
// are shared with the store and must be treated as read-only.
type Snapshot struct {
	Projects []*models.Project
	Current  *models.Project
	Loading  bool
	Err      string
}

// Store is the single source of truth for which projects exist and which one
// is open. All mutations go through its methods.
type Store struct {
	backend  Backend
	logger   *zap.Logger
	metrics  *metrics.SyncMetrics
	flight   flight.Group
	notifier observe.Notifier

	mu         sync.Mutex
	order      []int64
	byID       map[int64]*models.Project
	current    *models.Project
	currentGen uint64
	loading    int
	err        string
}

// NewStore creates an empty store
func NewStore(backend Backend, logger *zap.Logger, m *metrics.SyncMetrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger.With(zap.String("component", component)),
		metrics: m,
		byID:    make(map[int64]*models.Project),
	}
}

// Subscribe registers fn to run after every state change
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.notifier.Subscribe(fn)
}

// LoadAll replaces the project list with the server's. On failure the list
// is emptied and the error recorded. When calls overlap, the data of the
// last one to complete is what remains. A caller whose ctx ends while
// waiting gets ctx.Err() and leaves the state untouched.
func (s *Store) LoadAll(ctx context.Context) error {
	s.beginLoad()
	defer s.endLoad()

	start := time.Now()
	s.metrics.RecordLoadStarted(ctx, component, "load_all")

	v, err, shared := s.flight.Do(ctx, listKey, func(ctx context.Context) (interface{}, error) {
		return s.backend.ListProjects(ctx)
	})
	if flight.Abandoned(ctx, err) {
		s.logger.Debug("project list load abandoned", zap.Error(err))
		s.metrics.RecordLoadDiscarded(ctx, component, "load_all")
		return err
	}
	if err != nil {
		s.mu.Lock()
		s.order = nil
		s.byID = make(map[int64]*models.Project)
		s.err = gateway.Message(err)
		s.mu.Unlock()

		s.logger.Warn("failed to load projects", zap.Error(err))
		s.metrics.RecordLoadFailed(ctx, component, "load_all", metrics.ErrorType(err), time.Since(start))
		return err
	}

	s.mu.Lock()
	s.replaceAll(v.([]models.Project))
	s.err = ""
	count := len(s.order)
	s.mu.Unlock()

	s.logger.Debug("projects loaded", zap.Int("count", count), zap.Bool("shared", shared))
	s.metrics.RecordLoadCompleted(ctx, component, "load_all", time.Since(start))
	return nil
}

// replaceAll must be called with mu held. Duplicate ids keep the position of
// their first occurrence.
func (s *Store) replaceAll(list []models.Project) {
	order := make([]int64, 0, len(list))
	byID := make(map[int64]*models.Project, len(list))
	for i := range list {
		p := list[i]
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = &p
	}
	s.order = order
	s.byID = byID

	if s.current != nil {
		if fresh, ok := byID[s.current.ID]; ok {
			s.current = fresh
		}
	}
}

// LoadOne fetches a project and makes it current. On failure the error is
// recorded, current is cleared and the list is left alone. A call superseded
// by a later LoadOne or Create returns its result without applying it.
func (s *Store) LoadOne(ctx context.Context, id int64) (*models.Project, error) {
	return s.loadOne(ctx, id)
}

// Reload is LoadOne for a project the caller just changed remotely. It never
// reuses a fetch that started before the change.
func (s *Store) Reload(ctx context.Context, id int64) (*models.Project, error) {
	s.flight.Forget(projectKey(id))
	return s.loadOne(ctx, id)
}

func projectKey(id int64) string {
	return "project:" + strconv.FormatInt(id, 10)
}

func (s *Store) loadOne(ctx context.Context, id int64) (*models.Project, error) {
	s.mu.Lock()
	s.currentGen++
	gen := s.currentGen
	s.loading++
	s.mu.Unlock()
	s.notifier.Notify()
	defer s.endLoad()

	start := time.Now()
	s.metrics.RecordLoadStarted(ctx, component, "load_one")

	v, err, _ := s.flight.Do(ctx, projectKey(id), func(ctx context.Context) (interface{}, error) {
		return s.backend.GetProject(ctx, id)
	})
	if flight.Abandoned(ctx, err) {
		s.logger.Debug("project load abandoned", zap.Int64("project_id", id), zap.Error(err))
		s.metrics.RecordLoadDiscarded(ctx, component, "load_one")
		return nil, err
	}
	fetched, _ := v.(*models.Project)
	if err == nil && fetched == nil {
		err = fmt.Errorf("project %d: %w", id, models.ErrNotFound)
	}

	s.mu.Lock()
	if gen != s.currentGen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale project load", zap.Int64("project_id", id))
		s.metrics.RecordLoadDiscarded(ctx, component, "load_one")
		if err != nil {
			return nil, err
		}
		return clone(fetched), nil
	}

	if err != nil {
		s.err = gateway.Message(err)
		s.current = nil
		s.mu.Unlock()

		s.logger.Warn("failed to load project", zap.Int64("project_id", id), zap.Error(err))
		s.metrics.RecordLoadFailed(ctx, component, "load_one", metrics.ErrorType(err), time.Since(start))
		return nil, err
	}

	// joiners of the same flight get their own record
	p := clone(fetched)
	if _, ok := s.byID[p.ID]; ok {
		s.byID[p.ID] = p
	}
	s.current = p
	s.err = ""
	s.mu.Unlock()

	s.metrics.RecordLoadCompleted(ctx, component, "load_one", time.Since(start))
	return p, nil
}

// Add upserts a project: an existing entry with the same id is replaced in
// place, otherwise the project is appended.
func (s *Store) Add(p *models.Project) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.upsert(p)
	s.mu.Unlock()
	s.notifier.Notify()
}

// Update replaces the entry with the same id, and current if it is that
// project. Unknown projects are ignored.
func (s *Store) Update(p *models.Project) {
	if p == nil {
		return
	}
	s.mu.Lock()
	changed := false
	if _, ok := s.byID[p.ID]; ok {
		s.byID[p.ID] = p
		changed = true
	}
	if s.current != nil && s.current.ID == p.ID {
		s.current = p
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.notifier.Notify()
	}
}

// upsert must be called with mu held
func (s *Store) upsert(p *models.Project) {
	if _, ok := s.byID[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.byID[p.ID] = p
	if s.current != nil && s.current.ID == p.ID {
		s.current = p
	}
}

// Create validates the form, creates the project remotely, adds it to the
// list and opens it. Failures are returned to the caller only; the store's
// error slot belongs to the loads.
func (s *Store) Create(ctx context.Context, form models.ProjectForm) (*models.Project, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	p, err := s.backend.CreateProject(ctx, form)
	if err == nil && p == nil {
		err = errors.New("server returned no project")
	}
	if err != nil {
		s.logger.Warn("failed to create project", zap.String("name", form.Name), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.upsert(p)
	s.currentGen++
	s.current = p
	s.mu.Unlock()
	s.notifier.Notify()

	s.logger.Info("project created", zap.Int64("project_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Archive archives a project remotely and reloads the list
func (s *Store) Archive(ctx context.Context, id int64) error {
	if err := s.backend.ArchiveProject(ctx, id); err != nil {
		s.logger.Warn("failed to archive project", zap.Int64("project_id", id), zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.currentGen++
		s.current = nil
	}
	s.mu.Unlock()

	s.logger.Info("project archived", zap.Int64("project_id", id))
	// a list fetch issued before the archive would still contain the project
	s.flight.Forget(listKey)
	return s.LoadAll(ctx)
}

// WorkflowStatus fetches the server-side workflow state of a project
func (s *Store) WorkflowStatus(ctx context.Context, id int64) (models.WorkflowStatus, error) {
	status, err := s.backend.WorkflowStatus(ctx, id)
	if err != nil {
		s.logger.Warn("failed to fetch workflow status", zap.Int64("project_id", id), zap.Error(err))
		return nil, err
	}
	return status, nil
}

// Get returns the listed project with the given id
func (s *Store) Get(id int64) (*models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	return p, ok
}

// Projects returns the list in server order
func (s *Store) Projects() []*models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectsLocked()
}

func (s *Store) projectsLocked() []*models.Project {
	list := make([]*models.Project, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.byID[id])
	}
	return list
}

// Current returns the open project, or nil
func (s *Store) Current() *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Loading reports whether any load is in flight
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the message of the last failed load, or ""
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the whole state at once
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Projects: s.projectsLocked(),
		Current:  s.current,
		Loading:  s.loading > 0,
		Err:      s.err,
	}
}

func (s *Store) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.notifier.Notify()
}

func (s *Store) endLoad() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	s.notifier.Notify()
}

func clone(p *models.Project) *models.Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Deliverables != nil {
		cp.Deliverables = append([]models.Deliverable(nil), p.Deliverables...)
	}
	return &cp
}
