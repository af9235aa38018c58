// Package deliverables manages the deliverable viewer of the open project:
// selection, content loading, feedback and the workflow trigger.
package deliverables

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/flight"
	"github.com/bizmatters/agent-builder/studio-client/internal/gateway"
	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
	"github.com/bizmatters/agent-builder/studio-client/internal/observe"
)

const component = "deliverables"

// Backend is the subset of the gateway the session needs
type Backend interface {
	GetDeliverable(ctx context.Context, projectID int64, name string) (*models.DeliverableContent, error)
	SubmitFeedback(ctx context.Context, projectID int64, deliverable, feedback string) error
	StartWorkflow(ctx context.Context, projectID int64) error
}

// ProjectLoader is the project store as seen from the session
type ProjectLoader interface {
	Reload(ctx context.Context, id int64) (*models.Project, error)
	Current() *models.Project
}

// State of the viewer
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Errored
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	ProjectID int64
	Selected  string
	State     State
	Content   string
	Err       string
	// Producer is the id of the agent that produced the selected deliverable
	Producer string

	StartingWorkflow bool
	WorkflowErr      string

	SubmittingFeedback bool
	FeedbackSent       bool
	FeedbackErr        string
	FeedbackInvalid    string
}

// Loading reports whether content is being fetched
func (s Snapshot) Loading() bool {
	return s.State == Loading
}

// Session is the viewer of one open project at a time
type Session struct {
	backend  Backend
	projects ProjectLoader
	logger   *zap.Logger
	metrics  *metrics.SyncMetrics
	flight   flight.Group
	notifier observe.Notifier

	mu        sync.Mutex
	projectID int64
	selected  string
	state     State
	content   string
	err       string
	gen       uint64

	starting    map[int64]bool
	workflowErr string

	submitting      bool
	feedbackSent    bool
	feedbackErr     string
	feedbackInvalid string
}

// NewSession creates a session with no project open
func NewSession(backend Backend, projects ProjectLoader, logger *zap.Logger, m *metrics.SyncMetrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		backend:  backend,
		projects: projects,
		logger:   logger.With(zap.String("component", component)),
		metrics:  m,
		starting: make(map[int64]bool),
	}
}

// Subscribe registers fn to run after every state change
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	return s.notifier.Subscribe(fn)
}

// Open points the session at a project. Switching to a different project
// clears the selection and any loaded content.
func (s *Session) Open(projectID int64) {
	s.mu.Lock()
	if s.projectID == projectID {
		s.mu.Unlock()
		return
	}
	s.projectID = projectID
	s.resetViewer()
	s.workflowErr = ""
	s.feedbackSent = false
	s.feedbackErr = ""
	s.feedbackInvalid = ""
	s.mu.Unlock()
	s.notifier.Notify()
}

// resetViewer must be called with mu held. Bumping gen makes any pending
// fetch stale.
func (s *Session) resetViewer() {
	s.gen++
	s.selected = ""
	s.content = ""
	s.err = ""
	s.state = Idle
}

// Toggle selects a deliverable and loads its content, or deselects it when it
// is already selected. Content of the previous selection is dropped before
// the fetch starts. If ctx ends first the selection is dropped without an
// error and ctx.Err() is returned.
func (s *Session) Toggle(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.selected != "" && s.selected == name {
		s.resetViewer()
		s.mu.Unlock()
		s.notifier.Notify()
		return nil
	}

	s.gen++
	gen := s.gen
	projectID := s.projectID
	s.selected = name
	s.content = ""
	s.err = ""
	s.state = Loading
	s.mu.Unlock()
	s.notifier.Notify()

	start := time.Now()
	s.metrics.RecordLoadStarted(ctx, component, "toggle")

	key := fmt.Sprintf("%d/%s", projectID, name)
	v, err, _ := s.flight.Do(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.backend.GetDeliverable(ctx, projectID, name)
	})

	s.mu.Lock()
	if flight.Abandoned(ctx, err) {
		current := gen == s.gen
		if current {
			s.resetViewer()
		}
		s.mu.Unlock()
		if current {
			s.notifier.Notify()
		}
		s.logger.Debug("deliverable load abandoned",
			zap.Int64("project_id", projectID),
			zap.String("deliverable", name),
			zap.Error(err),
		)
		s.metrics.RecordLoadDiscarded(ctx, component, "toggle")
		return err
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale deliverable",
			zap.Int64("project_id", projectID),
			zap.String("deliverable", name),
		)
		s.metrics.RecordLoadDiscarded(ctx, component, "toggle")
		return nil
	}

	if err != nil {
		s.state = Errored
		s.err = gateway.Message(err)
		s.mu.Unlock()
		s.notifier.Notify()

		s.logger.Warn("failed to load deliverable",
			zap.Int64("project_id", projectID),
			zap.String("deliverable", name),
			zap.Error(err),
		)
		s.metrics.RecordLoadFailed(ctx, component, "toggle", metrics.ErrorType(err), time.Since(start))
		return err
	}

	if content, _ := v.(*models.DeliverableContent); content != nil {
		s.content = content.Content
	}
	s.state = Loaded
	s.mu.Unlock()
	s.notifier.Notify()

	s.metrics.RecordLoadCompleted(ctx, component, "toggle", time.Since(start))
	return nil
}

// SubmitFeedback sends feedback on a deliverable of the open project. Blank
// text is rejected locally with a *models.ValidationError and no request.
func (s *Session) SubmitFeedback(ctx context.Context, deliverable, text string) error {
	if strings.TrimSpace(text) == "" {
		verr := models.NewValidationError("feedback", "feedback text is required")
		s.mu.Lock()
		s.feedbackInvalid = verr.Message
		s.feedbackSent = false
		s.mu.Unlock()
		s.notifier.Notify()
		return verr
	}

	s.mu.Lock()
	projectID := s.projectID
	s.submitting = true
	s.feedbackSent = false
	s.feedbackErr = ""
	s.feedbackInvalid = ""
	s.mu.Unlock()
	s.notifier.Notify()

	err := s.backend.SubmitFeedback(ctx, projectID, deliverable, text)

	s.mu.Lock()
	s.submitting = false
	if s.projectID == projectID {
		if err != nil {
			s.feedbackErr = gateway.Message(err)
		} else {
			s.feedbackSent = true
		}
	}
	s.mu.Unlock()
	s.notifier.Notify()

	if err != nil {
		s.logger.Warn("failed to submit feedback",
			zap.Int64("project_id", projectID),
			zap.String("deliverable", deliverable),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("feedback submitted", zap.Int64("project_id", projectID), zap.String("deliverable", deliverable))
	return nil
}

// StartWorkflow triggers the server-side workflow and then reloads the
// project so the new status and deliverables become visible. Status is never
// changed locally. A second start for a project whose start is still in
// flight is a no-op; starts for different projects are independent.
func (s *Session) StartWorkflow(ctx context.Context, projectID int64) error {
	s.mu.Lock()
	if s.starting[projectID] {
		s.mu.Unlock()
		s.logger.Debug("workflow start already in flight", zap.Int64("project_id", projectID))
		return nil
	}
	s.starting[projectID] = true
	if s.projectID == projectID {
		s.workflowErr = ""
	}
	s.mu.Unlock()
	s.notifier.Notify()

	err := s.backend.StartWorkflow(ctx, projectID)
	if err == nil {
		s.logger.Info("workflow started", zap.Int64("project_id", projectID))
		// the store records its own load failures
		_, _ = s.projects.Reload(ctx, projectID)
	}

	s.mu.Lock()
	delete(s.starting, projectID)
	if err != nil && s.projectID == projectID {
		s.workflowErr = gateway.Message(err)
	}
	s.mu.Unlock()
	s.notifier.Notify()

	if err != nil {
		s.logger.Warn("failed to start workflow", zap.Int64("project_id", projectID), zap.Error(err))
	}
	return err
}

// Snapshot returns the whole state at once
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ProjectID:          s.projectID,
		Selected:           s.selected,
		State:              s.state,
		Content:            s.content,
		Err:                s.err,
		StartingWorkflow:   s.starting[s.projectID],
		WorkflowErr:        s.workflowErr,
		SubmittingFeedback: s.submitting,
		FeedbackSent:       s.feedbackSent,
		FeedbackErr:        s.feedbackErr,
		FeedbackInvalid:    s.feedbackInvalid,
	}
	s.mu.Unlock()

	if snap.Selected != "" && s.projects != nil {
		if current := s.projects.Current(); current != nil && current.ID == snap.ProjectID {
			if d, ok := current.FindDeliverable(snap.Selected); ok {
				snap.Producer = d.Type
			}
		}
	}
	return snap
}
