// Package chat implements per-agent conversations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/gateway"
	"github.com/bizmatters/agent-builder/studio-client/internal/metrics"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
	"github.com/bizmatters/agent-builder/studio-client/internal/observe"
)

const (
	component = "chat"

	// WelcomeID is the id of the synthetic greeting that opens every session
	WelcomeID = "welcome"

	// NoReplyMessage replaces an agent reply without content
	NoReplyMessage = "I could not process your request. Please try again."

	defaultDescription = "a specialized AI agent"

	previewItems = 5
	previewRunes = 100
)

// Directory resolves agents and their knowledge. Invalidate drops what it
// holds for the named agents.
type Directory interface {
	Lookup(ctx context.Context, name string) (models.Agent, error)
	Knowledge(ctx context.Context, name string) ([]models.KnowledgeItem, error)
	Invalidate(names ...string)
}

// Messenger delivers one message to an agent
type Messenger interface {
	MessageAgent(ctx context.Context, name, message string) (*models.AgentReply, error)
}

// Status of a session
type Status int

const (
	StatusNew Status = iota
	StatusLoading
	StatusReady
	// StatusNotFound is terminal: the agent does not exist
	StatusNotFound
	// StatusFailed means the agent could not be fetched; Init may be retried
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "new"
	}
}

// Snapshot is a point-in-time copy of a session
type Snapshot struct {
	AgentName string
	Agent     models.Agent
	Status    Status
	Messages  []models.Message
	Input     string
	Sending   bool
	Err       string
	Knowledge []models.KnowledgeItem
}

// CanSend reports whether the message box should be enabled
func (s Snapshot) CanSend() bool {
	return s.Status == StatusReady && !s.Sending
}

// Session is the conversation with one agent. History is append-only and
// at most one send is in flight at a time.
type Session struct {
	name      string
	dir       Directory
	messenger Messenger
	logger    *zap.Logger
	metrics   *metrics.SyncMetrics
	notifier  observe.Notifier
	now       func() time.Time
	newID     func() string

	mu        sync.Mutex
	status    Status
	agent     models.Agent
	messages  []models.Message
	input     string
	sending   bool
	err       string
	knowledge []models.KnowledgeItem
	gen       uint64
	closed    bool
}

// NewSession creates a session for the named agent. Call Init before use.
func NewSession(name string, dir Directory, messenger Messenger, logger *zap.Logger, m *metrics.SyncMetrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		name:      name,
		dir:       dir,
		messenger: messenger,
		logger:    logger.With(zap.String("component", component), zap.String("agent", name)),
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Subscribe registers fn to run after every state change
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	return s.notifier.Subscribe(fn)
}

// Init fetches the agent and seeds the history with a welcome message, then
// loads the agent's knowledge. It does nothing unless the session is new or
// failed.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || (s.status != StatusNew && s.status != StatusFailed) {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.status = StatusLoading
	s.err = ""
	s.mu.Unlock()
	s.notifier.Notify()

	start := time.Now()
	s.metrics.RecordLoadStarted(ctx, component, "init")

	agent, err := s.dir.Lookup(ctx, s.name)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.metrics.RecordLoadDiscarded(ctx, component, "init")
		return nil
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.status = StatusNotFound
		s.err = fmt.Sprintf("Agent %q not found", s.name)
	case err != nil:
		s.status = StatusFailed
		s.err = gateway.Message(err)
	default:
		s.agent = agent
		s.status = StatusReady
		s.messages = []models.Message{{
			ID:        WelcomeID,
			Sender:    models.SenderAgent,
			Content:   welcome(agent),
			Timestamp: s.now(),
		}}
	}
	s.mu.Unlock()
	s.notifier.Notify()

	if err != nil {
		s.logger.Warn("failed to initialize chat session", zap.Error(err))
		s.metrics.RecordLoadFailed(ctx, component, "init", metrics.ErrorType(err), time.Since(start))
		return err
	}
	s.metrics.RecordLoadCompleted(ctx, component, "init", time.Since(start))

	s.loadKnowledge(ctx, gen)
	return nil
}

// loadKnowledge never fails the session; an error leaves the list empty
func (s *Session) loadKnowledge(ctx context.Context, gen uint64) {
	items, err := s.dir.Knowledge(ctx, s.name)
	if err != nil {
		s.logger.Warn("failed to load agent knowledge", zap.Error(err))
		items = nil
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.knowledge = items
	s.mu.Unlock()
	s.notifier.Notify()
}

func welcome(agent models.Agent) string {
	description := agent.Description
	if description == "" {
		description = defaultDescription
	}
	return fmt.Sprintf("Hello, I am %s, %s. How can I help you today?", agent.DisplayTitle(), description)
}

// SetInput replaces the input buffer
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.notifier.Notify()
}

// Input returns the input buffer
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SendInput sends the content of the input buffer
func (s *Session) SendInput(ctx context.Context) (bool, error) {
	return s.Send(ctx, s.Input())
}

// Send appends text as a user message and delivers it to the agent. It is a
// no-op, reporting false, when text is blank, a send is in flight or the
// session is not ready. The user message is kept even when delivery fails;
// the failure is appended as a system message and returned.
func (s *Session) Send(ctx context.Context, text string) (bool, error) {
	s.mu.Lock()
	if s.closed || s.status != StatusReady || s.sending || strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return false, nil
	}
	s.messages = append(s.messages, models.Message{
		ID:        s.newID(),
		Sender:    models.SenderUser,
		Content:   text,
		Timestamp: s.now(),
	})
	s.input = ""
	s.sending = true
	gen := s.gen
	s.mu.Unlock()
	s.notifier.Notify()

	start := time.Now()
	s.metrics.RecordLoadStarted(ctx, component, "send")

	reply, err := s.messenger.MessageAgent(ctx, s.name, text)
	if err == nil {
		// the agent may have learned from the exchange
		s.dir.Invalidate(s.name)
	}

	s.mu.Lock()
	s.sending = false
	if gen != s.gen {
		s.mu.Unlock()
		s.metrics.RecordLoadDiscarded(ctx, component, "send")
		return true, err
	}
	if err != nil {
		s.messages = append(s.messages, models.Message{
			ID:        s.newID(),
			Sender:    models.SenderSystem,
			Content:   "Error: " + gateway.Message(err),
			Timestamp: s.now(),
		})
	} else {
		content := ""
		if reply != nil {
			content = reply.Response
		}
		if strings.TrimSpace(content) == "" {
			content = NoReplyMessage
		}
		s.messages = append(s.messages, models.Message{
			ID:        s.newID(),
			Sender:    models.SenderAgent,
			Content:   content,
			Timestamp: s.now(),
		})
	}
	s.mu.Unlock()
	s.notifier.Notify()

	if err != nil {
		s.logger.Warn("failed to message agent", zap.Error(err))
		s.metrics.RecordLoadFailed(ctx, component, "send", metrics.ErrorType(err), time.Since(start))
		return true, err
	}
	s.metrics.RecordLoadCompleted(ctx, component, "send", time.Since(start))
	return true, nil
}

// Close detaches the session; results of calls still in flight are dropped
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
	s.notifier.Notify()
}

// Status returns the session status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Messages returns a copy of the history in insertion order
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// KnowledgePreview returns at most five knowledge items with their content
// shortened for display
func (s *Session) KnowledgePreview() []models.KnowledgeItem {
	s.mu.Lock()
	items := s.knowledge
	if len(items) > previewItems {
		items = items[:previewItems]
	}
	preview := append([]models.KnowledgeItem(nil), items...)
	s.mu.Unlock()

	for i := range preview {
		preview[i].Content = truncate(preview[i].Content, previewRunes)
	}
	return preview
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// Snapshot returns the whole state at once
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		AgentName: s.name,
		Agent:     s.agent,
		Status:    s.status,
		Messages:  append([]models.Message(nil), s.messages...),
		Input:     s.input,
		Sending:   s.sending,
		Err:       s.err,
		Knowledge: append([]models.KnowledgeItem(nil), s.knowledge...),
	}
}
