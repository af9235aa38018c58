package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/studio-client/internal/chat"
	"github.com/bizmatters/agent-builder/studio-client/internal/deliverables"
	"github.com/bizmatters/agent-builder/studio-client/internal/knowledge"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
	"github.com/bizmatters/agent-builder/studio-client/tests/helpers"
)

func TestProjectWorkflowIntegration(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	s := env.NewStudio(t, "")
	ctx := context.Background()

	var (
		mu      sync.Mutex
		notices int
	)
	unsubscribe := s.Projects.Subscribe(func() {
		mu.Lock()
		notices++
		mu.Unlock()
	})
	defer unsubscribe()

	// Step 1: empty list
	require.NoError(t, s.Projects.LoadAll(ctx))
	assert.Empty(t, s.Projects.Projects())

	// Step 2: create opens the new project
	created, err := s.Projects.Create(ctx, helpers.DefaultProjectForm)
	require.NoError(t, err)
	assert.Equal(t, created, s.Projects.Current())
	assert.True(t, created.CanStartWorkflow())

	// Step 3: start the workflow; status comes back from the server
	require.NoError(t, s.OpenProject(ctx, created.ID))
	require.NoError(t, s.Deliverables.StartWorkflow(ctx, created.ID))

	current := s.Projects.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.StatusInProgress, current.Status)
	require.NotEmpty(t, current.Deliverables)

	// Step 4: view, deselect and re-view a deliverable
	name := current.Deliverables[0].Name
	require.NoError(t, s.Deliverables.Toggle(ctx, name))
	snap := s.Deliverables.Snapshot()
	assert.Equal(t, deliverables.Loaded, snap.State)
	assert.Equal(t, "vision", snap.Producer)
	assert.NotEmpty(t, snap.Content)

	require.NoError(t, s.Deliverables.Toggle(ctx, name))
	snap = s.Deliverables.Snapshot()
	assert.Equal(t, deliverables.Idle, snap.State)
	assert.Empty(t, snap.Selected)
	assert.Empty(t, snap.Content)

	// Step 5: feedback shows up after a reload
	require.NoError(t, s.Deliverables.SubmitFeedback(ctx, name, helpers.DefaultFeedback))
	assert.True(t, s.Deliverables.Snapshot().FeedbackSent)

	reloaded, err := s.Projects.LoadOne(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Deliverables[0].HasFeedback)

	// Step 6: list and current agree on the shared record
	require.NoError(t, s.Projects.LoadAll(ctx))
	listed, ok := s.Projects.Get(created.ID)
	require.True(t, ok)
	assert.Same(t, listed, s.Projects.Current())

	// Step 7: workflow status and archive
	status, err := s.Projects.WorkflowStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", status["status"])

	require.NoError(t, s.Projects.Archive(ctx, created.ID))
	assert.Empty(t, s.Projects.Projects())
	assert.Nil(t, s.Projects.Current())

	mu.Lock()
	assert.Positive(t, notices)
	mu.Unlock()
}

func TestDeliverableErrorsIntegration(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	s := env.NewStudio(t, "")
	ctx := context.Background()

	p, err := env.Store.CreateProject(helpers.ProjectForm("errors"))
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, p.ID))

	err = s.Deliverables.Toggle(ctx, "missing.md")
	assert.ErrorIs(t, err, models.ErrNotFound)
	snap := s.Deliverables.Snapshot()
	assert.Equal(t, deliverables.Errored, snap.State)
	assert.Equal(t, "Deliverable not found", snap.Err)

	err = s.Deliverables.SubmitFeedback(ctx, "missing.md", "  ")
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, "feedback text is required", s.Deliverables.Snapshot().FeedbackInvalid)

	_, err = s.Projects.LoadOne(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "Project not found", s.Projects.Err())
	assert.Nil(t, s.Projects.Current())
}

func TestConcurrentDeliverableSelectionIntegration(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	s := env.NewStudio(t, "")
	ctx := context.Background()

	p, err := env.Store.CreateProject(helpers.ProjectForm("concurrent"))
	require.NoError(t, err)
	require.NoError(t, env.Store.StartWorkflow(p.ID))
	require.NoError(t, s.OpenProject(ctx, p.ID))

	names := make([]string, 0, len(s.Projects.Current().Deliverables))
	for _, d := range s.Projects.Current().Deliverables {
		names = append(names, d.Name)
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = s.Deliverables.Toggle(ctx, name)
		}(name)
	}
	wg.Wait()

	// whichever toggle ran last owns the viewer, and the content matches it
	snap := s.Deliverables.Snapshot()
	require.Equal(t, deliverables.Loaded, snap.State)
	expected, err := env.Store.Deliverable(p.ID, snap.Selected)
	require.NoError(t, err)
	assert.Equal(t, expected, snap.Content)
}

func TestChatIntegration(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	s := env.NewStudio(t, "")
	ctx := context.Background()

	session, err := s.Chats.Open(ctx, "pixel")
	require.NoError(t, err)
	assert.Equal(t, chat.StatusReady, session.Status())
	require.Len(t, session.Messages(), 1)
	assert.Equal(t, chat.WelcomeID, session.Messages()[0].ID)
	assert.NotEmpty(t, session.KnowledgePreview())

	session.SetInput("How many onboarding screens?")
	sent, err := session.SendInput(ctx)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Empty(t, session.Input())

	messages := session.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, models.SenderUser, messages[1].Sender)
	assert.Equal(t, models.SenderAgent, messages[2].Sender)
	assert.Contains(t, messages[2].Content, "How many onboarding screens?")

	// the exchange is filed server side and the cached knowledge is dropped
	knowledge, err := s.Agents.Knowledge(ctx, "pixel")
	require.NoError(t, err)
	var filed bool
	for _, item := range knowledge {
		filed = filed || item.Query == "How many onboarding screens?"
	}
	assert.True(t, filed, "agent knowledge includes the new exchange")

	// each agent keeps its own history
	other, err := s.Chats.Open(ctx, "vision")
	require.NoError(t, err)
	assert.Len(t, other.Messages(), 1)

	missing, err := s.Chats.Open(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, chat.StatusNotFound, missing.Status())
	sent, err = missing.Send(ctx, "hello?")
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestKnowledgeIntegration(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	s := env.NewStudio(t, "")
	ctx := context.Background()

	require.NoError(t, s.Knowledge.Bootstrap(ctx))
	snap := s.Knowledge.Snapshot()
	require.NotEmpty(t, snap.Categories)
	assert.Equal(t, snap.Categories[0], snap.ActiveCategory)
	assert.NotEmpty(t, snap.Results)

	require.NoError(t, s.Knowledge.Search(ctx, "tokens"))
	snap = s.Knowledge.Snapshot()
	assert.Equal(t, knowledge.ModeSearch, snap.Mode)
	assert.Empty(t, snap.ActiveCategory)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "Security Expert", s.Knowledge.AgentFor(snap.Results[0].Agent).DisplayTitle())
	assert.Equal(t, "ghost", s.Knowledge.AgentFor("ghost").DisplayTitle())

	err := s.Knowledge.Search(ctx, "   ")
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, "tokens", s.Knowledge.Snapshot().Selector)

	require.NoError(t, s.Knowledge.Reset(ctx))
	snap = s.Knowledge.Snapshot()
	assert.Equal(t, knowledge.ModeCategory, snap.Mode)
	assert.Equal(t, snap.Categories[0], snap.ActiveCategory)
}
