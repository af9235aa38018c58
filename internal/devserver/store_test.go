package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func createProject(t *testing.T, s *Store, name string) models.Project {
	t.Helper()
	p, err := s.CreateProject(models.ProjectForm{Name: name, Description: "desc", Objectives: "obj"})
	require.NoError(t, err)
	return p
}

func TestStore_CreateAndList(t *testing.T) {
	s := NewStore()
	first := createProject(t, s, "first")
	second := createProject(t, s, "second")

	assert.Equal(t, models.StatusCreated, first.Status)
	assert.NotEmpty(t, first.CreatedAt)
	assert.Empty(t, first.Deliverables)

	list := s.ListProjects()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestStore_CreateValidation(t *testing.T) {
	s := NewStore()
	_, err := s.CreateProject(models.ProjectForm{Name: "x"})
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, s.ListProjects())
}

func TestStore_StartWorkflow(t *testing.T) {
	s := NewStore()
	p := createProject(t, s, "site")

	require.NoError(t, s.StartWorkflow(p.ID))
	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.Len(t, got.Deliverables, len(DefaultSteps))
	assert.Equal(t, "01_strategic_brief.md", got.Deliverables[0].Name)
	assert.Equal(t, "vision", got.Deliverables[0].Type)

	// starting twice does not duplicate deliverables
	require.NoError(t, s.StartWorkflow(p.ID))
	got, err = s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Deliverables, len(DefaultSteps))

	content, err := s.Deliverable(p.ID, "01_strategic_brief.md")
	require.NoError(t, err)
	assert.Contains(t, content, "Strategic brief")
	assert.Contains(t, content, "Digital Strategist")

	status, err := s.WorkflowStatus(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", status["status"])
	assert.Contains(t, status, "started_at")
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	p := createProject(t, s, "site")

	_, err := s.GetProject(99)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.StartWorkflow(99), models.ErrNotFound)
	assert.ErrorIs(t, s.ArchiveProject(99), models.ErrNotFound)
	_, err = s.Deliverable(p.ID, "missing.md")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.Ask("nobody", "hi")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_Feedback(t *testing.T) {
	s := NewStore()
	p := createProject(t, s, "site")
	require.NoError(t, s.StartWorkflow(p.ID))

	err := s.SubmitFeedback(p.ID, "01_strategic_brief.md", "  ")
	assert.True(t, models.IsValidation(err))

	require.NoError(t, s.SubmitFeedback(p.ID, "01_strategic_brief.md", "more detail"))
	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.True(t, got.Deliverables[0].HasFeedback)
	assert.False(t, got.Deliverables[1].HasFeedback)
}

func TestStore_ArchiveHidesFromList(t *testing.T) {
	s := NewStore()
	p := createProject(t, s, "site")
	require.NoError(t, s.ArchiveProject(p.ID))

	assert.Empty(t, s.ListProjects())
	_, err := s.GetProject(p.ID)
	assert.NoError(t, err)
}

func TestStore_Knowledge(t *testing.T) {
	s := NewStore()
	assert.Equal(t, []string{"Market Analysis", "UX Design", "Architecture", "Security"}, s.Categories())
	assert.Len(t, s.ByCategory("UX Design"), 1)
	assert.Empty(t, s.ByCategory("nope"))
	assert.Empty(t, s.Search("   "))
	assert.Len(t, s.Search("TOKENS"), 1)

	reply, err := s.Ask("pixel", "dark mode?")
	require.NoError(t, err)
	assert.Contains(t, reply, "UX/UI Designer")

	assert.Contains(t, s.Categories(), generalCategory)
	items := s.ByAgent("pixel")
	require.Len(t, items, 2)
	assert.Equal(t, "dark mode?", items[1].Query)
	assert.Len(t, s.Search("dark mode"), 1)

	_, err = s.Ask("pixel", "")
	assert.True(t, models.IsValidation(err))
}
