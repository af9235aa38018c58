package studio

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/studio-client/internal/config"
	"github.com/bizmatters/agent-builder/studio-client/internal/devserver"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func newTestStudio(t *testing.T) (*Studio, *devserver.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := devserver.NewStore()
	srv := httptest.NewServer(devserver.NewServer(store, nil, nil).Handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL + "/api"
	s, err := New(cfg, nil)
	require.NoError(t, err)
	return s, store
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	s, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default().API.BaseURL, s.Gateway.BaseURL())
	assert.NotNil(t, s.Projects)
	assert.NotNil(t, s.Deliverables)
	assert.NotNil(t, s.Chats)
	assert.NotNil(t, s.Knowledge)
}

func TestStudio_OpenProject(t *testing.T) {
	s, store := newTestStudio(t)
	p, err := store.CreateProject(models.ProjectForm{Name: "site", Description: "d", Objectives: "o"})
	require.NoError(t, err)
	require.NoError(t, store.StartWorkflow(p.ID))

	ctx := context.Background()
	require.NoError(t, s.OpenProject(ctx, p.ID))
	assert.Equal(t, p.ID, s.Projects.Current().ID)
	assert.Equal(t, p.ID, s.Deliverables.Snapshot().ProjectID)

	require.NoError(t, s.Deliverables.Toggle(ctx, "03_architecture.md"))
	snap := s.Deliverables.Snapshot()
	assert.Equal(t, "arch", snap.Producer)
	assert.Contains(t, snap.Content, "Technical architecture")

	err = s.OpenProject(ctx, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Nil(t, s.Projects.Current())
}

func TestStudio_Healthy(t *testing.T) {
	s, _ := newTestStudio(t)
	assert.True(t, s.Healthy(context.Background()))

	cfg := config.Default()
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	down, err := New(cfg, nil)
	require.NoError(t, err)
	assert.False(t, down.Healthy(context.Background()))
}
