package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/studio-client/internal/devserver"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func TestSeedDemo(t *testing.T) {
	store := devserver.NewStore()
	require.NoError(t, seedDemo(store))

	list := store.ListProjects()
	require.Len(t, list, 1)

	p, err := store.GetProject(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, p.Status)
	assert.Len(t, p.Deliverables, len(devserver.DefaultSteps))
}
