package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/studio-client/internal/auth"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, h http.Handler, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_ProjectLifecycle(t *testing.T) {
	h := NewServer(NewStore(), nil, nil).Handler()

	w := perform(t, h, http.MethodPost, "/api/projects", models.ProjectForm{Name: "site", Description: "a site", Objectives: "sell"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.StatusCreated, created.Status)

	w = perform(t, h, http.MethodPost, "/api/projects/1/start", struct{}{}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"workflow_started"}`, w.Body.String())

	w = perform(t, h, http.MethodGet, "/api/projects/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var project models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	assert.Equal(t, models.StatusInProgress, project.Status)
	require.NotEmpty(t, project.Deliverables)

	w = perform(t, h, http.MethodGet, "/api/projects/1/deliverables/02_ux_design.md", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var content models.DeliverableContent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &content))
	assert.Equal(t, "02_ux_design.md", content.Name)
	assert.Contains(t, content.Content, "UX/UI design")

	w = perform(t, h, http.MethodPost, "/api/projects/1/feedback", models.FeedbackRequest{Deliverable: "02_ux_design.md", Feedback: "bolder"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"feedback_received"}`, w.Body.String())

	w = perform(t, h, http.MethodGet, "/api/projects/1/workflow", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"in_progress"`)

	w = perform(t, h, http.MethodPost, "/api/projects/1/archive", struct{}{}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(t, h, http.MethodGet, "/api/projects", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_Errors(t *testing.T) {
	store := NewStore()
	_, err := store.CreateProject(models.ProjectForm{Name: "site", Description: "d"})
	require.NoError(t, err)
	h := NewServer(store, nil, nil).Handler()

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		expectedError  string
	}{
		{name: "unknown project", method: http.MethodGet, path: "/api/projects/42", expectedStatus: http.StatusNotFound, expectedError: "Project not found"},
		{name: "bad project id", method: http.MethodGet, path: "/api/projects/abc", expectedStatus: http.StatusBadRequest, expectedError: "Invalid project ID"},
		{name: "unknown deliverable", method: http.MethodGet, path: "/api/projects/1/deliverables/nope.md", expectedStatus: http.StatusNotFound, expectedError: "Deliverable not found"},
		{name: "deliverable of unknown project", method: http.MethodGet, path: "/api/projects/42/deliverables/nope.md", expectedStatus: http.StatusNotFound, expectedError: "Project not found"},
		{name: "create missing description", method: http.MethodPost, path: "/api/projects", body: models.ProjectForm{Name: "x"}, expectedStatus: http.StatusBadRequest, expectedError: "Name and description are required"},
		{name: "empty feedback", method: http.MethodPost, path: "/api/projects/1/feedback", body: models.FeedbackRequest{Deliverable: "a.md"}, expectedStatus: http.StatusBadRequest, expectedError: "Deliverable name and feedback content are required"},
		{name: "unknown agent", method: http.MethodPost, path: "/api/agents/nobody", body: models.MessageRequest{Message: "hi"}, expectedStatus: http.StatusNotFound, expectedError: "Agent not found"},
		{name: "empty message", method: http.MethodPost, path: "/api/agents/vision", body: models.MessageRequest{}, expectedStatus: http.StatusBadRequest, expectedError: "Message is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(t, h, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedError, resp.Error)
		})
	}
}

func TestServer_AgentsAndKnowledge(t *testing.T) {
	h := NewServer(NewStore(), nil, nil).Handler()

	w := perform(t, h, http.MethodGet, "/api/agents", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agents []models.Agent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agents))
	assert.Len(t, agents, len(DefaultAgents))

	w = perform(t, h, http.MethodPost, "/api/agents/vision", models.MessageRequest{Message: "pricing ideas"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reply models.AgentReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Contains(t, reply.Response, "pricing ideas")

	w = perform(t, h, http.MethodGet, "/api/knowledge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var categories []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	assert.Contains(t, categories, "UX Design")

	tests := []struct {
		name  string
		path  string
		count int
	}{
		{name: "by agent", path: "/api/knowledge?agent=vision", count: 2},
		{name: "by category", path: "/api/knowledge/UX%20Design", count: 1},
		{name: "search", path: "/api/knowledge/search?q=pricing", count: 1},
		{name: "empty search", path: "/api/knowledge/search?q=", count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(t, h, http.MethodGet, tt.path, nil, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var items []models.KnowledgeItem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
			assert.Len(t, items, tt.count)
		})
	}
}

func TestServer_RequiresTokenWhenConfigured(t *testing.T) {
	jm, err := auth.NewJWTManager("secret")
	require.NoError(t, err)
	h := NewServer(NewStore(), jm, nil).Handler()

	w := perform(t, h, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(t, h, http.MethodGet, "/api/projects", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jm.GenerateToken(context.Background(), "dev", time.Hour)
	require.NoError(t, err)
	w = perform(t, h, http.MethodGet, "/api/projects", nil, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer(NewStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
