package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

// ListProjects fetches GET /projects. A missing or non-array payload is
// returned as an empty list.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/projects", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Project](raw)
}

// GetProject fetches GET /projects/{id}
func (c *Client) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	if err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject posts the creation form and returns the created record
func (c *Client) CreateProject(ctx context.Context, form models.ProjectForm) (*models.Project, error) {
	var project models.Project
	if err := c.Request(ctx, http.MethodPost, "/projects", form, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// StartWorkflow triggers the server-side workflow of a project
func (c *Client) StartWorkflow(ctx context.Context, id int64) error {
	return c.Request(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/start", id), struct{}{}, nil)
}

// GetDeliverable fetches the raw content of one deliverable
func (c *Client) GetDeliverable(ctx context.Context, projectID int64, name string) (*models.DeliverableContent, error) {
	var content models.DeliverableContent
	path := fmt.Sprintf("/projects/%d/deliverables/%s", projectID, url.PathEscape(name))
	if err := c.Request(ctx, http.MethodGet, path, nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// SubmitFeedback posts feedback on a deliverable
func (c *Client) SubmitFeedback(ctx context.Context, projectID int64, deliverable, feedback string) error {
	body := models.FeedbackRequest{Deliverable: deliverable, Feedback: feedback}
	return c.Request(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/feedback", projectID), body, nil)
}

// WorkflowStatus fetches GET /projects/{id}/workflow
func (c *Client) WorkflowStatus(ctx context.Context, id int64) (models.WorkflowStatus, error) {
	status := models.WorkflowStatus{}
	if err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/workflow", id), nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// ArchiveProject posts POST /projects/{id}/archive
func (c *Client) ArchiveProject(ctx context.Context, id int64) error {
	return c.Request(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/archive", id), struct{}{}, nil)
}

// ListAgents fetches GET /agents
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/agents", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Agent](raw)
}

// MessageAgent sends one chat message to an agent
func (c *Client) MessageAgent(ctx context.Context, name, message string) (*models.AgentReply, error) {
	var reply models.AgentReply
	body := models.MessageRequest{Message: message}
	if err := c.Request(ctx, http.MethodPost, "/agents/"+url.PathEscape(name), body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// AgentKnowledge fetches the knowledge slice of one agent
func (c *Client) AgentKnowledge(ctx context.Context, name string) ([]models.KnowledgeItem, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/knowledge?agent="+url.QueryEscape(name), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.KnowledgeItem](raw)
}

// KnowledgeCategories fetches GET /knowledge
func (c *Client) KnowledgeCategories(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/knowledge", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[string](raw)
}

// KnowledgeByCategory fetches GET /knowledge/{category}
func (c *Client) KnowledgeByCategory(ctx context.Context, category string) ([]models.KnowledgeItem, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/knowledge/"+url.PathEscape(category), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.KnowledgeItem](raw)
}

// SearchKnowledge fetches GET /knowledge/search?q={term}
func (c *Client) SearchKnowledge(ctx context.Context, term string) ([]models.KnowledgeItem, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, "/knowledge/search?q="+url.QueryEscape(term), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.KnowledgeItem](raw)
}

// decodeList coerces anything that is not a JSON array to an empty list
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &Error{
			Message: fmt.Sprintf("malformed response body: %v", err),
			Err:     fmt.Errorf("failed to decode list: %w", err),
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
