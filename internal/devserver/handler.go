package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

// Handler serves the studio API from a Store
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// ListProjects handles GET /projects
func (h *Handler) ListProjects(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListProjects())
}

// CreateProject handles POST /projects
func (h *Handler) CreateProject(c *gin.Context) {
	var form models.ProjectForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	project, err := h.store.CreateProject(form)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	h.logger.Info("project created", zap.Int64("project_id", project.ID), zap.String("name", project.Name))
	c.JSON(http.StatusCreated, project)
}

// GetProject handles GET /projects/:id
func (h *Handler) GetProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	project, err := h.store.GetProject(id)
	if err != nil {
		h.fail(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusOK, project)
}

// StartWorkflow handles POST /projects/:id/start
func (h *Handler) StartWorkflow(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	if err := h.store.StartWorkflow(id); err != nil {
		h.fail(c, err, "Project not found")
		return
	}
	h.logger.Info("workflow started", zap.Int64("project_id", id))
	c.JSON(http.StatusOK, models.StatusResponse{Status: "workflow_started"})
}

// WorkflowStatus handles GET /projects/:id/workflow
func (h *Handler) WorkflowStatus(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	status, err := h.store.WorkflowStatus(id)
	if err != nil {
		h.fail(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusOK, status)
}

// ArchiveProject handles POST /projects/:id/archive
func (h *Handler) ArchiveProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	if err := h.store.ArchiveProject(id); err != nil {
		h.fail(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "archived"})
}

// GetDeliverable handles GET /projects/:id/deliverables/*name
func (h *Handler) GetDeliverable(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetProject(id); err != nil {
		h.fail(c, err, "Project not found")
		return
	}

	name := strings.TrimPrefix(c.Param("name"), "/")
	content, err := h.store.Deliverable(id, name)
	if err != nil {
		h.fail(c, err, "Deliverable not found")
		return
	}
	c.JSON(http.StatusOK, models.DeliverableContent{Name: name, Content: content})
}

// SubmitFeedback handles POST /projects/:id/feedback
func (h *Handler) SubmitFeedback(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if _, err := h.store.GetProject(id); err != nil {
		h.fail(c, err, "Project not found")
		return
	}
	if err := h.store.SubmitFeedback(id, req.Deliverable, req.Feedback); err != nil {
		h.fail(c, err, "Deliverable not found")
		return
	}
	h.logger.Info("feedback received", zap.Int64("project_id", id), zap.String("deliverable", req.Deliverable))
	c.JSON(http.StatusOK, models.StatusResponse{Status: "feedback_received"})
}

// ListAgents handles GET /agents
func (h *Handler) ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Agents())
}

// MessageAgent handles POST /agents/:name
func (h *Handler) MessageAgent(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	reply, err := h.store.Ask(c.Param("name"), req.Message)
	if err != nil {
		h.fail(c, err, "Agent not found")
		return
	}
	c.JSON(http.StatusOK, models.AgentReply{Response: reply})
}

// Knowledge handles GET /knowledge: the category list, or the items of one
// agent when ?agent= is given
func (h *Handler) Knowledge(c *gin.Context) {
	if agent, ok := c.GetQuery("agent"); ok {
		c.JSON(http.StatusOK, h.store.ByAgent(agent))
		return
	}
	c.JSON(http.StatusOK, h.store.Categories())
}

// KnowledgeByCategory handles GET /knowledge/:category
func (h *Handler) KnowledgeByCategory(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ByCategory(c.Param("category")))
}

// SearchKnowledge handles GET /knowledge/search?q=
func (h *Handler) SearchKnowledge(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Search(c.Query("q")))
}

// Health handles GET /health and GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) fail(c *gin.Context, err error, notFound string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: verr.Message, Code: models.ErrCodeValidationFailed})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: notFound, Code: models.ErrCodeNotFound})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error", Code: models.ErrCodeInternalError})
	}
}

func projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid project ID")
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: message, Code: models.ErrCodeInvalidRequest})
}
