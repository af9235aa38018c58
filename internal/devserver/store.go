// Package devserver is an in-memory implementation of the studio backend API
// for local development and integration tests.
package devserver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

// Step is one stage of the project workflow, owned by one agent
type Step struct {
	ID    string `json:"id"`
	Agent string `json:"agent"`
	Title string `json:"title"`
}

// DefaultAgents are the personas the server knows about
var DefaultAgents = []models.Agent{
	{Name: "vision", Title: "Digital Strategist", Description: "a digital strategist who turns briefs into product strategy"},
	{Name: "pixel", Title: "UX/UI Designer", Description: "a designer who owns wireframes and visual identity"},
	{Name: "arch", Title: "Technical Architect", Description: "an architect who defines the technical stack"},
	{Name: "script", Title: "Frontend Developer"},
	{Name: "node", Title: "Backend Developer"},
	{Name: "data", Title: "Database Specialist"},
	{Name: "secure", Title: "Security Expert"},
	{Name: "test", Title: "QA Tester"},
	{Name: "deploy", Title: "DevOps Engineer"},
	{Name: "pm", Title: "Project Manager", Description: "a project manager who plans and tracks delivery"},
}

// DefaultSteps is the workflow every project runs through
var DefaultSteps = []Step{
	{ID: "01_strategic_brief", Agent: "vision", Title: "Strategic brief"},
	{ID: "02_ux_design", Agent: "pixel", Title: "UX/UI design"},
	{ID: "03_architecture", Agent: "arch", Title: "Technical architecture"},
	{ID: "04_planning", Agent: "pm", Title: "Project planning"},
	{ID: "05_frontend", Agent: "script", Title: "Frontend development"},
	{ID: "06_backend", Agent: "node", Title: "Backend development"},
	{ID: "07_database", Agent: "data", Title: "Database design"},
	{ID: "08_security", Agent: "secure", Title: "Security review"},
	{ID: "09_testing", Agent: "test", Title: "Test plan"},
	{ID: "10_deployment", Agent: "deploy", Title: "Deployment"},
}

const generalCategory = "General"

type project struct {
	models.Project
	archived bool
	started  time.Time
	contents map[string]string
	feedback map[string][]string
}

// Store holds every resource of the dev server behind one lock
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	nextProjectID int64
	projects      map[int64]*project
	agents        []models.Agent
	knowledge     []models.KnowledgeItem
	nextItemID    int64
}

// NewStore creates a store seeded with the default agents and a few
// knowledge items
func NewStore() *Store {
	s := &Store{
		now:           time.Now,
		nextProjectID: 1,
		nextItemID:    1,
		projects:      make(map[int64]*project),
		agents:        append([]models.Agent(nil), DefaultAgents...),
	}
	s.addKnowledge("vision", "Market Analysis", "competitors", "Benchmark at least three competitors before fixing the positioning.")
	s.addKnowledge("pixel", "UX Design", "onboarding", "Keep onboarding under three screens and defer account creation.")
	s.addKnowledge("arch", "Architecture", "stack", "Prefer a single deployable until the team outgrows it.")
	s.addKnowledge("secure", "Security", "tokens", "Rotate signing keys and keep tokens short lived.")
	return s
}

// ListProjects returns the visible projects, newest first
func (s *Store) ListProjects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*project, 0, len(s.projects))
	for _, p := range s.projects {
		if !p.archived {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })

	out := make([]models.Project, 0, len(list))
	for _, p := range list {
		summary := p.Project
		summary.Deliverables = nil
		out = append(out, summary)
	}
	return out
}

// GetProject returns a project with its deliverables
func (s *Store) GetProject(id int64) (models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, errProjectNotFound(id)
	}
	return s.view(p), nil
}

// view must be called with mu held
func (s *Store) view(p *project) models.Project {
	out := p.Project
	out.Deliverables = make([]models.Deliverable, 0, len(p.Project.Deliverables))
	for _, d := range p.Project.Deliverables {
		d.HasFeedback = len(p.feedback[d.Name]) > 0
		out.Deliverables = append(out.Deliverables, d)
	}
	return out
}

// CreateProject adds a project in the created state
func (s *Store) CreateProject(form models.ProjectForm) (models.Project, error) {
	if strings.TrimSpace(form.Name) == "" || strings.TrimSpace(form.Description) == "" {
		return models.Project{}, models.NewValidationError("name", "Name and description are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextProjectID
	s.nextProjectID++
	p := &project{
		Project: models.Project{
			ID:             id,
			Name:           form.Name,
			Description:    form.Description,
			Objectives:     form.Objectives,
			TargetAudience: form.TargetAudience,
			Constraints:    form.Constraints,
			Deadline:       form.Deadline,
			Status:         models.StatusCreated,
			CreatedAt:      s.now().UTC().Format(time.RFC3339),
		},
		contents: make(map[string]string),
		feedback: make(map[string][]string),
	}
	s.projects[id] = p
	return s.view(p), nil
}

// StartWorkflow moves a created project to in_progress and produces one
// deliverable per workflow step. Starting an already started project is a
// no-op.
func (s *Store) StartWorkflow(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return errProjectNotFound(id)
	}
	if p.Status != models.StatusCreated {
		return nil
	}

	p.Status = models.StatusInProgress
	p.started = s.now()
	for _, step := range DefaultSteps {
		name := step.ID + ".md"
		p.Project.Deliverables = append(p.Project.Deliverables, models.Deliverable{Name: name, Type: step.Agent})
		p.contents[name] = fmt.Sprintf("# %s\n\nProject: %s\n\n%s\n\nPrepared by %s.\n",
			step.Title, p.Name, p.Description, s.agentTitle(step.Agent))
	}
	return nil
}

// WorkflowStatus reports the per-step progress of a project
func (s *Store) WorkflowStatus(id int64) (models.WorkflowStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errProjectNotFound(id)
	}

	stepStatus := "pending"
	if p.Status != models.StatusCreated {
		stepStatus = "completed"
	}
	steps := make([]map[string]interface{}, 0, len(DefaultSteps))
	for _, step := range DefaultSteps {
		steps = append(steps, map[string]interface{}{
			"id":     step.ID,
			"agent":  step.Agent,
			"title":  step.Title,
			"status": stepStatus,
		})
	}
	status := models.WorkflowStatus{
		"project_id": p.ID,
		"status":     string(p.Status),
		"steps":      steps,
	}
	if !p.started.IsZero() {
		status["started_at"] = p.started.UTC().Format(time.RFC3339)
	}
	return status, nil
}

// Deliverable returns the content of one deliverable
func (s *Store) Deliverable(id int64, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return "", errProjectNotFound(id)
	}
	content, ok := p.contents[name]
	if !ok {
		return "", fmt.Errorf("deliverable %q: %w", name, models.ErrNotFound)
	}
	return content, nil
}

// SubmitFeedback records feedback on a deliverable
func (s *Store) SubmitFeedback(id int64, deliverable, text string) error {
	if strings.TrimSpace(deliverable) == "" || strings.TrimSpace(text) == "" {
		return models.NewValidationError("feedback", "Deliverable name and feedback content are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return errProjectNotFound(id)
	}
	if _, ok := p.contents[deliverable]; !ok {
		return fmt.Errorf("deliverable %q: %w", deliverable, models.ErrNotFound)
	}
	p.feedback[deliverable] = append(p.feedback[deliverable], text)
	return nil
}

// ArchiveProject hides a project from the list; it stays reachable by id
func (s *Store) ArchiveProject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return errProjectNotFound(id)
	}
	p.archived = true
	return nil
}

// Agents returns the known agents
func (s *Store) Agents() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Agent(nil), s.agents...)
}

// Ask answers a chat message and files the exchange in the knowledge base
func (s *Store) Ask(agent, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", models.NewValidationError("message", "Message is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasAgent(agent) {
		return "", fmt.Errorf("agent %q: %w", agent, models.ErrNotFound)
	}
	reply := fmt.Sprintf("%s here. Regarding %q: let's break it down and start with the riskiest assumption.",
		s.agentTitle(agent), message)
	s.addKnowledge(agent, generalCategory, message, reply)
	return reply, nil
}

// Categories returns the distinct knowledge categories in first-seen order
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, item := range s.knowledge {
		if !seen[item.Category] {
			seen[item.Category] = true
			out = append(out, item.Category)
		}
	}
	return out
}

// ByCategory returns the items filed under category
func (s *Store) ByCategory(category string) []models.KnowledgeItem {
	return s.filter(func(item models.KnowledgeItem) bool { return item.Category == category })
}

// ByAgent returns the items produced by agent
func (s *Store) ByAgent(agent string) []models.KnowledgeItem {
	return s.filter(func(item models.KnowledgeItem) bool { return item.Agent == agent })
}

// Search matches term case-insensitively against content and query. An
// empty term matches nothing.
func (s *Store) Search(term string) []models.KnowledgeItem {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.KnowledgeItem{}
	}
	return s.filter(func(item models.KnowledgeItem) bool {
		return strings.Contains(strings.ToLower(item.Content), term) ||
			strings.Contains(strings.ToLower(item.Query), term)
	})
}

func (s *Store) filter(keep func(models.KnowledgeItem) bool) []models.KnowledgeItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.KnowledgeItem, 0)
	for _, item := range s.knowledge {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// addKnowledge must be called with mu held (or before the store is shared)
func (s *Store) addKnowledge(agent, category, query, content string) {
	s.knowledge = append(s.knowledge, models.KnowledgeItem{
		ID:        s.nextItemID,
		Agent:     agent,
		Category:  category,
		Query:     query,
		Content:   content,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	})
	s.nextItemID++
}

func (s *Store) hasAgent(name string) bool {
	for _, a := range s.agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) agentTitle(name string) string {
	for _, a := range s.agents {
		if a.Name == name {
			return a.DisplayTitle()
		}
	}
	return name
}

func errProjectNotFound(id int64) error {
	return fmt.Errorf("project %d: %w", id, models.ErrNotFound)
}
