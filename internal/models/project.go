package models

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ProjectStatus is owned by the server; the client only reads it.
type ProjectStatus string

const (
	StatusCreated    ProjectStatus = "created"
	StatusInProgress ProjectStatus = "in_progress"
	StatusPaused     ProjectStatus = "paused"
	StatusCompleted  ProjectStatus = "completed"
	StatusFailed     ProjectStatus = "failed"
)

// Label returns the human readable status name
func (s ProjectStatus) Label() string {
	switch s {
	case StatusInProgress:
		return "In progress"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Created"
	}
}

// Deliverable is an artifact produced by an agent for a project
type Deliverable struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // producing agent id
	HasFeedback bool   `json:"has_feedback"`
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// DisplayName turns "01_market_analysis.md" into "Market Analysis.md".
func (d Deliverable) DisplayName() string {
	parts := strings.Split(d.Name, "_")
	if len(parts) > 1 && leadingDigits.MatchString(parts[0]) {
		parts = parts[1:]
	}
	for i, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		if size == 0 {
			continue
		}
		parts[i] = string(unicode.ToUpper(r)) + part[size:]
	}
	return strings.Join(parts, " ")
}

// Project represents a project record as returned by the backend
type Project struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Objectives     string        `json:"objectives,omitempty"`
	TargetAudience string        `json:"target_audience,omitempty"`
	Constraints    string        `json:"constraints,omitempty"`
	Deadline       string        `json:"deadline,omitempty"`
	Status         ProjectStatus `json:"status"`
	CreatedAt      string        `json:"created_at,omitempty"`
	Deliverables   []Deliverable `json:"deliverables,omitempty"`
}

// CanStartWorkflow reports whether the workflow has not been triggered yet
func (p *Project) CanStartWorkflow() bool {
	return p != nil && p.Status == StatusCreated
}

// FindDeliverable looks up a deliverable by name
func (p *Project) FindDeliverable(name string) (Deliverable, bool) {
	if p == nil {
		return Deliverable{}, false
	}
	for _, d := range p.Deliverables {
		if d.Name == name {
			return d, true
		}
	}
	return Deliverable{}, false
}

// ProjectForm carries the fields of a project creation request
type ProjectForm struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Objectives     string `json:"objectives"`
	TargetAudience string `json:"target_audience"`
	Constraints    string `json:"constraints"`
	Deadline       string `json:"deadline"`
}

// Validate checks the required fields and reports all missing ones together
func (f ProjectForm) Validate() error {
	missing := map[string]string{}
	if strings.TrimSpace(f.Name) == "" {
		missing["name"] = "project name is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		missing["description"] = "project description is required"
	}
	if strings.TrimSpace(f.Objectives) == "" {
		missing["objectives"] = "project objectives are required"
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Message: "invalid project", Fields: missing}
}

// DeliverableContent is the body of GET /projects/{id}/deliverables/{name}
type DeliverableContent struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// FeedbackRequest is the body of POST /projects/{id}/feedback
type FeedbackRequest struct {
	Deliverable string `json:"deliverable"`
	Feedback    string `json:"feedback"`
}

// StatusResponse is the acknowledgement returned by mutation endpoints
type StatusResponse struct {
	Status string `json:"status"`
}

// WorkflowStatus is the free-form workflow state of a project
type WorkflowStatus map[string]interface{}
