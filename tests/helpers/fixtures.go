package helpers

import (
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

// Default test fixtures
var (
	DefaultProjectForm = models.ProjectForm{
		Name:           "Test Storefront",
		Description:    "An online storefront used by the integration tests",
		Objectives:     "Sell seasonal products",
		TargetAudience: "Mobile shoppers",
		Constraints:    "Small budget",
		Deadline:       "6 weeks",
	}

	DefaultFeedback = "Please add a section on accessibility."
)

// ProjectForm returns the default form with another name
func ProjectForm(name string) models.ProjectForm {
	form := DefaultProjectForm
	form.Name = name
	return form
}
