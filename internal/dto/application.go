package dto

import "github.com/noah-isme/mentormatch-api/internal/models"

// SubmitApplicationRequest is a student's application to a supervisor.
type SubmitApplicationRequest struct {
	SupervisorID string `json:"supervisorId" validate:"required"`
	ProjectTitle string `json:"projectTitle" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
}

// UpdateApplicationStatusRequest carries a supervisor or admin decision.
type UpdateApplicationStatusRequest struct {
	Status   models.ApplicationStatus `json:"status" validate:"required,oneof=pending approved rejected revision_requested"`
	Feedback *string                  `json:"feedback" validate:"omitempty,max=5000"`
}

// ResubmitApplicationRequest optionally edits the application while resubmitting.
type ResubmitApplicationRequest struct {
	ProjectTitle *string `json:"projectTitle" validate:"omitempty,min=1,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
}

// ApplicationQuery mirrors supported listing filters.
type ApplicationQuery struct {
	Status   models.ApplicationStatus
	Page     int
	PageSize int
}

// DuplicateCheckResponse reports an existing active application, if any.
type DuplicateCheckResponse struct {
	Duplicate     bool   `json:"duplicate"`
	ApplicationID string `json:"applicationId,omitempty"`
}
