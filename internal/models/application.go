package models

import "time"

// ApplicationStatus enumerates application workflow states.
type ApplicationStatus string

const (
	ApplicationPending           ApplicationStatus = "pending"
	ApplicationApproved          ApplicationStatus = "approved"
	ApplicationRejected          ApplicationStatus = "rejected"
	ApplicationRevisionRequested ApplicationStatus = "revision_requested"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected, ApplicationRevisionRequested:
		return true
	}
	return false
}

// IsActive reports whether the status still binds the supervisor to the student.
func (s ApplicationStatus) IsActive() bool {
	return s == ApplicationPending || s == ApplicationApproved
}

// Application is a student's request to be supervised on a project.
type Application struct {
	ID                  string            `json:"id"`
	StudentID           string            `json:"studentId"`
	StudentName         string            `json:"studentName"`
	StudentEmail        string            `json:"studentEmail"`
	PartnerID           *string           `json:"partnerId"`
	SupervisorID        string            `json:"supervisorId"`
	SupervisorName      string            `json:"supervisorName"`
	ProjectTitle        string            `json:"projectTitle"`
	Description         string            `json:"description"`
	Status              ApplicationStatus `json:"status"`
	DateApplied         time.Time         `json:"dateApplied"`
	LastUpdated         time.Time         `json:"lastUpdated"`
	ResponseDate        *time.Time        `json:"responseDate"`
	ResubmittedDate     *time.Time        `json:"resubmittedDate"`
	SupervisorFeedback  *string           `json:"supervisorFeedback"`
	HasPartner          bool              `json:"hasPartner"`
	PartnerName         *string           `json:"partnerName"`
	PartnerEmail        *string           `json:"partnerEmail"`
	LinkedApplicationID *string           `json:"linkedApplicationId,omitempty"`
	IsLeadApplication   *bool             `json:"isLeadApplication,omitempty"`
}

// IsApplicant reports whether studentID is the applicant or the recorded partner.
func (a *Application) IsApplicant(studentID string) bool {
	if a.StudentID == studentID {
		return true
	}
	return a.PartnerID != nil && *a.PartnerID == studentID
}
