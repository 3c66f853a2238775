package models

import "time"

// Domain event names published after application workflow commits.
const (
	EventApplicationStatusChanged = "application:status_changed"
	EventApplicationResubmitted   = "application:resubmitted"
)

// ApplicationEvent carries everything the notifier needs without further reads.
type ApplicationEvent struct {
	Type              string            `json:"type"`
	ApplicationID     string            `json:"applicationId"`
	StudentID         string            `json:"studentId"`
	StudentName       string            `json:"studentName"`
	StudentEmail      string            `json:"studentEmail"`
	PartnerEmail      *string           `json:"partnerEmail,omitempty"`
	SupervisorID      string            `json:"supervisorId"`
	SupervisorName    string            `json:"supervisorName"`
	SupervisorEmail   string            `json:"supervisorEmail"`
	ProjectTitle      string            `json:"projectTitle"`
	PreviousStatus    ApplicationStatus `json:"previousStatus"`
	NewStatus         ApplicationStatus `json:"newStatus"`
	Feedback          *string           `json:"feedback,omitempty"`
	TriggeredByUserID string            `json:"triggeredByUserId"`
	OccurredAt        time.Time         `json:"occurredAt"`
}
