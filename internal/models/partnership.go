package models

import "time"

// RequestStatus is shared by both partnership request kinds.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// RequestAction is a target's answer to a request.
type RequestAction string

const (
	ActionAccept RequestAction = "accept"
	ActionReject RequestAction = "reject"
)

// PartnershipRequest asks another student to become a project partner.
type PartnershipRequest struct {
	ID              string        `json:"id"`
	RequesterID     string        `json:"requesterId"`
	RequesterName   string        `json:"requesterName"`
	TargetStudentID string        `json:"targetStudentId"`
	TargetName      string        `json:"targetName"`
	Status          RequestStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	RespondedAt     *time.Time    `json:"respondedAt"`
}

// Counterpart returns the other party of the request relative to studentID.
func (r *PartnershipRequest) Counterpart(studentID string) string {
	if r.RequesterID == studentID {
		return r.TargetStudentID
	}
	return r.RequesterID
}

// SupervisorPartnershipRequest asks another supervisor to co-supervise one project.
type SupervisorPartnershipRequest struct {
	ID                       string        `json:"id"`
	RequestingSupervisorID   string        `json:"requestingSupervisorId"`
	RequestingSupervisorName string        `json:"requestingSupervisorName"`
	TargetSupervisorID       string        `json:"targetSupervisorId"`
	TargetSupervisorName     string        `json:"targetSupervisorName"`
	ProjectID                string        `json:"projectId"`
	ProjectTitle             string        `json:"projectTitle"`
	Status                   RequestStatus `json:"status"`
	CreatedAt                time.Time     `json:"createdAt"`
	RespondedAt              *time.Time    `json:"respondedAt"`
}

// Project belongs to a supervisor and may have one co-supervisor.
type Project struct {
	ID               string    `json:"id"`
	SupervisorID     string    `json:"supervisorId"`
	CoSupervisorID   *string   `json:"coSupervisorId"`
	CoSupervisorName *string   `json:"coSupervisorName"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
