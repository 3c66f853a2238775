package dto

import "github.com/noah-isme/mentormatch-api/internal/models"

// CreatePartnershipRequest is sent by a student asking another student to partner.
type CreatePartnershipRequest struct {
	TargetStudentID string `json:"targetStudentId" validate:"required"`
}

// RespondRequest answers a pending request.
type RespondRequest struct {
	Action models.RequestAction `json:"action" validate:"required,oneof=accept reject"`
}

// UnpairRequest names the partner a student wants to leave.
type UnpairRequest struct {
	PartnerID string `json:"partnerId" validate:"required"`
}

// AdminPairRequest pairs or unpairs two students directly.
type AdminPairRequest struct {
	StudentAID string `json:"studentAId" validate:"required"`
	StudentBID string `json:"studentBId" validate:"required,nefield=StudentAID"`
}

// CreateSupervisorPartnershipRequest invites another supervisor onto a project.
type CreateSupervisorPartnershipRequest struct {
	TargetSupervisorID string `json:"targetSupervisorId" validate:"required"`
	ProjectID          string `json:"projectId" validate:"required"`
}

// PartnershipRequestList splits a caller's pending requests by direction.
type PartnershipRequestList struct {
	Incoming []models.PartnershipRequest `json:"incoming"`
	Outgoing []models.PartnershipRequest `json:"outgoing"`
}

// SupervisorPartnershipRequestList splits a supervisor's pending requests by direction.
type SupervisorPartnershipRequestList struct {
	Incoming []models.SupervisorPartnershipRequest `json:"incoming"`
	Outgoing []models.SupervisorPartnershipRequest `json:"outgoing"`
}

// CreatedResource is returned after creating a document.
type CreatedResource struct {
	ID string `json:"id"`
}
