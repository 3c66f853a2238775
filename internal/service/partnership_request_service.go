package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
)

// PartnershipRequestService reads and checks pending requests of both kinds.
type PartnershipRequestService struct {
	students    *repository.PartnershipRequestRepository
	supervisors *repository.SupervisorPartnershipRequestRepository
	logger      *zap.Logger
}

// NewPartnershipRequestService constructs the request service.
func NewPartnershipRequestService(repos *Repositories, logger *zap.Logger) *PartnershipRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartnershipRequestService{
		students:    repos.PartnershipRequests,
		supervisors: repos.SupervisorPartnershipRequests,
		logger:      logger,
	}
}

// Get loads a student partnership request.
func (s *PartnershipRequestService) Get(ctx context.Context, id string) (*models.PartnershipRequest, error) {
	req, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Partnership request", "load partnership request")
	}
	return req, nil
}

// GetSupervisorRequest loads a co-supervision request.
func (s *PartnershipRequestService) GetSupervisorRequest(ctx context.Context, id string) (*models.SupervisorPartnershipRequest, error) {
	req, err := s.supervisors.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "load co-supervision request")
	}
	return req, nil
}

// PendingBetween returns the pending request from requesterID to targetID, or nil.
func (s *PartnershipRequestService) PendingBetween(ctx context.Context, requesterID, targetID string) (*models.PartnershipRequest, error) {
	req, err := s.students.FindPending(ctx, requesterID, targetID)
	if err != nil {
		return nil, storeError(err, "Partnership request", "check pending requests")
	}
	return req, nil
}

// PendingForProject returns the pending co-supervision request for the triple, or nil.
func (s *PartnershipRequestService) PendingForProject(ctx context.Context, requesterID, targetID, projectID string) (*models.SupervisorPartnershipRequest, error) {
	req, err := s.supervisors.FindPending(ctx, requesterID, targetID, projectID)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "check pending requests")
	}
	return req, nil
}

// ListForStudent returns the student's pending requests split by direction.
func (s *PartnershipRequestService) ListForStudent(ctx context.Context, studentID string) (*dto.PartnershipRequestList, error) {
	incoming, err := s.students.ListPendingIncoming(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "Partnership request", "list partnership requests")
	}
	outgoing, err := s.students.ListPendingOutgoing(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "Partnership request", "list partnership requests")
	}
	return &dto.PartnershipRequestList{Incoming: incoming, Outgoing: outgoing}, nil
}

// ListForSupervisor returns the supervisor's pending co-supervision requests split by direction.
func (s *PartnershipRequestService) ListForSupervisor(ctx context.Context, supervisorID string) (*dto.SupervisorPartnershipRequestList, error) {
	incoming, err := s.supervisors.ListPendingIncoming(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "list co-supervision requests")
	}
	outgoing, err := s.supervisors.ListPendingOutgoing(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "list co-supervision requests")
	}
	return &dto.SupervisorPartnershipRequestList{Incoming: incoming, Outgoing: outgoing}, nil
}
