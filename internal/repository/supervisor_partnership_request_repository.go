package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Supervisor partnership request fields used in filters.
const (
	FieldRequestingSupervisorID = "requestingSupervisorId"
	FieldTargetSupervisorID     = "targetSupervisorId"
	FieldProjectID              = "projectId"
)

// SupervisorPartnershipRequestRepository provides access to co-supervision requests.
type SupervisorPartnershipRequestRepository struct {
	*documentRepository[models.SupervisorPartnershipRequest]
}

// NewSupervisorPartnershipRequestRepository constructs the repository.
func NewSupervisorPartnershipRequestRepository(store docstore.Store) *SupervisorPartnershipRequestRepository {
	return &SupervisorPartnershipRequestRepository{newDocumentRepository(store, CollectionSupervisorPartnershipRequests,
		func(r *models.SupervisorPartnershipRequest) string { return r.ID },
		func(r *models.SupervisorPartnershipRequest, id string) { r.ID = id },
	)}
}

// FindPending returns the pending request for the (requester, target, project) triple, or nil.
func (r *SupervisorPartnershipRequestRepository) FindPending(ctx context.Context, requesterID, targetID, projectID string) (*models.SupervisorPartnershipRequest, error) {
	reqs, err := r.FindAll(ctx,
		docstore.Eq(FieldRequestingSupervisorID, requesterID),
		docstore.Eq(FieldTargetSupervisorID, targetID),
		docstore.Eq(FieldProjectID, projectID),
		docstore.Eq(FieldStatus, models.RequestPending),
	)
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

// ListPendingForProject returns every pending request scoped to projectID.
func (r *SupervisorPartnershipRequestRepository) ListPendingForProject(ctx context.Context, projectID string) ([]models.SupervisorPartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldProjectID, projectID), docstore.Eq(FieldStatus, models.RequestPending))
}

// ListPendingIncoming returns pending requests addressed to supervisorID.
func (r *SupervisorPartnershipRequestRepository) ListPendingIncoming(ctx context.Context, supervisorID string) ([]models.SupervisorPartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldTargetSupervisorID, supervisorID), docstore.Eq(FieldStatus, models.RequestPending))
}

// ListPendingOutgoing returns pending requests sent by supervisorID.
func (r *SupervisorPartnershipRequestRepository) ListPendingOutgoing(ctx context.Context, supervisorID string) ([]models.SupervisorPartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldRequestingSupervisorID, supervisorID), docstore.Eq(FieldStatus, models.RequestPending))
}

// ListPending returns every pending request.
func (r *SupervisorPartnershipRequestRepository) ListPending(ctx context.Context) ([]models.SupervisorPartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldStatus, models.RequestPending))
}
