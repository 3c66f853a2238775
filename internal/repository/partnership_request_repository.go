package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Partnership request fields used in filters and patches.
const (
	FieldRequesterID     = "requesterId"
	FieldTargetStudentID = "targetStudentId"
	FieldRespondedAt     = "respondedAt"
)

// PartnershipRequestRepository provides access to student partnership requests.
type PartnershipRequestRepository struct {
	*documentRepository[models.PartnershipRequest]
}

// NewPartnershipRequestRepository constructs the repository.
func NewPartnershipRequestRepository(store docstore.Store) *PartnershipRequestRepository {
	return &PartnershipRequestRepository{newDocumentRepository(store, CollectionPartnershipRequests,
		func(r *models.PartnershipRequest) string { return r.ID },
		func(r *models.PartnershipRequest, id string) { r.ID = id },
	)}
}

// FindPending returns the pending request from requesterID to targetID, or nil.
func (r *PartnershipRequestRepository) FindPending(ctx context.Context, requesterID, targetID string) (*models.PartnershipRequest, error) {
	reqs, err := r.FindAll(ctx,
		docstore.Eq(FieldRequesterID, requesterID),
		docstore.Eq(FieldTargetStudentID, targetID),
		docstore.Eq(FieldStatus, models.RequestPending),
	)
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

// ListPendingIncoming returns pending requests addressed to studentID.
func (r *PartnershipRequestRepository) ListPendingIncoming(ctx context.Context, studentID string) ([]models.PartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldTargetStudentID, studentID), docstore.Eq(FieldStatus, models.RequestPending))
}

// ListPendingOutgoing returns pending requests sent by studentID.
func (r *PartnershipRequestRepository) ListPendingOutgoing(ctx context.Context, studentID string) ([]models.PartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldRequesterID, studentID), docstore.Eq(FieldStatus, models.RequestPending))
}

// ListPendingInvolving returns pending requests where studentID is either party.
func (r *PartnershipRequestRepository) ListPendingInvolving(ctx context.Context, studentID string) ([]models.PartnershipRequest, error) {
	outgoing, err := r.ListPendingOutgoing(ctx, studentID)
	if err != nil {
		return nil, err
	}
	incoming, err := r.ListPendingIncoming(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return append(outgoing, incoming...), nil
}

// ListPending returns every pending request.
func (r *PartnershipRequestRepository) ListPending(ctx context.Context) ([]models.PartnershipRequest, error) {
	return r.FindAll(ctx, docstore.Eq(FieldStatus, models.RequestPending))
}
