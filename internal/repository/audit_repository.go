package repository

import (
	"context"
	"time"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// AuditRepository persists audit trail entries.
type AuditRepository struct {
	*documentRepository[models.AuditLog]
}

// NewAuditRepository constructs an audit repository.
func NewAuditRepository(store docstore.Store) *AuditRepository {
	return &AuditRepository{newDocumentRepository(store, CollectionAuditLogs,
		func(a *models.AuditLog) string { return a.ID },
		func(a *models.AuditLog, id string) { a.ID = id },
	)}
}

// CreateAuditLog stores an audit entry, stamping CreatedAt when unset.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := r.Create(ctx, log)
	return err
}

// ListByResource returns the audit history of one resource.
func (r *AuditRepository) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	return r.FindAll(ctx, docstore.Eq("resource", resource), docstore.Eq("resourceId", resourceID))
}
