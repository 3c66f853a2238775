package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Supervisor document fields used in filters and patches.
const (
	FieldCurrentCapacity    = "currentCapacity"
	FieldMaxCapacity        = "maxCapacity"
	FieldAvailabilityStatus = "availabilityStatus"
	FieldIsActive           = "isActive"
)

// SupervisorRepository provides access to supervisor profiles.
type SupervisorRepository struct {
	*documentRepository[models.Supervisor]
}

// NewSupervisorRepository constructs a supervisor repository.
func NewSupervisorRepository(store docstore.Store) *SupervisorRepository {
	return &SupervisorRepository{newDocumentRepository(store, CollectionSupervisors,
		func(s *models.Supervisor) string { return s.ID },
		func(s *models.Supervisor, id string) { s.ID = id },
	)}
}

// ListActive returns supervisors accepting work.
func (r *SupervisorRepository) ListActive(ctx context.Context) ([]models.Supervisor, error) {
	return r.FindAll(ctx, docstore.Eq(FieldIsActive, true))
}
