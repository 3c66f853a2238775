package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Student document fields used in filters and patches.
const (
	FieldPartnerID         = "partnerId"
	FieldPartnershipStatus = "partnershipStatus"
	FieldMatchStatus       = "matchStatus"
	FieldUpdatedAt         = "updatedAt"
)

// StudentRepository provides access to student profiles.
type StudentRepository struct {
	*documentRepository[models.Student]
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(store docstore.Store) *StudentRepository {
	return &StudentRepository{newDocumentRepository(store, CollectionStudents,
		func(s *models.Student) string { return s.ID },
		func(s *models.Student, id string) { s.ID = id },
	)}
}

// ListByPartnershipStatus returns students currently in one of the given statuses.
func (r *StudentRepository) ListByPartnershipStatus(ctx context.Context, statuses ...models.PartnershipStatus) ([]models.Student, error) {
	values := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, s)
	}
	return r.FindAll(ctx, docstore.In(FieldPartnershipStatus, values...))
}
