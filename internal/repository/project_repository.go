package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Project fields used in filters and patches.
const (
	FieldCoSupervisorID   = "coSupervisorId"
	FieldCoSupervisorName = "coSupervisorName"
)

// ProjectRepository provides access to supervisor projects.
type ProjectRepository struct {
	*documentRepository[models.Project]
}

// NewProjectRepository constructs a project repository.
func NewProjectRepository(store docstore.Store) *ProjectRepository {
	return &ProjectRepository{newDocumentRepository(store, CollectionProjects,
		func(p *models.Project) string { return p.ID },
		func(p *models.Project, id string) { p.ID = id },
	)}
}

// ListBySupervisor returns projects owned or co-supervised by supervisorID.
func (r *ProjectRepository) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Project, error) {
	owned, err := r.FindAll(ctx, docstore.Eq(FieldSupervisorID, supervisorID))
	if err != nil {
		return nil, err
	}
	co, err := r.FindAll(ctx, docstore.Eq(FieldCoSupervisorID, supervisorID))
	if err != nil {
		return nil, err
	}
	return append(owned, co...), nil
}
