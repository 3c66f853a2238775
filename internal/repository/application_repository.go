package repository

import (
	"context"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Application document fields used in filters and patches.
const (
	FieldStatus             = "status"
	FieldStudentID          = "studentId"
	FieldSupervisorID       = "supervisorId"
	FieldLastUpdated        = "lastUpdated"
	FieldResponseDate       = "responseDate"
	FieldResubmittedDate    = "resubmittedDate"
	FieldSupervisorFeedback = "supervisorFeedback"
	FieldHasPartner         = "hasPartner"
	FieldPartnerName        = "partnerName"
	FieldPartnerEmail       = "partnerEmail"
	FieldProjectTitle       = "projectTitle"
	FieldDescription        = "description"
)

var activeApplicationStatuses = []interface{}{models.ApplicationPending, models.ApplicationApproved}

// ApplicationRepository provides access to supervision applications.
type ApplicationRepository struct {
	*documentRepository[models.Application]
}

// NewApplicationRepository constructs an application repository.
func NewApplicationRepository(store docstore.Store) *ApplicationRepository {
	return &ApplicationRepository{newDocumentRepository(store, CollectionApplications,
		func(a *models.Application) string { return a.ID },
		func(a *models.Application, id string) { a.ID = id },
	)}
}

// ListByStudent returns every application where studentID is the applicant or the partner.
func (r *ApplicationRepository) ListByStudent(ctx context.Context, studentID string, filters ...docstore.Filter) ([]models.Application, error) {
	asApplicant, err := r.FindAll(ctx, append([]docstore.Filter{docstore.Eq(FieldStudentID, studentID)}, filters...)...)
	if err != nil {
		return nil, err
	}
	asPartner, err := r.FindAll(ctx, append([]docstore.Filter{docstore.Eq(FieldPartnerID, studentID)}, filters...)...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(asApplicant))
	out := make([]models.Application, 0, len(asApplicant)+len(asPartner))
	for _, list := range [][]models.Application{asApplicant, asPartner} {
		for _, app := range list {
			if _, dup := seen[app.ID]; dup {
				continue
			}
			seen[app.ID] = struct{}{}
			out = append(out, app)
		}
	}
	return out, nil
}

// ListActiveForStudent returns the student's pending or approved applications.
func (r *ApplicationRepository) ListActiveForStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	return r.ListByStudent(ctx, studentID, docstore.In(FieldStatus, activeApplicationStatuses...))
}

// ListOwnedActive returns pending or approved applications where studentID is the applicant.
func (r *ApplicationRepository) ListOwnedActive(ctx context.Context, studentID string) ([]models.Application, error) {
	return r.FindAll(ctx, docstore.Eq(FieldStudentID, studentID), docstore.In(FieldStatus, activeApplicationStatuses...))
}

// ListBySupervisor returns a supervisor's applications, optionally narrowed by status.
func (r *ApplicationRepository) ListBySupervisor(ctx context.Context, supervisorID string, status models.ApplicationStatus) ([]models.Application, error) {
	filters := []docstore.Filter{docstore.Eq(FieldSupervisorID, supervisorID)}
	if status != "" {
		filters = append(filters, docstore.Eq(FieldStatus, status))
	}
	return r.FindAll(ctx, filters...)
}

// FindActiveDuplicate returns an active application linking the student to the supervisor, or nil.
func (r *ApplicationRepository) FindActiveDuplicate(ctx context.Context, studentID, supervisorID string) (*models.Application, error) {
	apps, err := r.ListByStudent(ctx, studentID,
		docstore.Eq(FieldSupervisorID, supervisorID),
		docstore.In(FieldStatus, activeApplicationStatuses...),
	)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}
