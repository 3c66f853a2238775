package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

// EventPublisher accepts domain events after a workflow commit. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event models.ApplicationEvent) error
}

// WorkflowObserver receives the outcome of every workflow operation.
type WorkflowObserver interface {
	ObserveWorkflow(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveWorkflow(string, error) {}

// Repositories bundles the collection repositories shared by the workflow services.
type Repositories struct {
	Store                         docstore.Store
	Students                      *repository.StudentRepository
	Supervisors                   *repository.SupervisorRepository
	Applications                  *repository.ApplicationRepository
	PartnershipRequests           *repository.PartnershipRequestRepository
	SupervisorPartnershipRequests *repository.SupervisorPartnershipRequestRepository
	Projects                      *repository.ProjectRepository
	Users                         *repository.UserRepository
	Audit                         *repository.AuditRepository
}

// NewRepositories wires every repository over one store.
func NewRepositories(store docstore.Store) *Repositories {
	return &Repositories{
		Store:                         store,
		Students:                      repository.NewStudentRepository(store),
		Supervisors:                   repository.NewSupervisorRepository(store),
		Applications:                  repository.NewApplicationRepository(store),
		PartnershipRequests:           repository.NewPartnershipRequestRepository(store),
		SupervisorPartnershipRequests: repository.NewSupervisorPartnershipRequestRepository(store),
		Projects:                      repository.NewProjectRepository(store),
		Users:                         repository.NewUserRepository(store),
		Audit:                         repository.NewAuditRepository(store),
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// notFound builds a user-readable NotFound error for entity.
func notFound(entity string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found. It may have been deleted.", entity))
}

func invalidState(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidState, message)
}

func forbidden(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}

func validationError(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

// singleLine rejects values that would span lines once copied into mail headers.
func singleLine(field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return validationError(field + " must be a single line")
	}
	return nil
}

// storeError maps repository and store failures onto typed errors. Typed errors pass through.
func storeError(err error, entity, action string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return notFound(entity)
	case errors.Is(err, docstore.ErrConflict):
		return appErrors.Wrap(err, appErrors.ErrConcurrentUpdate, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to "+action)
	}
}

// validateStruct runs validator tags and reports the first failing field.
func validateStruct(v *validator.Validate, payload interface{}) error {
	if err := v.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return appErrors.Wrap(err, appErrors.ErrValidation, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
		return appErrors.Wrap(err, appErrors.ErrValidation, "")
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
