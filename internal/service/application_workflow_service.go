package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/tracing"
)

const (
	defaultApplicationPageSize = 20
	maxApplicationPageSize     = 100
)

var errStatusChanged = appErrors.Clone(appErrors.ErrConflict, "The application was updated by someone else. Reload and try again.")

// ApplicationWorkflowService runs the application state machine and its capacity accounting.
type ApplicationWorkflowService struct {
	repos     *Repositories
	publisher EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	observer  WorkflowObserver
	now       func() time.Time
}

// ApplicationWorkflowOption configures the service.
type ApplicationWorkflowOption func(*ApplicationWorkflowService)

// WithApplicationPublisher sets the event sink used after commits.
func WithApplicationPublisher(publisher EventPublisher) ApplicationWorkflowOption {
	return func(s *ApplicationWorkflowService) {
		s.publisher = publisher
	}
}

// WithApplicationObserver records workflow outcomes.
func WithApplicationObserver(observer WorkflowObserver) ApplicationWorkflowOption {
	return func(s *ApplicationWorkflowService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithApplicationClock overrides the time source.
func WithApplicationClock(now func() time.Time) ApplicationWorkflowOption {
	return func(s *ApplicationWorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewApplicationWorkflowService constructs the service.
func NewApplicationWorkflowService(repos *Repositories, validate *validator.Validate, logger *zap.Logger, opts ...ApplicationWorkflowOption) *ApplicationWorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApplicationWorkflowService{
		repos:     repos,
		validator: validate,
		logger:    logger,
		observer:  nopObserver{},
		now:       utcNow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit files a new application from studentID.
func (s *ApplicationWorkflowService) Submit(ctx context.Context, studentID string, req dto.SubmitApplicationRequest) (app *models.Application, err error) {
	ctx, span := tracing.Start(ctx, "application.Submit")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("application.submit", err)
	}()

	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	if err := singleLine("projectTitle", req.ProjectTitle); err != nil {
		return nil, err
	}
	student, err := s.repos.Students.FindByID(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "Student", "load student")
	}
	supervisor, err := s.repos.Supervisors.FindByID(ctx, req.SupervisorID)
	if err != nil {
		return nil, storeError(err, "Supervisor", "load supervisor")
	}
	if !supervisor.IsActive || !supervisor.IsApproved {
		return nil, invalidState("This supervisor is not accepting applications")
	}
	dup, err := s.repos.Applications.FindActiveDuplicate(ctx, studentID, req.SupervisorID)
	if err != nil {
		return nil, storeError(err, "Application", "check duplicate applications")
	}
	if dup != nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateApplication, "You already have an active application to this supervisor")
	}

	var partner *models.Student
	if student.Status() == models.PartnershipPaired && student.PartnerID != nil {
		partner, err = s.repos.Students.FindByID(ctx, *student.PartnerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err, "Student", "load partner")
		}
	}

	now := s.now()
	info := partnerInfoOf(partner)
	app = &models.Application{
		StudentID:      student.ID,
		StudentName:    student.Name,
		StudentEmail:   student.Email,
		PartnerID:      info.PartnerID,
		SupervisorID:   supervisor.ID,
		SupervisorName: supervisor.Name,
		ProjectTitle:   req.ProjectTitle,
		Description:    req.Description,
		Status:         models.ApplicationPending,
		DateApplied:    now,
		LastUpdated:    now,
		HasPartner:     info.HasPartner,
		PartnerName:    info.Name,
		PartnerEmail:   info.Email,
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		ids := []string{student.ID}
		if partner != nil {
			ids = append(ids, partner.ID)
		}
		toMark := make([]string, 0, len(ids))
		for _, id := range ids {
			current, txErr := s.repos.Students.GetTx(tx, id)
			if txErr != nil {
				return storeError(txErr, "Student", "load student")
			}
			if current.MatchStatus == "" || current.MatchStatus == models.MatchUnmatched {
				toMark = append(toMark, id)
			}
		}
		app.ID = ""
		if _, txErr := s.repos.Applications.CreateTx(tx, app); txErr != nil {
			return txErr
		}
		for _, id := range toMark {
			if txErr := s.repos.Students.UpdateTx(tx, id, docstore.Fields{
				repository.FieldMatchStatus: models.MatchPending,
				repository.FieldUpdatedAt:   now,
			}); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "Application", "submit application")
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("student_id", studentID),
		zap.String("supervisor_id", supervisor.ID),
	)
	return app, nil
}

// UpdateStatus applies a supervisor or admin decision to an application.
func (s *ApplicationWorkflowService) UpdateStatus(ctx context.Context, applicationID string, req dto.UpdateApplicationStatusRequest, callerID string, callerRole models.UserRole) (app *models.Application, err error) {
	ctx, span := tracing.Start(ctx, "application.UpdateStatus")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("application.update_status", err)
	}()

	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	app, err = s.repos.Applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, "Application", "load application")
	}
	if callerRole != models.RoleAdmin && !(callerRole == models.RoleSupervisor && app.SupervisorID == callerID) {
		return nil, forbidden("Only the assigned supervisor or an admin can update this application")
	}
	if req.Status == models.ApplicationPending {
		return nil, invalidState("An application cannot be moved back to pending")
	}
	if req.Status == app.Status {
		return nil, invalidState(fmt.Sprintf("Application is already %s", app.Status))
	}

	previous := app.Status
	now := s.now()
	fields := docstore.Fields{
		repository.FieldStatus:      req.Status,
		repository.FieldLastUpdated: now,
	}
	if req.Status == models.ApplicationApproved || req.Status == models.ApplicationRejected {
		fields[repository.FieldResponseDate] = now
	}
	if req.Feedback != nil {
		fields[repository.FieldSupervisorFeedback] = *req.Feedback
	}

	var supervisor *models.Supervisor
	approving := req.Status == models.ApplicationApproved
	unapproving := previous == models.ApplicationApproved && !approving
	if approving || unapproving {
		supervisor, err = s.applyWithCapacity(ctx, app, previous, req.Status, fields, now)
	} else {
		err = s.applyStatusOnly(ctx, app.ID, previous, fields)
	}
	if err != nil {
		return nil, storeError(err, "Application", "update application status")
	}

	app.Status = req.Status
	app.LastUpdated = now
	if t, ok := fields[repository.FieldResponseDate].(time.Time); ok {
		app.ResponseDate = &t
	}
	if req.Feedback != nil {
		app.SupervisorFeedback = req.Feedback
	}

	s.logger.Info("application status updated",
		zap.String("application_id", app.ID),
		zap.String("previous_status", string(previous)),
		zap.String("new_status", string(req.Status)),
		zap.String("caller_id", callerID),
	)
	s.publish(ctx, models.EventApplicationStatusChanged, app, supervisor, previous, callerID)
	return app, nil
}

// applyWithCapacity moves capacity and match status together with the application status.
func (s *ApplicationWorkflowService) applyWithCapacity(ctx context.Context, app *models.Application, previous, next models.ApplicationStatus, fields docstore.Fields, now time.Time) (*models.Supervisor, error) {
	var supervisor *models.Supervisor
	err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.Applications.GetTx(tx, app.ID)
		if txErr != nil {
			return storeError(txErr, "Application", "load application")
		}
		if supervisor, txErr = s.repos.Supervisors.GetTx(tx, current.SupervisorID); txErr != nil {
			return storeError(txErr, "Supervisor", "load supervisor")
		}
		studentIDs := []string{current.StudentID}
		if current.PartnerID != nil && *current.PartnerID != "" {
			studentIDs = append(studentIDs, *current.PartnerID)
		}
		refs := make([]docstore.Ref, 0, len(studentIDs))
		for _, id := range studentIDs {
			refs = append(refs, s.repos.Students.Ref(id))
		}
		students, txErr := tx.GetAll(refs...)
		if txErr != nil {
			return txErr
		}
		if current.Status != previous {
			return errStatusChanged
		}

		capacity := supervisor.CurrentCapacity
		matches := make([]models.MatchStatus, len(studentIDs))
		if next == models.ApplicationApproved {
			if !supervisor.HasCapacity() {
				return capacityExceeded("Supervisor", supervisor)
			}
			capacity++
			for i := range matches {
				matches[i] = models.MatchMatched
			}
		} else {
			if capacity > 0 {
				capacity--
			}
			base := models.MatchUnmatched
			if next == models.ApplicationRevisionRequested {
				base = models.MatchPending
			}
			// queried after the student reads: any competing application write also touches the student
			for i, id := range studentIDs {
				if matches[i], txErr = s.matchStatusExcluding(ctx, id, app.ID, base); txErr != nil {
					return txErr
				}
			}
		}
		availability := models.DeriveAvailability(capacity, supervisor.MaxCapacity)
		supervisor.CurrentCapacity = capacity
		supervisor.AvailabilityStatus = availability

		if txErr = s.repos.Applications.UpdateTx(tx, app.ID, fields); txErr != nil {
			return txErr
		}
		if txErr = s.repos.Supervisors.UpdateTx(tx, supervisor.ID, docstore.Fields{
			repository.FieldCurrentCapacity:    capacity,
			repository.FieldAvailabilityStatus: availability,
			repository.FieldUpdatedAt:          now,
		}); txErr != nil {
			return txErr
		}
		for i, doc := range students {
			if doc == nil {
				continue
			}
			if txErr = s.repos.Students.UpdateTx(tx, studentIDs[i], docstore.Fields{
				repository.FieldMatchStatus: matches[i],
				repository.FieldUpdatedAt:   now,
			}); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	return supervisor, err
}

// matchStatusExcluding derives a student's match status from their other applications,
// never reporting less than base.
func (s *ApplicationWorkflowService) matchStatusExcluding(ctx context.Context, studentID, excludeID string, base models.MatchStatus) (models.MatchStatus, error) {
	apps, err := s.repos.Applications.ListByStudent(ctx, studentID)
	if err != nil {
		return "", storeError(err, "Application", "load student applications")
	}
	match := base
	for _, other := range apps {
		if other.ID == excludeID {
			continue
		}
		switch other.Status {
		case models.ApplicationApproved:
			return models.MatchMatched, nil
		case models.ApplicationPending, models.ApplicationRevisionRequested:
			match = models.MatchPending
		}
	}
	return match, nil
}

// applyStatusOnly writes the application when its status is still previous.
func (s *ApplicationWorkflowService) applyStatusOnly(ctx context.Context, applicationID string, previous models.ApplicationStatus, fields docstore.Fields) error {
	return s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, err := s.repos.Applications.GetTx(tx, applicationID)
		if err != nil {
			return storeError(err, "Application", "load application")
		}
		if current.Status != previous {
			return errStatusChanged
		}
		return s.repos.Applications.UpdateTx(tx, applicationID, fields)
	})
}

// Resubmit returns an application in revision_requested to pending.
func (s *ApplicationWorkflowService) Resubmit(ctx context.Context, applicationID, studentID string, req dto.ResubmitApplicationRequest) (app *models.Application, err error) {
	ctx, span := tracing.Start(ctx, "application.Resubmit")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("application.resubmit", err)
	}()

	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	if req.ProjectTitle != nil {
		if err := singleLine("projectTitle", *req.ProjectTitle); err != nil {
			return nil, err
		}
	}
	app, err = s.repos.Applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, "Application", "load application")
	}
	if !app.IsApplicant(studentID) {
		return nil, forbidden("You can only resubmit your own applications")
	}
	if app.Status != models.ApplicationRevisionRequested {
		return nil, invalidState("Only applications with requested revisions can be resubmitted")
	}

	now := s.now()
	fields := docstore.Fields{
		repository.FieldStatus:          models.ApplicationPending,
		repository.FieldResubmittedDate: now,
		repository.FieldLastUpdated:     now,
	}
	if req.ProjectTitle != nil {
		fields[repository.FieldProjectTitle] = *req.ProjectTitle
		app.ProjectTitle = *req.ProjectTitle
	}
	if req.Description != nil {
		fields[repository.FieldDescription] = *req.Description
		app.Description = *req.Description
	}
	if err = s.applyStatusOnly(ctx, app.ID, models.ApplicationRevisionRequested, fields); err != nil {
		return nil, storeError(err, "Application", "resubmit application")
	}

	app.Status = models.ApplicationPending
	app.ResubmittedDate = &now
	app.LastUpdated = now
	s.logger.Info("application resubmitted", zap.String("application_id", app.ID), zap.String("student_id", studentID))
	s.publish(ctx, models.EventApplicationResubmitted, app, nil, models.ApplicationRevisionRequested, studentID)
	return app, nil
}

// CheckDuplicate reports an active application linking the student to the supervisor.
// Lookup failures are logged and reported as no duplicate.
func (s *ApplicationWorkflowService) CheckDuplicate(ctx context.Context, studentID, supervisorID string) (bool, string) {
	app, err := s.repos.Applications.FindActiveDuplicate(ctx, studentID, supervisorID)
	if err != nil {
		s.logger.Warn("duplicate check failed", zap.String("student_id", studentID), zap.String("supervisor_id", supervisorID), zap.Error(err))
		return false, ""
	}
	if app == nil {
		return false, ""
	}
	return true, app.ID
}

// List returns the applications visible to the caller, newest first.
func (s *ApplicationWorkflowService) List(ctx context.Context, callerID string, role models.UserRole, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, validationError("unknown application status")
	}

	var (
		apps []models.Application
		err  error
	)
	switch role {
	case models.RoleAdmin:
		filters := []docstore.Filter{}
		if query.Status != "" {
			filters = append(filters, docstore.Eq(repository.FieldStatus, query.Status))
		}
		apps, err = s.repos.Applications.FindAll(ctx, filters...)
	case models.RoleSupervisor:
		apps, err = s.repos.Applications.ListBySupervisor(ctx, callerID, query.Status)
	case models.RoleStudent:
		var filters []docstore.Filter
		if query.Status != "" {
			filters = append(filters, docstore.Eq(repository.FieldStatus, query.Status))
		}
		apps, err = s.repos.Applications.ListByStudent(ctx, callerID, filters...)
	default:
		return nil, nil, forbidden("role cannot list applications")
	}
	if err != nil {
		return nil, nil, storeError(err, "Application", "list applications")
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].DateApplied.After(apps[j].DateApplied)
	})

	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultApplicationPageSize
	}
	if size > maxApplicationPageSize {
		size = maxApplicationPageSize
	}
	total := len(apps)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return apps[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one application if the caller is a party to it or an admin.
func (s *ApplicationWorkflowService) Get(ctx context.Context, applicationID, callerID string, role models.UserRole) (*models.Application, error) {
	app, err := s.repos.Applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, "Application", "load application")
	}
	switch {
	case role == models.RoleAdmin:
	case role == models.RoleSupervisor && app.SupervisorID == callerID:
	case role == models.RoleStudent && app.IsApplicant(callerID):
	default:
		return nil, forbidden("You do not have access to this application")
	}
	return app, nil
}

func (s *ApplicationWorkflowService) publish(ctx context.Context, eventType string, app *models.Application, supervisor *models.Supervisor, previous models.ApplicationStatus, triggeredBy string) {
	if s.publisher == nil {
		return
	}
	if supervisor == nil {
		loaded, err := s.repos.Supervisors.FindByID(ctx, app.SupervisorID)
		if err != nil {
			s.logger.Warn("load supervisor for event failed", zap.String("application_id", app.ID), zap.Error(err))
		} else {
			supervisor = loaded
		}
	}
	event := models.ApplicationEvent{
		Type:              eventType,
		ApplicationID:     app.ID,
		StudentID:         app.StudentID,
		StudentName:       app.StudentName,
		StudentEmail:      app.StudentEmail,
		PartnerEmail:      app.PartnerEmail,
		SupervisorID:      app.SupervisorID,
		SupervisorName:    app.SupervisorName,
		ProjectTitle:      app.ProjectTitle,
		PreviousStatus:    previous,
		NewStatus:         app.Status,
		Feedback:          app.SupervisorFeedback,
		TriggeredByUserID: triggeredBy,
		OccurredAt:        s.now(),
	}
	if supervisor != nil {
		event.SupervisorName = supervisor.Name
		event.SupervisorEmail = supervisor.Email
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish application event failed",
			zap.String("event", eventType),
			zap.String("application_id", app.ID),
			zap.Error(err),
		)
	}
}
