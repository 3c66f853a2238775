package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/tracing"
)

// SupervisorPartnershipService manages project-scoped co-supervision requests.
type SupervisorPartnershipService struct {
	repos    *Repositories
	requests *PartnershipRequestService
	logger   *zap.Logger
	observer WorkflowObserver
	now      func() time.Time
}

// SupervisorPartnershipOption configures the service.
type SupervisorPartnershipOption func(*SupervisorPartnershipService)

// WithSupervisorPartnershipObserver records workflow outcomes.
func WithSupervisorPartnershipObserver(observer WorkflowObserver) SupervisorPartnershipOption {
	return func(s *SupervisorPartnershipService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewSupervisorPartnershipService constructs the service.
func NewSupervisorPartnershipService(repos *Repositories, requests *PartnershipRequestService, logger *zap.Logger, opts ...SupervisorPartnershipOption) *SupervisorPartnershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SupervisorPartnershipService{repos: repos, requests: requests, logger: logger, observer: nopObserver{}, now: utcNow}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func capacityExceeded(who string, sup *models.Supervisor) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrCapacityExceeded,
		fmt.Sprintf("%s has reached maximum capacity (%d/%d)", who, sup.CurrentCapacity, sup.MaxCapacity))
}

// CreateRequest invites targetID to co-supervise projectID and returns the request id.
func (s *SupervisorPartnershipService) CreateRequest(ctx context.Context, requesterID, targetID, projectID string) (id string, err error) {
	ctx, span := tracing.Start(ctx, "supervisor_partnership.CreateRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("supervisor_partnership.create_request", err)
	}()

	if requesterID == "" || targetID == "" || projectID == "" {
		return "", validationError("target supervisor and project are required")
	}
	if requesterID == targetID {
		return "", validationError("You cannot invite yourself as co-supervisor")
	}

	project, err := s.repos.Projects.FindByID(ctx, projectID)
	if err != nil {
		return "", storeError(err, "Project", "load project")
	}
	if project.SupervisorID != requesterID {
		return "", forbidden("You can only invite co-supervisors to your own projects")
	}
	if project.CoSupervisorID != nil {
		return "", appErrors.Clone(appErrors.ErrConflict, "This project already has a co-supervisor")
	}
	requester, err := s.repos.Supervisors.FindByID(ctx, requesterID)
	if err != nil {
		return "", storeError(err, "Supervisor", "load supervisor")
	}
	target, err := s.repos.Supervisors.FindByID(ctx, targetID)
	if err != nil {
		return "", storeError(err, "Supervisor", "load supervisor")
	}
	if !target.IsActive {
		return "", appErrors.Clone(appErrors.ErrConflict, "The selected supervisor is not active")
	}
	if !target.HasCapacity() {
		return "", capacityExceeded("The selected supervisor", target)
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.Projects.GetTx(tx, projectID)
		if txErr != nil {
			return storeError(txErr, "Project", "load project")
		}
		if current.SupervisorID != requesterID {
			return forbidden("You can only invite co-supervisors to your own projects")
		}
		if current.CoSupervisorID != nil {
			return appErrors.Clone(appErrors.ErrConflict, "This project already has a co-supervisor")
		}
		// queried after the project read: a request committed since then bumps the project and fails this attempt
		if txErr = s.checkNoPendingForProject(ctx, requesterID, targetID, projectID); txErr != nil {
			return txErr
		}

		now := s.now()
		req := &models.SupervisorPartnershipRequest{
			RequestingSupervisorID:   requesterID,
			RequestingSupervisorName: requester.Name,
			TargetSupervisorID:       targetID,
			TargetSupervisorName:     target.Name,
			ProjectID:                projectID,
			ProjectTitle:             current.Title,
			Status:                   models.RequestPending,
			CreatedAt:                now,
		}
		if id, txErr = s.repos.SupervisorPartnershipRequests.CreateTx(tx, req); txErr != nil {
			return txErr
		}
		// touching the project serialises concurrent invitations for it
		return s.repos.Projects.UpdateTx(tx, projectID, docstore.Fields{repository.FieldUpdatedAt: now})
	})
	if err != nil {
		return "", storeError(err, "Project", "create co-supervision request")
	}

	s.logger.Info("co-supervision request created",
		zap.String("request_id", id),
		zap.String("project_id", projectID),
		zap.String("target_id", targetID),
	)
	return id, nil
}

func (s *SupervisorPartnershipService) checkNoPendingForProject(ctx context.Context, requesterID, targetID, projectID string) error {
	existing, err := s.requests.PendingForProject(ctx, requesterID, targetID, projectID)
	if err != nil {
		return err
	}
	if existing != nil {
		return appErrors.Clone(appErrors.ErrDuplicateRequest, "You have already invited this supervisor to this project")
	}
	reverse, err := s.requests.PendingForProject(ctx, targetID, requesterID, projectID)
	if err != nil {
		return err
	}
	if reverse != nil {
		return appErrors.Clone(appErrors.ErrIncomingRequestExists, "This supervisor has already sent you a request for this project. Respond to it instead.")
	}
	return nil
}

// RespondToRequest accepts or rejects a pending co-supervision request addressed to targetID.
func (s *SupervisorPartnershipService) RespondToRequest(ctx context.Context, requestID, targetID string, action models.RequestAction) (err error) {
	ctx, span := tracing.Start(ctx, "supervisor_partnership.RespondToRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("supervisor_partnership.respond", err)
	}()

	if action != models.ActionAccept && action != models.ActionReject {
		return validationError("action must be accept or reject")
	}
	req, err := s.requests.GetSupervisorRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.TargetSupervisorID != targetID {
		return forbidden("Only the invited supervisor can respond to this request")
	}
	if req.Status != models.RequestPending {
		return invalidState(fmt.Sprintf("This request has already been %s", req.Status))
	}

	if action == models.ActionReject {
		return s.closeRequest(ctx, requestID, models.RequestRejected)
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.SupervisorPartnershipRequests.GetTx(tx, requestID)
		if txErr != nil {
			return storeError(txErr, "Co-supervision request", "load co-supervision request")
		}
		project, txErr := s.repos.Projects.GetTx(tx, req.ProjectID)
		if txErr != nil {
			return storeError(txErr, "Project", "load project")
		}
		target, txErr := s.repos.Supervisors.GetTx(tx, targetID)
		if txErr != nil {
			return storeError(txErr, "Supervisor", "load supervisor")
		}
		if current.Status != models.RequestPending {
			return invalidState(fmt.Sprintf("This request has already been %s", current.Status))
		}
		if project.CoSupervisorID != nil {
			return appErrors.Clone(appErrors.ErrConflict, "This project already has a co-supervisor")
		}
		if project.SupervisorID != current.RequestingSupervisorID {
			return invalidState("The project owner has changed since this request was sent")
		}
		if !target.HasCapacity() {
			return capacityExceeded("You", target)
		}

		now := s.now()
		if txErr = s.repos.Projects.UpdateTx(tx, project.ID, docstore.Fields{
			repository.FieldCoSupervisorID:   target.ID,
			repository.FieldCoSupervisorName: target.Name,
			repository.FieldUpdatedAt:        now,
		}); txErr != nil {
			return txErr
		}
		return s.repos.SupervisorPartnershipRequests.UpdateTx(tx, requestID, docstore.Fields{
			repository.FieldStatus:      models.RequestAccepted,
			repository.FieldRespondedAt: now,
		})
	})
	if err != nil {
		return storeError(err, "Co-supervision request", "accept co-supervision request")
	}

	if n, cerr := s.cancelSiblings(ctx, req.ProjectID, requestID); cerr != nil {
		s.logger.Warn("cancel sibling co-supervision requests failed", zap.String("project_id", req.ProjectID), zap.Error(cerr))
	} else if n > 0 {
		s.logger.Info("cancelled sibling co-supervision requests", zap.String("project_id", req.ProjectID), zap.Int("count", n))
	}
	return nil
}

// cancelSiblings cancels the other pending requests for the same project.
func (s *SupervisorPartnershipService) cancelSiblings(ctx context.Context, projectID, acceptedID string) (int, error) {
	pending, err := s.repos.SupervisorPartnershipRequests.ListPendingForProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	writer := docstore.NewChunkedWriter(s.repos.Store)
	for _, req := range pending {
		if req.ID == acceptedID {
			continue
		}
		if err := writer.Update(ctx, s.repos.SupervisorPartnershipRequests.Ref(req.ID), docstore.Fields{
			repository.FieldStatus:      models.RequestCancelled,
			repository.FieldRespondedAt: now,
		}); err != nil {
			return writer.Committed(), err
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return writer.Committed(), err
	}
	return writer.Committed(), nil
}

// CancelRequest withdraws a pending request sent by requesterID.
func (s *SupervisorPartnershipService) CancelRequest(ctx context.Context, requestID, requesterID string) (err error) {
	ctx, span := tracing.Start(ctx, "supervisor_partnership.CancelRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("supervisor_partnership.cancel", err)
	}()

	req, err := s.requests.GetSupervisorRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequestingSupervisorID != requesterID {
		return forbidden("Only the sender can cancel this request")
	}
	if req.Status != models.RequestPending {
		return invalidState(fmt.Sprintf("This request has already been %s", req.Status))
	}
	return s.closeRequest(ctx, requestID, models.RequestCancelled)
}

func (s *SupervisorPartnershipService) closeRequest(ctx context.Context, requestID string, status models.RequestStatus) error {
	err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.SupervisorPartnershipRequests.GetTx(tx, requestID)
		if txErr != nil {
			return storeError(txErr, "Co-supervision request", "load co-supervision request")
		}
		if current.Status != models.RequestPending {
			return invalidState(fmt.Sprintf("This request has already been %s", current.Status))
		}
		return s.repos.SupervisorPartnershipRequests.UpdateTx(tx, requestID, docstore.Fields{
			repository.FieldStatus:      status,
			repository.FieldRespondedAt: s.now(),
		})
	})
	if err != nil {
		return storeError(err, "Co-supervision request", "update co-supervision request")
	}
	s.logger.Info("co-supervision request closed", zap.String("request_id", requestID), zap.String("status", string(status)))
	return nil
}

// RemoveCoSupervisor clears the project's co-supervisor. The owner or the co-supervisor may do this.
func (s *SupervisorPartnershipService) RemoveCoSupervisor(ctx context.Context, projectID, callerID string) (err error) {
	ctx, span := tracing.Start(ctx, "supervisor_partnership.RemoveCoSupervisor")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("supervisor_partnership.remove_co_supervisor", err)
	}()

	project, err := s.repos.Projects.FindByID(ctx, projectID)
	if err != nil {
		return storeError(err, "Project", "load project")
	}
	isOwner := project.SupervisorID == callerID
	isCo := project.CoSupervisorID != nil && *project.CoSupervisorID == callerID
	if !isOwner && !isCo {
		return forbidden("Only the project owner or its co-supervisor can remove the co-supervisor")
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.Projects.GetTx(tx, projectID)
		if txErr != nil {
			return storeError(txErr, "Project", "load project")
		}
		if current.CoSupervisorID == nil {
			return invalidState("This project has no co-supervisor")
		}
		if current.SupervisorID != callerID && *current.CoSupervisorID != callerID {
			return forbidden("Only the project owner or its co-supervisor can remove the co-supervisor")
		}
		return s.repos.Projects.UpdateTx(tx, projectID, docstore.Fields{
			repository.FieldCoSupervisorID:   nil,
			repository.FieldCoSupervisorName: nil,
			repository.FieldUpdatedAt:        s.now(),
		})
	})
	if err != nil {
		return storeError(err, "Project", "remove co-supervisor")
	}
	s.logger.Info("co-supervisor removed", zap.String("project_id", projectID), zap.String("caller_id", callerID))
	return nil
}
