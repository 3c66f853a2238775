package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/tracing"
)

// PartnershipWorkflowService drives the student partnership handshake.
type PartnershipWorkflowService struct {
	repos    *Repositories
	requests *PartnershipRequestService
	pairing  *PartnershipPairingService
	logger   *zap.Logger
	observer WorkflowObserver
	now      func() time.Time
}

// PartnershipWorkflowOption configures the workflow service.
type PartnershipWorkflowOption func(*PartnershipWorkflowService)

// WithPartnershipObserver records workflow outcomes.
func WithPartnershipObserver(observer WorkflowObserver) PartnershipWorkflowOption {
	return func(s *PartnershipWorkflowService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithPartnershipClock overrides the time source.
func WithPartnershipClock(now func() time.Time) PartnershipWorkflowOption {
	return func(s *PartnershipWorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPartnershipWorkflowService constructs the workflow service.
func NewPartnershipWorkflowService(repos *Repositories, requests *PartnershipRequestService, pairing *PartnershipPairingService, logger *zap.Logger, opts ...PartnershipWorkflowOption) *PartnershipWorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PartnershipWorkflowService{
		repos:    repos,
		requests: requests,
		pairing:  pairing,
		logger:   logger,
		observer: nopObserver{},
		now:      utcNow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateRequest sends a partnership request from requesterID to targetID and returns its id.
func (s *PartnershipWorkflowService) CreateRequest(ctx context.Context, requesterID, targetID string) (id string, err error) {
	ctx, span := tracing.Start(ctx, "partnership.CreateRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("partnership.create_request", err)
	}()

	if requesterID == "" || targetID == "" {
		return "", validationError("target student is required")
	}
	if requesterID == targetID {
		return "", validationError("You cannot send a partnership request to yourself")
	}

	existing, err := s.requests.PendingBetween(ctx, requesterID, targetID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", appErrors.Clone(appErrors.ErrDuplicateRequest, "You have already sent a partnership request to this student")
	}
	incoming, err := s.requests.PendingBetween(ctx, targetID, requesterID)
	if err != nil {
		return "", err
	}
	if incoming != nil {
		return "", appErrors.Clone(appErrors.ErrIncomingRequestExists, "This student has already sent you a request. Respond to it instead.")
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		requester, txErr := s.repos.Students.GetTx(tx, requesterID)
		if txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		target, txErr := s.repos.Students.GetTx(tx, targetID)
		if txErr != nil {
			return storeError(txErr, "Student", "load student")
		}

		switch requester.Status() {
		case models.PartnershipPaired:
			return invalidState("You are already paired with a partner")
		case models.PartnershipPendingSent:
			return invalidState("You already have an outgoing request. Cancel your existing outgoing request first.")
		case models.PartnershipPendingReceived:
			return invalidState("You have an incoming partnership request. Respond to your incoming request first.")
		}
		if target.Status() != models.PartnershipNone {
			return invalidState("This student is no longer available for partnership")
		}

		now := s.now()
		req := &models.PartnershipRequest{
			RequesterID:     requesterID,
			RequesterName:   requester.Name,
			TargetStudentID: targetID,
			TargetName:      target.Name,
			Status:          models.RequestPending,
			CreatedAt:       now,
		}
		if id, txErr = s.repos.PartnershipRequests.CreateTx(tx, req); txErr != nil {
			return txErr
		}
		if txErr = s.repos.Students.UpdateTx(tx, requesterID, docstore.Fields{
			repository.FieldPartnershipStatus: models.PartnershipPendingSent,
			repository.FieldUpdatedAt:         now,
		}); txErr != nil {
			return txErr
		}
		return s.repos.Students.UpdateTx(tx, targetID, docstore.Fields{
			repository.FieldPartnershipStatus: models.PartnershipPendingReceived,
			repository.FieldUpdatedAt:         now,
		})
	})
	if err != nil {
		return "", storeError(err, "Student", "create partnership request")
	}

	s.logger.Info("partnership request created",
		zap.String("request_id", id),
		zap.String("requester_id", requesterID),
		zap.String("target_id", targetID),
	)
	return id, nil
}

// RespondToRequest accepts or rejects a pending request addressed to targetID.
func (s *PartnershipWorkflowService) RespondToRequest(ctx context.Context, requestID, targetID string, action models.RequestAction) (err error) {
	ctx, span := tracing.Start(ctx, "partnership.RespondToRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("partnership.respond", err)
	}()

	if action != models.ActionAccept && action != models.ActionReject {
		return validationError("action must be accept or reject")
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.TargetStudentID != targetID {
		return forbidden("Only the recipient can respond to this request")
	}
	if req.Status != models.RequestPending {
		return invalidState(fmt.Sprintf("This request has already been %s", req.Status))
	}

	if action == models.ActionReject {
		return s.closeRequest(ctx, requestID, models.RequestRejected)
	}
	return s.accept(ctx, req)
}

func (s *PartnershipWorkflowService) accept(ctx context.Context, req *models.PartnershipRequest) error {
	var requester, target *models.Student
	err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.PartnershipRequests.GetTx(tx, req.ID)
		if txErr != nil {
			return storeError(txErr, "Partnership request", "load partnership request")
		}
		if requester, txErr = s.repos.Students.GetTx(tx, req.RequesterID); txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		if target, txErr = s.repos.Students.GetTx(tx, req.TargetStudentID); txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		if current.Status != models.RequestPending {
			return invalidState(fmt.Sprintf("This request has already been %s", current.Status))
		}
		if requester.Status() != models.PartnershipPendingSent || target.Status() != models.PartnershipPendingReceived {
			return invalidState("This partnership request is no longer valid")
		}

		now := s.now()
		if txErr = pairWrites(tx, s.repos.Students, requester.ID, target.ID, now); txErr != nil {
			return txErr
		}
		return s.repos.PartnershipRequests.UpdateTx(tx, req.ID, docstore.Fields{
			repository.FieldStatus:      models.RequestAccepted,
			repository.FieldRespondedAt: now,
		})
	})
	if err != nil {
		return storeError(err, "Partnership request", "accept partnership request")
	}

	s.pairing.afterPairing(ctx, requester, target)
	s.logger.Info("partnership request accepted",
		zap.String("request_id", req.ID),
		zap.String("requester_id", requester.ID),
		zap.String("target_id", target.ID),
	)
	return nil
}

// CancelRequest withdraws a pending request sent by requesterID.
func (s *PartnershipWorkflowService) CancelRequest(ctx context.Context, requestID, requesterID string) (err error) {
	ctx, span := tracing.Start(ctx, "partnership.CancelRequest")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("partnership.cancel", err)
	}()

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != requesterID {
		return forbidden("Only the sender can cancel this request")
	}
	if req.Status != models.RequestPending {
		return invalidState(fmt.Sprintf("This request has already been %s", req.Status))
	}
	return s.closeRequest(ctx, requestID, models.RequestCancelled)
}

// closeRequest marks a pending request with a terminal status and releases both parties.
func (s *PartnershipWorkflowService) closeRequest(ctx context.Context, requestID string, status models.RequestStatus) error {
	err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, txErr := s.repos.PartnershipRequests.GetTx(tx, requestID)
		if txErr != nil {
			return storeError(txErr, "Partnership request", "load partnership request")
		}
		if current.Status != models.RequestPending {
			return invalidState(fmt.Sprintf("This request has already been %s", current.Status))
		}
		parties := make([]string, 0, 2)
		for _, id := range []string{current.RequesterID, current.TargetStudentID} {
			student, txErr := s.repos.Students.GetTx(tx, id)
			if errors.Is(txErr, docstore.ErrNotFound) {
				continue
			}
			if txErr != nil {
				return txErr
			}
			if isPendingStatus(student.Status()) {
				parties = append(parties, id)
			}
		}

		now := s.now()
		if txErr = s.repos.PartnershipRequests.UpdateTx(tx, requestID, docstore.Fields{
			repository.FieldStatus:      status,
			repository.FieldRespondedAt: now,
		}); txErr != nil {
			return txErr
		}
		return resetWrites(tx, s.repos.Students, now, parties...)
	})
	if err != nil {
		return storeError(err, "Partnership request", "update partnership request")
	}
	s.logger.Info("partnership request closed", zap.String("request_id", requestID), zap.String("status", string(status)))
	return nil
}
