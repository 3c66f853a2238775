package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// AuditContext describes who performed an administrative change.
type AuditContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
}

// SupervisorCapacityService edits supervisor capacity limits and keeps availability in sync.
type SupervisorCapacityService struct {
	repos     *Repositories
	validator *validator.Validate
	logger    *zap.Logger
	cache     cacheInvalidator
	now       func() time.Time
}

// NewSupervisorCapacityService constructs the service. cache may be nil.
func NewSupervisorCapacityService(repos *Repositories, validate *validator.Validate, cache cacheInvalidator, logger *zap.Logger) *SupervisorCapacityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorCapacityService{repos: repos, validator: validate, logger: logger, cache: cache, now: utcNow}
}

// UpdateMaxCapacity sets a supervisor's maximum capacity and records an audit entry.
func (s *SupervisorCapacityService) UpdateMaxCapacity(ctx context.Context, supervisorID string, req dto.UpdateCapacityRequest, actor AuditContext) (*dto.CapacityUpdateResult, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	newMax := *req.MaxCapacity

	var result dto.CapacityUpdateResult
	err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		sup, err := s.repos.Supervisors.GetTx(tx, supervisorID)
		if err != nil {
			return storeError(err, "Supervisor", "load supervisor")
		}
		if newMax < sup.CurrentCapacity {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("Maximum capacity cannot be lower than the current load (%d)", sup.CurrentCapacity))
		}
		availability := models.DeriveAvailability(sup.CurrentCapacity, newMax)
		result = dto.CapacityUpdateResult{
			SupervisorID:       sup.ID,
			PreviousMax:        sup.MaxCapacity,
			MaxCapacity:        newMax,
			CurrentCapacity:    sup.CurrentCapacity,
			AvailabilityStatus: string(availability),
		}
		return s.repos.Supervisors.UpdateTx(tx, supervisorID, docstore.Fields{
			repository.FieldMaxCapacity:        newMax,
			repository.FieldAvailabilityStatus: availability,
			repository.FieldUpdatedAt:          s.now(),
		})
	})
	if err != nil {
		return nil, storeError(err, "Supervisor", "update supervisor capacity")
	}

	s.audit(ctx, supervisorID, req.Reason, result, actor)
	s.logger.Info("supervisor capacity updated",
		zap.String("supervisor_id", supervisorID),
		zap.String("actor_id", actor.ActorID),
		zap.Int("previous_max", result.PreviousMax),
		zap.Int("max", result.MaxCapacity),
		zap.String("reason", req.Reason),
	)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	}
	return &result, nil
}

func (s *SupervisorCapacityService) audit(ctx context.Context, supervisorID, reason string, result dto.CapacityUpdateResult, actor AuditContext) {
	oldValues, _ := json.Marshal(map[string]int{"maxCapacity": result.PreviousMax})
	newValues, _ := json.Marshal(map[string]int{"maxCapacity": result.MaxCapacity})
	entry := &models.AuditLog{
		Action:     models.AuditActionCapacityUpdate,
		Resource:   repository.CollectionSupervisors,
		ResourceID: &supervisorID,
		OldValues:  oldValues,
		NewValues:  newValues,
		Reason:     reason,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		CreatedAt:  s.now(),
	}
	if actor.ActorID != "" {
		entry.UserID = &actor.ActorID
	}
	if err := s.repos.Audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("supervisor_id", supervisorID), zap.Error(err))
	}
}

// ReconcileAvailability repairs supervisors whose stored availability disagrees with their capacity.
func (s *SupervisorCapacityService) ReconcileAvailability(ctx context.Context) (*dto.ReconcileResult, error) {
	supervisors, err := s.repos.Supervisors.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "Supervisor", "list supervisors")
	}
	result := &dto.ReconcileResult{Checked: len(supervisors)}
	for _, sup := range supervisors {
		if sup.AvailabilityStatus == models.DeriveAvailability(sup.CurrentCapacity, sup.MaxCapacity) {
			continue
		}
		repaired := false
		err := s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			repaired = false
			current, err := s.repos.Supervisors.GetTx(tx, sup.ID)
			if err != nil {
				return err
			}
			want := models.DeriveAvailability(current.CurrentCapacity, current.MaxCapacity)
			if current.AvailabilityStatus == want {
				return nil
			}
			repaired = true
			return s.repos.Supervisors.UpdateTx(tx, sup.ID, docstore.Fields{
				repository.FieldAvailabilityStatus: want,
				repository.FieldUpdatedAt:          s.now(),
			})
		})
		if err != nil {
			s.logger.Warn("availability repair failed", zap.String("supervisor_id", sup.ID), zap.Error(err))
			continue
		}
		if repaired {
			result.Repaired++
		}
	}
	if result.Repaired > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	}
	return result, nil
}
