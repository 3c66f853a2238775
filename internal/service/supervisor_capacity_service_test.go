package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func intPtr(v int) *int { return &v }

func TestUpdateMaxCapacity(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 3, 4)
	cache := &recordingInvalidator{}
	svc := NewSupervisorCapacityService(f.repos, nil, cache, nil)
	actor := AuditContext{ActorID: "admin-1", IPAddress: "10.0.0.1"}

	_, err := svc.UpdateMaxCapacity(f.ctx, "sup", dto.UpdateCapacityRequest{MaxCapacity: intPtr(2), Reason: "reduce load"}, actor)
	requireKind(t, err, appErrors.KindConflict)
	assert.Contains(t, appErrors.FromError(err).Message, "(3)")

	_, err = svc.UpdateMaxCapacity(f.ctx, "sup", dto.UpdateCapacityRequest{MaxCapacity: intPtr(51), Reason: "too many"}, actor)
	requireKind(t, err, appErrors.KindValidation)
	_, err = svc.UpdateMaxCapacity(f.ctx, "sup", dto.UpdateCapacityRequest{MaxCapacity: intPtr(5)}, actor)
	requireKind(t, err, appErrors.KindValidation)

	result, err := svc.UpdateMaxCapacity(f.ctx, "sup", dto.UpdateCapacityRequest{MaxCapacity: intPtr(10), Reason: "new cohort"}, actor)
	require.NoError(t, err)
	assert.Equal(t, 4, result.PreviousMax)
	assert.Equal(t, 10, result.MaxCapacity)
	assert.Equal(t, string(models.AvailabilityAvailable), result.AvailabilityStatus)

	sup := f.supervisor("sup")
	assert.Equal(t, 10, sup.MaxCapacity)
	assert.Equal(t, models.AvailabilityAvailable, sup.AvailabilityStatus)

	logs, err := f.repos.Audit.ListByResource(f.ctx, repository.CollectionSupervisors, "sup")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCapacityUpdate, logs[0].Action)
	assert.Equal(t, "new cohort", logs[0].Reason)
	assert.Equal(t, "admin-1", *logs[0].UserID)
	assert.JSONEq(t, `{"maxCapacity":4}`, string(logs[0].OldValues))
	assert.Equal(t, []string{dashboardCachePattern}, cache.patterns)

	_, err = svc.UpdateMaxCapacity(f.ctx, "missing", dto.UpdateCapacityRequest{MaxCapacity: intPtr(5), Reason: "new cohort"}, actor)
	requireKind(t, err, appErrors.KindNotFound)
}

func TestReconcileAvailabilityRepairsStaleLabels(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("ok", 0, 5)
	f.addSupervisor("stale", 5, 5)
	require.NoError(t, f.repos.Supervisors.Update(f.ctx, "stale", docstore.Fields{
		repository.FieldAvailabilityStatus: models.AvailabilityAvailable,
	}))
	svc := NewSupervisorCapacityService(f.repos, nil, nil, nil)

	result, err := svc.ReconcileAvailability(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Repaired)
	assert.Equal(t, models.AvailabilityUnavailable, f.supervisor("stale").AvailabilityStatus)

	reconciler, err := NewAvailabilityReconciler(svc, "@every 1h", nil)
	require.NoError(t, err)
	reconciler.RunOnce()

	_, err = NewAvailabilityReconciler(svc, "not a schedule", nil)
	assert.Error(t, err)
}
