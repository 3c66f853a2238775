package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ApplicationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.ApplicationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []models.ApplicationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ApplicationEvent(nil), p.events...)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	repos *Repositories
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore(docstore.WithRetryDelay(time.Millisecond), docstore.WithMaxAttempts(10))
	return &fixture{t: t, ctx: context.Background(), repos: NewRepositories(store)}
}

func (f *fixture) addStudent(id, name string, status models.PartnershipStatus, partnerID *string) {
	f.t.Helper()
	_, err := f.repos.Students.Create(f.ctx, &models.Student{
		ID:                id,
		Name:              name,
		Email:             id + "@uni.test",
		PartnerID:         partnerID,
		PartnershipStatus: status,
		MatchStatus:       models.MatchUnmatched,
	})
	require.NoError(f.t, err)
}

func (f *fixture) addPair(aID, bID string) {
	f.t.Helper()
	f.addStudent(aID, "Student "+aID, models.PartnershipPaired, strPtr(bID))
	f.addStudent(bID, "Student "+bID, models.PartnershipPaired, strPtr(aID))
}

func (f *fixture) addSupervisor(id string, current, maxCap int) {
	f.t.Helper()
	_, err := f.repos.Supervisors.Create(f.ctx, &models.Supervisor{
		ID:                 id,
		Name:               "Dr. " + id,
		Email:              id + "@uni.test",
		CurrentCapacity:    current,
		MaxCapacity:        maxCap,
		AvailabilityStatus: models.DeriveAvailability(current, maxCap),
		IsActive:           true,
		IsApproved:         true,
	})
	require.NoError(f.t, err)
}

func (f *fixture) addApplication(studentID, supervisorID string, status models.ApplicationStatus) string {
	f.t.Helper()
	now := time.Now().UTC()
	id, err := f.repos.Applications.Create(f.ctx, &models.Application{
		StudentID:    studentID,
		StudentEmail: studentID + "@uni.test",
		SupervisorID: supervisorID,
		ProjectTitle: "Project of " + studentID,
		Status:       status,
		DateApplied:  now,
		LastUpdated:  now,
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) addRequest(requesterID, targetID string) string {
	f.t.Helper()
	id, err := f.repos.PartnershipRequests.Create(f.ctx, &models.PartnershipRequest{
		RequesterID:     requesterID,
		TargetStudentID: targetID,
		Status:          models.RequestPending,
		CreatedAt:       time.Now().UTC(),
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) student(id string) *models.Student {
	f.t.Helper()
	s, err := f.repos.Students.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) supervisor(id string) *models.Supervisor {
	f.t.Helper()
	s, err := f.repos.Supervisors.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) application(id string) *models.Application {
	f.t.Helper()
	a, err := f.repos.Applications.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) request(id string) *models.PartnershipRequest {
	f.t.Helper()
	r, err := f.repos.PartnershipRequests.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) workflow() *PartnershipWorkflowService {
	requests := NewPartnershipRequestService(f.repos, nil)
	return NewPartnershipWorkflowService(f.repos, requests, NewPartnershipPairingService(f.repos, nil), nil)
}

func requireKind(t *testing.T, err error, kind appErrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, appErrors.KindOf(err), "unexpected error: %v", err)
}
