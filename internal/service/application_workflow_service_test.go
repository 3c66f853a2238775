package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

func newApplicationService(f *fixture, publisher EventPublisher) *ApplicationWorkflowService {
	return NewApplicationWorkflowService(f.repos, nil, nil, WithApplicationPublisher(publisher))
}

func decide(status models.ApplicationStatus) dto.UpdateApplicationStatusRequest {
	return dto.UpdateApplicationStatusRequest{Status: status}
}

func TestApproveRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 2)
	for _, id := range []string{"s1", "s2", "s3"} {
		f.addStudent(id, "Student "+id, models.PartnershipNone, nil)
	}
	apps := []string{
		f.addApplication("s1", "sup", models.ApplicationPending),
		f.addApplication("s2", "sup", models.ApplicationPending),
		f.addApplication("s3", "sup", models.ApplicationPending),
	}
	svc := newApplicationService(f, nil)

	for _, id := range apps[:2] {
		_, err := svc.UpdateStatus(f.ctx, id, decide(models.ApplicationApproved), "sup", models.RoleSupervisor)
		require.NoError(t, err)
	}
	_, err := svc.UpdateStatus(f.ctx, apps[2], decide(models.ApplicationApproved), "sup", models.RoleSupervisor)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	requireKind(t, err, appErrors.KindConflict)
	assert.Contains(t, appErrors.FromError(err).Message, "2/2")

	sup := f.supervisor("sup")
	assert.Equal(t, 2, sup.CurrentCapacity)
	assert.Equal(t, models.AvailabilityUnavailable, sup.AvailabilityStatus)
	assert.Equal(t, models.MatchMatched, f.student("s1").MatchStatus)
	assert.Equal(t, models.MatchMatched, f.student("s2").MatchStatus)
	assert.Equal(t, models.MatchUnmatched, f.student("s3").MatchStatus)
	assert.Equal(t, models.ApplicationPending, f.application(apps[2]).Status)

	approved := f.application(apps[0])
	assert.NotNil(t, approved.ResponseDate)
}

func TestUnapproveReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addPair("s1", "s2")
	appID := f.addApplication("s1", "sup", models.ApplicationPending)
	require.NoError(t, f.repos.Applications.Update(f.ctx, appID, docstore.Fields{repository.FieldPartnerID: "s2"}))
	svc := newApplicationService(f, nil)

	_, err := svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationApproved), "admin", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, f.supervisor("sup").CurrentCapacity)
	assert.Equal(t, models.MatchMatched, f.student("s2").MatchStatus)

	feedback := "please narrow the scope"
	app, err := svc.UpdateStatus(f.ctx, appID, dto.UpdateApplicationStatusRequest{
		Status:   models.ApplicationRevisionRequested,
		Feedback: &feedback,
	}, "sup", models.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRevisionRequested, app.Status)

	sup := f.supervisor("sup")
	assert.Equal(t, 0, sup.CurrentCapacity)
	assert.Equal(t, models.AvailabilityAvailable, sup.AvailabilityStatus)
	assert.Equal(t, models.MatchPending, f.student("s1").MatchStatus)
	assert.Equal(t, models.MatchPending, f.student("s2").MatchStatus)
	stored := f.application(appID)
	require.NotNil(t, stored.SupervisorFeedback)
	assert.Equal(t, feedback, *stored.SupervisorFeedback)
}

func TestUnapproveNeverDropsCapacityBelowZero(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addStudent("s1", "Student", models.PartnershipNone, nil)
	appID := f.addApplication("s1", "sup", models.ApplicationApproved)

	_, err := newApplicationService(f, nil).UpdateStatus(f.ctx, appID, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, 0, f.supervisor("sup").CurrentCapacity)
	assert.Equal(t, models.MatchUnmatched, f.student("s1").MatchStatus)
}

func TestUnapproveKeepsMatchFromOtherApplications(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addSupervisor("other", 0, 3)
	f.addStudent("s1", "Ana", models.PartnershipNone, nil)
	f.addStudent("s2", "Budi", models.PartnershipNone, nil)
	first := f.addApplication("s1", "sup", models.ApplicationPending)
	f.addApplication("s1", "other", models.ApplicationPending)
	second := f.addApplication("s2", "sup", models.ApplicationPending)
	third := f.addApplication("s2", "other", models.ApplicationPending)
	svc := newApplicationService(f, nil)

	for _, id := range []string{first, second} {
		_, err := svc.UpdateStatus(f.ctx, id, decide(models.ApplicationApproved), "sup", models.RoleSupervisor)
		require.NoError(t, err)
	}
	_, err := svc.UpdateStatus(f.ctx, third, decide(models.ApplicationApproved), "other", models.RoleSupervisor)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(f.ctx, first, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, f.student("s1").MatchStatus)

	_, err = svc.UpdateStatus(f.ctx, second, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, models.MatchMatched, f.student("s2").MatchStatus)
	assert.Equal(t, 0, f.supervisor("sup").CurrentCapacity)
}

func TestUpdateStatusGuards(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addSupervisor("other", 0, 3)
	f.addStudent("s1", "Student", models.PartnershipNone, nil)
	appID := f.addApplication("s1", "sup", models.ApplicationPending)
	svc := newApplicationService(f, nil)

	_, err := svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationApproved), "other", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindUnauthorized)
	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationApproved), "s1", models.RoleStudent)
	requireKind(t, err, appErrors.KindUnauthorized)

	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationPending), "sup", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindInvalidState)

	_, err = svc.UpdateStatus(f.ctx, appID, decide("archived"), "sup", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindValidation)

	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindInvalidState)
	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationPending), "sup", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindInvalidState)

	_, err = svc.UpdateStatus(f.ctx, "missing", decide(models.ApplicationApproved), "sup", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindNotFound)
	assert.Contains(t, appErrors.FromError(err).Message, "It may have been deleted")
}

func TestUpdateStatusPublishesEvent(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addStudent("s1", "Student", models.PartnershipNone, nil)
	appID := f.addApplication("s1", "sup", models.ApplicationPending)
	publisher := &recordingPublisher{err: errors.New("queue full")}

	_, err := newApplicationService(f, publisher).UpdateStatus(f.ctx, appID, decide(models.ApplicationRejected), "sup", models.RoleSupervisor)
	require.NoError(t, err)

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventApplicationStatusChanged, events[0].Type)
	assert.Equal(t, models.ApplicationPending, events[0].PreviousStatus)
	assert.Equal(t, models.ApplicationRejected, events[0].NewStatus)
	assert.Equal(t, "sup@uni.test", events[0].SupervisorEmail)
	assert.Equal(t, "sup", events[0].TriggeredByUserID)
}

func TestResubmitFlow(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addPair("s1", "s2")
	f.addStudent("s3", "Stranger", models.PartnershipNone, nil)
	appID := f.addApplication("s1", "sup", models.ApplicationPending)
	require.NoError(t, f.repos.Applications.Update(f.ctx, appID, docstore.Fields{repository.FieldPartnerID: "s2"}))
	publisher := &recordingPublisher{}
	svc := newApplicationService(f, publisher)

	_, err := svc.Resubmit(f.ctx, appID, "s1", dto.ResubmitApplicationRequest{})
	requireKind(t, err, appErrors.KindInvalidState)

	_, err = svc.UpdateStatus(f.ctx, appID, decide(models.ApplicationRevisionRequested), "sup", models.RoleSupervisor)
	require.NoError(t, err)

	_, err = svc.Resubmit(f.ctx, appID, "s3", dto.ResubmitApplicationRequest{})
	requireKind(t, err, appErrors.KindUnauthorized)

	title := "Sharper title"
	app, err := svc.Resubmit(f.ctx, appID, "s2", dto.ResubmitApplicationRequest{ProjectTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, app.Status)

	stored := f.application(appID)
	assert.Equal(t, models.ApplicationPending, stored.Status)
	assert.Equal(t, title, stored.ProjectTitle)
	assert.NotNil(t, stored.ResubmittedDate)
	assert.Nil(t, stored.ResponseDate)

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventApplicationResubmitted, events[1].Type)
	assert.Equal(t, "s2", events[1].TriggeredByUserID)
}

func TestSubmitStampsPartnerAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addPair("s1", "s2")
	svc := newApplicationService(f, nil)
	req := dto.SubmitApplicationRequest{SupervisorID: "sup", ProjectTitle: "Edge caching"}

	app, err := svc.Submit(f.ctx, "s1", req)
	require.NoError(t, err)
	assert.True(t, app.HasPartner)
	require.NotNil(t, app.PartnerEmail)
	assert.Equal(t, "s2@uni.test", *app.PartnerEmail)
	assert.Equal(t, models.MatchPending, f.student("s1").MatchStatus)
	assert.Equal(t, models.MatchPending, f.student("s2").MatchStatus)

	_, err = svc.Submit(f.ctx, "s1", req)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateApplication)
	_, err = svc.Submit(f.ctx, "s2", req)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateApplication)

	dup, existing := svc.CheckDuplicate(f.ctx, "s2", "sup")
	assert.True(t, dup)
	assert.Equal(t, app.ID, existing)
	dup, _ = svc.CheckDuplicate(f.ctx, "s2", "nobody")
	assert.False(t, dup)

	_, err = svc.Submit(f.ctx, "s1", dto.SubmitApplicationRequest{SupervisorID: "sup"})
	requireKind(t, err, appErrors.KindValidation)
}

func TestProjectTitleMustBeSingleLine(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 3)
	f.addStudent("s1", "Ana", models.PartnershipNone, nil)
	svc := newApplicationService(f, nil)
	title := "AI\r\nBcc: someone@else.test"

	_, err := svc.Submit(f.ctx, "s1", dto.SubmitApplicationRequest{SupervisorID: "sup", ProjectTitle: title})
	requireKind(t, err, appErrors.KindValidation)
	apps, err := f.repos.Applications.ListByStudent(f.ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, apps)

	appID := f.addApplication("s1", "sup", models.ApplicationRevisionRequested)
	_, err = svc.Resubmit(f.ctx, appID, "s1", dto.ResubmitApplicationRequest{ProjectTitle: &title})
	requireKind(t, err, appErrors.KindValidation)
	stored := f.application(appID)
	assert.Equal(t, models.ApplicationRevisionRequested, stored.Status)
	assert.Equal(t, "Project of s1", stored.ProjectTitle)
}

func TestListIsRoleScopedAndPaginated(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 10)
	f.addSupervisor("other", 0, 10)
	f.addStudent("s1", "Student", models.PartnershipNone, nil)
	for i := 0; i < 3; i++ {
		f.addApplication("s1", "sup", models.ApplicationPending)
	}
	f.addApplication("s2", "other", models.ApplicationRejected)
	svc := newApplicationService(f, nil)

	apps, page, err := svc.List(f.ctx, "sup", models.RoleSupervisor, dto.ApplicationQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 3, page.TotalCount)

	apps, _, err = svc.List(f.ctx, "admin", models.RoleAdmin, dto.ApplicationQuery{Status: models.ApplicationRejected})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "s2", apps[0].StudentID)

	apps, _, err = svc.List(f.ctx, "s1", models.RoleStudent, dto.ApplicationQuery{})
	require.NoError(t, err)
	assert.Len(t, apps, 3)

	_, err = svc.Get(f.ctx, apps[0].ID, "other", models.RoleSupervisor)
	requireKind(t, err, appErrors.KindUnauthorized)
}

func TestConcurrentApprovalsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("sup", 0, 2)
	var ids []string
	for _, s := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		f.addStudent(s, "Student "+s, models.PartnershipNone, nil)
		ids = append(ids, f.addApplication(s, "sup", models.ApplicationPending))
	}
	svc := newApplicationService(f, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.UpdateStatus(f.ctx, id, decide(models.ApplicationApproved), "sup", models.RoleSupervisor)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				approved++
				return
			}
			assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err), "unexpected error: %v", err)
		}(id)
	}
	wg.Wait()

	sup := f.supervisor("sup")
	assert.LessOrEqual(t, approved, 2)
	assert.Equal(t, approved, sup.CurrentCapacity)

	count := 0
	for _, id := range ids {
		if f.application(id).Status == models.ApplicationApproved {
			count++
		}
	}
	assert.Equal(t, approved, count)
}
