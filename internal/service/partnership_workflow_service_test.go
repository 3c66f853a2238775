package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

func TestCreateRequestMarksBothParties(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)

	id, err := f.workflow().CreateRequest(f.ctx, "a", "b")
	require.NoError(t, err)

	req := f.request(id)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "Ana", req.RequesterName)
	assert.Equal(t, "Budi", req.TargetName)
	assert.Equal(t, models.PartnershipPendingSent, f.student("a").PartnershipStatus)
	assert.Equal(t, models.PartnershipPendingReceived, f.student("b").PartnershipStatus)
}

func TestCreateRequestPreChecks(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)
	svc := f.workflow()

	_, err := svc.CreateRequest(f.ctx, "a", "a")
	requireKind(t, err, appErrors.KindValidation)

	_, err = svc.CreateRequest(f.ctx, "a", "b")
	require.NoError(t, err)

	_, err = svc.CreateRequest(f.ctx, "a", "b")
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRequest)

	_, err = svc.CreateRequest(f.ctx, "b", "a")
	assert.ErrorIs(t, err, appErrors.ErrIncomingRequestExists)
	assert.Equal(t, "INCOMING_REQUEST_EXISTS", appErrors.FromError(err).Code)

	_, err = svc.CreateRequest(f.ctx, "a", "ghost")
	requireKind(t, err, appErrors.KindNotFound)
}

func TestCreateRequestStatusGuards(t *testing.T) {
	cases := []struct {
		name      string
		requester models.PartnershipStatus
		target    models.PartnershipStatus
		message   string
	}{
		{"requester paired", models.PartnershipPaired, models.PartnershipNone, "already paired"},
		{"requester has outgoing", models.PartnershipPendingSent, models.PartnershipNone, "Cancel your existing outgoing request first"},
		{"requester has incoming", models.PartnershipPendingReceived, models.PartnershipNone, "Respond to your incoming request first"},
		{"target busy", models.PartnershipNone, models.PartnershipPendingReceived, "no longer available"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.addStudent("a", "Ana", tc.requester, nil)
			f.addStudent("b", "Budi", tc.target, nil)

			_, err := f.workflow().CreateRequest(f.ctx, "a", "b")
			requireKind(t, err, appErrors.KindInvalidState)
			assert.Contains(t, appErrors.FromError(err).Message, tc.message)

			pending, err := f.repos.PartnershipRequests.ListPending(f.ctx)
			require.NoError(t, err)
			assert.Empty(t, pending)
			assert.Equal(t, tc.requester, f.student("a").PartnershipStatus)
		})
	}
}

func TestAcceptPairsSymmetricallyAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)
	f.addStudent("d", "Dewi", models.PartnershipPendingSent, nil)
	f.addSupervisor("sup", 0, 5)
	activeA := f.addApplication("a", "sup", models.ApplicationPending)
	rejectedA := f.addApplication("a", "sup", models.ApplicationRejected)
	activeB := f.addApplication("b", "sup", models.ApplicationApproved)

	svc := f.workflow()
	id, err := svc.CreateRequest(f.ctx, "a", "b")
	require.NoError(t, err)
	stale := f.addRequest("d", "a")

	require.NoError(t, svc.RespondToRequest(f.ctx, id, "b", models.ActionAccept))

	a, b := f.student("a"), f.student("b")
	assert.True(t, a.IsPairedWith("b"))
	assert.True(t, b.IsPairedWith("a"))

	req := f.request(id)
	assert.Equal(t, models.RequestAccepted, req.Status)
	assert.NotNil(t, req.RespondedAt)

	assert.Equal(t, models.RequestCancelled, f.request(stale).Status)
	assert.Equal(t, models.PartnershipNone, f.student("d").PartnershipStatus)

	appA := f.application(activeA)
	assert.True(t, appA.HasPartner)
	require.NotNil(t, appA.PartnerName)
	assert.Equal(t, "Budi", *appA.PartnerName)
	assert.Equal(t, "b", *appA.PartnerID)

	appB := f.application(activeB)
	require.NotNil(t, appB.PartnerEmail)
	assert.Equal(t, "a@uni.test", *appB.PartnerEmail)

	assert.False(t, f.application(rejectedA).HasPartner)
}

func TestRespondRequiresTargetAndPendingRequest(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)
	svc := f.workflow()
	id, err := svc.CreateRequest(f.ctx, "a", "b")
	require.NoError(t, err)

	err = svc.RespondToRequest(f.ctx, id, "a", models.ActionAccept)
	requireKind(t, err, appErrors.KindUnauthorized)

	err = svc.RespondToRequest(f.ctx, id, "b", models.RequestAction("maybe"))
	requireKind(t, err, appErrors.KindValidation)

	require.NoError(t, svc.RespondToRequest(f.ctx, id, "b", models.ActionReject))
	assert.Equal(t, models.RequestRejected, f.request(id).Status)
	assert.Equal(t, models.PartnershipNone, f.student("a").PartnershipStatus)
	assert.Equal(t, models.PartnershipNone, f.student("b").PartnershipStatus)

	err = svc.RespondToRequest(f.ctx, id, "b", models.ActionAccept)
	requireKind(t, err, appErrors.KindInvalidState)
}

func TestCancelRequestOnlyBySender(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)
	svc := f.workflow()
	id, err := svc.CreateRequest(f.ctx, "a", "b")
	require.NoError(t, err)

	requireKind(t, svc.CancelRequest(f.ctx, id, "b"), appErrors.KindUnauthorized)
	require.NoError(t, svc.CancelRequest(f.ctx, id, "a"))

	assert.Equal(t, models.RequestCancelled, f.request(id).Status)
	assert.Equal(t, models.PartnershipNone, f.student("a").PartnershipStatus)
	assert.Equal(t, models.PartnershipNone, f.student("b").PartnershipStatus)
	requireKind(t, svc.CancelRequest(f.ctx, id, "a"), appErrors.KindInvalidState)

	_, err = svc.CreateRequest(f.ctx, "b", "a")
	require.NoError(t, err)
}

func TestConcurrentRequestsLeaveOnePending(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipNone, nil)
	svc := f.workflow()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		from, to := "a", "b"
		if i%2 == 1 {
			from, to = "b", "a"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateRequest(f.ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.NotEqual(t, appErrors.KindInternal, appErrors.KindOf(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	pending, err := f.repos.PartnershipRequests.ListPending(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, successes)

	a, b := f.student("a"), f.student("b")
	req := pending[0]
	assert.Equal(t, models.PartnershipPendingSent, f.student(req.RequesterID).PartnershipStatus)
	assert.Equal(t, models.PartnershipPendingReceived, f.student(req.TargetStudentID).PartnershipStatus)
	assert.NotEqual(t, a.PartnershipStatus, b.PartnershipStatus)
}
