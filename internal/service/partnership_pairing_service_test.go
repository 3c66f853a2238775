package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

func TestPairStudentsDirectly(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipNone, nil)
	f.addStudent("b", "Budi", models.PartnershipPendingSent, nil)
	f.addStudent("c", "Citra", models.PartnershipPendingReceived, nil)
	outgoing := f.addRequest("b", "c")
	svc := NewPartnershipPairingService(f.repos, nil)

	require.NoError(t, svc.PairStudents(f.ctx, "a", "b", "admin-1"))

	assert.True(t, f.student("a").IsPairedWith("b"))
	assert.True(t, f.student("b").IsPairedWith("a"))
	assert.Equal(t, models.RequestCancelled, f.request(outgoing).Status)
	assert.Equal(t, models.PartnershipNone, f.student("c").PartnershipStatus)

	logs, err := f.repos.Audit.ListByResource(f.ctx, repository.CollectionStudents, "a")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionAdminPair, logs[0].Action)

	err = svc.PairStudents(f.ctx, "a", "c", "")
	requireKind(t, err, appErrors.KindInvalidState)
	requireKind(t, svc.PairStudents(f.ctx, "a", "a", ""), appErrors.KindValidation)
}

func TestUnpairRequiresMutualPairing(t *testing.T) {
	f := newFixture(t)
	f.addPair("a", "b")
	f.addStudent("c", "Citra", models.PartnershipPaired, strPtr("a"))
	svc := NewPartnershipPairingService(f.repos, nil)

	err := svc.UnpairStudents(f.ctx, "a", "c", "")
	requireKind(t, err, appErrors.KindInvalidState)

	assert.True(t, f.student("a").IsPairedWith("b"))
	assert.True(t, f.student("c").IsPairedWith("a"))
}

func TestUnpairClearsPartnerInfoOnActiveApplications(t *testing.T) {
	f := newFixture(t)
	f.addPair("a", "b")
	f.addSupervisor("sup", 1, 5)
	svc := NewPartnershipPairingService(f.repos, nil)

	active := []string{
		f.addApplication("a", "sup", models.ApplicationPending),
		f.addApplication("a", "sup", models.ApplicationApproved),
		f.addApplication("b", "sup", models.ApplicationPending),
		f.addApplication("b", "sup", models.ApplicationPending),
	}
	closed := f.addApplication("a", "sup", models.ApplicationRejected)
	for _, id := range append(active, closed) {
		app := f.application(id)
		partner := "b"
		if app.StudentID == "b" {
			partner = "a"
		}
		_, err := svc.UpdatePartnerInfoOnApplications(f.ctx, app.StudentID, partnerInfoOf(f.student(partner)))
		require.NoError(t, err)
	}
	require.NoError(t, f.repos.Applications.Update(f.ctx, closed, docstore.Fields{
		repository.FieldHasPartner:  true,
		repository.FieldPartnerName: "Budi",
	}))

	require.NoError(t, svc.UnpairStudents(f.ctx, "b", "a", ""))

	assert.Equal(t, models.PartnershipNone, f.student("a").PartnershipStatus)
	assert.Nil(t, f.student("a").PartnerID)
	assert.Equal(t, models.PartnershipNone, f.student("b").PartnershipStatus)
	for _, id := range active {
		app := f.application(id)
		assert.False(t, app.HasPartner, id)
		assert.Nil(t, app.PartnerName, id)
		assert.Nil(t, app.PartnerEmail, id)
		assert.Nil(t, app.PartnerID, id)
	}
	assert.True(t, f.application(closed).HasPartner)
}

func TestCancelAllPendingRequestsReleasesIdleCounterparts(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipPaired, strPtr("z"))
	f.addStudent("b", "Budi", models.PartnershipPendingReceived, nil)
	f.addStudent("c", "Citra", models.PartnershipPendingSent, nil)
	f.addStudent("d", "Dewi", models.PartnershipPendingSent, nil)
	f.addStudent("e", "Eko", models.PartnershipPendingReceived, nil)
	toB := f.addRequest("a", "b")
	fromC := f.addRequest("c", "a")
	toE := f.addRequest("a", "e")
	dToE := f.addRequest("d", "e")
	svc := NewPartnershipPairingService(f.repos, nil)

	n, err := svc.CancelAllPendingRequests(f.ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []string{toB, fromC, toE} {
		assert.Equal(t, models.RequestCancelled, f.request(id).Status)
	}
	assert.Equal(t, models.RequestPending, f.request(dToE).Status)
	assert.Equal(t, models.PartnershipNone, f.student("b").PartnershipStatus)
	assert.Equal(t, models.PartnershipNone, f.student("c").PartnershipStatus)
	assert.Equal(t, models.PartnershipPendingReceived, f.student("e").PartnershipStatus)
	assert.Equal(t, models.PartnershipPaired, f.student("a").PartnershipStatus)

	n, err = svc.CancelAllPendingRequests(f.ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdatePartnerInfoSpansBatches(t *testing.T) {
	f := newFixture(t)
	f.addStudent("a", "Ana", models.PartnershipPaired, strPtr("b"))
	f.addSupervisor("sup", 0, 50)
	total := docstore.MaxBatchWrites + 20
	for i := 0; i < total; i++ {
		f.addApplication("a", "sup", models.ApplicationPending)
	}
	svc := NewPartnershipPairingService(f.repos, nil)

	n, err := svc.UpdatePartnerInfoOnApplications(f.ctx, "a", PartnerInfo{HasPartner: true, Name: strPtr("Budi")})
	require.NoError(t, err)
	assert.Equal(t, total, n)

	apps, err := f.repos.Applications.FindAll(f.ctx, docstore.Eq(repository.FieldHasPartner, true))
	require.NoError(t, err)
	assert.Len(t, apps, total)
}
