package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

func strPtr(s string) *string { return &s }

func TestDocumentRepositoryAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository(docstore.NewMemoryStore())

	id, err := repo.Create(ctx, &models.Student{Name: "Ana", PartnershipStatus: models.PartnershipNone})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Ana", got.Name)

	require.NoError(t, repo.Update(ctx, id, docstore.Fields{FieldPartnershipStatus: models.PartnershipPendingSent}))
	got, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PartnershipPendingSent, got.PartnershipStatus)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, "missing", docstore.Fields{"name": "x"}), ErrNotFound)

	paired, err := repo.ListByPartnershipStatus(ctx, models.PartnershipPendingSent, models.PartnershipPaired)
	require.NoError(t, err)
	assert.Len(t, paired, 1)
}

func TestDocumentRepositoryTransactionalHelpers(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewSupervisorRepository(store)
	_, err := repo.Create(ctx, &models.Supervisor{ID: "sup-1", MaxCapacity: 3, IsActive: true})
	require.NoError(t, err)

	err = store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		sup, err := repo.GetTx(tx, "sup-1")
		if err != nil {
			return err
		}
		return repo.UpdateTx(tx, sup.ID, docstore.Fields{FieldCurrentCapacity: sup.CurrentCapacity + 1})
	})
	require.NoError(t, err)

	sup, err := repo.FindByID(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sup.CurrentCapacity)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestApplicationRepositoryStudentQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(docstore.NewMemoryStore())

	apps := []models.Application{
		{ID: "a1", StudentID: "s1", SupervisorID: "sup-1", Status: models.ApplicationPending},
		{ID: "a2", StudentID: "s2", PartnerID: strPtr("s1"), SupervisorID: "sup-2", Status: models.ApplicationApproved},
		{ID: "a3", StudentID: "s1", SupervisorID: "sup-2", Status: models.ApplicationRejected},
		{ID: "a4", StudentID: "s3", SupervisorID: "sup-1", Status: models.ApplicationPending},
	}
	for i := range apps {
		_, err := repo.Create(ctx, &apps[i])
		require.NoError(t, err)
	}

	all, err := repo.ListByStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListActiveForStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.ElementsMatch(t, []string{"a1", "a2"}, []string{active[0].ID, active[1].ID})

	dup, err := repo.FindActiveDuplicate(ctx, "s1", "sup-2")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, "a2", dup.ID)

	dup, err = repo.FindActiveDuplicate(ctx, "s3", "sup-2")
	require.NoError(t, err)
	assert.Nil(t, dup)

	pending, err := repo.ListBySupervisor(ctx, "sup-1", models.ApplicationPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestPartnershipRequestRepositoryPendingLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewPartnershipRequestRepository(docstore.NewMemoryStore())

	for _, r := range []models.PartnershipRequest{
		{ID: "r1", RequesterID: "x", TargetStudentID: "y", Status: models.RequestPending},
		{ID: "r2", RequesterID: "z", TargetStudentID: "x", Status: models.RequestPending},
		{ID: "r3", RequesterID: "x", TargetStudentID: "w", Status: models.RequestCancelled},
	} {
		req := r
		_, err := repo.Create(ctx, &req)
		require.NoError(t, err)
	}

	found, err := repo.FindPending(ctx, "x", "y")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "r1", found.ID)

	none, err := repo.FindPending(ctx, "y", "x")
	require.NoError(t, err)
	assert.Nil(t, none)

	involving, err := repo.ListPendingInvolving(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, involving, 2)
}

func TestSupervisorPartnershipRequestRepositoryScopesByProject(t *testing.T) {
	ctx := context.Background()
	repo := NewSupervisorPartnershipRequestRepository(docstore.NewMemoryStore())

	for _, r := range []models.SupervisorPartnershipRequest{
		{ID: "q1", RequestingSupervisorID: "a", TargetSupervisorID: "b", ProjectID: "p1", Status: models.RequestPending},
		{ID: "q2", RequestingSupervisorID: "a", TargetSupervisorID: "c", ProjectID: "p1", Status: models.RequestPending},
		{ID: "q3", RequestingSupervisorID: "a", TargetSupervisorID: "b", ProjectID: "p2", Status: models.RequestPending},
	} {
		req := r
		_, err := repo.Create(ctx, &req)
		require.NoError(t, err)
	}

	found, err := repo.FindPending(ctx, "a", "b", "p2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "q3", found.ID)

	siblings, err := repo.ListPendingForProject(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, siblings, 2)

	incoming, err := repo.ListPendingIncoming(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, incoming, 2)
}

func TestProjectRepositoryListBySupervisor(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(docstore.NewMemoryStore())
	_, err := repo.Create(ctx, &models.Project{ID: "p1", SupervisorID: "a"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Project{ID: "p2", SupervisorID: "b", CoSupervisorID: strPtr("a")})
	require.NoError(t, err)

	projects, err := repo.ListBySupervisor(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestAuditRepositoryStampsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(docstore.NewMemoryStore())
	log := &models.AuditLog{Action: models.AuditActionCapacityUpdate, Resource: CollectionSupervisors, ResourceID: strPtr("sup-1"), Reason: "new term"}
	require.NoError(t, repo.CreateAuditLog(ctx, log))
	assert.False(t, log.CreatedAt.IsZero())

	logs, err := repo.ListByResource(ctx, CollectionSupervisors, "sup-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "new term", logs[0].Reason)
}
