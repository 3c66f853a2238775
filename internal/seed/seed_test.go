package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/service"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

func TestSeederRun(t *testing.T) {
	ctx := context.Background()
	repos := service.NewRepositories(docstore.NewMemoryStore())
	s := New(repos, nil)
	s.hash = func(p string) (string, error) { return "hashed:" + p, nil }

	res, err := s.Run(ctx, Options{Students: 5, Supervisors: 2, ProjectsPerSupervisor: 2, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, res.Students, 5)
	assert.Len(t, res.Supervisors, 2)
	assert.Len(t, res.Projects, 4)

	users, err := repos.Users.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 8)

	admin, err := repos.Users.FindByEmail(ctx, res.AdminEmail)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "hashed:"+DefaultPassword, admin.PasswordHash)

	for _, id := range res.Supervisors {
		sup, err := repos.Supervisors.FindByID(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, sup.CurrentCapacity, sup.MaxCapacity)
		assert.Equal(t, models.DeriveAvailability(sup.CurrentCapacity, sup.MaxCapacity), sup.AvailabilityStatus)
		projects, err := repos.Projects.ListBySupervisor(ctx, id)
		require.NoError(t, err)
		assert.Len(t, projects, 2)
	}

	student, err := repos.Students.FindByID(ctx, res.Students[0])
	require.NoError(t, err)
	account, err := repos.Users.FindByEmail(ctx, student.Email)
	require.NoError(t, err)
	assert.Equal(t, student.ID, account.ID)
}

func TestEmailFor(t *testing.T) {
	assert.Equal(t, "dr.ada.lovelace.3@staff.mentormatch.local", emailFor("Dr. Ada Lovelace", "staff", 3))
}
