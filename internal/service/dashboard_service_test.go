package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
)

func TestAdminDashboardRollupIsCached(t *testing.T) {
	f := newFixture(t)
	f.addPair("s1", "s2")
	f.addStudent("s3", "Student", models.PartnershipPendingSent, nil)
	f.addSupervisor("sup", 2, 3)
	f.addSupervisor("full", 4, 4)
	f.addApplication("s1", "sup", models.ApplicationApproved)
	f.addApplication("s3", "sup", models.ApplicationPending)
	f.addRequest("s3", "s4")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetricsService()
	cache := NewCacheService(repository.NewCacheRepository(client, nil), metrics, time.Minute, nil, true)
	svc := NewDashboardService(f.repos, cache, time.Minute, nil)

	dash, hit, err := svc.Admin(f.ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, dash.Students.Total)
	assert.Equal(t, 2, dash.Students.ByPartnership[models.PartnershipPaired])
	assert.Equal(t, 1, dash.Students.ByPartnership[models.PartnershipPendingSent])
	assert.Equal(t, 7, dash.Supervisors.TotalCapacity)
	assert.Equal(t, 6, dash.Supervisors.UsedCapacity)
	assert.Equal(t, 1, dash.Supervisors.ByAvailability[models.AvailabilityLimited])
	assert.Equal(t, 1, dash.Supervisors.ByAvailability[models.AvailabilityUnavailable])
	assert.Equal(t, 1, dash.Applications[models.ApplicationApproved])
	assert.Equal(t, 0, dash.Applications[models.ApplicationRejected])
	assert.Equal(t, 1, dash.PendingPartnerships)

	cached, hit, err := svc.Admin(f.ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, dash.Students.Total, cached.Students.Total)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)

	assert.True(t, mr.Exists("dashboard:admin"))
	require.NoError(t, cache.InvalidateDashboards(f.ctx))
	assert.False(t, mr.Exists("dashboard:admin"))
	_, hit, err = svc.Admin(f.ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestReadThroughWithoutCache(t *testing.T) {
	var disabled *CacheService
	builds := 0
	build := func(context.Context) (*models.AdminDashboard, error) {
		builds++
		return &models.AdminDashboard{PendingPartnerships: builds}, nil
	}

	for i := 1; i <= 2; i++ {
		dash, hit, err := readThrough(context.Background(), disabled, dashboardKey("admin"), time.Minute, build)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, i, dash.PendingPartnerships)
	}

	boom := errors.New("store down")
	_, _, err := readThrough(context.Background(), disabled, dashboardKey("admin"), time.Minute,
		func(context.Context) (*models.AdminDashboard, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "dashboard:supervisor:sup-1", dashboardKey("supervisor", "sup-1"))
}

func TestStudentAndSupervisorDashboards(t *testing.T) {
	f := newFixture(t)
	f.addPair("s1", "s2")
	f.addSupervisor("sup", 1, 3)
	f.addApplication("s1", "sup", models.ApplicationPending)
	f.addApplication("s2", "sup", models.ApplicationRejected)
	f.addProject("p1", "sup")
	svc := NewDashboardService(f.repos, nil, 0, nil)

	student, err := svc.Student(f.ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, student.Partner)
	assert.Equal(t, "s2", student.Partner.ID)
	assert.Len(t, student.Applications, 1)

	sup, err := svc.Supervisor(f.ctx, "sup")
	require.NoError(t, err)
	assert.Len(t, sup.PendingApplications, 1)
	assert.Equal(t, 1, sup.Applications[models.ApplicationRejected])
	assert.Len(t, sup.Projects, 1)

	_, err = svc.Student(f.ctx, "missing")
	assert.Error(t, err)
}
