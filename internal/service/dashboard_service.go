package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
)

// DashboardService composes read-only rollups. Only the admin summary is cached.
type DashboardService struct {
	repos  *Repositories
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs the dashboard service. cache may be nil.
func NewDashboardService(repos *Repositories, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repos: repos, cache: cache, ttl: ttl, logger: logger, now: utcNow}
}

// Admin returns the platform rollup and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	return readThrough(ctx, s.cache, dashboardKey("admin"), s.ttl, s.buildAdmin)
}

func (s *DashboardService) buildAdmin(ctx context.Context) (*models.AdminDashboard, error) {
	students, err := s.repos.Students.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "Student", "load students")
	}
	supervisors, err := s.repos.Supervisors.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "Supervisor", "load supervisors")
	}
	apps, err := s.repos.Applications.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "Application", "load applications")
	}
	pending, err := s.repos.PartnershipRequests.ListPending(ctx)
	if err != nil {
		return nil, storeError(err, "Partnership request", "load partnership requests")
	}
	pendingCo, err := s.repos.SupervisorPartnershipRequests.ListPending(ctx)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "load co-supervision requests")
	}

	dash := &models.AdminDashboard{
		Students: models.StudentRollup{
			Total:         len(students),
			ByMatch:       map[models.MatchStatus]int{},
			ByPartnership: map[models.PartnershipStatus]int{},
		},
		Supervisors: models.SupervisorRollup{
			Total:          len(supervisors),
			ByAvailability: map[models.AvailabilityStatus]int{},
		},
		Applications:        countByStatus(apps),
		PendingPartnerships: len(pending),
		PendingCoSupervisor: len(pendingCo),
		GeneratedAt:         s.now(),
	}
	for _, st := range students {
		match := st.MatchStatus
		if match == "" {
			match = models.MatchUnmatched
		}
		dash.Students.ByMatch[match]++
		dash.Students.ByPartnership[st.Status()]++
	}
	for _, sup := range supervisors {
		if sup.IsActive {
			dash.Supervisors.Active++
		}
		dash.Supervisors.TotalCapacity += sup.MaxCapacity
		dash.Supervisors.UsedCapacity += sup.CurrentCapacity
		dash.Supervisors.ByAvailability[models.DeriveAvailability(sup.CurrentCapacity, sup.MaxCapacity)]++
	}

	return dash, nil
}

// Supervisor returns the supervisor's own view.
func (s *DashboardService) Supervisor(ctx context.Context, supervisorID string) (*models.SupervisorDashboard, error) {
	sup, err := s.repos.Supervisors.FindByID(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Supervisor", "load supervisor")
	}
	apps, err := s.repos.Applications.ListBySupervisor(ctx, supervisorID, "")
	if err != nil {
		return nil, storeError(err, "Application", "load applications")
	}
	projects, err := s.repos.Projects.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Project", "load projects")
	}
	incoming, err := s.repos.SupervisorPartnershipRequests.ListPendingIncoming(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "load co-supervision requests")
	}
	outgoing, err := s.repos.SupervisorPartnershipRequests.ListPendingOutgoing(ctx, supervisorID)
	if err != nil {
		return nil, storeError(err, "Co-supervision request", "load co-supervision requests")
	}

	pendingApps := make([]models.Application, 0)
	for _, app := range apps {
		if app.Status == models.ApplicationPending {
			pendingApps = append(pendingApps, app)
		}
	}
	return &models.SupervisorDashboard{
		Supervisor:          *sup,
		Applications:        countByStatus(apps),
		PendingApplications: pendingApps,
		Projects:            projects,
		IncomingRequests:    incoming,
		OutgoingRequests:    outgoing,
	}, nil
}

// Student returns the student's own view.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	student, err := s.repos.Students.FindByID(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "Student", "load student")
	}
	dash := &models.StudentDashboard{Student: *student}

	if student.PartnerID != nil {
		partner, err := s.repos.Students.FindByID(ctx, *student.PartnerID)
		switch {
		case err == nil:
			dash.Partner = partner
		case errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("partner profile missing", zap.String("student_id", studentID), zap.String("partner_id", *student.PartnerID))
		default:
			return nil, storeError(err, "Student", "load partner")
		}
	}
	if dash.Applications, err = s.repos.Applications.ListByStudent(ctx, studentID); err != nil {
		return nil, storeError(err, "Application", "load applications")
	}
	if dash.IncomingRequests, err = s.repos.PartnershipRequests.ListPendingIncoming(ctx, studentID); err != nil {
		return nil, storeError(err, "Partnership request", "load partnership requests")
	}
	if dash.OutgoingRequests, err = s.repos.PartnershipRequests.ListPendingOutgoing(ctx, studentID); err != nil {
		return nil, storeError(err, "Partnership request", "load partnership requests")
	}
	return dash, nil
}

func countByStatus(apps []models.Application) map[models.ApplicationStatus]int {
	counts := map[models.ApplicationStatus]int{
		models.ApplicationPending:           0,
		models.ApplicationApproved:          0,
		models.ApplicationRejected:          0,
		models.ApplicationRevisionRequested: 0,
	}
	for _, app := range apps {
		counts[app.Status]++
	}
	return counts
}
