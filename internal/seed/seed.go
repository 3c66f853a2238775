// Package seed fills a document store with demo accounts and profiles for local use.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/service"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "password123"

// Options sizes the generated data set.
type Options struct {
	Students    int
	Supervisors int
	// ProjectsPerSupervisor defaults to 1.
	ProjectsPerSupervisor int
	// Seed makes output reproducible when non-zero.
	Seed int64
}

// Result lists what was written.
type Result struct {
	AdminEmail  string
	Students    []string
	Supervisors []string
	Projects    []string
}

// Seeder writes demo data through the repositories.
type Seeder struct {
	repos  *service.Repositories
	logger *zap.Logger
	now    func() time.Time
	hash   func(string) (string, error)
}

// New constructs a Seeder.
func New(repos *service.Repositories, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{repos: repos, logger: logger, now: func() time.Time { return time.Now().UTC() }, hash: service.HashPassword}
}

// Run creates one admin, the requested supervisors with projects and the requested students.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Seed != 0 {
		gofakeit.Seed(opts.Seed)
	} else {
		gofakeit.Seed(time.Now().UnixNano())
	}
	if opts.ProjectsPerSupervisor <= 0 {
		opts.ProjectsPerSupervisor = 1
	}

	hash, err := s.hash(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	res := &Result{AdminEmail: "admin@mentormatch.local"}

	if err := s.createUser(ctx, uuid.NewString(), res.AdminEmail, "Platform Admin", models.RoleAdmin, hash, now); err != nil {
		return nil, err
	}

	for i := 0; i < opts.Supervisors; i++ {
		id := uuid.NewString()
		name := "Dr. " + gofakeit.Name()
		email := emailFor(name, "staff", i)
		maxCapacity := gofakeit.Number(2, 8)
		current := gofakeit.Number(0, maxCapacity)
		if err := s.createUser(ctx, id, email, name, models.RoleSupervisor, hash, now); err != nil {
			return nil, err
		}
		if _, err := s.repos.Supervisors.Create(ctx, &models.Supervisor{
			ID:                 id,
			Name:               name,
			Email:              email,
			Department:         gofakeit.RandomString(departments),
			CurrentCapacity:    current,
			MaxCapacity:        maxCapacity,
			AvailabilityStatus: models.DeriveAvailability(current, maxCapacity),
			IsActive:           true,
			IsApproved:         true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}); err != nil {
			return nil, fmt.Errorf("create supervisor: %w", err)
		}
		res.Supervisors = append(res.Supervisors, id)

		for p := 0; p < opts.ProjectsPerSupervisor; p++ {
			projectID, err := s.repos.Projects.Create(ctx, &models.Project{
				SupervisorID: id,
				Title:        strings.TrimSuffix(gofakeit.Sentence(5), "."),
				Description:  gofakeit.Paragraph(1, 3, 12, " "),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return nil, fmt.Errorf("create project: %w", err)
			}
			res.Projects = append(res.Projects, projectID)
		}
	}

	for i := 0; i < opts.Students; i++ {
		id := uuid.NewString()
		name := gofakeit.Name()
		email := emailFor(name, "student", i)
		if err := s.createUser(ctx, id, email, name, models.RoleStudent, hash, now); err != nil {
			return nil, err
		}
		if _, err := s.repos.Students.Create(ctx, &models.Student{
			ID:                id,
			Name:              name,
			Email:             email,
			Department:        gofakeit.RandomString(departments),
			StudentID:         fmt.Sprintf("S%06d", gofakeit.Number(1, 999999)),
			PartnershipStatus: models.PartnershipNone,
			MatchStatus:       models.MatchUnmatched,
			CreatedAt:         now,
			UpdatedAt:         now,
		}); err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
		res.Students = append(res.Students, id)
	}

	s.logger.Info("seed complete",
		zap.Int("students", len(res.Students)),
		zap.Int("supervisors", len(res.Supervisors)),
		zap.Int("projects", len(res.Projects)),
	)
	return res, nil
}

var departments = []string{"Computer Science", "Information Systems", "Software Engineering", "Data Science"}

func (s *Seeder) createUser(ctx context.Context, id, email, name string, role models.UserRole, hash string, now time.Time) error {
	if _, err := s.repos.Users.Create(ctx, &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("create user %s: %w", email, err)
	}
	return nil
}

// emailFor derives a unique lowercase address; the index keeps fake names from colliding.
func emailFor(name, domain string, i int) string {
	local := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(name, ".", "")), "."))
	return fmt.Sprintf("%s.%d@%s.mentormatch.local", local, i, domain)
}
