package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/middleware"
	"github.com/noah-isme/mentormatch-api/internal/models"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*models.AdminDashboard, bool, error)
	Supervisor(ctx context.Context, supervisorID string) (*models.SupervisorDashboard, error)
	Student(ctx context.Context, studentID string) (*models.StudentDashboard, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Get godoc
// @Summary Dashboard for the current user
// @Description Admins receive the platform rollup, supervisors and students their own view.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		payload interface{}
		err     error
	)
	switch claims.Role {
	case models.RoleAdmin:
		var hit bool
		payload, hit, err = h.service.Admin(ctx)
		middleware.SetCacheHit(c, hit)
	case models.RoleSupervisor:
		payload, err = h.service.Supervisor(ctx, claims.UserID)
	case models.RoleStudent:
		payload, err = h.service.Student(ctx, claims.UserID)
	default:
		err = appErrors.ErrForbidden
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil, middleware.ExtractMeta(c))
}
