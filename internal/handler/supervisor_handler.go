package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/service"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type supervisorCapacityService interface {
	UpdateMaxCapacity(ctx context.Context, supervisorID string, req dto.UpdateCapacityRequest, actor service.AuditContext) (*dto.CapacityUpdateResult, error)
	ReconcileAvailability(ctx context.Context) (*dto.ReconcileResult, error)
}

// SupervisorHandler exposes admin supervisor management.
type SupervisorHandler struct {
	service supervisorCapacityService
}

// NewSupervisorHandler constructs the handler.
func NewSupervisorHandler(svc supervisorCapacityService) *SupervisorHandler {
	return &SupervisorHandler{service: svc}
}

// UpdateCapacity godoc
// @Summary Change a supervisor's maximum capacity
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param payload body dto.UpdateCapacityRequest true "New capacity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/supervisors/{id}/capacity [patch]
func (h *SupervisorHandler) UpdateCapacity(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdateCapacityRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.UpdateMaxCapacity(c.Request.Context(), c.Param("id"), req, auditContext(c, claims.UserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Reconcile godoc
// @Summary Repair stale supervisor availability
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/supervisors/reconcile [post]
func (h *SupervisorHandler) Reconcile(c *gin.Context) {
	res, err := h.service.ReconcileAvailability(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
