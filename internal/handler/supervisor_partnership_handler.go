package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type supervisorPartnershipWorkflow interface {
	CreateRequest(ctx context.Context, requesterID, targetID, projectID string) (string, error)
	RespondToRequest(ctx context.Context, requestID, targetID string, action models.RequestAction) error
	CancelRequest(ctx context.Context, requestID, requesterID string) error
	RemoveCoSupervisor(ctx context.Context, projectID, callerID string) error
}

type supervisorPartnershipRequests interface {
	ListForSupervisor(ctx context.Context, supervisorID string) (*dto.SupervisorPartnershipRequestList, error)
}

// SupervisorPartnershipHandler exposes co-supervision endpoints.
type SupervisorPartnershipHandler struct {
	workflow supervisorPartnershipWorkflow
	requests supervisorPartnershipRequests
}

// NewSupervisorPartnershipHandler constructs the handler.
func NewSupervisorPartnershipHandler(workflow supervisorPartnershipWorkflow, requests supervisorPartnershipRequests) *SupervisorPartnershipHandler {
	return &SupervisorPartnershipHandler{workflow: workflow, requests: requests}
}

// List godoc
// @Summary List pending co-supervision requests
// @Tags Supervisor Partnerships
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /supervisor-partnerships/requests [get]
func (h *SupervisorPartnershipHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.requests.ListForSupervisor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Create godoc
// @Summary Invite a co-supervisor onto a project
// @Tags Supervisor Partnerships
// @Accept json
// @Produce json
// @Param payload body dto.CreateSupervisorPartnershipRequest true "Invitation"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisor-partnerships/requests [post]
func (h *SupervisorPartnershipHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateSupervisorPartnershipRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.workflow.CreateRequest(c.Request.Context(), claims.UserID, req.TargetSupervisorID, req.ProjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreatedResource{ID: id})
}

// Respond godoc
// @Summary Accept or reject a co-supervision request
// @Tags Supervisor Partnerships
// @Accept json
// @Param id path string true "Request ID"
// @Param payload body dto.RespondRequest true "Action"
// @Success 204
// @Router /supervisor-partnerships/requests/{id}/respond [post]
func (h *SupervisorPartnershipHandler) Respond(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.RespondRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.workflow.RespondToRequest(c.Request.Context(), c.Param("id"), claims.UserID, req.Action); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancel godoc
// @Summary Withdraw a co-supervision request
// @Tags Supervisor Partnerships
// @Param id path string true "Request ID"
// @Success 204
// @Router /supervisor-partnerships/requests/{id}/cancel [post]
func (h *SupervisorPartnershipHandler) Cancel(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.workflow.CancelRequest(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveCoSupervisor godoc
// @Summary Remove the co-supervisor from a project
// @Tags Supervisor Partnerships
// @Param id path string true "Project ID"
// @Success 204
// @Router /projects/{id}/co-supervisor [delete]
func (h *SupervisorPartnershipHandler) RemoveCoSupervisor(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.workflow.RemoveCoSupervisor(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
