package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type partnershipWorkflow interface {
	CreateRequest(ctx context.Context, requesterID, targetID string) (string, error)
	RespondToRequest(ctx context.Context, requestID, targetID string, action models.RequestAction) error
	CancelRequest(ctx context.Context, requestID, requesterID string) error
}

type partnershipRequests interface {
	ListForStudent(ctx context.Context, studentID string) (*dto.PartnershipRequestList, error)
}

type partnershipPairing interface {
	PairStudents(ctx context.Context, studentAID, studentBID, actorID string) error
	UnpairStudents(ctx context.Context, studentAID, studentBID, actorID string) error
}

// PartnershipHandler exposes student partnership endpoints.
type PartnershipHandler struct {
	workflow partnershipWorkflow
	requests partnershipRequests
	pairing  partnershipPairing
}

// NewPartnershipHandler constructs the handler.
func NewPartnershipHandler(workflow partnershipWorkflow, requests partnershipRequests, pairing partnershipPairing) *PartnershipHandler {
	return &PartnershipHandler{workflow: workflow, requests: requests, pairing: pairing}
}

// List godoc
// @Summary List pending partnership requests
// @Tags Partnerships
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /partnerships/requests [get]
func (h *PartnershipHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.requests.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Create godoc
// @Summary Send a partnership request
// @Tags Partnerships
// @Accept json
// @Produce json
// @Param payload body dto.CreatePartnershipRequest true "Target student"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /partnerships/requests [post]
func (h *PartnershipHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreatePartnershipRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.workflow.CreateRequest(c.Request.Context(), claims.UserID, req.TargetStudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreatedResource{ID: id})
}

// Respond godoc
// @Summary Accept or reject a partnership request
// @Tags Partnerships
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RespondRequest true "Action"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /partnerships/requests/{id}/respond [post]
func (h *PartnershipHandler) Respond(c *gin.Context) {
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
// @Summary Cancel an outgoing partnership request
// @Tags Partnerships
// @Param id path string true "Request ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /partnerships/requests/{id}/cancel [post]
func (h *PartnershipHandler) Cancel(c *gin.Context) {
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

// Unpair godoc
// @Summary Leave the current partnership
// @Tags Partnerships
// @Accept json
// @Param payload body dto.UnpairRequest true "Partner"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /partnerships/unpair [post]
func (h *PartnershipHandler) Unpair(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UnpairRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.pairing.UnpairStudents(c.Request.Context(), claims.UserID, req.PartnerID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminPair godoc
// @Summary Pair two students directly
// @Tags Admin
// @Accept json
// @Param payload body dto.AdminPairRequest true "Students"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /admin/partnerships/pair [post]
func (h *PartnershipHandler) AdminPair(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.AdminPairRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.pairing.PairStudents(c.Request.Context(), req.StudentAID, req.StudentBID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminUnpair godoc
// @Summary Dissolve a pairing
// @Tags Admin
// @Accept json
// @Param payload body dto.AdminPairRequest true "Students"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /admin/partnerships/unpair [post]
func (h *PartnershipHandler) AdminUnpair(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.AdminPairRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.pairing.UnpairStudents(c.Request.Context(), req.StudentAID, req.StudentBID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
