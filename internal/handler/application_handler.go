package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, studentID string, req dto.SubmitApplicationRequest) (*models.Application, error)
	UpdateStatus(ctx context.Context, applicationID string, req dto.UpdateApplicationStatusRequest, callerID string, callerRole models.UserRole) (*models.Application, error)
	Resubmit(ctx context.Context, applicationID, studentID string, req dto.ResubmitApplicationRequest) (*models.Application, error)
	CheckDuplicate(ctx context.Context, studentID, supervisorID string) (bool, string)
	List(ctx context.Context, callerID string, role models.UserRole, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error)
	Get(ctx context.Context, applicationID, callerID string, role models.UserRole) (*models.Application, error)
}

// ApplicationHandler exposes application endpoints.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(svc applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// List godoc
// @Summary List applications visible to the caller
// @Tags Applications
// @Produce json
// @Param status query string false "Status filter"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	query := dto.ApplicationQuery{Status: models.ApplicationStatus(strings.TrimSpace(c.Query("status")))}
	var err error
	if query.Page, err = intQuery(c, "page"); err != nil {
		response.Error(c, err)
		return
	}
	if query.PageSize, err = intQuery(c, "pageSize"); err != nil {
		response.Error(c, err)
		return
	}

	apps, pagination, err := h.service.List(c.Request.Context(), claims.UserID, claims.Role, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Submit godoc
// @Summary Apply to a supervisor
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.SubmitApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// DuplicateCheck godoc
// @Summary Check for an active application to a supervisor
// @Tags Applications
// @Produce json
// @Param supervisorId query string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Router /applications/duplicate-check [get]
func (h *ApplicationHandler) DuplicateCheck(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	supervisorID := strings.TrimSpace(c.Query("supervisorId"))
	if supervisorID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "supervisorId is required"))
		return
	}
	duplicate, id := h.service.CheckDuplicate(c.Request.Context(), claims.UserID, supervisorID)
	response.JSON(c, http.StatusOK, dto.DuplicateCheckResponse{Duplicate: duplicate, ApplicationID: id}, nil)
}

// Get godoc
// @Summary Get an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// UpdateStatus godoc
// @Summary Decide on an application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateApplicationStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /applications/{id}/status [patch]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdateApplicationStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Resubmit godoc
// @Summary Resubmit an application after revision
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ResubmitApplicationRequest false "Edits"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /applications/{id}/resubmit [post]
func (h *ApplicationHandler) Resubmit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ResubmitApplicationRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	app, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return v, nil
}
