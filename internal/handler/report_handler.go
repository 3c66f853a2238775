package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

type exportService interface {
	SupervisorCapacityReport(ctx context.Context, format dto.ExportFormat) (*dto.ExportResult, error)
}

// ReportHandler streams administrative exports.
type ReportHandler struct {
	service exportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc exportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// SupervisorCapacity godoc
// @Summary Download the supervisor capacity report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/reports/supervisors [get]
func (h *ReportHandler) SupervisorCapacity(c *gin.Context) {
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(dto.ExportFormatCSV)))))
	res, err := h.service.SupervisorCapacityReport(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, res.ContentType, res.Data)
}
