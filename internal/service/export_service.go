package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/export"
)

var supervisorReportHeaders = []string{
	"Supervisor", "Email", "Department", "Current", "Max", "Availability", "Active", "Approved",
}

// ExportService renders administrative reports.
type ExportService struct {
	repos  *Repositories
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(repos *Repositories, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repos: repos, logger: logger, now: utcNow}
}

// SupervisorCapacityReport lists every supervisor with capacity figures, sorted by name.
func (s *ExportService) SupervisorCapacityReport(ctx context.Context, format dto.ExportFormat) (*dto.ExportResult, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, validationError(fmt.Sprintf("unsupported export format %q", format))
	}

	supervisors, err := s.repos.Supervisors.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "Supervisor", "load supervisors")
	}
	sort.SliceStable(supervisors, func(i, j int) bool {
		return supervisors[i].Name < supervisors[j].Name
	})

	now := s.now()
	table := export.Table{
		Title:       "Supervisor capacity report",
		Headers:     supervisorReportHeaders,
		Rows:        make([][]string, 0, len(supervisors)),
		GeneratedAt: now,
	}
	for _, sup := range supervisors {
		table.Rows = append(table.Rows, []string{
			sup.Name,
			sup.Email,
			sup.Department,
			strconv.Itoa(sup.CurrentCapacity),
			strconv.Itoa(sup.MaxCapacity),
			string(models.DeriveAvailability(sup.CurrentCapacity, sup.MaxCapacity)),
			strconv.FormatBool(sup.IsActive),
			strconv.FormatBool(sup.IsApproved),
		})
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatPDF:
		data, err = export.PDF(table)
		contentType = "application/pdf"
	default:
		data, err = export.CSV(table)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, storeError(err, "Report", "render report")
	}

	s.logger.Info("supervisor report exported", zap.String("format", string(format)), zap.Int("rows", len(table.Rows)))
	return &dto.ExportResult{
		Filename:    fmt.Sprintf("supervisor-capacity-%s.%s", now.Format("20060102"), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}
