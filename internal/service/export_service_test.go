package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mentormatch-api/internal/dto"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

func TestSupervisorCapacityReport(t *testing.T) {
	f := newFixture(t)
	f.addSupervisor("b", 3, 3)
	f.addSupervisor("a", 1, 4)
	svc := NewExportService(f.repos, nil)

	res, err := svc.SupervisorCapacityReport(f.ctx, dto.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.True(t, strings.HasSuffix(res.Filename, ".csv"))
	lines := strings.Split(strings.TrimSpace(string(res.Data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Dr. a,a@uni.test,,1,4,available"))
	assert.True(t, strings.HasPrefix(lines[2], "Dr. b,b@uni.test,,3,3,unavailable"))

	res, err = svc.SupervisorCapacityReport(f.ctx, dto.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Data), "%PDF-"))

	_, err = svc.SupervisorCapacityReport(f.ctx, dto.ExportFormat("xlsx"))
	requireKind(t, err, appErrors.KindValidation)
}
