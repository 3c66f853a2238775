package dto

// ExportFormat enumerates supported report formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}
