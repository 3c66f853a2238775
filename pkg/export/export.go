// Package export renders tabular reports as CSV or PDF.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ErrNoColumns is returned when a table has no headers.
var ErrNoColumns = errors.New("export: table requires at least one column")

// Table is an ordered grid of cells. Rows shorter than Headers are padded with blanks.
type Table struct {
	Title       string
	Headers     []string
	Rows        [][]string
	GeneratedAt time.Time
}

func (t Table) cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// CSV encodes the table with a header line.
func CSV(t Table) ([]byte, error) {
	if len(t.Headers) == 0 {
		return nil, ErrNoColumns
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i := range t.Headers {
			record[i] = t.cell(row, i)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF lays the table out on landscape A4 pages with a repeated header row.
func PDF(t Table) ([]byte, error) {
	if len(t.Headers) == 0 {
		return nil, ErrNoColumns
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	const usable = 277.0
	colWidth := usable / float64(len(t.Headers))
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range t.Headers {
			pdf.CellFormat(colWidth, 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if t.Title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, t.Title, "", 1, "L", false, 0, "")
		}
		if !t.GeneratedAt.IsZero() {
			pdf.SetFont("Arial", "", 8)
			pdf.CellFormat(0, 5, "Generated "+t.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
		header()
	})
	pdf.AddPage()

	for _, row := range t.Rows {
		for i := range t.Headers {
			pdf.CellFormat(colWidth, 6, t.cell(row, i), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
