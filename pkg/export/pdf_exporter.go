package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Group names the header whose value change starts a new section.
	Group string
}

// PDFExporter renders timetable datasets into a landscape A4 table.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

const (
	pageWidth  = 277.0
	rowHeight  = 7.0
	headHeight = 8.0
)

// Render creates a PDF document with an optional title and one table per group.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	generated := e.now().UTC().Format("2006-01-02 15:04 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s - page %d", generated, pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	columns := make([]string, 0, len(data.Headers))
	for _, header := range data.Headers {
		if header != data.Group {
			columns = append(columns, header)
		}
	}
	if len(columns) == 0 {
		columns = data.Headers
	}
	colWidth := pageWidth / float64(len(columns))

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, header := range columns {
			pdf.CellFormat(colWidth, headHeight, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	current := ""
	for i, row := range data.Rows {
		if data.Group != "" && (i == 0 || row[data.Group] != current) {
			current = row[data.Group]
			if i > 0 {
				pdf.Ln(4)
			}
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, current, "", 1, "L", false, 0, "")
			writeHeader()
		} else if i == 0 {
			writeHeader()
		}
		pdf.SetFont("Arial", "", 8)
		for _, header := range columns {
			pdf.CellFormat(colWidth, rowHeight, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(data.Rows) == 0 {
		writeHeader()
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, rowHeight, "No allocations", "1", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
