// Package report renders test result rows as downloadable documents.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// CompletionLayout is the textual form of a result's completion time.
const CompletionLayout = "2006-01-02 15:04"

// NoGroup is printed for students without a group.
const NoGroup = "N/A"

// Columns is the fixed column order of every report.
var Columns = []string{"Student", "Passport", "Phone", "Group", "Test", "Score", "Grade", "Completed"}

// Row is one result line.
type Row struct {
	StudentName string
	Passport    string
	Phone       string
	Group       string
	TestTitle   string
	Score       int
	Grade       string
	CompletedAt time.Time
}

// Cells renders the row in column order, formatting the completion time in loc.
func (r Row) Cells(loc *time.Location) []string {
	group := r.Group
	if group == "" {
		group = NoGroup
	}
	return []string{
		r.StudentName,
		r.Passport,
		r.Phone,
		group,
		r.TestTitle,
		strconv.Itoa(r.Score),
		r.Grade,
		FormatCompletion(r.CompletedAt, loc),
	}
}

func FormatCompletion(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(CompletionLayout)
}

// Section groups rows under an optional heading. A section with a heading
// and no rows prints EmptyNote instead of a table.
type Section struct {
	Heading string
	Rows    []Row
}

const EmptyNote = "No results for this test."

// Document is a titled list of sections.
type Document struct {
	Title    string
	Sections []Section
	Location *time.Location
}

func (d Document) empty() bool {
	for _, s := range d.Sections {
		if len(s.Rows) > 0 {
			return false
		}
	}
	return true
}

var pdfWidths = []float64{55, 25, 32, 28, 55, 15, 32, 30}

// WritePDF renders the document as a landscape A4 table.
func WritePDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if doc.empty() && !hasHeadings(doc) {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, "No results found.", "", 1, "L", false, 0, "")
		return pdf.Output(w)
	}

	for _, section := range doc.Sections {
		if section.Heading != "" {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", false, 0, "")
		}
		if len(section.Rows) == 0 {
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, 7, EmptyNote, "", 1, "L", false, 0, "")
			pdf.Ln(3)
			continue
		}

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(144, 238, 144)
		for i, col := range Columns {
			pdf.CellFormat(pdfWidths[i], 8, col, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetFillColor(245, 245, 220)
		for _, row := range section.Rows {
			for i, cell := range row.Cells(doc.Location) {
				pdf.CellFormat(pdfWidths[i], 7, tr(cell), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func hasHeadings(doc Document) bool {
	for _, s := range doc.Sections {
		if s.Heading != "" {
			return true
		}
	}
	return false
}

// WriteXLSX renders every section into a single sheet. Section headings
// become their own rows above the section's header row.
func WriteXLSX(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	line := 1
	writeRow := func(values []interface{}, style int) error {
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		if style != 0 {
			if err := f.SetRowStyle(sheet, line, line, style); err != nil {
				return err
			}
		}
		line++
		return nil
	}

	header := make([]interface{}, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}

	for _, section := range doc.Sections {
		if section.Heading != "" {
			if err := writeRow([]interface{}{section.Heading}, bold); err != nil {
				return err
			}
			if len(section.Rows) == 0 {
				if err := writeRow([]interface{}{EmptyNote}, 0); err != nil {
					return err
				}
				continue
			}
		}
		if err := writeRow(header, bold); err != nil {
			return err
		}
		for _, row := range section.Rows {
			cells := row.Cells(doc.Location)
			values := make([]interface{}, len(cells))
			for i, c := range cells {
				values[i] = c
			}
			values[5] = row.Score
			if err := writeRow(values, 0); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
