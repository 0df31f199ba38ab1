package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth    = 297.0
	pdfMargin       = 10.0
	pdfRowHeight    = 7.0
	pdfMinColumnMM  = 14.0
	pdfCharWidthMM  = 2.1
	pdfBottomMargin = 15.0
)

// PDFExporter renders datasets into a landscape A4 table with repeated headers and page numbers.
type PDFExporter struct {
	font string
}

// NewPDFExporter constructs a PDF exporter using a core font.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{font: "Helvetica"}
}

// ContentType is the MIME type of rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Render creates a PDF document with the dataset title, table body and notes.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin+5, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfBottomMargin)
	pdf.AliasNbPages("{nb}")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfBottomMargin + 5)
		pdf.SetFont(e.font, "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont(e.font, "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	widths := columnWidths(data)
	header := func() {
		pdf.SetFont(e.font, "B", 9)
		pdf.SetFillColor(225, 232, 240)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(e.font, "", 8)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	pdf.SetFillColor(245, 247, 250)
	for n, row := range data.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfBottomMargin {
			pdf.AddPage()
			header()
			pdf.SetFillColor(245, 247, 250)
		}
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight, tr(row[h]), "1", 0, "", n%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Notes) > 0 {
		pdf.Ln(4)
		pdf.SetFont(e.font, "", 8)
		width := pdfPageWidth - 2*pdfMargin
		for _, note := range data.Notes {
			if pdf.GetY()+pdfRowHeight > pageHeight-pdfBottomMargin {
				pdf.AddPage()
			}
			pdf.MultiCell(width, 5, tr(note), "", "L", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths sizes columns by their longest value and scales them to the printable width.
func columnWidths(data Dataset) []float64 {
	widths := make([]float64, len(data.Headers))
	total := 0.0
	for i, h := range data.Headers {
		longest := utf8.RuneCountInString(h)
		for _, row := range data.Rows {
			if n := utf8.RuneCountInString(row[h]); n > longest {
				longest = n
			}
		}
		widths[i] = max(pdfMinColumnMM, float64(longest)*pdfCharWidthMM)
		total += widths[i]
	}
	available := pdfPageWidth - 2*pdfMargin
	for i := range widths {
		widths[i] = widths[i] * available / total
	}
	return widths
}
