package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 297.0 // A4 landscape, mm
	marginSize = 10.0
	rowHeight  = 5.5
)

// WritePDF renders the logbook as a landscape A4 table with the summary
// block underneath.
func WritePDF(w io.Writer, lb Logbook) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginSize, marginSize, marginSize)
	pdf.SetAutoPageBreak(false, marginSize)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 12)
	title := fmt.Sprintf("Trip logbook %d - %s (%s)", lb.Year, lb.Config.Name, lb.Config.LicensePlate)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	cols := headers(lb.Config.Mode)
	widths := columnWidths(cols)

	writeHeaderRow(pdf, cols, widths)
	for _, row := range interleavedRows(lb.Grid) {
		if pdf.GetY() > 190 {
			pdf.AddPage()
			writeHeaderRow(pdf, cols, widths)
		}
		var cells []string
		if row.kind == rowMonthEnd {
			cells = monthEndCells(lb, row.monthEnd)
			pdf.SetFont("Helvetica", "I", 7)
			pdf.SetFillColor(238, 243, 250)
		} else {
			cells = tripCells(lb, row.trip)
			pdf.SetFont("Helvetica", "", 7)
			pdf.SetFillColor(255, 255, 255)
		}
		for i, v := range cells {
			pdf.CellFormat(widths[i], rowHeight, v, "1", 0, "L", row.kind == rowMonthEnd, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 8)
	for _, line := range summaryLines(lb) {
		if pdf.GetY() > 195 {
			pdf.AddPage()
		}
		pdf.CellFormat(60, 4.5, line[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 4.5, line[1], "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func writeHeaderRow(pdf *gofpdf.Fpdf, cols []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetFillColor(221, 221, 221)
	for i, caption := range cols {
		pdf.CellFormat(widths[i], rowHeight, caption, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

// columnWidths spreads the usable width with wider cells for the text
// columns (from, to, purpose, notes).
func columnWidths(cols []string) []float64 {
	weights := make([]float64, len(cols))
	var total float64
	for i, caption := range cols {
		switch caption {
		case "From", "To", "Purpose":
			weights[i] = 2
		case "Notes":
			weights[i] = 3
		default:
			weights[i] = 1
		}
		total += weights[i]
	}
	usable := pageWidth - 2*marginSize
	out := make([]float64, len(cols))
	for i := range cols {
		out[i] = usable * weights[i] / total
	}
	return out
}
