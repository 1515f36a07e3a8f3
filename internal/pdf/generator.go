package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fleetpulse/reports-service/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders an expanded report as a PDF: a header with the
// report metadata, then a section per vehicle with its trip breakdown.
func (g *Generator) Generate(report model.Report, details []model.VehicleDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Trip Event Report", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, report.Title, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s - %s", formatDate(report.FromDate), formatDate(report.ToDate)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Created: %s", formatDateTime(report.CreatedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, detail := range details {
		g.writeVehicle(pdf, detail)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeVehicle(pdf *gofpdf.Fpdf, detail model.VehicleDetail) {
	pdf.SetFont(g.fontName, "B", 12)
	title := detail.VehicleName
	if detail.VehicleRegistration != "" {
		title = fmt.Sprintf("%s (%s)", detail.VehicleName, detail.VehicleRegistration)
	}
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	headers := []string{"Trip", "Date", "Event", "Count"}
	colWidths := []float64{80, 35, 35, 30}

	pdf.SetFont(g.fontName, "B", 10)
	drawRow(pdf, headers, colWidths)

	pdf.SetFont(g.fontName, "", 10)
	if len(detail.TripData) == 0 {
		drawRow(pdf, []string{"no events in period", "", "", ""}, colWidths)
	}
	for _, row := range detail.TripData {
		drawRow(pdf, []string{
			row.TripID,
			formatDate(row.Date),
			string(row.Event),
			fmt.Sprintf("%d", row.EventCount),
		}, colWidths)
	}
	pdf.Ln(4)
}

func drawRow(pdf *gofpdf.Fpdf, cells []string, widths []float64) {
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 6, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
