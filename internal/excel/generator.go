package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/fleetpulse/reports-service/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders an expanded report as a workbook: a summary sheet
// with per-vehicle event totals from the snapshot, plus one detail
// sheet per vehicle with the live trip breakdown.
func (g *Generator) Generate(report model.Report, details []model.VehicleDetail) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report, details); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, detail := range details {
		sheetName := buildSheetName(detail.VehicleName, detail.VehicleUUID, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeDetail(file, sheetName, report, detail); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.Report, details []model.VehicleDetail) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Report")
	set("B1", report.Title)
	set("A2", "Period start")
	set("B2", formatDate(report.FromDate))
	set("A3", "Period end")
	set("B3", formatDate(report.ToDate))
	set("A4", "Vehicles")
	set("B4", len(details))
	set("A5", "Created at")
	set("B5", formatDateTime(report.CreatedAt))

	tableRow := 7
	set(fmt.Sprintf("A%d", tableRow), "Vehicle")
	set(fmt.Sprintf("B%d", tableRow), "Registration")
	set(fmt.Sprintf("C%d", tableRow), "Event type")
	set(fmt.Sprintf("D%d", tableRow), "Event count")

	row := tableRow + 1
	for _, vehicleUUID := range report.Vehicles.VehicleUUIDs() {
		entry := report.Vehicles.Vehicles[vehicleUUID.String()]
		if len(entry.Events) == 0 {
			set(fmt.Sprintf("A%d", row), entry.VehicleName)
			set(fmt.Sprintf("B%d", row), entry.VehicleRegistration)
			set(fmt.Sprintf("C%d", row), "-")
			set(fmt.Sprintf("D%d", row), 0)
			row++
			continue
		}
		for _, event := range entry.Events {
			set(fmt.Sprintf("A%d", row), entry.VehicleName)
			set(fmt.Sprintf("B%d", row), entry.VehicleRegistration)
			set(fmt.Sprintf("C%d", row), string(event.EventType))
			set(fmt.Sprintf("D%d", row), event.EventCount)
			row++
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 32)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	_ = file.SetColWidth(sheet, "C", "D", 14)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, report model.Report, detail model.VehicleDetail) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Vehicle")
	set("B1", detail.VehicleName)
	set("A2", "Registration")
	set("B2", detail.VehicleRegistration)
	set("A3", "Period start")
	set("B3", formatDate(report.FromDate))
	set("A4", "Period end")
	set("B4", formatDate(report.ToDate))

	tableRow := 6
	headers := []string{"Trip", "Date", "Event type", "Event count"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, row := range detail.TripData {
		line := tableRow + 1 + i
		set(fmt.Sprintf("A%d", line), row.TripID)
		set(fmt.Sprintf("B%d", line), formatDate(row.Date))
		set(fmt.Sprintf("C%d", line), string(row.Event))
		set(fmt.Sprintf("D%d", line), row.EventCount)
	}

	_ = file.SetColWidth(sheet, "A", "A", 36)
	_ = file.SetColWidth(sheet, "B", "B", 14)
	_ = file.SetColWidth(sheet, "C", "D", 14)
	return nil
}

func buildSheetName(name string, id uuid.UUID, used map[string]struct{}) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = id.String()
	}
	base = sanitizeSheetName(base)
	if len(base) > 31 {
		base = base[:31]
	}

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		candidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Vehicle"
	}
	return value
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
