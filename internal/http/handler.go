package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetpulse/reports-service/internal/http/middleware"
	"github.com/fleetpulse/reports-service/internal/model"
	"github.com/fleetpulse/reports-service/internal/service"
)

// ExcelGenerator renders an expanded report as a workbook.
type ExcelGenerator interface {
	Generate(report model.Report, details []model.VehicleDetail) ([]byte, error)
}

// PDFGenerator renders an expanded report as a PDF document.
type PDFGenerator interface {
	Generate(report model.Report, details []model.VehicleDetail) ([]byte, error)
}

type Handler struct {
	reports *service.ReportService
	excel   ExcelGenerator
	pdf     PDFGenerator
	log     zerolog.Logger
}

func NewHandler(reports *service.ReportService, excel ExcelGenerator, pdf PDFGenerator, log zerolog.Logger) *Handler {
	return &Handler{reports: reports, excel: excel, pdf: pdf, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/reports")
	protected.Use(authMiddleware)

	protected.GET("/jobs/:job_uuid", h.getJobStatus)

	protected.GET("/:uuid", h.getReport)
	protected.GET("/:uuid/vehicles", h.listVehicles)
	protected.GET("/:uuid/contacts", h.listContacts)
	protected.GET("/:uuid/preview", h.previewReport)
	protected.GET("/:uuid/list", h.listReports)
	protected.GET("/:uuid/export", h.exportReport)
	protected.GET("/:uuid/export/pdf", h.exportReportPDF)
	protected.POST("/:uuid/create", h.createReport)
	protected.POST("/:uuid/schedule", h.scheduleReport)
}

type reportFilterRequest struct {
	Title            string   `json:"title"`
	SelectedEvents   []string `json:"selected_events"`
	FromDate         string   `json:"from_date"`
	ToDate           string   `json:"to_date"`
	ContactUUID      string   `json:"contact_uuid"`
	SelectedVehicles []string `json:"selected_vehicles"`
	IncludeEmpty     bool     `json:"include_empty"`
}

func (h *Handler) listVehicles(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	vehicles, err := h.reports.Vehicles(c.Request.Context(), principal, userUUID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "successfully got list of all vehicles",
		"totalCount": len(vehicles),
		"results":    vehicles,
	})
}

func (h *Handler) listContacts(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	contacts, err := h.reports.Contacts(c.Request.Context(), principal, userUUID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "successfully fetched list of all contacts",
		"contacts": contacts,
	})
}

func (h *Handler) previewReport(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	filter, err := h.parseFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	snapshot, err := h.reports.Preview(c.Request.Context(), principal, userUUID, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "successfully got trip alerts",
		"report_title": filter.Title,
		"from_date":    filter.FromDate,
		"to_date":      filter.ToDate,
		"user_uuid":    userUUID,
		"vehicles":     orderedEntries(snapshot),
	})
}

func (h *Handler) createReport(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	filter, err := h.parseFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	report, err := h.reports.Create(c.Request.Context(), principal, userUUID, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "report data successfully created",
		"report_uuid": report.ReportUUID,
	})
}

func (h *Handler) listReports(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	reports, err := h.reports.List(c.Request.Context(), principal, userUUID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "successfully fetched reports",
		"totalCount": len(reports),
		"reports":    reports,
	})
}

func (h *Handler) getReport(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing principal"})
		return
	}

	reportUUID, err := uuid.Parse(strings.TrimSpace(c.Param("uuid")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid report uuid"})
		return
	}

	events := parseEventsCSV(c.Query("events"))

	report, details, err := h.reports.Get(c.Request.Context(), principal, reportUUID, events)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "successfully retrieved report and tripdata",
		"report":         report,
		"vehicleResults": details,
	})
}

func (h *Handler) exportReport(c *gin.Context) {
	h.export(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx", h.excel.Generate)
}

func (h *Handler) exportReportPDF(c *gin.Context) {
	h.export(c, "application/pdf", ".pdf", h.pdf.Generate)
}

func (h *Handler) export(c *gin.Context, contentType, extension string, generate func(model.Report, []model.VehicleDetail) ([]byte, error)) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing principal"})
		return
	}

	reportUUID, err := uuid.Parse(strings.TrimSpace(c.Param("uuid")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid report uuid"})
		return
	}

	events := parseEventsCSV(c.Query("events"))

	report, details, err := h.reports.Get(c.Request.Context(), principal, reportUUID, events)
	if err != nil {
		h.handleError(c, err)
		return
	}

	content, err := generate(*report, details)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := buildFileName(report, extension)
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, contentType, content)
}

func (h *Handler) scheduleReport(c *gin.Context) {
	principal, userUUID, ok := h.userScope(c)
	if !ok {
		return
	}

	filter, err := h.parseFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	job, err := h.reports.Schedule(c.Request.Context(), principal, userUUID, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "report scheduled for creation",
		"report_uuid": job.ReportUUID,
		"job_uuid":    job.JobUUID,
		"run_at":      job.RunAt,
	})
}

func (h *Handler) getJobStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing principal"})
		return
	}

	jobUUID, err := uuid.Parse(strings.TrimSpace(c.Param("job_uuid")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid job uuid"})
		return
	}

	job, err := h.reports.JobStatus(c.Request.Context(), principal, jobUUID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "successfully fetched job status",
		"job":     job,
	})
}

// userScope resolves the principal and the :uuid path parameter for
// endpoints scoped to a user.
func (h *Handler) userScope(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing principal"})
		return model.Principal{}, uuid.Nil, false
	}

	userUUID, err := uuid.Parse(strings.TrimSpace(c.Param("uuid")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid user uuid"})
		return model.Principal{}, uuid.Nil, false
	}
	return principal, userUUID, true
}

// parseFilter reads the report filter from the JSON body, falling back
// to query parameters so preview works as a plain GET.
func (h *Handler) parseFilter(c *gin.Context) (model.ReportFilter, error) {
	var req reportFilterRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return model.ReportFilter{}, service.ErrInvalidInput
		}
	} else {
		req.Title = c.Query("title")
		req.FromDate = c.Query("from_date")
		req.ToDate = c.Query("to_date")
		req.ContactUUID = c.Query("contact_uuid")
		req.SelectedEvents = splitCSV(c.Query("selected_events"))
		req.SelectedVehicles = splitCSV(c.Query("selected_vehicles"))
		req.IncludeEmpty = strings.EqualFold(c.Query("include_empty"), "true")
	}

	filter := model.ReportFilter{
		Title:        strings.TrimSpace(req.Title),
		IncludeEmpty: req.IncludeEmpty,
	}

	for _, raw := range req.SelectedEvents {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			filter.SelectedEvents = append(filter.SelectedEvents, model.EventCode(raw))
		}
	}

	for _, raw := range req.SelectedVehicles {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return model.ReportFilter{}, service.ErrInvalidInput
		}
		filter.SelectedVehicles = append(filter.SelectedVehicles, id)
	}

	if req.FromDate != "" {
		parsed, err := parseDate(req.FromDate)
		if err != nil {
			return model.ReportFilter{}, service.ErrInvalidInput
		}
		filter.FromDate = parsed
	}
	if req.ToDate != "" {
		parsed, err := parseDate(req.ToDate)
		if err != nil {
			return model.ReportFilter{}, service.ErrInvalidInput
		}
		filter.ToDate = parsed
	}

	if req.ContactUUID != "" {
		contactUUID, err := uuid.Parse(strings.TrimSpace(req.ContactUUID))
		if err != nil {
			return model.ReportFilter{}, service.ErrInvalidInput
		}
		filter.ContactUUID = contactUUID
	}

	return filter, nil
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "report not found"})
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error", "error": err.Error()})
	}
}

func orderedEntries(snapshot *model.ReportSnapshot) []model.VehicleReportEntry {
	entries := make([]model.VehicleReportEntry, 0, len(snapshot.Vehicles))
	for _, vehicleUUID := range snapshot.VehicleUUIDs() {
		entries = append(entries, snapshot.Vehicles[vehicleUUID.String()])
	}
	return entries
}

func buildFileName(report *model.Report, extension string) string {
	period := report.FromDate.Format("20060102") + "-" + report.ToDate.Format("20060102")
	return "report-" + report.ReportUUID.String() + "-" + period + extension
}

func parseEventsCSV(raw string) []model.EventCode {
	events := make([]model.EventCode, 0, 4)
	for _, item := range splitCSV(raw) {
		events = append(events, model.EventCode(item))
	}
	return events
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
