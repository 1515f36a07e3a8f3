package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
	"github.com/fleetpulse/reports-service/internal/repository"
)

// TripSource reads vehicle and trip-event data. Implemented by
// repository.TripRepository.
type TripSource interface {
	EventCountsByVehicle(ctx context.Context, userUUID uuid.UUID, from, to time.Time, events []model.EventCode, vehicles []uuid.UUID, includeEmpty bool) ([]repository.VehicleEventRow, error)
	TripEventCounts(ctx context.Context, vehicleUUID uuid.UUID, from, to time.Time, events []model.EventCode) ([]model.TripEventCount, error)
	ListVehicles(ctx context.Context, userUUID uuid.UUID) ([]model.Vehicle, error)
	ListContacts(ctx context.Context, userUUID uuid.UUID) ([]model.Contact, error)
}

// ReportStore persists reports and scheduled report jobs. Implemented
// by repository.ReportRepository.
type ReportStore interface {
	Create(ctx context.Context, report model.Report) error
	Get(ctx context.Context, reportUUID uuid.UUID) (*model.Report, error)
	ListByUser(ctx context.Context, userUUID uuid.UUID) ([]model.Report, error)
	CreateJob(ctx context.Context, job model.ReportJob) error
	GetJob(ctx context.Context, jobUUID uuid.UUID) (*model.ReportJob, error)
}

type ReportService struct {
	trips          TripSource
	reports        ReportStore
	defaultEvents  []model.EventCode
	scheduleHour   int
	scheduleMinute int
}

func NewReportService(trips TripSource, reports ReportStore, defaultEvents []model.EventCode, scheduleHour, scheduleMinute int) *ReportService {
	if len(defaultEvents) == 0 {
		defaultEvents = model.DefaultEventCodes()
	}
	return &ReportService{
		trips:          trips,
		reports:        reports,
		defaultEvents:  defaultEvents,
		scheduleHour:   scheduleHour,
		scheduleMinute: scheduleMinute,
	}
}

// Vehicles lists the active vehicles a report can be built over.
func (s *ReportService) Vehicles(ctx context.Context, principal model.Principal, userUUID uuid.UUID) ([]model.Vehicle, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	return s.trips.ListVehicles(ctx, userUUID)
}

// Contacts lists the active contacts a report can be addressed to.
func (s *ReportService) Contacts(ctx context.Context, principal model.Principal, userUUID uuid.UUID) ([]model.Contact, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	return s.trips.ListContacts(ctx, userUUID)
}

// Preview runs the aggregation for a filter without persisting
// anything. Read-only and safe to repeat.
func (s *ReportService) Preview(ctx context.Context, principal model.Principal, userUUID uuid.UUID, filter model.ReportFilter) (*model.ReportSnapshot, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.aggregate(ctx, userUUID, filter)
}

// Create aggregates trip events for the filter and persists the result
// as an immutable report snapshot.
func (s *ReportService) Create(ctx context.Context, principal model.Principal, userUUID uuid.UUID, filter model.ReportFilter) (*model.Report, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.buildAndStore(ctx, userUUID, principal.UserUUID, uuid.New(), filter, time.Now())
}

// List returns the stored reports of a user, newest first.
func (s *ReportService) List(ctx context.Context, principal model.Principal, userUUID uuid.UUID) ([]model.Report, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	return s.reports.ListByUser(ctx, userUUID)
}

// Get loads a stored report and expands it against live trip data.
// The snapshot fixes the vehicle set and output order; the per-vehicle
// counts come from a fresh query and may diverge from the snapshot.
func (s *ReportService) Get(ctx context.Context, principal model.Principal, reportUUID uuid.UUID, events []model.EventCode) (*model.Report, []model.VehicleDetail, error) {
	report, err := s.reports.Get(ctx, reportUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if !principal.CanAccessUser(report.UserUUID) {
		return nil, nil, ErrPermissionDenied
	}

	details, err := s.Expand(ctx, report, events)
	if err != nil {
		return nil, nil, err
	}
	return report, details, nil
}

// Expand re-queries live trip events per snapshot vehicle. Sub-queries
// run concurrently; output order follows the snapshot key order, not
// completion order. Any sub-query failure fails the whole expansion.
func (s *ReportService) Expand(ctx context.Context, report *model.Report, events []model.EventCode) ([]model.VehicleDetail, error) {
	if len(events) == 0 {
		events = s.defaultEvents
	}

	vehicleUUIDs := report.Vehicles.VehicleUUIDs()
	details := make([]model.VehicleDetail, len(vehicleUUIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, vehicleUUID := range vehicleUUIDs {
		g.Go(func() error {
			rows, err := s.trips.TripEventCounts(gctx, vehicleUUID, report.FromDate, report.ToDate, events)
			if err != nil {
				return fmt.Errorf("%w: vehicle %s: %v", ErrPartialFetch, vehicleUUID, err)
			}
			entry := report.Vehicles.Vehicles[vehicleUUID.String()]
			details[i] = model.VehicleDetail{
				ReportUUID:          report.ReportUUID,
				VehicleUUID:         vehicleUUID,
				VehicleName:         entry.VehicleName,
				VehicleRegistration: entry.VehicleRegistration,
				TripData:            rows,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

// Schedule queues a report creation for the next configured daily run
// and acknowledges immediately. The worker writes the outcome to the
// job record; nothing is sent back over the originating request.
func (s *ReportService) Schedule(ctx context.Context, principal model.Principal, userUUID uuid.UUID, filter model.ReportFilter) (*model.ReportJob, error) {
	if !principal.CanAccessUser(userUUID) {
		return nil, ErrPermissionDenied
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	now := time.Now()
	job := model.ReportJob{
		JobUUID:    uuid.New(),
		ReportUUID: uuid.New(),
		UserUUID:   userUUID,
		Filter:     filter,
		RunAt:      nextRunAt(now, s.scheduleHour, s.scheduleMinute),
		Status:     model.JobStatusPending,
		CreatedAt:  now,
	}
	if err := s.reports.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobStatus returns the state of a scheduled report job.
func (s *ReportService) JobStatus(ctx context.Context, principal model.Principal, jobUUID uuid.UUID) (*model.ReportJob, error) {
	job, err := s.reports.GetJob(ctx, jobUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !principal.CanAccessUser(job.UserUUID) {
		return nil, ErrPermissionDenied
	}
	return job, nil
}

// RunJob executes a claimed job: the aggregation runs with the job's
// filter and the report is stored under the uuid allocated at
// scheduling time, so the ack'd report_uuid stays valid.
func (s *ReportService) RunJob(ctx context.Context, job model.ReportJob) error {
	if err := validateFilter(job.Filter); err != nil {
		return err
	}
	_, err := s.buildAndStore(ctx, job.UserUUID, job.UserUUID, job.ReportUUID, job.Filter, time.Now())
	return err
}

func (s *ReportService) buildAndStore(ctx context.Context, userUUID, createdBy, reportUUID uuid.UUID, filter model.ReportFilter, now time.Time) (*model.Report, error) {
	snapshot, err := s.aggregate(ctx, userUUID, filter)
	if err != nil {
		return nil, err
	}

	report := model.Report{
		ReportUUID:   reportUUID,
		Title:        filter.Title,
		UserUUID:     userUUID,
		Vehicles:     *snapshot,
		FromDate:     filter.FromDate,
		ToDate:       filter.ToDate,
		ContactUUID:  filter.ContactUUID,
		ReportStatus: model.ReportStatusActive,
		CreatedAt:    now,
		CreatedBy:    createdBy,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *ReportService) aggregate(ctx context.Context, userUUID uuid.UUID, filter model.ReportFilter) (*model.ReportSnapshot, error) {
	rows, err := s.trips.EventCountsByVehicle(ctx, userUUID,
		filter.FromDate, filter.ToDate,
		filter.SelectedEvents, filter.SelectedVehicles,
		filter.IncludeEmpty)
	if err != nil {
		return nil, err
	}

	snapshot := model.NewReportSnapshot()
	for _, row := range rows {
		key := row.VehicleUUID.String()
		entry, ok := snapshot.Vehicles[key]
		if !ok {
			entry = model.VehicleReportEntry{
				VehicleUUID:         row.VehicleUUID,
				VehicleName:         row.VehicleName,
				VehicleRegistration: row.VehicleRegistration,
				Events:              []model.EventCount{},
			}
		}
		// NULL trip rows keep the vehicle in the snapshot but
		// contribute nothing to its events.
		if row.TripID != nil && row.EventType != nil {
			entry.Events = append(entry.Events, model.EventCount{
				EventType:  model.EventCode(*row.EventType),
				EventCount: row.EventCount,
			})
		}
		snapshot.Vehicles[key] = entry
	}
	return &snapshot, nil
}

func validateFilter(filter model.ReportFilter) error {
	if filter.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if filter.ContactUUID == uuid.Nil {
		return fmt.Errorf("%w: contact_uuid is required", ErrInvalidInput)
	}
	if len(filter.SelectedEvents) == 0 {
		return fmt.Errorf("%w: selected_events must not be empty", ErrInvalidInput)
	}
	if len(filter.SelectedVehicles) == 0 {
		return fmt.Errorf("%w: selected_vehicles must not be empty", ErrInvalidInput)
	}
	if filter.FromDate.IsZero() || filter.ToDate.IsZero() {
		return fmt.Errorf("%w: from_date and to_date are required", ErrInvalidInput)
	}
	if !filter.FromDate.Before(filter.ToDate) {
		return fmt.Errorf("%w: from_date must be earlier than to_date", ErrInvalidInput)
	}
	return nil
}

// nextRunAt picks the next occurrence of the configured daily time,
// strictly after now.
func nextRunAt(now time.Time, hour, minute int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
