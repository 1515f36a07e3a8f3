package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
	"github.com/fleetpulse/reports-service/internal/repository"
)

type fakeTripSource struct {
	mu sync.Mutex

	rows    []repository.VehicleEventRow
	rowsErr error

	tripData map[string][]model.TripEventCount
	tripErr  map[string]error
	tripLag  map[string]time.Duration

	lastEvents []model.EventCode

	vehicles []model.Vehicle
	contacts []model.Contact
}

func (f *fakeTripSource) EventCountsByVehicle(_ context.Context, _ uuid.UUID, _, _ time.Time, events []model.EventCode, _ []uuid.UUID, _ bool) ([]repository.VehicleEventRow, error) {
	f.mu.Lock()
	f.lastEvents = events
	f.mu.Unlock()
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	return f.rows, nil
}

func (f *fakeTripSource) TripEventCounts(_ context.Context, vehicleUUID uuid.UUID, _, _ time.Time, events []model.EventCode) ([]model.TripEventCount, error) {
	key := vehicleUUID.String()
	f.mu.Lock()
	f.lastEvents = events
	lag := f.tripLag[key]
	f.mu.Unlock()

	if lag > 0 {
		time.Sleep(lag)
	}
	if err := f.tripErr[key]; err != nil {
		return nil, err
	}
	return f.tripData[key], nil
}

func (f *fakeTripSource) ListVehicles(_ context.Context, _ uuid.UUID) ([]model.Vehicle, error) {
	return f.vehicles, nil
}

func (f *fakeTripSource) ListContacts(_ context.Context, _ uuid.UUID) ([]model.Contact, error) {
	return f.contacts, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]model.Report
	jobs    map[uuid.UUID]model.ReportJob

	createErr error
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{
		reports: make(map[uuid.UUID]model.Report),
		jobs:    make(map[uuid.UUID]model.ReportJob),
	}
}

func (f *fakeReportStore) Create(_ context.Context, report model.Report) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ReportUUID] = report
	return nil
}

func (f *fakeReportStore) Get(_ context.Context, reportUUID uuid.UUID) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[reportUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &report, nil
}

func (f *fakeReportStore) ListByUser(_ context.Context, userUUID uuid.UUID) ([]model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Report
	for _, report := range f.reports {
		if report.UserUUID == userUUID {
			result = append(result, report)
		}
	}
	return result, nil
}

func (f *fakeReportStore) CreateJob(_ context.Context, job model.ReportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.JobUUID] = job
	return nil
}

func (f *fakeReportStore) GetJob(_ context.Context, jobUUID uuid.UUID) (*model.ReportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &job, nil
}

var (
	userA = uuid.MustParse("0a000000-0000-0000-0000-000000000001")
	userB = uuid.MustParse("0b000000-0000-0000-0000-000000000002")

	vehicle1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	vehicle2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	vehicle3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")

	contactA = uuid.MustParse("cc000000-0000-0000-0000-0000000000cc")
)

func validFilter() model.ReportFilter {
	return model.ReportFilter{
		Title:            "January summary",
		SelectedEvents:   []model.EventCode{model.EventACC, model.EventDMS},
		FromDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:           time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		ContactUUID:      contactA,
		SelectedVehicles: []uuid.UUID{vehicle1, vehicle2},
	}
}

func newService(trips *fakeTripSource, store *fakeReportStore) *ReportService {
	return NewReportService(trips, store, nil, 1, 0)
}

func asAdmin() model.Principal {
	return model.Principal{UserUUID: uuid.New(), UserType: model.UserTypeAdmin}
}

func asCustomer(userUUID uuid.UUID) model.Principal {
	return model.Principal{UserUUID: userUUID, UserType: model.UserTypeCustomer}
}

func TestValidateFilter(t *testing.T) {
	base := validFilter()

	tests := []struct {
		name   string
		mutate func(*model.ReportFilter)
		wantOK bool
	}{
		{"valid", func(f *model.ReportFilter) {}, true},
		{"missing title", func(f *model.ReportFilter) { f.Title = "" }, false},
		{"missing contact", func(f *model.ReportFilter) { f.ContactUUID = uuid.Nil }, false},
		{"empty events", func(f *model.ReportFilter) { f.SelectedEvents = nil }, false},
		{"empty vehicles", func(f *model.ReportFilter) { f.SelectedVehicles = nil }, false},
		{"zero from date", func(f *model.ReportFilter) { f.FromDate = time.Time{} }, false},
		{"zero to date", func(f *model.ReportFilter) { f.ToDate = time.Time{} }, false},
		{"from equals to", func(f *model.ReportFilter) { f.ToDate = f.FromDate }, false},
		{"from after to", func(f *model.ReportFilter) { f.FromDate = f.ToDate.Add(time.Hour) }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter := base
			tc.mutate(&filter)
			err := validateFilter(filter)
			if tc.wantOK {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestPreviewGroupsEventCounts(t *testing.T) {
	tripID := "trip-001"
	acc := "ACC"
	dms := "DMS"

	trips := &fakeTripSource{
		rows: []repository.VehicleEventRow{
			{VehicleUUID: vehicle1, VehicleName: "Truck 1", VehicleRegistration: "KA01", TripID: &tripID, EventType: &acc, EventCount: 3},
			{VehicleUUID: vehicle1, VehicleName: "Truck 1", VehicleRegistration: "KA01", TripID: &tripID, EventType: &dms, EventCount: 1},
		},
	}
	svc := newService(trips, newFakeReportStore())

	snapshot, err := svc.Preview(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)

	require.Len(t, snapshot.Vehicles, 1)
	entry, ok := snapshot.Vehicles[vehicle1.String()]
	require.True(t, ok, "vehicle with events must be keyed")
	assert.Equal(t, "Truck 1", entry.VehicleName)
	require.Len(t, entry.Events, 2)
	assert.Equal(t, model.EventACC, entry.Events[0].EventType)
	assert.Equal(t, int64(3), entry.Events[0].EventCount)

	// Vehicle without any matching row is absent from the map entirely.
	_, ok = snapshot.Vehicles[vehicle2.String()]
	assert.False(t, ok)
}

func TestPreviewKeepsNullTripVehicleWithoutEvents(t *testing.T) {
	trips := &fakeTripSource{
		rows: []repository.VehicleEventRow{
			{VehicleUUID: vehicle3, VehicleName: "Idle", VehicleRegistration: "KA03", TripID: nil, EventType: nil, EventCount: 0},
		},
	}
	svc := newService(trips, newFakeReportStore())

	filter := validFilter()
	filter.IncludeEmpty = true
	snapshot, err := svc.Preview(context.Background(), asCustomer(userA), userA, filter)
	require.NoError(t, err)

	entry, ok := snapshot.Vehicles[vehicle3.String()]
	require.True(t, ok)
	assert.Empty(t, entry.Events)
}

func TestPreviewIsReadOnly(t *testing.T) {
	store := newFakeReportStore()
	svc := newService(&fakeTripSource{}, store)

	_, err := svc.Preview(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)
	assert.Empty(t, store.reports)
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	tripID := "trip-001"
	acc := "ACC"
	trips := &fakeTripSource{
		rows: []repository.VehicleEventRow{
			{VehicleUUID: vehicle1, VehicleName: "Truck 1", VehicleRegistration: "KA01", TripID: &tripID, EventType: &acc, EventCount: 3},
		},
		tripData: map[string][]model.TripEventCount{},
	}
	store := newFakeReportStore()
	svc := newService(trips, store)

	created, err := svc.Create(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ReportUUID)

	got, _, err := svc.Get(context.Background(), asCustomer(userA), created.ReportUUID, nil)
	require.NoError(t, err)
	assert.Equal(t, created.Vehicles, got.Vehicles, "stored snapshot must round-trip unchanged")
	assert.Equal(t, model.SnapshotVersion, got.Vehicles.Version)
	assert.Equal(t, int16(model.ReportStatusActive), got.ReportStatus)
}

func TestCreateValidatesBeforeStore(t *testing.T) {
	store := newFakeReportStore()
	svc := newService(&fakeTripSource{}, store)

	filter := validFilter()
	filter.FromDate, filter.ToDate = filter.ToDate, filter.FromDate

	_, err := svc.Create(context.Background(), asCustomer(userA), userA, filter)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, store.reports, "no write may happen on invalid input")
}

func TestGetNotFound(t *testing.T) {
	svc := newService(&fakeTripSource{}, newFakeReportStore())

	_, _, err := svc.Get(context.Background(), asAdmin(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPermissionScoping(t *testing.T) {
	trips := &fakeTripSource{tripData: map[string][]model.TripEventCount{}}
	store := newFakeReportStore()
	svc := newService(trips, store)

	other := asCustomer(userB)

	_, err := svc.Preview(context.Background(), other, userA, validFilter())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Create(context.Background(), other, userA, validFilter())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Vehicles(context.Background(), other, userA)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// A stored report of userA is invisible to userB but open to admins.
	created, err := svc.Create(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), other, created.ReportUUID, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, _, err = svc.Get(context.Background(), asAdmin(), created.ReportUUID, nil)
	assert.NoError(t, err)
}

func snapshotForVehicles(ids ...uuid.UUID) model.ReportSnapshot {
	snapshot := model.NewReportSnapshot()
	for _, id := range ids {
		snapshot.Vehicles[id.String()] = model.VehicleReportEntry{
			VehicleUUID: id,
			VehicleName: "Truck " + id.String()[:2],
			Events:      []model.EventCount{},
		}
	}
	return snapshot
}

func storedReport(ids ...uuid.UUID) *model.Report {
	return &model.Report{
		ReportUUID:   uuid.New(),
		Title:        "stored",
		UserUUID:     userA,
		Vehicles:     snapshotForVehicles(ids...),
		FromDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		ContactUUID:  contactA,
		ReportStatus: model.ReportStatusActive,
	}
}

func TestExpandPreservesSnapshotOrder(t *testing.T) {
	// Slower sub-queries for earlier vehicles: completion order is the
	// reverse of the snapshot order.
	trips := &fakeTripSource{
		tripData: map[string][]model.TripEventCount{
			vehicle1.String(): {{TripID: "t1", Event: model.EventACC, EventCount: 2}},
			vehicle2.String(): {{TripID: "t2", Event: model.EventDMS, EventCount: 1}},
			vehicle3.String(): {},
		},
		tripLag: map[string]time.Duration{
			vehicle1.String(): 30 * time.Millisecond,
			vehicle2.String(): 15 * time.Millisecond,
			vehicle3.String(): 0,
		},
	}
	svc := newService(trips, newFakeReportStore())

	details, err := svc.Expand(context.Background(), storedReport(vehicle3, vehicle1, vehicle2), nil)
	require.NoError(t, err)

	require.Len(t, details, 3)
	assert.Equal(t, vehicle1, details[0].VehicleUUID)
	assert.Equal(t, vehicle2, details[1].VehicleUUID)
	assert.Equal(t, vehicle3, details[2].VehicleUUID)
	assert.Equal(t, "t1", details[0].TripData[0].TripID)
}

func TestExpandFailsWholeOnSubQueryError(t *testing.T) {
	trips := &fakeTripSource{
		tripData: map[string][]model.TripEventCount{
			vehicle1.String(): {},
		},
		tripErr: map[string]error{
			vehicle2.String(): errors.New("connection reset"),
		},
	}
	svc := newService(trips, newFakeReportStore())

	_, err := svc.Expand(context.Background(), storedReport(vehicle1, vehicle2), nil)
	assert.ErrorIs(t, err, ErrPartialFetch)
}

func TestExpandAppliesDefaultEventFilter(t *testing.T) {
	trips := &fakeTripSource{tripData: map[string][]model.TripEventCount{}}
	svc := newService(trips, newFakeReportStore())

	_, err := svc.Expand(context.Background(), storedReport(vehicle1), nil)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultEventCodes(), trips.lastEvents)

	_, err = svc.Expand(context.Background(), storedReport(vehicle1), []model.EventCode{model.EventLMP})
	require.NoError(t, err)
	assert.Equal(t, []model.EventCode{model.EventLMP}, trips.lastEvents)
}

func TestScheduleQueuesJob(t *testing.T) {
	store := newFakeReportStore()
	svc := newService(&fakeTripSource{}, store)

	job, err := svc.Schedule(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.NotEqual(t, uuid.Nil, job.ReportUUID)
	assert.True(t, job.RunAt.After(time.Now()), "run_at must be in the future")
	assert.Equal(t, 1, job.RunAt.Hour())

	stored, err := svc.JobStatus(context.Background(), asCustomer(userA), job.JobUUID)
	require.NoError(t, err)
	assert.Equal(t, job.ReportUUID, stored.ReportUUID)
	assert.Empty(t, store.reports, "scheduling must not create the report")
}

func TestScheduleRejectsInvalidFilter(t *testing.T) {
	store := newFakeReportStore()
	svc := newService(&fakeTripSource{}, store)

	filter := validFilter()
	filter.SelectedEvents = nil

	_, err := svc.Schedule(context.Background(), asCustomer(userA), userA, filter)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, store.jobs)
}

func TestRunJobStoresReportUnderScheduledUUID(t *testing.T) {
	tripID := "trip-001"
	acc := "ACC"
	trips := &fakeTripSource{
		rows: []repository.VehicleEventRow{
			{VehicleUUID: vehicle1, VehicleName: "Truck 1", TripID: &tripID, EventType: &acc, EventCount: 5},
		},
	}
	store := newFakeReportStore()
	svc := newService(trips, store)

	job := model.ReportJob{
		JobUUID:    uuid.New(),
		ReportUUID: uuid.New(),
		UserUUID:   userA,
		Filter:     validFilter(),
		Status:     model.JobStatusPending,
	}
	require.NoError(t, svc.RunJob(context.Background(), job))

	stored, ok := store.reports[job.ReportUUID]
	require.True(t, ok, "report must be stored under the uuid allocated at scheduling time")
	assert.Equal(t, userA, stored.UserUUID)
	assert.Contains(t, stored.Vehicles.Vehicles, vehicle1.String())
}

func TestNextRunAt(t *testing.T) {
	loc := time.UTC
	beforeRun := time.Date(2024, 3, 10, 0, 30, 0, 0, loc)
	afterRun := time.Date(2024, 3, 10, 9, 0, 0, 0, loc)

	run := nextRunAt(beforeRun, 1, 0)
	assert.Equal(t, time.Date(2024, 3, 10, 1, 0, 0, 0, loc), run)

	run = nextRunAt(afterRun, 1, 0)
	assert.Equal(t, time.Date(2024, 3, 11, 1, 0, 0, 0, loc), run)

	// Exactly at the boundary schedules the next day, never "now".
	run = nextRunAt(time.Date(2024, 3, 10, 1, 0, 0, 0, loc), 1, 0)
	assert.Equal(t, time.Date(2024, 3, 11, 1, 0, 0, 0, loc), run)
}

func TestAggregateIsDeterministic(t *testing.T) {
	tripID := "trip-001"
	acc := "ACC"
	trips := &fakeTripSource{
		rows: []repository.VehicleEventRow{
			{VehicleUUID: vehicle1, VehicleName: "Truck 1", TripID: &tripID, EventType: &acc, EventCount: 3},
		},
	}
	svc := newService(trips, newFakeReportStore())

	first, err := svc.Preview(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)
	second, err := svc.Preview(context.Background(), asCustomer(userA), userA, validFilter())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
