package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type EventCode string

const (
	EventACC EventCode = "ACC"
	EventACD EventCode = "ACD"
	EventDMS EventCode = "DMS"
	EventLMP EventCode = "LMP"
)

// DefaultEventCodes is the event filter applied when a caller
// requests an expansion without an explicit events list.
func DefaultEventCodes() []EventCode {
	return []EventCode{EventACC, EventACD, EventDMS, EventLMP}
}

// ReportFilter is the client-supplied selection a report is built from.
// JSON tags double as the wire format for queued report jobs.
type ReportFilter struct {
	Title            string      `json:"title"`
	SelectedEvents   []EventCode `json:"selected_events"`
	FromDate         time.Time   `json:"from_date"`
	ToDate           time.Time   `json:"to_date"`
	ContactUUID      uuid.UUID   `json:"contact_uuid"`
	SelectedVehicles []uuid.UUID `json:"selected_vehicles"`
	IncludeEmpty     bool        `json:"include_empty"`
}

type EventCount struct {
	EventType  EventCode `json:"eventType"`
	EventCount int64     `json:"eventCount"`
}

type VehicleReportEntry struct {
	VehicleUUID         uuid.UUID    `json:"vehicle_uuid"`
	VehicleName         string       `json:"vehicle_name"`
	VehicleRegistration string       `json:"vehicle_registration"`
	Events              []EventCount `json:"events"`
}

const SnapshotVersion = 1

// ReportSnapshot is the denormalized aggregate persisted with a report.
// It reflects trip data as of creation time; the expansion re-queries
// live trip events and may diverge from it.
type ReportSnapshot struct {
	Version  int                           `json:"version"`
	Vehicles map[string]VehicleReportEntry `json:"vehicles"`
}

func NewReportSnapshot() ReportSnapshot {
	return ReportSnapshot{
		Version:  SnapshotVersion,
		Vehicles: make(map[string]VehicleReportEntry),
	}
}

// VehicleUUIDs returns the snapshot keys in ascending order. Expansion
// output follows this order regardless of sub-query completion order.
func (s ReportSnapshot) VehicleUUIDs() []uuid.UUID {
	keys := make([]string, 0, len(s.Vehicles))
	for key := range s.Vehicles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ids := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

const (
	ReportStatusActive   = 1
	ReportStatusInactive = 0
)

type Report struct {
	ReportUUID   uuid.UUID      `json:"report_uuid"`
	Title        string         `json:"title"`
	UserUUID     uuid.UUID      `json:"user_uuid"`
	Vehicles     ReportSnapshot `json:"vehicles"`
	FromDate     time.Time      `json:"from_date"`
	ToDate       time.Time      `json:"to_date"`
	ContactUUID  uuid.UUID      `json:"contact_uuid"`
	ReportStatus int16          `json:"report_status"`
	CreatedAt    time.Time      `json:"created_at"`
	CreatedBy    uuid.UUID      `json:"created_by"`
}

// TripEventCount is one grouped row of the per-vehicle expansion
// query: events of one type on one trip on one calendar day.
type TripEventCount struct {
	TripID     string    `json:"trip_id"`
	Date       time.Time `json:"date"`
	Event      EventCode `json:"event"`
	EventCount int64     `json:"eventCount"`
}

type VehicleDetail struct {
	ReportUUID          uuid.UUID        `json:"report_uuid"`
	VehicleUUID         uuid.UUID        `json:"vehicle_uuid"`
	VehicleName         string           `json:"vehicle_name"`
	VehicleRegistration string           `json:"vehicle_registration"`
	TripData            []TripEventCount `json:"tripdata"`
}
