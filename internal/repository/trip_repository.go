package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
)

// TripRepository reads the vehicle, trip summary and trip event tables
// owned by the ingestion side. All access is read-only.
type TripRepository struct {
	db *gorm.DB
}

func NewTripRepository(db *gorm.DB) *TripRepository {
	return &TripRepository{db: db}
}

// VehicleEventRow is one grouped row of the aggregation query. TripID
// and Event are NULL for vehicles that had no matching trip events.
type VehicleEventRow struct {
	VehicleUUID         uuid.UUID
	VehicleName         string
	VehicleRegistration string
	TripID              *string
	EventType           *string
	EventCount          int64
}

// EventCountsByVehicle counts trip events per (vehicle, event type) for
// the active vehicles of a user, restricted to the selected vehicles,
// the selected event codes and the [from, to] window. With includeEmpty
// the trip-event join becomes a pure left join so selected vehicles
// without any matching event still produce one NULL-event row.
func (r *TripRepository) EventCountsByVehicle(
	ctx context.Context,
	userUUID uuid.UUID,
	from, to time.Time,
	events []model.EventCode,
	vehicles []uuid.UUID,
	includeEmpty bool,
) ([]VehicleEventRow, error) {
	if len(events) == 0 || len(vehicles) == 0 {
		return []VehicleEventRow{}, nil
	}

	eventFilter, eventArgs := eventPlaceholders(events)

	var baseQuery string
	var args []interface{}
	if includeEmpty {
		baseQuery = fmt.Sprintf(`
			SELECT
				v.vehicle_uuid,
				v.vehicle_name,
				v.vehicle_registration,
				MAX(ts.trip_id) AS trip_id,
				td.event AS event_type,
				COUNT(td.event) AS event_count
			FROM vehicles v
			LEFT JOIN trip_summary ts
				ON ts.vehicle_uuid = v.vehicle_uuid
				AND ts.trip_status = ?
			LEFT JOIN tripdata td
				ON td.trip_id = ts.trip_id
				AND td.created_at BETWEEN ? AND ?
				AND td.event IN (%s)
			WHERE v.user_uuid = ?
				AND v.vehicle_status = ?
				AND v.vehicle_uuid = ANY(?)
			GROUP BY v.vehicle_uuid, v.vehicle_name, v.vehicle_registration, td.event
			ORDER BY v.vehicle_uuid ASC, td.event ASC
		`, eventFilter)
		args = []interface{}{model.TripStatusCompleted, from, to}
		args = append(args, eventArgs...)
		args = append(args, userUUID, model.VehicleStatusActive, vehicles)
	} else {
		baseQuery = fmt.Sprintf(`
			SELECT
				v.vehicle_uuid,
				v.vehicle_name,
				v.vehicle_registration,
				MAX(ts.trip_id) AS trip_id,
				td.event AS event_type,
				COUNT(td.event) AS event_count
			FROM vehicles v
			LEFT JOIN trip_summary ts ON ts.vehicle_uuid = v.vehicle_uuid
			LEFT JOIN tripdata td ON td.trip_id = ts.trip_id
			WHERE v.user_uuid = ?
				AND v.vehicle_status = ?
				AND ts.trip_status = ?
				AND td.created_at BETWEEN ? AND ?
				AND td.event IN (%s)
				AND v.vehicle_uuid = ANY(?)
			GROUP BY v.vehicle_uuid, v.vehicle_name, v.vehicle_registration, td.event
			ORDER BY v.vehicle_uuid ASC, td.event ASC
		`, eventFilter)
		args = []interface{}{userUUID, model.VehicleStatusActive, model.TripStatusCompleted, from, to}
		args = append(args, eventArgs...)
		args = append(args, vehicles)
	}

	var rows []VehicleEventRow
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TripEventCounts runs the per-vehicle expansion query: event counts
// grouped by (trip, calendar day, event type) within the report window.
func (r *TripRepository) TripEventCounts(
	ctx context.Context,
	vehicleUUID uuid.UUID,
	from, to time.Time,
	events []model.EventCode,
) ([]model.TripEventCount, error) {
	if len(events) == 0 {
		return []model.TripEventCount{}, nil
	}

	eventFilter, eventArgs := eventPlaceholders(events)
	baseQuery := fmt.Sprintf(`
		SELECT
			td.trip_id,
			DATE(td.created_at) AS date,
			td.event,
			COUNT(*) AS event_count
		FROM tripdata td
		WHERE td.vehicle_uuid = ?
			AND td.created_at BETWEEN ? AND ?
			AND td.event IN (%s)
		GROUP BY td.trip_id, DATE(td.created_at), td.event
		ORDER BY date ASC, td.trip_id ASC, td.event ASC
	`, eventFilter)

	args := []interface{}{vehicleUUID, from, to}
	args = append(args, eventArgs...)

	var rows []model.TripEventCount
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVehicles returns the active vehicles of a user, the source list
// for building a report filter.
func (r *TripRepository) ListVehicles(ctx context.Context, userUUID uuid.UUID) ([]model.Vehicle, error) {
	var rows []model.Vehicle
	err := r.db.WithContext(ctx).Raw(`
		SELECT vehicle_uuid, vehicle_name, vehicle_registration, user_uuid, vehicle_status
		FROM vehicles
		WHERE vehicle_status = ? AND user_uuid = ?
		ORDER BY vehicle_name ASC
	`, model.VehicleStatusActive, userUUID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListContacts returns the active contacts of a user, newest first.
func (r *TripRepository) ListContacts(ctx context.Context, userUUID uuid.UUID) ([]model.Contact, error) {
	var rows []model.Contact
	err := r.db.WithContext(ctx).Raw(`
		SELECT contact_uuid, contact_name, contact_email, contact_mobile,
			user_uuid, contact_status, contact_created_at AS created_at
		FROM contacts
		WHERE contact_status != 0 AND user_uuid = ?
		ORDER BY contact_created_at DESC
	`, userUUID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func eventPlaceholders(events []model.EventCode) (string, []interface{}) {
	placeholders := make([]string, len(events))
	args := make([]interface{}, len(events))
	for i, event := range events {
		placeholders[i] = "?"
		args[i] = string(event)
	}
	return strings.Join(placeholders, ","), args
}
