package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	VehicleStatusActive   = 1
	VehicleStatusInactive = 0
)

// Trips are written by the ingestion side; only completed trips carry
// a summary worth reporting over.
const TripStatusCompleted = 1

type Vehicle struct {
	VehicleUUID         uuid.UUID `json:"vehicle_uuid"`
	VehicleName         string    `json:"vehicle_name"`
	VehicleRegistration string    `json:"vehicle_registration"`
	UserUUID            uuid.UUID `json:"user_uuid"`
	VehicleStatus       int16     `json:"vehicle_status"`
}

type Contact struct {
	ContactUUID   uuid.UUID `json:"contact_uuid"`
	ContactName   string    `json:"contact_name"`
	ContactEmail  string    `json:"contact_email"`
	ContactMobile string    `json:"contact_mobile"`
	UserUUID      uuid.UUID `json:"user_uuid"`
	ContactStatus int16     `json:"contact_status"`
	CreatedAt     time.Time `json:"contact_created_at"`
}
