package pdf

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/reports-service/internal/model"
)

func TestGenerateProducesPDF(t *testing.T) {
	vehicleUUID := uuid.New()
	report := model.Report{
		ReportUUID: uuid.New(),
		Title:      "January summary",
		Vehicles:   model.NewReportSnapshot(),
		FromDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
	}
	details := []model.VehicleDetail{{
		ReportUUID:  report.ReportUUID,
		VehicleUUID: vehicleUUID,
		VehicleName: "Truck 1",
		TripData: []model.TripEventCount{
			{TripID: "trip-001", Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Event: model.EventACC, EventCount: 2},
		},
	}}

	content, err := NewGenerator().Generate(report, details)
	require.NoError(t, err)
	require.NotEmpty(t, content)
	assert.Equal(t, "%PDF", string(content[:4]))
}

func TestGenerateEmptyReport(t *testing.T) {
	report := model.Report{
		ReportUUID: uuid.New(),
		Title:      "Empty",
		Vehicles:   model.NewReportSnapshot(),
	}

	content, err := NewGenerator().Generate(report, nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(content[:4]))
}
