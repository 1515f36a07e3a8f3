package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
)

// ReportRepository owns the reports and report_jobs tables.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type reportRow struct {
	ReportUUID   uuid.UUID
	Title        string
	UserUUID     uuid.UUID
	Vehicles     string
	FromDate     time.Time
	ToDate       time.Time
	ContactUUID  uuid.UUID
	ReportStatus int16
	CreatedAt    time.Time
	CreatedBy    uuid.UUID
}

// Create persists a report with its aggregate snapshot. Single insert,
// atomic at the database level; the snapshot is never updated after.
func (r *ReportRepository) Create(ctx context.Context, report model.Report) error {
	snapshot, err := json.Marshal(report.Vehicles)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	return r.db.WithContext(ctx).Exec(`
		INSERT INTO reports
			(report_uuid, title, user_uuid, vehicles, from_date, to_date,
			 contact_uuid, report_status, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ReportUUID,
		report.Title,
		report.UserUUID,
		string(snapshot),
		report.FromDate,
		report.ToDate,
		report.ContactUUID,
		report.ReportStatus,
		report.CreatedAt,
		report.CreatedBy,
	).Error
}

func (r *ReportRepository) Get(ctx context.Context, reportUUID uuid.UUID) (*model.Report, error) {
	var row reportRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT report_uuid, title, user_uuid, vehicles::text AS vehicles,
			from_date, to_date, contact_uuid, report_status, created_at, created_by
		FROM reports
		WHERE report_uuid = ?
		LIMIT 1
	`, reportUUID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ReportUUID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return rowToReport(row)
}

func (r *ReportRepository) ListByUser(ctx context.Context, userUUID uuid.UUID) ([]model.Report, error) {
	var rows []reportRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT report_uuid, title, user_uuid, vehicles::text AS vehicles,
			from_date, to_date, contact_uuid, report_status, created_at, created_by
		FROM reports
		WHERE user_uuid = ? AND report_status = ?
		ORDER BY created_at DESC
	`, userUUID, model.ReportStatusActive).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	reports := make([]model.Report, 0, len(rows))
	for _, row := range rows {
		report, err := rowToReport(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func rowToReport(row reportRow) (*model.Report, error) {
	var snapshot model.ReportSnapshot
	if err := json.Unmarshal([]byte(row.Vehicles), &snapshot); err != nil {
		return nil, fmt.Errorf("deserialize snapshot: %w", err)
	}
	return &model.Report{
		ReportUUID:   row.ReportUUID,
		Title:        row.Title,
		UserUUID:     row.UserUUID,
		Vehicles:     snapshot,
		FromDate:     row.FromDate,
		ToDate:       row.ToDate,
		ContactUUID:  row.ContactUUID,
		ReportStatus: row.ReportStatus,
		CreatedAt:    row.CreatedAt,
		CreatedBy:    row.CreatedBy,
	}, nil
}

type jobRow struct {
	JobUUID     uuid.UUID
	ReportUUID  uuid.UUID
	UserUUID    uuid.UUID
	Filter      string
	RunAt       time.Time
	Status      string
	LastError   *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (r *ReportRepository) CreateJob(ctx context.Context, job model.ReportJob) error {
	filter, err := json.Marshal(job.Filter)
	if err != nil {
		return fmt.Errorf("serialize job filter: %w", err)
	}

	return r.db.WithContext(ctx).Exec(`
		INSERT INTO report_jobs
			(job_uuid, report_uuid, user_uuid, filter, run_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		job.JobUUID,
		job.ReportUUID,
		job.UserUUID,
		string(filter),
		job.RunAt,
		string(job.Status),
		job.CreatedAt,
	).Error
}

func (r *ReportRepository) GetJob(ctx context.Context, jobUUID uuid.UUID) (*model.ReportJob, error) {
	var row jobRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT job_uuid, report_uuid, user_uuid, filter::text AS filter,
			run_at, status, last_error, created_at, completed_at
		FROM report_jobs
		WHERE job_uuid = ?
		LIMIT 1
	`, jobUUID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.JobUUID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return rowToJob(row)
}

// ClaimDueJob atomically moves the oldest due PENDING job to RUNNING
// and returns it. SKIP LOCKED keeps concurrent workers from claiming
// the same job. Returns gorm.ErrRecordNotFound when nothing is due.
func (r *ReportRepository) ClaimDueJob(ctx context.Context, now time.Time) (*model.ReportJob, error) {
	var row jobRow
	err := r.db.WithContext(ctx).Raw(`
		UPDATE report_jobs
		SET status = 'RUNNING'
		WHERE job_uuid = (
			SELECT job_uuid
			FROM report_jobs
			WHERE status = 'PENDING' AND run_at <= ?
			ORDER BY run_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING job_uuid, report_uuid, user_uuid, filter::text AS filter,
			run_at, status, last_error, created_at, completed_at
	`, now).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.JobUUID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return rowToJob(row)
}

func (r *ReportRepository) CompleteJob(ctx context.Context, jobUUID uuid.UUID, completedAt time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE report_jobs
		SET status = 'COMPLETED', last_error = NULL, completed_at = ?
		WHERE job_uuid = ?
	`, completedAt, jobUUID).Error
}

func (r *ReportRepository) FailJob(ctx context.Context, jobUUID uuid.UUID, jobErr string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE report_jobs
		SET status = 'FAILED', last_error = ?, completed_at = ?
		WHERE job_uuid = ?
	`, jobErr, completedAt, jobUUID).Error
}

func rowToJob(row jobRow) (*model.ReportJob, error) {
	var filter model.ReportFilter
	if err := json.Unmarshal([]byte(row.Filter), &filter); err != nil {
		return nil, fmt.Errorf("deserialize job filter: %w", err)
	}
	return &model.ReportJob{
		JobUUID:     row.JobUUID,
		ReportUUID:  row.ReportUUID,
		UserUUID:    row.UserUUID,
		Filter:      filter,
		RunAt:       row.RunAt,
		Status:      model.JobStatus(row.Status),
		LastError:   row.LastError,
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}, nil
}
