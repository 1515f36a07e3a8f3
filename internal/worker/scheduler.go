package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
)

// JobQueue is the report_jobs persistence surface the scheduler needs.
// Implemented by repository.ReportRepository.
type JobQueue interface {
	ClaimDueJob(ctx context.Context, now time.Time) (*model.ReportJob, error)
	CompleteJob(ctx context.Context, jobUUID uuid.UUID, completedAt time.Time) error
	FailJob(ctx context.Context, jobUUID uuid.UUID, jobErr string, completedAt time.Time) error
}

// JobRunner executes one claimed job. Implemented by
// service.ReportService.
type JobRunner interface {
	RunJob(ctx context.Context, job model.ReportJob) error
}

// Scheduler polls for due report jobs and runs them off the request
// path. Jobs survive restarts in report_jobs; an unserved tick is
// picked up on the next poll.
type Scheduler struct {
	queue  JobQueue
	runner JobRunner
	poll   time.Duration
	log    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(queue JobQueue, runner JobRunner, poll time.Duration, log zerolog.Logger) *Scheduler {
	if poll <= 0 {
		poll = time.Minute
	}
	return &Scheduler{
		queue:  queue,
		runner: runner,
		poll:   poll,
		log:    log,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		s.log.Info().Dur("poll", s.poll).Msg("report scheduler started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.drain(ctx)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// drain claims and runs due jobs until the queue is empty or the
// context is cancelled.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		job, err := s.queue.ClaimDueJob(ctx, time.Now())
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.Error().Err(err).Msg("claim report job")
			}
			return
		}

		s.runOne(ctx, *job)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, job model.ReportJob) {
	log := s.log.With().
		Str("job_uuid", job.JobUUID.String()).
		Str("report_uuid", job.ReportUUID.String()).
		Logger()

	if err := s.runner.RunJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("report job failed")
		if failErr := s.queue.FailJob(ctx, job.JobUUID, err.Error(), time.Now()); failErr != nil {
			log.Error().Err(failErr).Msg("mark report job failed")
		}
		return
	}

	if err := s.queue.CompleteJob(ctx, job.JobUUID, time.Now()); err != nil {
		log.Error().Err(err).Msg("mark report job completed")
		return
	}
	log.Info().Msg("report job completed")
}
