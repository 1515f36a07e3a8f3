package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetpulse/reports-service/internal/model"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  []model.ReportJob
	claimErr error

	completed []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeQueue(jobs ...model.ReportJob) *fakeQueue {
	return &fakeQueue{
		pending: jobs,
		failed:  make(map[uuid.UUID]string),
	}
}

func (q *fakeQueue) ClaimDueJob(_ context.Context, _ time.Time) (*model.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.pending) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return &job, nil
}

func (q *fakeQueue) CompleteJob(_ context.Context, jobUUID uuid.UUID, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, jobUUID)
	return nil
}

func (q *fakeQueue) FailJob(_ context.Context, jobUUID uuid.UUID, jobErr string, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobUUID] = jobErr
	return nil
}

type fakeRunner struct {
	mu   sync.Mutex
	ran  []uuid.UUID
	errs map[uuid.UUID]error
}

func (r *fakeRunner) RunJob(_ context.Context, job model.ReportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, job.JobUUID)
	if r.errs != nil {
		return r.errs[job.JobUUID]
	}
	return nil
}

func testJob() model.ReportJob {
	return model.ReportJob{
		JobUUID:    uuid.New(),
		ReportUUID: uuid.New(),
		UserUUID:   uuid.New(),
		Status:     model.JobStatusPending,
	}
}

func TestDrainRunsAllDueJobs(t *testing.T) {
	first, second := testJob(), testJob()
	queue := newFakeQueue(first, second)
	runner := &fakeRunner{}
	s := NewScheduler(queue, runner, time.Minute, zerolog.Nop())

	s.drain(context.Background())

	require.Equal(t, []uuid.UUID{first.JobUUID, second.JobUUID}, runner.ran)
	assert.Equal(t, []uuid.UUID{first.JobUUID, second.JobUUID}, queue.completed)
	assert.Empty(t, queue.failed)
}

func TestDrainRecordsFailureAndKeepsGoing(t *testing.T) {
	bad, good := testJob(), testJob()
	queue := newFakeQueue(bad, good)
	runner := &fakeRunner{errs: map[uuid.UUID]error{
		bad.JobUUID: errors.New("trip query timed out"),
	}}
	s := NewScheduler(queue, runner, time.Minute, zerolog.Nop())

	s.drain(context.Background())

	assert.Equal(t, "trip query timed out", queue.failed[bad.JobUUID])
	assert.Equal(t, []uuid.UUID{good.JobUUID}, queue.completed)
	assert.Len(t, runner.ran, 2, "one failed job must not block the rest")
}

func TestDrainStopsOnClaimError(t *testing.T) {
	queue := newFakeQueue(testJob())
	queue.claimErr = errors.New("connection refused")
	runner := &fakeRunner{}
	s := NewScheduler(queue, runner, time.Minute, zerolog.Nop())

	s.drain(context.Background())

	assert.Empty(t, runner.ran)
}

func TestStartStop(t *testing.T) {
	job := testJob()
	queue := newFakeQueue(job)
	runner := &fakeRunner{}
	s := NewScheduler(queue, runner, 10*time.Millisecond, zerolog.Nop())

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.completed) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, []uuid.UUID{job.JobUUID}, queue.completed)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler(newFakeQueue(), &fakeRunner{}, time.Minute, zerolog.Nop())
	assert.NotPanics(t, s.Stop)
}

func TestPollFloor(t *testing.T) {
	s := NewScheduler(newFakeQueue(), &fakeRunner{}, 0, zerolog.Nop())
	assert.Equal(t, time.Minute, s.poll)
}
