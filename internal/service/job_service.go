package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/events"
	"github.com/phrazzld/slidegen/internal/store"
)

// JobRunner is the part of the background runner the service controls.
type JobRunner interface {
	// Cancel requests cancellation of a queued or running job and reports
	// whether the runner knew it.
	Cancel(jobID uuid.UUID) bool

	// CancelAll requests cancellation of every queued or running job and
	// returns how many were cancelled.
	CancelAll() int
}

// CancelSignal is the process-wide cancellation request.
type CancelSignal interface {
	IsCancelled() bool
	Clear() error
}

// JobService provides job lifecycle operations
type JobService interface {
	// CreateJobAndEnqueue validates and stores a new job, then emits the
	// event that schedules it.
	CreateJobAndEnqueue(ctx context.Context, kind domain.JobKind, doc domain.Document, opts domain.JobOptions) (*domain.Job, error)

	// GetJob retrieves a job by its ID
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// ListJobs returns the most recent jobs first
	ListJobs(ctx context.Context, limit int) ([]*domain.Job, error)

	// CancelJob stops a pending or processing job
	CancelJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
}

// DefaultListLimit caps ListJobs when the caller passes no limit.
const DefaultListLimit = 50

type jobServiceImpl struct {
	jobs    store.JobStore
	runner  JobRunner
	emitter events.EventEmitter
	signal  CancelSignal
	creds   *Credentials
	logger  *slog.Logger
}

// NewJobService creates a new JobService. signal and creds may be nil.
func NewJobService(
	jobs store.JobStore,
	runner JobRunner,
	emitter events.EventEmitter,
	signal CancelSignal,
	creds *Credentials,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobs cannot be nil", Err: ErrInvalidService}
	}
	if runner == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "runner cannot be nil", Err: ErrInvalidService}
	}
	if emitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "emitter cannot be nil", Err: ErrInvalidService}
	}
	if creds == nil {
		creds = NewCredentials()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		jobs:    jobs,
		runner:  runner,
		emitter: emitter,
		signal:  signal,
		creds:   creds,
		logger:  logger.With("component", "job_service"),
	}, nil
}

// CreateJobAndEnqueue creates a job with pending status and emits a
// JobRequested event for it. Request keys stay in memory only.
func (s *jobServiceImpl) CreateJobAndEnqueue(
	ctx context.Context,
	kind domain.JobKind,
	doc domain.Document,
	opts domain.JobOptions,
) (*domain.Job, error) {
	job, err := domain.NewJob(kind, doc, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected invalid job", "error", err, "kind", kind)
		return nil, err
	}

	// A pending global cancel request belongs to the jobs already live.
	// Hand it to them before this job exists, then consume it.
	if s.signal != nil && s.signal.IsCancelled() {
		n := s.runner.CancelAll()
		if err := s.signal.Clear(); err != nil {
			s.logger.WarnContext(ctx, "failed to clear cancel signal", "error", err)
		}
		s.logger.InfoContext(ctx, "global cancel request applied", "cancelled", n)
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to save job", "error", err, "job_id", job.ID)
		return nil, NewServiceError("create_job", "failed to save job", err)
	}
	s.creds.Put(job.ID, opts.APIKeys)

	event, err := events.NewEvent(events.JobRequested, job.ID, events.JobRequestPayload{Kind: string(job.Kind)})
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule job", "error", err, "job_id", job.ID)
		s.creds.Forget(job.ID)
		s.markFailed(ctx, job, "failed to schedule job")
		return nil, NewServiceError("create_job", "failed to schedule job", err)
	}

	s.logger.InfoContext(ctx, "job created",
		"job_id", job.ID,
		"kind", job.Kind,
		"provider", job.Options.Provider,
		"event_id", event.ID)
	return job, nil
}

func (s *jobServiceImpl) markFailed(ctx context.Context, job *domain.Job, msg string) {
	if err := job.Fail(msg, nil); err != nil {
		return
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark unscheduled job failed", "error", err, "job_id", job.ID)
	}
}

// GetJob retrieves a job by its ID
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if !errors.Is(err, store.ErrJobNotFound) {
			s.logger.ErrorContext(ctx, "failed to retrieve job", "error", err, "job_id", jobID)
		}
		return nil, NewServiceError("get_job", "failed to retrieve job", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first
func (s *jobServiceImpl) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list jobs", "error", err)
		return nil, NewServiceError("list_jobs", "failed to list jobs", err)
	}
	return jobs, nil
}

// CancelJob asks the runner to stop a live job. A job the runner does not
// hold, such as one left pending by a crash, is marked cancelled directly.
func (s *jobServiceImpl) CancelJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, ErrJobFinished
	}

	if s.runner.Cancel(jobID) {
		s.logger.InfoContext(ctx, "job cancellation requested", "job_id", jobID)
		return job, nil
	}

	if err := job.Cancel(job.PartialState); err != nil {
		return nil, NewServiceError("cancel_job", "failed to cancel job", err)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, NewServiceError("cancel_job", "failed to save cancelled job", err)
	}
	s.creds.Forget(jobID)
	s.logger.InfoContext(ctx, "job cancelled without a running task", "job_id", jobID)
	return job, nil
}
