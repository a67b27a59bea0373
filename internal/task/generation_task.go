package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/events"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/redact"
)

// JobRepository is the slice of job persistence a generation task needs.
type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// Executor runs the generation a job asks for. It returns the value stored
// as the job result and the model trail to record.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job, cc cancel.Checker) (result any, usedModel string, err error)
}

// Checkpointer is implemented by errors that carry resumable review state.
type Checkpointer interface {
	Checkpoint() *domain.ReviewState
}

type generationPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// GenerationTask runs one job through an Executor and records the outcome
// on the job. The task ID is the job ID.
type GenerationTask struct {
	id       uuid.UUID
	payload  []byte
	status   TaskStatus
	jobs     JobRepository
	executor Executor
	emitter  events.EventEmitter
	token    *cancel.Token
	logger   *slog.Logger
}

// ID returns the job ID
func (t *GenerationTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeGeneration
func (t *GenerationTask) Type() string { return TaskTypeGeneration }

// Payload returns the serialized job reference
func (t *GenerationTask) Payload() []byte { return t.payload }

// Status returns the status the task was created with
func (t *GenerationTask) Status() TaskStatus { return t.status }

// Cancel stops the task before its next backend call.
func (t *GenerationTask) Cancel() { t.token.Cancel() }

// Execute loads the job, runs it and stores the result, failure or
// cancellation. When ctx ends mid-run the job is left processing, with any
// checkpoint saved, so a later recovery resumes it.
func (t *GenerationTask) Execute(ctx context.Context) error {
	logger := t.logger.With("job_id", t.id)
	storeCtx := context.WithoutCancel(ctx)

	job, err := t.jobs.GetByID(ctx, t.id)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", t.id, err)
	}

	switch job.Status {
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		logger.Info("job already finished, skipping", "status", job.Status)
		return nil
	case domain.JobStatusCancelled:
		return fmt.Errorf("job %s: %w", t.id, ErrTaskCancelled)
	}

	if t.token.IsCancelled() {
		return t.finishCancelled(storeCtx, logger, job, job.PartialState)
	}

	if err := job.UpdateStatus(domain.JobStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if err := t.jobs.Update(storeCtx, job); err != nil {
		return fmt.Errorf("failed to save job status: %w", err)
	}

	logger.Info("running job", "kind", job.Kind, "provider", job.Options.Provider)
	result, usedModel, execErr := t.executor.Execute(ctx, job, t.token)

	var partial *domain.ReviewState
	var cp Checkpointer
	if errors.As(execErr, &cp) {
		partial = cp.Checkpoint()
	}

	switch {
	case execErr == nil:
		if err := job.Complete(result, usedModel); err != nil {
			return t.finishFailed(storeCtx, logger, job, err, nil)
		}
		if err := t.jobs.Update(storeCtx, job); err != nil {
			return fmt.Errorf("failed to save job result: %w", err)
		}
		logger.Info("job completed", "used_model", usedModel)
		t.emitFinished(storeCtx, logger, job)
		return nil

	case ctx.Err() != nil:
		if partial != nil {
			job.PartialState = partial
			if err := t.jobs.Update(storeCtx, job); err != nil {
				logger.Error("failed to save checkpoint of interrupted job", "error", err)
			}
		}
		logger.Warn("job interrupted", "error", redact.Error(execErr))
		return fmt.Errorf("job %s interrupted: %w", t.id, ctx.Err())

	case t.token.IsCancelled() || llm.IsCancelled(execErr):
		return t.finishCancelled(storeCtx, logger, job, partial)

	default:
		return t.finishFailed(storeCtx, logger, job, execErr, partial)
	}
}

func (t *GenerationTask) finishCancelled(ctx context.Context, logger *slog.Logger, job *domain.Job, partial *domain.ReviewState) error {
	if err := job.Cancel(partial); err != nil {
		return fmt.Errorf("failed to mark job cancelled: %w", err)
	}
	if err := t.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to save cancelled job: %w", err)
	}
	logger.Info("job cancelled", "has_checkpoint", partial != nil)
	t.emitFinished(ctx, logger, job)
	return fmt.Errorf("job %s: %w", t.id, ErrTaskCancelled)
}

func (t *GenerationTask) finishFailed(ctx context.Context, logger *slog.Logger, job *domain.Job, cause error, partial *domain.ReviewState) error {
	if err := job.Fail(redact.String(cause.Error()), partial); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if err := t.jobs.Update(ctx, job); err != nil {
		logger.Error("failed to save failed job", "error", err)
	}
	t.emitFinished(ctx, logger, job)
	return fmt.Errorf("job %s failed: %w", t.id, cause)
}

func (t *GenerationTask) emitFinished(ctx context.Context, logger *slog.Logger, job *domain.Job) {
	if t.emitter == nil {
		return
	}
	event, err := events.NewEvent(events.JobFinished, job.ID, events.JobFinishedPayload{
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		UsedModel: job.UsedModel,
	})
	if err != nil {
		logger.Error("failed to build job finished event", "error", err)
		return
	}
	if err := t.emitter.EmitEvent(ctx, event); err != nil {
		logger.Warn("job finished event handler failed", "error", err)
	}
}

var (
	_ Task      = (*GenerationTask)(nil)
	_ Canceller = (*GenerationTask)(nil)
)

// GenerationTaskFactory builds GenerationTasks sharing one repository,
// executor and process-wide cancellation signal.
type GenerationTaskFactory struct {
	jobs     JobRepository
	executor Executor
	signal   cancel.Checker
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewGenerationTaskFactory creates a factory. signal and emitter may be nil.
func NewGenerationTaskFactory(
	jobs JobRepository,
	executor Executor,
	signal cancel.Checker,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*GenerationTaskFactory, error) {
	if jobs == nil {
		return nil, errors.New("job repository cannot be nil")
	}
	if executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationTaskFactory{
		jobs:     jobs,
		executor: executor,
		signal:   signal,
		emitter:  emitter,
		logger:   logger.With("component", "generation_task"),
	}, nil
}

// CreateTask returns a pending task for jobID.
func (f *GenerationTaskFactory) CreateTask(jobID uuid.UUID) (Task, error) {
	if jobID == uuid.Nil {
		return nil, domain.ErrEmptyJobID
	}
	payload, err := json.Marshal(generationPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return &GenerationTask{
		id:       jobID,
		payload:  payload,
		status:   TaskStatusPending,
		jobs:     f.jobs,
		executor: f.executor,
		emitter:  f.emitter,
		token:    cancel.NewToken(f.signal),
		logger:   f.logger,
	}, nil
}

// Rehydrate implements Rehydrator for stored generation task records.
func (f *GenerationTaskFactory) Rehydrate(record Task) (Task, error) {
	if record.Type() != TaskTypeGeneration {
		return nil, fmt.Errorf("unsupported task type %q", record.Type())
	}
	var payload generationPayload
	if err := json.Unmarshal(record.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("invalid task payload: %w", err)
	}
	if payload.JobID != record.ID() {
		return nil, fmt.Errorf("task %s references job %s", record.ID(), payload.JobID)
	}
	return f.CreateTask(payload.JobID)
}

var _ Rehydrator = (*GenerationTaskFactory)(nil)
