package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/events"
)

// TaskCreator builds the task for a job.
type TaskCreator interface {
	CreateTask(jobID uuid.UUID) (Task, error)
}

// TaskSubmitter accepts tasks for background execution.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// JobRequestHandler turns JobRequested events into submitted tasks.
type JobRequestHandler struct {
	creator   TaskCreator
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewJobRequestHandler creates a handler submitting tasks built by creator.
func NewJobRequestHandler(creator TaskCreator, submitter TaskSubmitter, logger *slog.Logger) *JobRequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRequestHandler{
		creator:   creator,
		submitter: submitter,
		logger:    logger.With("component", "job_request_handler"),
	}
}

// HandleEvent creates the task for event.JobID and submits it. Events of
// other types are ignored.
func (h *JobRequestHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.JobRequested {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}
	if event.JobID == uuid.Nil {
		return fmt.Errorf("event %s has no job ID", event.ID)
	}

	task, err := h.creator.CreateTask(event.JobID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"job_id", event.JobID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task submitted",
		"task_id", task.ID(),
		"job_id", event.JobID,
		"event_id", event.ID)
	return nil
}

var _ events.EventHandler = (*JobRequestHandler)(nil)
