package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be processed
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusProcessing indicates the task is currently being processed
	TaskStatusProcessing TaskStatus = "processing"

	// TaskStatusCompleted indicates the task has been successfully processed
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task processing failed
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusCancelled indicates the task stopped because cancellation
	// was requested
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskTypeGeneration runs one generation job.
const TaskTypeGeneration = "job_generation"

// ErrTaskCancelled is wrapped by Execute when a task stopped on request.
var ErrTaskCancelled = errors.New("task cancelled")

// Task defines the interface for background tasks
type Task interface {
	// ID returns the unique identifier for this task
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Canceller is implemented by tasks that can be stopped while queued or
// running.
type Canceller interface {
	Cancel()
}

// Rehydrator rebuilds an executable task from a stored record.
type Rehydrator interface {
	Rehydrate(record Task) (Task, error)
}

// TaskQueueReader defines the interface for reading from a task queue
type TaskQueueReader interface {
	// GetChannel returns a channel that can be used to receive tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter defines the interface for writing to a task queue
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue
	Enqueue(task Task) error

	// Close closes the queue, preventing further tasks from being added
	Close()
}

// TaskStore defines the interface for task persistence
type TaskStore interface {
	// SaveTask persists a task to the store
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves all tasks with "pending" status
	GetPendingTasks(ctx context.Context) ([]Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status
	// that have been in that state for longer than the specified duration.
	// Zero returns every processing task.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)
}
