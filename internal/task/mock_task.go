package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTask is a simple implementation of the Task interface for testing
type MockTask struct {
	TaskID      uuid.UUID
	TaskType    string
	TaskPayload []byte
	TaskStatus  TaskStatus
	ExecuteFn   func(ctx context.Context) error

	mu        sync.Mutex
	cancelled bool
}

// NewMockTask creates a new MockTask with the given ID and type
func NewMockTask(id uuid.UUID, taskType string, payload []byte) *MockTask {
	return &MockTask{
		TaskID:      id,
		TaskType:    taskType,
		TaskPayload: payload,
		TaskStatus:  TaskStatusPending,
		ExecuteFn:   func(ctx context.Context) error { return nil },
	}
}

// CreateMockTaskWithPayload creates a MockTask carrying a job_id payload
func CreateMockTaskWithPayload(jobID uuid.UUID) *MockTask {
	data, _ := json.Marshal(generationPayload{JobID: jobID})
	return NewMockTask(jobID, TaskTypeGeneration, data)
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID { return t.TaskID }

// Type returns the task type identifier
func (t *MockTask) Type() string { return t.TaskType }

// Payload returns the task data as a byte slice
func (t *MockTask) Payload() []byte { return t.TaskPayload }

// Status returns the current task status
func (t *MockTask) Status() TaskStatus { return t.TaskStatus }

// Execute runs ExecuteFn
func (t *MockTask) Execute(ctx context.Context) error {
	return t.ExecuteFn(ctx)
}

// Cancel records a cancellation request
func (t *MockTask) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// Cancelled reports whether Cancel was called
func (t *MockTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// MockTaskStore is an in-memory TaskStore for tests. Each Fn field, when
// set, replaces the default behaviour of its method.
type MockTaskStore struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*storedTask
	SaveFn   func(ctx context.Context, task Task) error
	UpdateFn func(ctx context.Context, id uuid.UUID, status TaskStatus, msg string) error
	Updates  []StatusUpdate
}

// StatusUpdate is one recorded UpdateTaskStatus call
type StatusUpdate struct {
	TaskID   uuid.UUID
	Status   TaskStatus
	ErrorMsg string
}

type storedTask struct {
	task      Task
	status    TaskStatus
	updatedAt time.Time
}

// NewMockTaskStore creates an empty MockTaskStore
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]*storedTask)}
}

// SaveTask stores task as pending
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	if s.SaveFn != nil {
		if err := s.SaveFn(ctx, task); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID()] = &storedTask{task: task, status: TaskStatusPending, updatedAt: time.Now()}
	return nil
}

// UpdateTaskStatus records the update and changes the stored status
func (s *MockTaskStore) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	if s.UpdateFn != nil {
		if err := s.UpdateFn(ctx, id, status, msg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates = append(s.Updates, StatusUpdate{TaskID: id, Status: status, ErrorMsg: msg})
	if st, ok := s.tasks[id]; ok {
		st.status = status
		st.updatedAt = time.Now()
	}
	return nil
}

// GetPendingTasks returns every pending task
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	return s.byStatus(TaskStatusPending, 0), nil
}

// GetProcessingTasks returns processing tasks older than olderThan
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

// StatusOf returns the stored status of a task
func (s *MockTaskStore) StatusOf(id uuid.UUID) (TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[id]
	if !ok {
		return "", false
	}
	return st.status, true
}

// SetStatus forces the stored status, backdating it by age
func (s *MockTaskStore) SetStatus(task Task, status TaskStatus, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID()] = &storedTask{task: task, status: status, updatedAt: time.Now().Add(-age)}
}

func (s *MockTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []Task
	for _, st := range s.tasks {
		if st.status == status && (olderThan == 0 || st.updatedAt.Before(cutoff)) {
			out = append(out, st.task)
		}
	}
	return out
}

var _ TaskStore = (*MockTaskStore)(nil)
