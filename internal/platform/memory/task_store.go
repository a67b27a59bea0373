package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/task"
)

// ErrNotRehydrated is returned when a recovered record is executed directly.
var ErrNotRehydrated = errors.New("stored task must be rehydrated before execution")

// TaskStore keeps task records in a map.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*record
	now   func() time.Time
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]*record),
		now:   time.Now,
	}
}

var _ task.TaskStore = (*TaskStore)(nil)

type record struct {
	id           uuid.UUID
	taskType     string
	payload      []byte
	status       task.TaskStatus
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
}

func (r *record) ID() uuid.UUID           { return r.id }
func (r *record) Type() string            { return r.taskType }
func (r *record) Payload() []byte         { return r.payload }
func (r *record) Status() task.TaskStatus { return r.status }

func (r *record) Execute(context.Context) error {
	return fmt.Errorf("task %s (%s): %w", r.id, r.taskType, ErrNotRehydrated)
}

// SaveTask stores t as pending, resetting an existing record.
func (s *TaskStore) SaveTask(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.tasks[t.ID()]; ok {
		existing.status = task.TaskStatusPending
		existing.errorMessage = ""
		existing.updatedAt = now
		return nil
	}
	s.tasks[t.ID()] = &record{
		id:        t.ID(),
		taskType:  t.Type(),
		payload:   append([]byte(nil), t.Payload()...),
		status:    task.TaskStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return nil
}

// UpdateTaskStatus implements task.TaskStore. Unknown tasks are ignored.
func (s *TaskStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status task.TaskStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.tasks[id]; ok {
		r.status = status
		r.errorMessage = errorMsg
		r.updatedAt = s.now()
	}
	return nil
}

// GetPendingTasks implements task.TaskStore.
func (s *TaskStore) GetPendingTasks(_ context.Context) ([]task.Task, error) {
	return s.byStatus(task.TaskStatusPending, 0), nil
}

// GetProcessingTasks implements task.TaskStore.
func (s *TaskStore) GetProcessingTasks(_ context.Context, olderThan time.Duration) ([]task.Task, error) {
	return s.byStatus(task.TaskStatusProcessing, olderThan), nil
}

// ErrorMessage returns the stored failure message of a task.
func (s *TaskStore) ErrorMessage(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.tasks[id]; ok {
		return r.errorMessage
	}
	return ""
}

func (s *TaskStore) byStatus(status task.TaskStatus, olderThan time.Duration) []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var matched []*record
	for _, r := range s.tasks {
		if r.status != status {
			continue
		}
		if olderThan > 0 && !r.updatedAt.Before(cutoff) {
			continue
		}
		c := *r
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].createdAt.Before(matched[j].createdAt)
	})

	out := make([]task.Task, len(matched))
	for i, r := range matched {
		out[i] = r
	}
	return out
}
