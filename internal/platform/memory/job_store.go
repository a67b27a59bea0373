package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/platform/logger"
	"github.com/phrazzld/slidegen/internal/store"
)

// JobStore keeps jobs in a map. Stored jobs are copies, so callers can keep
// mutating the job they passed in without affecting the store.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*domain.Job
	logger *slog.Logger
}

// NewJobStore creates an empty JobStore.
func NewJobStore(logger *slog.Logger) *JobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobStore{
		jobs:   make(map[uuid.UUID]*domain.Job),
		logger: logger.With(slog.String("component", "memory_job_store")),
	}
}

var _ store.JobStore = (*JobStore)(nil)

// Create implements store.JobStore.Create
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicate
	}
	s.jobs[job.ID] = copyJob(job, true)

	logger.FromContextOrDefault(ctx, s.logger).Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *JobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return copyJob(job, true), nil
}

// Update implements store.JobStore.Update. Only the mutable fields are
// written; the stored document is kept.
func (s *JobStore) Update(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		return store.ErrJobNotFound
	}
	stored.Status = job.Status
	stored.Result = cloneRaw(job.Result)
	stored.UsedModel = job.UsedModel
	stored.Error = job.Error
	stored.PartialState = job.PartialState.Clone()
	stored.UpdatedAt = job.UpdatedAt
	return nil
}

// List implements store.JobStore.List
func (s *JobStore) List(_ context.Context, limit int) ([]*domain.Job, error) {
	s.mu.RLock()
	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, copyJob(job, false))
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// copyJob drops API keys the same way the database encoding does.
func copyJob(job *domain.Job, withDocument bool) *domain.Job {
	c := *job
	c.Options.APIKeys = nil
	c.Options.Models = append([]string(nil), job.Options.Models...)
	c.Options.ResumeState = job.Options.ResumeState.Clone()
	c.Result = cloneRaw(job.Result)
	c.PartialState = job.PartialState.Clone()
	c.Document.Data = nil
	if withDocument {
		c.Document.Data = append([]byte(nil), job.Document.Data...)
	}
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
