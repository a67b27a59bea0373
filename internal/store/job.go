package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/domain"
)

// JobStore defines the interface for job persistence.
type JobStore interface {
	// Create saves a new job together with its document bytes.
	// Returns validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job, including its document bytes.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update saves the mutable fields of a job: status, result, used model,
	// error message and partial state. The document is never rewritten.
	// Returns ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, job *domain.Job) error

	// List returns the most recent jobs first, without document bytes.
	List(ctx context.Context, limit int) ([]*domain.Job, error)
}
