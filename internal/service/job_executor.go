package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/generation"
)

// Credentials holds per-job API keys in memory only. Keys submitted with a
// job are never written to a store; a job resumed after a restart falls
// back to the configured keys.
type Credentials struct {
	mu   sync.Mutex
	keys map[uuid.UUID][]string
}

// NewCredentials creates an empty Credentials cache.
func NewCredentials() *Credentials {
	return &Credentials{keys: make(map[uuid.UUID][]string)}
}

// Put remembers keys for a job. Empty keys are ignored.
func (c *Credentials) Put(jobID uuid.UUID, keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	c.keys[jobID] = append([]string(nil), keys...)
	c.mu.Unlock()
}

// Get returns the keys remembered for a job.
func (c *Credentials) Get(jobID uuid.UUID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[jobID]
}

// Forget drops the keys of a job.
func (c *Credentials) Forget(jobID uuid.UUID) {
	c.mu.Lock()
	delete(c.keys, jobID)
	c.mu.Unlock()
}

// JobExecutor runs a stored job through the service matching its kind.
type JobExecutor struct {
	slides  *SlideService
	summary *SummaryService
	review  *ReviewService
	creds   *Credentials
	logger  *slog.Logger
}

// NewJobExecutor builds the generation services on top of gen. creds may
// be nil.
func NewJobExecutor(gen Generator, creds *Credentials, logger *slog.Logger) (*JobExecutor, error) {
	slides, err := NewSlideService(gen, logger)
	if err != nil {
		return nil, err
	}
	summary, err := NewSummaryService(gen, logger)
	if err != nil {
		return nil, err
	}
	review, err := NewReviewService(gen, logger)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		creds = NewCredentials()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobExecutor{
		slides:  slides,
		summary: summary,
		review:  review,
		creds:   creds,
		logger:  logger.With("component", "job_executor"),
	}, nil
}

// Execute runs job and returns its result and the model trail.
// Review failures carry a resumable checkpoint.
func (e *JobExecutor) Execute(ctx context.Context, job *domain.Job, cc cancel.Checker) (any, string, error) {
	keys := job.Options.APIKeys
	if len(keys) == 0 {
		keys = e.creds.Get(job.ID)
	}
	defer e.creds.Forget(job.ID)

	in := Input{
		Document: generation.NewDocument(job.Document.Data, job.Document.MIMEType),
		Target: generation.Target{
			Provider: job.Options.Provider,
			Keys:     keys,
			Models:   job.Options.Models,
		},
		Instructions: job.Options.Instructions,
		Language:     job.Options.Language,
	}

	e.logger.InfoContext(ctx, "executing job",
		"job_id", job.ID,
		"kind", job.Kind,
		"request_keys", len(keys))

	switch job.Kind {
	case domain.JobKindSlides:
		deck, err := e.slides.Generate(ctx, in, job.Options.Mode, cc)
		if err != nil {
			return nil, "", err
		}
		return deck, deck.UsedModel, nil

	case domain.JobKindSummary:
		sum, err := e.summary.Summarize(ctx, in, cc)
		if err != nil {
			return nil, "", err
		}
		return sum, sum.UsedModel, nil

	case domain.JobKindDeepDive:
		dd, err := e.summary.DeepDive(ctx, in, cc)
		if err != nil {
			return nil, "", err
		}
		return dd, dd.UsedModel, nil

	case domain.JobKindReview:
		// A checkpoint saved by an interrupted run wins over the
		// caller's resume state.
		resume := job.PartialState
		if resume == nil {
			resume = job.Options.ResumeState
		}
		review, err := e.review.Review(ctx, in, resume, cc)
		if err != nil {
			return nil, "", err
		}
		return review, review.UsedModel, nil

	default:
		return nil, "", fmt.Errorf("%w: %q", domain.ErrInvalidJobKind, job.Kind)
	}
}
