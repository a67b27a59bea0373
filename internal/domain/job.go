package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind selects which generation a job runs.
type JobKind string

// Supported job kinds
const (
	JobKindSlides   JobKind = "slides"
	JobKindSummary  JobKind = "summary"
	JobKindDeepDive JobKind = "deep_dive"
	JobKindReview   JobKind = "review"
)

// JobStatus represents the processing state of a job
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// SlideMode controls how much detail a deck carries.
type SlideMode string

// Slide modes
const (
	SlideModeDetail   SlideMode = "detail"
	SlideModeOverview SlideMode = "overview"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrInvalidJobKind   = errors.New("invalid job kind")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrEmptyDocument    = errors.New("document cannot be empty")
	ErrInvalidSlideMode = errors.New("invalid slide mode")
	ErrJobAlreadyDone   = errors.New("job already finished")
	ErrResumeNotReview  = errors.New("resume state is only valid for review jobs")
)

// Document is the uploaded source file. Its bytes are never serialized
// with the job.
type Document struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// JobOptions are the caller's generation choices.
type JobOptions struct {
	Provider     string       `json:"provider"`
	Models       []string     `json:"models,omitempty"`
	APIKeys      []string     `json:"-"`
	Instructions string       `json:"instructions,omitempty"`
	Mode         SlideMode    `json:"mode,omitempty"`
	Language     string       `json:"language,omitempty"`
	ResumeState  *ReviewState `json:"resume_state,omitempty"`
}

// Job is one asynchronous generation request and its outcome.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Kind      JobKind         `json:"kind"`
	Status    JobStatus       `json:"status"`
	Document  Document        `json:"document"`
	Options   JobOptions      `json:"options"`
	Result    json.RawMessage `json:"result,omitempty"`
	UsedModel string          `json:"used_model,omitempty"`
	Error     string          `json:"error,omitempty"`
	// PartialState holds completed review steps after a failure so the
	// caller can resume.
	PartialState *ReviewState `json:"partial_state,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewJob creates a pending Job with a fresh ID.
// Returns an error if validation fails.
func NewJob(kind JobKind, doc Document, opts JobOptions) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    JobStatusPending,
		Document:  doc,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.Kind == JobKindSlides && job.Options.Mode == "" {
		job.Options.Mode = SlideModeDetail
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if !j.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobKind, j.Kind)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, j.Status)
	}
	if len(j.Document.Data) == 0 {
		return ErrEmptyDocument
	}
	if j.Options.Mode != "" && j.Options.Mode != SlideModeDetail && j.Options.Mode != SlideModeOverview {
		return fmt.Errorf("%w: %q", ErrInvalidSlideMode, j.Options.Mode)
	}
	if j.Options.ResumeState != nil && j.Kind != JobKindReview {
		return ErrResumeNotReview
	}
	return nil
}

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindSlides, JobKindSummary, JobKindDeepDive, JobKindReview:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// UpdateStatus updates the job's status and the UpdatedAt timestamp.
func (j *Job) UpdateStatus(status JobStatus) error {
	if !status.Valid() {
		return ErrInvalidJobStatus
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobAlreadyDone, j.Status)
	}
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete stores the marshalled result and marks the job completed.
func (j *Job) Complete(result any, usedModel string) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}
	if err := j.UpdateStatus(JobStatusCompleted); err != nil {
		return err
	}
	j.Result = data
	j.UsedModel = usedModel
	j.Error = ""
	return nil
}

// Fail records an error message and any resumable review state.
func (j *Job) Fail(message string, partial *ReviewState) error {
	if err := j.UpdateStatus(JobStatusFailed); err != nil {
		return err
	}
	j.Error = message
	j.PartialState = partial
	return nil
}

// Cancel marks the job cancelled, keeping any partial review state.
func (j *Job) Cancel(partial *ReviewState) error {
	if err := j.UpdateStatus(JobStatusCancelled); err != nil {
		return err
	}
	j.Error = "cancelled"
	j.PartialState = partial
	return nil
}
