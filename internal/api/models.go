package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/slidegen/internal/domain"
)

// CreateJobRequest holds the non-file fields of a multipart job submission.
type CreateJobRequest struct {
	Kind         string   `form:"kind"         validate:"required,oneof=slides summary deep_dive review"`
	Provider     string   `form:"provider"     validate:"omitempty,oneof=auto gemini openai anthropic ollama litellm"`
	Models       []string `form:"models"       validate:"max=20,dive,max=200"`
	APIKeys      []string `form:"api_keys"     validate:"max=20,dive,max=512"`
	Instructions string   `form:"instructions" validate:"max=8000"`
	Mode         string   `form:"mode"         validate:"omitempty,oneof=detail overview"`
	Language     string   `form:"language"     validate:"max=64"`
	ResumeState  string   `form:"resume_state" validate:"omitempty,json"`
}

// JobResponse is the public view of a job. Document bytes and API keys are
// never included.
type JobResponse struct {
	ID           string              `json:"id"`
	Kind         string              `json:"kind"`
	Status       string              `json:"status"`
	Filename     string              `json:"filename"`
	MIMEType     string              `json:"mime_type"`
	Provider     string              `json:"provider"`
	Models       []string            `json:"models,omitempty"`
	Mode         string              `json:"mode,omitempty"`
	Language     string              `json:"language,omitempty"`
	Result       json.RawMessage     `json:"result,omitempty"`
	UsedModel    string              `json:"used_model,omitempty"`
	Error        string              `json:"error,omitempty"`
	PartialState *domain.ReviewState `json:"partial_state,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// SignalResponse reports the global cancellation signal.
type SignalResponse struct {
	Cancelled bool `json:"cancelled"`
}

// OllamaModelsResponse lists the models on the local ollama server. When
// the server is unreachable the built-in defaults are returned.
type OllamaModelsResponse struct {
	Models    []string `json:"models"`
	Reachable bool     `json:"reachable"`
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:           job.ID.String(),
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Filename:     job.Document.Filename,
		MIMEType:     job.Document.MIMEType,
		Provider:     job.Options.Provider,
		Models:       job.Options.Models,
		Mode:         string(job.Options.Mode),
		Language:     job.Options.Language,
		Result:       job.Result,
		UsedModel:    job.UsedModel,
		Error:        job.Error,
		PartialState: job.PartialState,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}
