package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/slidegen/internal/api/shared"
	"github.com/phrazzld/slidegen/internal/document"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/platform/logger"
	"github.com/phrazzld/slidegen/internal/service"
)

// multipartMemory is the part of an upload kept in memory before the rest
// spills to temporary files.
const multipartMemory = 8 << 20

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs           service.JobService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewJobHandler creates a new JobHandler. maxUploadMB bounds the request
// body of CreateJob.
func NewJobHandler(jobs service.JobService, maxUploadMB int, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &JobHandler{
		jobs:           jobs,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger.With("component", "job_handler"),
	}
}

// CreateJob handles POST /api/jobs. The body is multipart/form-data with a
// "file" part and the CreateJobRequest fields as form values. The job runs
// in the background, so the response is 202 Accepted.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAPIError(w, r, ErrUploadTooLarge, "")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("file", "is required", domain.ErrValidation), "")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAPIError(w, r, ErrUploadTooLarge, "")
			return
		}
		HandleAPIError(w, r, err, "Failed to read uploaded file")
		return
	}

	form := r.MultipartForm.Value
	req := CreateJobRequest{
		Kind:         strings.TrimSpace(r.FormValue("kind")),
		Provider:     strings.ToLower(strings.TrimSpace(r.FormValue("provider"))),
		Models:       shared.SplitList(form["models"]),
		APIKeys:      shared.SplitList(form["api_keys"]),
		Instructions: r.FormValue("instructions"),
		Mode:         strings.TrimSpace(r.FormValue("mode")),
		Language:     strings.TrimSpace(r.FormValue("language")),
		ResumeState:  strings.TrimSpace(r.FormValue("resume_state")),
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	mimeType := document.DetectType(data, header.Header.Get("Content-Type"))
	if !document.Supported(mimeType) {
		HandleAPIError(w, r, fmt.Errorf("%w: %s", document.ErrUnsupportedType, mimeType), "")
		return
	}

	opts := domain.JobOptions{
		Provider:     req.Provider,
		Models:       req.Models,
		APIKeys:      req.APIKeys,
		Instructions: req.Instructions,
		Mode:         domain.SlideMode(req.Mode),
		Language:     req.Language,
	}
	if req.ResumeState != "" {
		var state domain.ReviewState
		if err := json.Unmarshal([]byte(req.ResumeState), &state); err != nil {
			HandleAPIError(w, r, domain.NewValidationError("resume_state", "is not a review state", domain.ErrValidation), "")
			return
		}
		opts.ResumeState = &state
	}

	doc := domain.Document{Filename: header.Filename, MIMEType: mimeType, Data: data}
	job, err := h.jobs.CreateJobAndEnqueue(r.Context(), domain.JobKind(req.Kind), doc, opts)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create job")
		return
	}

	log.Info("job accepted",
		"job_id", job.ID,
		"kind", job.Kind,
		"filename", header.Filename,
		"bytes", len(data),
		"subject", shared.GetSubject(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// GetJob handles GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// ListJobs handles GET /api/jobs?limit=N
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := getQueryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	jobs, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobToResponse(job))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelJob handles POST /api/jobs/{id}/cancel. A running job stops at its
// next checkpoint, so the returned status may still be processing.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	job, err := h.jobs.CancelJob(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}
