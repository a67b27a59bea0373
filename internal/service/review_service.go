package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/generation"
	"github.com/phrazzld/slidegen/internal/jsonparse"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/prompts"
	"github.com/phrazzld/slidegen/internal/redact"
)

// Review pipeline steps, as reported by PartialCompletionError.
const (
	StepLibrarian = "librarian"
	StepAnalyst   = "analyst"
	StepEditor    = "editor"
)

// skippedModel stands in for the model of a step restored from a checkpoint
// that did not record one.
const skippedModel = "skipped"

// PartialCompletionError is returned when a review step fails. State holds
// every step that completed, including those restored from a checkpoint,
// so the caller can resume.
type PartialCompletionError struct {
	Step  string
	State *domain.ReviewState
	Err   error
}

// Error implements the error interface.
func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("review step %s failed: %v", e.Step, e.Err)
}

// Unwrap returns the step failure.
func (e *PartialCompletionError) Unwrap() error {
	return e.Err
}

// Checkpoint returns the completed steps, or nil when none completed.
func (e *PartialCompletionError) Checkpoint() *domain.ReviewState {
	if e.State == nil || (e.State.Librarian == nil && e.State.AnalystOutput == "") {
		return nil
	}
	return e.State.Clone()
}

// ReviewService runs the librarian, analyst and editor steps.
type ReviewService struct {
	gen    Generator
	logger *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(gen Generator, logger *slog.Logger) (*ReviewService, error) {
	g, l, err := newGenerationService(gen, logger, "review_service")
	if err != nil {
		return nil, err
	}
	return &ReviewService{gen: g, logger: l}, nil
}

// Review runs the pipeline, skipping steps already present in resume.
// The editor sees only the earlier outputs, never the document.
func (s *ReviewService) Review(ctx context.Context, in Input, resume *domain.ReviewState, cc cancel.Checker) (*domain.Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	state := resume.Clone()
	if state == nil {
		state = &domain.ReviewState{}
	}
	fail := func(step string, err error) (*domain.Review, error) {
		s.logger.WarnContext(ctx, "review step failed", "step", step, "error", redact.Error(err))
		return nil, &PartialCompletionError{Step: step, State: state.Clone(), Err: err}
	}

	if state.Librarian == nil {
		lib, model, err := s.classify(ctx, in, cc)
		if err != nil {
			return fail(StepLibrarian, err)
		}
		state.Librarian, state.LibrarianModel = lib, model
		s.logger.InfoContext(ctx, "book classified",
			"category", lib.Category,
			"genre", lib.Genre,
			"model", model)
	} else {
		s.logger.InfoContext(ctx, "skipping completed step", "step", StepLibrarian)
	}

	if strings.TrimSpace(state.AnalystOutput) == "" {
		prompt, err := prompts.ReviewAnalyst(state.Librarian.IsFiction(), state.Librarian.Genre)
		if err != nil {
			return fail(StepAnalyst, err)
		}
		res, err := s.gen.Generate(ctx, in.Target, generation.Request{
			Prompt:      prompt,
			Temperature: llm.Float(analystTemperature),
			Document:    in.Document,
		}, cc)
		if err != nil {
			return fail(StepAnalyst, err)
		}
		state.AnalystOutput, state.AnalystModel = res.Text, res.Model
		s.logger.InfoContext(ctx, "analysis finished", "model", res.Model, "chars", len(res.Text))
	} else {
		s.logger.InfoContext(ctx, "skipping completed step", "step", StepAnalyst)
	}

	librarian, err := json.Marshal(state.Librarian)
	if err != nil {
		return fail(StepEditor, err)
	}
	prompt, err := prompts.ReviewEditor(prompts.EditorParams{
		Language:  in.Language,
		Librarian: string(librarian),
		Analyst:   state.AnalystOutput,
	})
	if err != nil {
		return fail(StepEditor, err)
	}
	res, err := s.gen.Generate(ctx, in.Target, generation.Request{
		Prompt:      prompt,
		Temperature: llm.Float(editorTemperature),
	}, cc)
	if err != nil {
		return fail(StepEditor, err)
	}

	review := &domain.Review{
		Mode:           "syntopic_review",
		Category:       state.Librarian.Category,
		Genre:          state.Librarian.Genre,
		ReviewMarkdown: res.Text,
		UsedModel: strings.Join([]string{
			orSkipped(state.LibrarianModel),
			orSkipped(state.AnalystModel),
			res.Model,
		}, "->"),
	}
	s.logger.InfoContext(ctx, "review completed", "used_model", review.UsedModel)
	return review, nil
}

// classify runs the librarian. An unparseable answer falls back to the
// default classification rather than failing the step.
func (s *ReviewService) classify(ctx context.Context, in Input, cc cancel.Checker) (*domain.Classification, string, error) {
	prompt, err := prompts.ReviewLibrarian()
	if err != nil {
		return nil, "", err
	}
	res, err := s.gen.Generate(ctx, in.Target, generation.Request{
		Prompt:      prompt,
		Temperature: llm.Float(librarianTemperature),
		JSON:        true,
		Document:    in.Document,
	}, cc)
	if err != nil {
		return nil, "", err
	}

	var lib domain.Classification
	if err := jsonparse.DecodeObject(res.Text, &lib); err != nil || strings.TrimSpace(lib.Category) == "" {
		s.logger.WarnContext(ctx, "librarian output unusable, using default classification",
			"model", res.Model, "error", redact.Error(err))
		lib = domain.DefaultClassification()
	}
	return &lib, res.Model, nil
}

func orSkipped(model string) string {
	if model == "" {
		return skippedModel
	}
	return model
}
