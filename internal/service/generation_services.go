package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/generation"
	"github.com/phrazzld/slidegen/internal/jsonparse"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/prompts"
)

// Temperatures per generation step.
const (
	summaryTemperature   = 0.4
	deepDiveTemperature  = 0.4
	librarianTemperature = 0.3
	analystTemperature   = 0.6
	editorTemperature    = 0.6
)

// Generator runs one request through the retry engine.
type Generator interface {
	Generate(ctx context.Context, target generation.Target, req generation.Request, cc cancel.Checker) (*llm.Result, error)
}

// Input is what every generation service needs from a job.
type Input struct {
	Document     *generation.Document
	Target       generation.Target
	Instructions string
	Language     string
}

func (in Input) validate() error {
	if in.Document == nil || len(in.Document.Data) == 0 {
		return domain.ErrEmptyDocument
	}
	return nil
}

func newGenerationService(gen Generator, logger *slog.Logger, component string) (Generator, *slog.Logger, error) {
	if gen == nil {
		return nil, nil, fmt.Errorf("%w: generator cannot be nil", ErrInvalidService)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return gen, logger.With("component", component), nil
}

// SlideService turns a document into a slide deck.
type SlideService struct {
	gen    Generator
	logger *slog.Logger
}

// NewSlideService creates a SlideService.
func NewSlideService(gen Generator, logger *slog.Logger) (*SlideService, error) {
	g, l, err := newGenerationService(gen, logger, "slide_service")
	if err != nil {
		return nil, err
	}
	return &SlideService{gen: g, logger: l}, nil
}

// Generate builds a deck in the given mode. An empty mode means detail.
func (s *SlideService) Generate(ctx context.Context, in Input, mode domain.SlideMode, cc cancel.Checker) (*domain.Deck, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = domain.SlideModeDetail
	}
	if mode != domain.SlideModeDetail && mode != domain.SlideModeOverview {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSlideMode, mode)
	}

	params := prompts.SlideParams{Mode: string(mode), Instructions: in.Instructions, Language: in.Language}
	system, err := prompts.SlideSystem(params)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.SlidePrompt(params)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "generating slides",
		"mode", mode,
		"custom_instructions", prompts.CustomInstructions(in.Instructions) != "")

	res, err := s.gen.Generate(ctx, in.Target, generation.Request{
		System:   system,
		Prompt:   prompt,
		JSON:     true,
		Document: in.Document,
	}, cc)
	if err != nil {
		return nil, err
	}

	var deck domain.Deck
	if err := jsonparse.DecodeObject(res.Text, &deck); err != nil {
		return nil, malformed("slides", res.Model, err)
	}
	deck.Slides = compactSlides(deck.Slides)
	if len(deck.Slides) == 0 {
		return nil, malformed("slides", res.Model, errors.New("deck has no slides"))
	}
	deck.UsedModel = res.Model

	s.logger.InfoContext(ctx, "slides generated",
		"model", res.Model,
		"slides", len(deck.Slides),
		"attempts", res.Attempts)
	return &deck, nil
}

// compactSlides drops slides that carry neither a title nor any content.
func compactSlides(in []domain.Slide) []domain.Slide {
	out := in[:0]
	for _, sl := range in {
		content := sl.Content[:0]
		for _, c := range sl.Content {
			if strings.TrimSpace(c) != "" {
				content = append(content, c)
			}
		}
		sl.Content = content
		if strings.TrimSpace(sl.Title) == "" && len(sl.Content) == 0 {
			continue
		}
		out = append(out, sl)
	}
	return out
}

// SummaryService produces standard and deep-dive summaries.
type SummaryService struct {
	gen    Generator
	logger *slog.Logger
}

// NewSummaryService creates a SummaryService.
func NewSummaryService(gen Generator, logger *slog.Logger) (*SummaryService, error) {
	g, l, err := newGenerationService(gen, logger, "summary_service")
	if err != nil {
		return nil, err
	}
	return &SummaryService{gen: g, logger: l}, nil
}

// Summarize returns a standard summary of the document.
func (s *SummaryService) Summarize(ctx context.Context, in Input, cc cancel.Checker) (*domain.Summary, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	system, err := prompts.SummarySystem(in.Language)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.SummaryPrompt(in.Instructions)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "summarizing document")
	res, err := s.gen.Generate(ctx, in.Target, generation.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: llm.Float(summaryTemperature),
		JSON:        true,
		Document:    in.Document,
	}, cc)
	if err != nil {
		return nil, err
	}

	var sum domain.Summary
	if err := jsonparse.DecodeObject(res.Text, &sum); err != nil {
		return nil, malformed("summary", res.Model, err)
	}
	if strings.TrimSpace(sum.Title) == "" {
		sum.Title = "Document Summary"
	}
	if sum.KeyPoints == nil {
		sum.KeyPoints = []string{}
	}
	sum.Mode = "standard"
	sum.UsedModel = res.Model

	s.logger.InfoContext(ctx, "summary generated", "model", res.Model, "key_points", len(sum.KeyPoints))
	return &sum, nil
}

// DeepDive returns a "big ideas" summary of a book.
func (s *SummaryService) DeepDive(ctx context.Context, in Input, cc cancel.Checker) (*domain.DeepDive, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	prompt, err := prompts.DeepDive(in.Language)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "deep dive started")
	res, err := s.gen.Generate(ctx, in.Target, generation.Request{
		Prompt:      prompt,
		Temperature: llm.Float(deepDiveTemperature),
		JSON:        true,
		Document:    in.Document,
	}, cc)
	if err != nil {
		return nil, err
	}

	var dd domain.DeepDive
	if err := jsonparse.DecodeObject(res.Text, &dd); err != nil {
		return nil, malformed("deep_dive", res.Model, err)
	}
	if dd.BigIdeas == nil {
		dd.BigIdeas = []string{}
	}
	if dd.CoreIdeas == nil {
		dd.CoreIdeas = []domain.CoreIdea{}
	}
	dd.Mode = "deep_dive"
	dd.UsedModel = res.Model

	s.logger.InfoContext(ctx, "deep dive generated", "model", res.Model, "core_ideas", len(dd.CoreIdeas))
	return &dd, nil
}

func malformed(step, model string, err error) error {
	return fmt.Errorf("%w: %s output from %s: %w", ErrMalformedOutput, step, model, err)
}
