package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/config"
	"github.com/phrazzld/slidegen/internal/document"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/generation"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/providers"
	"github.com/phrazzld/slidegen/internal/service"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	kind         string
	provider     string
	models       []string
	keys         []string
	instructions string
	mode         string
	language     string
	resumeState  string
	saveState    string
	output       string
}

// generateOutput is what generate prints on success.
type generateOutput struct {
	Kind      domain.JobKind `json:"kind"`
	UsedModel string         `json:"used_model"`
	Result    any            `json:"result"`
}

func newGenerateCommand(g *globalOptions) *cobra.Command {
	o := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Run one generation on a local document and print the result as JSON",
		Example: `  slidegen generate report.pdf --kind slides --mode overview
  slidegen generate book.epub --kind deep_dive --provider gemini --key "$KEY1" --key "$KEY2"
  slidegen generate paper.pdf --kind review --save-state review.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, g, o, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.kind, "kind", string(domain.JobKindSlides), "slides, summary, deep_dive or review")
	f.StringVar(&o.provider, "provider", "", "provider name or auto (default llm.default_provider)")
	f.StringSliceVar(&o.models, "model", nil, "model to try, in priority order (repeatable)")
	f.StringSliceVar(&o.keys, "key", nil, "API key to rotate through (repeatable)")
	f.StringVar(&o.instructions, "instructions", "", "custom instructions for the prompt")
	f.StringVar(&o.mode, "mode", "", "slide mode: detail or overview")
	f.StringVar(&o.language, "language", "", "output language for summaries and deep dives")
	f.StringVar(&o.resumeState, "resume-state", "", "review checkpoint file to resume from")
	f.StringVar(&o.saveState, "save-state", "", "write the review checkpoint here when a step fails")
	f.StringVarP(&o.output, "output", "o", "", "write the result to this file instead of stdout")
	return cmd
}

func runGenerate(cmd *cobra.Command, g *globalOptions, o *generateOptions, path string) error {
	ctx := cmd.Context()
	log := g.logger.With("component", "cli_generate")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	mimeType := document.DetectType(data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
	if !document.Supported(mimeType) {
		return fmt.Errorf("%s: %w: %s", path, document.ErrUnsupportedType, mimeType)
	}

	opts := domain.JobOptions{
		Provider:     o.provider,
		Models:       o.models,
		APIKeys:      o.keys,
		Instructions: o.instructions,
		Mode:         domain.SlideMode(o.mode),
		Language:     o.language,
	}
	if o.resumeState != "" {
		state, err := readReviewState(o.resumeState)
		if err != nil {
			return err
		}
		opts.ResumeState = state
	}

	job, err := domain.NewJob(domain.JobKind(o.kind), domain.Document{
		Filename: filepath.Base(path),
		MIMEType: mimeType,
		Data:     data,
	}, opts)
	if err != nil {
		return err
	}

	// Every top-level run starts from a clean signal.
	sig := cancel.New(g.cfg.LLM.CancelMarker)
	if err := sig.Clear(); err != nil {
		log.Warn("failed to clear cancel signal", "error", err)
	}
	if err := sig.Watch(ctx, g.logger); err != nil {
		log.Debug("cancel marker watcher unavailable", "error", err)
	}

	gen, err := newGenerator(g.cfg, g)
	if err != nil {
		return err
	}
	executor, err := service.NewJobExecutor(gen, nil, g.logger)
	if err != nil {
		return err
	}

	log.Info("generation started", "file", path, "kind", job.Kind, "mime_type", mimeType)
	result, usedModel, err := executor.Execute(ctx, job, sig)
	if err != nil {
		var partial *service.PartialCompletionError
		if errors.As(err, &partial) && o.saveState != "" && partial.Checkpoint() != nil {
			if saveErr := writeJSONFile(o.saveState, partial.Checkpoint()); saveErr != nil {
				log.Error("failed to save review checkpoint", "error", saveErr)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Review checkpoint saved to %s; rerun with --resume-state %s\n",
					o.saveState, o.saveState)
			}
		}
		if llm.IsCancelled(err) {
			return fmt.Errorf("generation cancelled: %w", err)
		}
		return err
	}

	out := generateOutput{Kind: job.Kind, UsedModel: usedModel, Result: result}
	if o.output != "" {
		if err := writeJSONFile(o.output, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Result written to %s (model %s)\n", o.output, usedModel)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// newGenerator wires the provider registry, resolver and retry engine.
func newGenerator(cfg *config.Config, g *globalOptions) (*generation.Generator, error) {
	resolver := providers.NewResolver(cfg.LLM, g.logger.With("component", "provider_resolver"))
	engine := llm.NewEngine(llm.Options{
		MaxCycles: cfg.LLM.RetryCycles,
		Delay: llm.DelayPolicy{
			MinRemote: cfg.LLM.MinRetryDelayRemote,
			MinLocal:  cfg.LLM.MinRetryDelayLocal,
		},
		CyclePause:   cfg.LLM.CyclePause,
		PollInterval: cfg.LLM.PollInterval,
		Logger:       g.logger.With("component", "llm_engine"),
	})
	return generation.NewGenerator(generation.Config{
		Registry:           providers.NewRegistry(),
		Resolver:           resolver,
		Engine:             engine,
		DefaultProvider:    cfg.LLM.DefaultProvider,
		DefaultTemperature: cfg.LLM.DefaultTemperature,
		OllamaProbe:        resolver.OllamaProbe(),
		Logger:             g.logger,
	})
}

func readReviewState(path string) (*domain.ReviewState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume state: %w", err)
	}
	var state domain.ReviewState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid resume state %s: %w", path, err)
	}
	return &state, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
