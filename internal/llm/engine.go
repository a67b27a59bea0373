package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/redact"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Engine. Zero values fall back to the defaults
// documented on each field.
type Options struct {
	// MaxCycles is the number of full sweeps over every (key, model) pair.
	// Defaults to 3.
	MaxCycles int

	// Delay is the minimum spacing between two uses of the same model.
	// Defaults to DefaultDelayPolicy.
	Delay DelayPolicy

	// CyclePause is slept between two cycles. Zero disables it.
	CyclePause time.Duration

	// PollInterval splits every sleep into slices so that a cancellation
	// requested mid-sleep is noticed promptly. Zero sleeps in one piece.
	PollInterval time.Duration

	// Usage is the shared last-used map. Defaults to a private tracker.
	Usage *UsageTracker

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Sleep defaults to a timer that honours ctx.
	Sleep SleepFunc

	// Observer, when set, is notified of every attempt.
	Observer AttemptObserver

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine runs the key-rotation and model-fallback loop.
// A single Engine is safe for concurrent Generate calls.
type Engine struct {
	maxCycles    int
	delay        DelayPolicy
	cyclePause   time.Duration
	pollInterval time.Duration
	usage        *UsageTracker
	clock        func() time.Time
	sleep        SleepFunc
	observer     AttemptObserver
	logger       *slog.Logger
}

// NewEngine applies defaults to opts and returns a ready Engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		maxCycles:    opts.MaxCycles,
		delay:        opts.Delay,
		cyclePause:   opts.CyclePause,
		pollInterval: opts.PollInterval,
		usage:        opts.Usage,
		clock:        opts.Clock,
		sleep:        opts.Sleep,
		observer:     opts.Observer,
		logger:       opts.Logger,
	}
	if e.maxCycles <= 0 {
		e.maxCycles = 3
	}
	if e.delay == (DelayPolicy{}) {
		e.delay = DefaultDelayPolicy()
	}
	if e.usage == nil {
		e.usage = NewUsageTracker()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.sleep == nil {
		e.sleep = SleepContext
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// MaxCycles returns the configured cycle count.
func (e *Engine) MaxCycles() int {
	return e.maxCycles
}

// Generate tries the provider's (key, model) pairs until one produces text.
//
// Every cycle visits each pair that has not been permanently excluded
// exactly once. Cancellation is checked before each backend call and before
// each sleep. On failure the returned error is always an *ExhaustedError.
func (e *Engine) Generate(ctx context.Context, p Provider, req Request, cc cancel.Checker) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Prompt) == "" && req.Attachment == nil {
		return nil, fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	if cc == nil {
		cc = cancel.Never
	}

	name := p.Name()
	cursor, err := NewCursor(p.Keys(), p.Models())
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", name, err)
	}

	log := e.logger.With("provider", name, "provider_kind", p.Kind().String())
	log.InfoContext(ctx, "starting generation",
		"keys", len(cursor.Keys()),
		"models", cursor.Models(),
		"max_cycles", e.maxCycles)

	var (
		lastErr    error
		lastAction = ActionRetry
		attempts   int
	)

	fail := func(action ErrorAction, cause error) (*Result, error) {
		return nil, &ExhaustedError{
			Provider: name,
			Action:   action,
			Cycles:   cursor.Cycle(),
			Attempts: attempts,
			Last:     cause,
		}
	}

	for cycle := 1; cycle <= e.maxCycles; cycle++ {
		if cycle > 1 {
			cursor.NewCycle()
		}
		if cursor.Live() == 0 {
			log.WarnContext(ctx, "every key/model pair permanently excluded, stopping early",
				"cycle", cycle)
			break
		}
		if cycle > 1 && e.cyclePause > 0 {
			if err := e.wait(ctx, e.cyclePause, cc); err != nil {
				return fail(ActionAbort, err)
			}
		}

		log.InfoContext(ctx, "starting cycle", "cycle", cycle, "pairs", cursor.Remaining())

		for {
			if err := e.checkCancel(ctx, cc); err != nil {
				log.InfoContext(ctx, "cancellation observed before call", "cycle", cycle)
				return fail(ActionAbort, err)
			}

			pair, ok := cursor.Next()
			if !ok {
				break
			}

			wait := DelayFor(e.delay.Min(p.Kind()), e.usage.LastUsed(name, pair.Model), e.clock())
			if wait > 0 {
				if err := e.checkCancel(ctx, cc); err != nil {
					log.InfoContext(ctx, "cancellation observed before delay", "cycle", cycle)
					return fail(ActionAbort, err)
				}
				log.DebugContext(ctx, "smart delay before reusing model",
					"model", pair.Model,
					"delay", wait.String())
				if err := e.wait(ctx, wait, cc); err != nil {
					return fail(ActionAbort, err)
				}
			}

			start := e.clock()
			text, callErr := p.Call(ctx, pair.Key, pair.Model, req)
			end := e.clock()
			e.usage.Touch(name, pair.Model, end)
			attempts++

			if callErr == nil && strings.TrimSpace(text) == "" {
				callErr = fmt.Errorf("%w: %s", ErrEmptyResponse, pair.Model)
			}

			if callErr == nil {
				e.observe(name, pair.Model, "success", end.Sub(start))
				log.InfoContext(ctx, "generation succeeded",
					"model", pair.Model,
					"key", MaskKey(pair.Key),
					"cycle", cycle,
					"attempts", attempts)
				return &Result{
					Text:     strings.TrimSpace(text),
					Model:    pair.Model,
					Provider: name,
					Attempts: attempts,
				}, nil
			}

			action := e.classify(ctx, p, callErr)
			e.observe(name, pair.Model, action.String(), end.Sub(start))
			lastErr, lastAction = callErr, action

			log.WarnContext(ctx, "attempt failed",
				"model", pair.Model,
				"key", MaskKey(pair.Key),
				"cycle", cycle,
				"action", action.String(),
				"error", redact.Error(callErr))

			switch action {
			case ActionAbort:
				return fail(ActionAbort, callErr)
			case ActionPermanent:
				cursor.Exclude(pair)
			}
		}

		log.InfoContext(ctx, "cycle finished without success", "cycle", cycle)
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts were made")
	}
	log.ErrorContext(ctx, "generation exhausted",
		"attempts", attempts,
		"last_action", lastAction.String(),
		"error", redact.Error(lastErr))
	return fail(lastAction, lastErr)
}

// classify consults the common rules first so that context cancellation is
// never mistaken for a backend condition.
func (e *Engine) classify(ctx context.Context, p Provider, err error) ErrorAction {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ActionAbort
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return ActionAbort
	}
	return p.Classify(err)
}

func (e *Engine) checkCancel(ctx context.Context, cc cancel.Checker) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if cc.IsCancelled() {
		return ErrCancelled
	}
	return nil
}

// wait sleeps for d, re-checking cancellation between poll slices.
func (e *Engine) wait(ctx context.Context, d time.Duration, cc cancel.Checker) error {
	if e.pollInterval <= 0 {
		if err := e.sleep(ctx, d); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return nil
	}

	for remaining := d; remaining > 0; remaining -= e.pollInterval {
		if err := e.checkCancel(ctx, cc); err != nil {
			return err
		}
		step := min(e.pollInterval, remaining)
		if err := e.sleep(ctx, step); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}
	return nil
}

func (e *Engine) observe(provider, model, outcome string, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.ObserveAttempt(provider, model, outcome, elapsed)
	}
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
