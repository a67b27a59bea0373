package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// classifiedError lets tests dictate the action a failure maps to.
type classifiedError struct {
	action ErrorAction
	msg    string
}

func (e *classifiedError) Error() string { return e.msg }

func retryErr(msg string) error     { return &classifiedError{ActionRetry, msg} }
func permanentErr(msg string) error { return &classifiedError{ActionPermanent, msg} }
func abortErr(msg string) error     { return &classifiedError{ActionAbort, msg} }

type call struct {
	key   string
	model string
}

// fakeProvider records every call and answers through fn.
type fakeProvider struct {
	name   string
	kind   Kind
	models []string
	keys   []string
	fn     func(key, model string) (string, error)

	mu    sync.Mutex
	calls []call
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) Kind() Kind       { return p.kind }
func (p *fakeProvider) Models() []string { return p.models }
func (p *fakeProvider) Keys() []string   { return p.keys }

func (p *fakeProvider) Call(_ context.Context, key, model string, _ Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, call{key, model})
	p.mu.Unlock()
	return p.fn(key, model)
}

func (p *fakeProvider) Classify(err error) ErrorAction {
	if action, ok := ClassifyCommon(err); ok {
		return action
	}
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.action
	}
	return ClassifyMessage(err.Error())
}

func (p *fakeProvider) callsFor(key, model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.key == key && c.model == model {
			n++
		}
	}
	return n
}

// fakeClock advances only when the engine sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	onWait func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	hook := c.onWait
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// recordingObserver counts outcomes.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAttempt(_, _, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
