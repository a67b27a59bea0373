package llm

import (
	"sync"
	"time"
)

// Kind distinguishes hosted backends, which enforce provider-side rate limits,
// from backends running on the local machine.
type Kind int

const (
	KindRemote Kind = iota
	KindLocal
)

// String returns "remote" or "local".
func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

// DelayPolicy holds the minimum spacing between two uses of the same model.
type DelayPolicy struct {
	MinRemote time.Duration
	MinLocal  time.Duration
}

// DefaultDelayPolicy returns the spacing used when nothing is configured.
func DefaultDelayPolicy() DelayPolicy {
	return DelayPolicy{
		MinRemote: 15 * time.Second,
		MinLocal:  1 * time.Second,
	}
}

// Min returns the minimum spacing for the given provider kind.
func (p DelayPolicy) Min(kind Kind) time.Duration {
	if kind == KindLocal {
		return p.MinLocal
	}
	return p.MinRemote
}

// DelayFor computes max(0, minDelay - (now - lastUsed)). A zero lastUsed
// means the model was never used and yields no delay.
func DelayFor(minDelay time.Duration, lastUsed, now time.Time) time.Duration {
	if lastUsed.IsZero() || minDelay <= 0 {
		return 0
	}
	elapsed := now.Sub(lastUsed)
	if elapsed < 0 {
		// Clock went backwards; wait out the full interval.
		elapsed = 0
	}
	if elapsed >= minDelay {
		return 0
	}
	return minDelay - elapsed
}

type usageKey struct {
	provider string
	model    string
}

// UsageTracker records when each (provider, model) was last called.
// It is safe for concurrent use and lives only for the process lifetime.
type UsageTracker struct {
	mu   sync.RWMutex
	last map[usageKey]time.Time
}

// NewUsageTracker returns an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{last: make(map[usageKey]time.Time)}
}

// LastUsed returns the last recorded use, or the zero time.
func (t *UsageTracker) LastUsed(provider, model string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last[usageKey{provider, model}]
}

// Touch records a use at the given time. Older timestamps never overwrite
// newer ones, so concurrent invocations keep the map monotonic.
func (t *UsageTracker) Touch(provider, model string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := usageKey{provider, model}
	if prev, ok := t.last[k]; ok && prev.After(at) {
		return
	}
	t.last[k] = at
}
