package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayFor(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	min := 15 * time.Second

	tests := []struct {
		name     string
		lastUsed time.Time
		want     time.Duration
	}{
		{"never used", time.Time{}, 0},
		{"just used", now, min},
		{"used five seconds ago", now.Add(-5 * time.Second), 10 * time.Second},
		{"used exactly min ago", now.Add(-min), 0},
		{"used long ago", now.Add(-time.Hour), 0},
		{"clock skew", now.Add(time.Minute), min},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DelayFor(min, tt.lastUsed, now)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, time.Duration(0))
			assert.LessOrEqual(t, got, min)
		})
	}
}

func TestDelayForRemoteHonoursMinimumWhenRecentlyUsed(t *testing.T) {
	policy := DelayPolicy{MinRemote: 15 * time.Second, MinLocal: time.Second}
	now := time.Now()

	for _, ago := range []time.Duration{0, time.Millisecond, 3 * time.Second, 14 * time.Second} {
		lastUsed := now.Add(-ago)
		got := DelayFor(policy.Min(KindRemote), lastUsed, now)
		// Sleeping the returned delay brings the spacing up to the minimum.
		assert.GreaterOrEqual(t, got+ago, policy.MinRemote)
	}

	assert.Zero(t, DelayFor(policy.Min(KindLocal), now.Add(-2*time.Second), now))
	assert.Zero(t, DelayFor(0, now, now))
}

func TestDelayPolicyMin(t *testing.T) {
	p := DefaultDelayPolicy()
	assert.Equal(t, 15*time.Second, p.Min(KindRemote))
	assert.Equal(t, time.Second, p.Min(KindLocal))
	assert.Equal(t, "local", KindLocal.String())
	assert.Equal(t, "remote", KindRemote.String())
}

func TestUsageTrackerIsMonotonic(t *testing.T) {
	tr := NewUsageTracker()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, tr.LastUsed("gemini", "m1").IsZero())

	tr.Touch("gemini", "m1", t0.Add(time.Minute))
	tr.Touch("gemini", "m1", t0)
	assert.Equal(t, t0.Add(time.Minute), tr.LastUsed("gemini", "m1"))

	// Same model name under another provider is tracked separately.
	assert.True(t, tr.LastUsed("openai", "m1").IsZero())
}

func TestUsageTrackerConcurrentTouch(t *testing.T) {
	tr := NewUsageTracker()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Touch("p", "m", t0.Add(time.Duration(i)*time.Second))
			_ = tr.LastUsed("p", "m")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, t0.Add(49*time.Second), tr.LastUsed("p", "m"))
}
