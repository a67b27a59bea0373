package cancel

import "sync/atomic"

// Token is a per-job cancellation flag. A token reports cancelled when it
// was cancelled itself or when its parent reports cancelled.
type Token struct {
	flag   atomic.Bool
	parent Checker
}

// NewToken returns a token chained to parent, which may be nil.
func NewToken(parent Checker) *Token {
	return &Token{parent: parent}
}

// Cancel requests cancellation of this token only.
func (t *Token) Cancel() {
	t.flag.Store(true)
}

// Reset clears this token's own flag. The parent is not touched.
func (t *Token) Reset() {
	t.flag.Store(false)
}

// IsCancelled implements Checker.
func (t *Token) IsCancelled() bool {
	if t.flag.Load() {
		return true
	}
	return t.parent != nil && t.parent.IsCancelled()
}

// Never is a Checker that is never cancelled.
var Never Checker = never{}

type never struct{}

func (never) IsCancelled() bool { return false }
