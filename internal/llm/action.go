package llm

// ErrorAction tells the Engine how to react to a failed backend call.
type ErrorAction int

const (
	// ActionRetry marks a transient failure. The pair is skipped for the rest
	// of the current cycle and becomes eligible again in the next one.
	ActionRetry ErrorAction = iota

	// ActionPermanent marks a key/model pair that will never work in this run.
	ActionPermanent

	// ActionAbort stops the whole loop immediately.
	ActionAbort
)

// String returns the lowercase name of the action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionPermanent:
		return "permanent"
	case ActionAbort:
		return "abort"
	default:
		return "unknown"
	}
}
