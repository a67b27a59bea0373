package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// JobRequested asks for a generation job to be scheduled.
	JobRequested = "job.requested"

	// JobFinished reports that a job reached a terminal status.
	JobFinished = "job.finished"
)

// Event is a notification about one job.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the event type constants
	Type string `json:"type"`

	// JobID is the job the event is about
	JobID uuid.UUID `json:"job_id"`

	// Payload carries type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// JobRequestPayload is the payload of a JobRequested event.
type JobRequestPayload struct {
	Kind string `json:"kind"`
}

// JobFinishedPayload is the payload of a JobFinished event.
type JobFinishedPayload struct {
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	UsedModel string `json:"used_model,omitempty"`
}

// NewEvent creates an Event with a fresh ID. A nil payload is omitted.
func NewEvent(eventType string, jobID uuid.UUID, payload any) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		JobID:     jobID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to the handlers registered for
	// its type.
	EmitEvent(ctx context.Context, event *Event) error
}
