package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types emitted within the application.
const (
	// EventTypeDownloadFailed is broadcast once for every job whose download failed.
	EventTypeDownloadFailed = "download_failed"

	// EventTypeDownloadCancelRequested asks the queue processor to cancel a chapter.
	EventTypeDownloadCancelRequested = "download_cancel_requested"
)

// ErrMissingChapter is returned when a chapter event carries no chapter.
var ErrMissingChapter = errors.New("event payload has no chapter")

// Event is a message published through an EventEmitter.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type tells handlers how to interpret the payload
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// ChapterPayload is the payload of every chapter-keyed event.
type ChapterPayload struct {
	Chapter string `json:"chapter"`

	// Error is the redacted failure message of a download_failed event
	Error string `json:"error,omitempty"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Chapter extracts the chapter identity from a chapter-keyed event.
func (e *Event) Chapter() (string, error) {
	var payload ChapterPayload
	if err := e.UnmarshalPayload(&payload); err != nil {
		return "", err
	}
	if payload.Chapter == "" {
		return "", ErrMissingChapter
	}
	return payload.Chapter, nil
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// NewChapterEvent creates an event of the given type keyed by chapter.
func NewChapterEvent(eventType, chapter string) (*Event, error) {
	if chapter == "" {
		return nil, ErrMissingChapter
	}
	return NewEvent(eventType, ChapterPayload{Chapter: chapter})
}

// NewFailureEvent creates a download_failed event for chapter carrying an
// already-redacted error message.
func NewFailureEvent(chapter, message string) (*Event, error) {
	if chapter == "" {
		return nil, ErrMissingChapter
	}
	return NewEvent(EventTypeDownloadFailed, ChapterPayload{Chapter: chapter, Error: message})
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerRegistry lets a component subscribe to events and later release its
// subscription.
type HandlerRegistry interface {
	RegisterHandler(handler EventHandler)
	UnregisterHandler(handler EventHandler) bool
}
