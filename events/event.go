// Package events delivers optimizer state transitions to subscribers.
package events

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBusClosed is returned when publishing to a closed Bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrPublishTimeout is returned when the publish buffer is full and context expires.
	ErrPublishTimeout = errors.New("event publish timeout: buffer full")
)

// Topics published by the optimizer.
const (
	TopicUploadAccepted = "upload.accepted"
	TopicUploadRejected = "upload.rejected"
	TopicParamsChanged  = "params.changed"
	TopicRunStarted     = "run.started"
	TopicRunCompleted   = "run.completed"
	TopicRunFailed      = "run.failed"
	TopicRunDiscarded   = "run.discarded"
	TopicReset          = "state.reset"
	TopicDownloadFailed = "download.failed"

	// Wildcard subscribes to every topic.
	Wildcard = "*"
)

// Event represents a state transition.
type Event struct {
	Name      string    // e.g. "run.completed"
	Data      any       // payload, usually a status snapshot
	Source    string    // publishing component
	Seq       uint64    // run sequence the event belongs to, zero if none
	Timestamp time.Time // when the event was created
}

// Handler is the typed handler for events.
type Handler func(ctx context.Context, event Event) error

// Subscription represents an active event subscription.
type Subscription interface {
	Unsubscribe()
}

// Bus is the single notification mechanism between the optimizer and its UI collaborators.
type Bus interface {
	// Publish sends an event. Blocks if buffer is full until ctx expires.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a topic, or Wildcard for all of them.
	Subscribe(topic string, handler Handler) Subscription

	// Close drains pending events and waits for in-flight handlers to complete.
	Close() error
}
