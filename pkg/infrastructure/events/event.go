package events

import (
	"context"
	"time"
)

type Event interface {
	Type() string
	StreamID() string
	Data() interface{}
	Timestamp() time.Time
	Version() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

type EventStore interface {
	AppendEvent(streamID string, event Event) error
	ReadEvents(streamID string, fromVersion int) ([]Event, error)
	ReadAllEvents(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

// Publisher delivers events to interested parties. Publish failures are
// reported to the caller but never roll back the change that produced them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	EventType    string      `json:"type"`
	Stream       string      `json:"streamId"`
	EventData    interface{} `json:"data"`
	EventTime    time.Time   `json:"timestamp"`
	EventVersion int         `json:"version"`
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) StreamID() string {
	return e.Stream
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Version() int {
	return e.EventVersion
}

func NewEvent(eventType, streamID string, data interface{}) Event {
	return BaseEvent{
		EventType:    eventType,
		Stream:       streamID,
		EventData:    data,
		EventTime:    time.Now(),
		EventVersion: 1,
	}
}

// MultiPublisher fans an event out to every publisher and returns the first error
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
