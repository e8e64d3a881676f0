package domain

import "context"

// Event is a state change recorded by an aggregate. Events are collected
// during a mutation and handed to a Publisher only after the surrounding
// unit of work has committed.
type Event interface {
	EventName() string
}

// Publisher delivers committed domain events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish discards the events.
func (NopPublisher) Publish(context.Context, ...Event) {}

// EventRecorder accumulates events on an aggregate. Zero value is ready to use.
type EventRecorder struct {
	events []Event
}

// Record appends an event to the pending list.
func (recorder *EventRecorder) Record(event Event) {
	recorder.events = append(recorder.events, event)
}

// PullEvents returns the pending events and clears the list.
func (recorder *EventRecorder) PullEvents() []Event {
	pending := recorder.events
	recorder.events = nil
	return pending
}
