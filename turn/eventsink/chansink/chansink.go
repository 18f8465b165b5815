// Package chansink is an in-process turn.EventSink backed by a buffered
// Go channel, needing no external transport. The CLI harness uses it as its
// event sink but does not read the events back or print them.
package chansink

import "github.com/jv92admin/alfred/turn"

// Sink publishes onto a buffered channel; Publish drops the event rather
// than blocking the turn when the channel is full, per turn.EventSink's
// no-backpressure contract.
type Sink struct {
	events chan turn.Event
}

// New builds a Sink with the given channel capacity.
func New(buffer int) *Sink {
	if buffer <= 0 {
		buffer = 64
	}
	return &Sink{events: make(chan turn.Event, buffer)}
}

// Events returns the read side, for a consumer goroutine to range over.
func (s *Sink) Events() <-chan turn.Event {
	return s.events
}

func (s *Sink) Publish(e turn.Event) {
	select {
	case s.events <- e:
	default:
	}
}

// Close closes the channel; callers must stop calling Publish first.
func (s *Sink) Close() {
	close(s.events)
}
