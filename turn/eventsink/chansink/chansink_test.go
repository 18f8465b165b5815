package chansink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/turn"
	"github.com/jv92admin/alfred/turn/eventsink/chansink"
)

func TestPublishAndDrain(t *testing.T) {
	sink := chansink.New(2)
	sink.Publish(turn.Event{Kind: turn.EventJobStarted, JobID: "j1"})
	sink.Publish(turn.Event{Kind: turn.EventDone, JobID: "j1"})

	ev1 := <-sink.Events()
	ev2 := <-sink.Events()
	assert.Equal(t, turn.EventJobStarted, ev1.Kind)
	assert.Equal(t, turn.EventDone, ev2.Kind)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	sink := chansink.New(1)
	sink.Publish(turn.Event{Kind: turn.EventJobStarted, JobID: "j1"})
	// Buffer is full; this publish must not block.
	sink.Publish(turn.Event{Kind: turn.EventDone, JobID: "j1"})

	ev := <-sink.Events()
	require.Equal(t, turn.EventJobStarted, ev.Kind)

	select {
	case _, ok := <-sink.Events():
		if ok {
			t.Fatal("expected the second event to have been dropped")
		}
	default:
	}
}

func TestDefaultBufferAppliedForNonPositiveSize(t *testing.T) {
	sink := chansink.New(0)
	for i := 0; i < 10; i++ {
		sink.Publish(turn.Event{Kind: turn.EventChunk})
	}
	// Should not block/panic; drain what we can.
	count := 0
	for i := 0; i < 10; i++ {
		select {
		case <-sink.Events():
			count++
		default:
		}
	}
	assert.Equal(t, 10, count)
}
