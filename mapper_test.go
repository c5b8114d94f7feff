package streamchat_test

import (
	"errors"
	"testing"

	"github.com/fwojciec/streamchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		state     streamchat.MapperState
		wire      streamchat.WireEvent
		wantState streamchat.MapperState
		wantEvent streamchat.Event
	}{
		{
			name:      "chunk emits delta",
			state:     streamchat.MapperStarted,
			wire:      streamchat.WireChunk{Content: "Hello"},
			wantState: streamchat.MapperStarted,
			wantEvent: streamchat.EventContentDelta{MessageID: "msg_1", Delta: "Hello"},
		},
		{
			name:      "empty chunk is suppressed",
			state:     streamchat.MapperStarted,
			wire:      streamchat.WireChunk{},
			wantState: streamchat.MapperStarted,
		},
		{
			name:      "done ends the message",
			state:     streamchat.MapperStarted,
			wire:      streamchat.WireDone{},
			wantState: streamchat.MapperTerminated,
			wantEvent: streamchat.EventEnd{MessageID: "msg_1"},
		},
		{
			name:      "error carries server text",
			state:     streamchat.MapperStarted,
			wire:      streamchat.WireError{Error: "rate limited"},
			wantState: streamchat.MapperTerminated,
			wantEvent: streamchat.EventError{Message: "rate limited"},
		},
		{
			name:      "empty error text becomes unknown error",
			state:     streamchat.MapperStarted,
			wire:      streamchat.WireError{},
			wantState: streamchat.MapperTerminated,
			wantEvent: streamchat.EventError{Message: "Unknown error"},
		},
		{
			name:      "idle ignores input",
			state:     streamchat.MapperIdle,
			wire:      streamchat.WireChunk{Content: "early"},
			wantState: streamchat.MapperIdle,
		},
		{
			name:      "terminated ignores done",
			state:     streamchat.MapperTerminated,
			wire:      streamchat.WireDone{},
			wantState: streamchat.MapperTerminated,
		},
		{
			name:      "terminated ignores error",
			state:     streamchat.MapperTerminated,
			wire:      streamchat.WireError{Error: "late"},
			wantState: streamchat.MapperTerminated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			state, evt := streamchat.Step(tt.state, "msg_1", tt.wire)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantEvent, evt)
		})
	}
}

// feedAll opens m, feeds the wire events and finishes the stream, returning
// every emitted lifecycle event.
func feedAll(m *streamchat.Mapper, wire ...streamchat.WireEvent) []streamchat.Event {
	var events []streamchat.Event
	emit := func(evt streamchat.Event) {
		if evt != nil {
			events = append(events, evt)
		}
	}
	emit(m.Open())
	for _, w := range wire {
		emit(m.Feed(w))
	}
	emit(m.Finish())
	return events
}

func TestMapper(t *testing.T) {
	t.Parallel()

	t.Run("open emits start once", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		assert.Equal(t, streamchat.MapperIdle, m.State())
		assert.Equal(t, streamchat.EventStart{MessageID: "msg_1"}, m.Open())
		assert.Nil(t, m.Open())
		assert.Equal(t, streamchat.MapperStarted, m.State())
	})

	t.Run("normal completion", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		events := feedAll(m,
			streamchat.WireChunk{Content: "Hel"},
			streamchat.WireChunk{Content: "lo"},
			streamchat.WireDone{},
		)
		assert.Equal(t, []streamchat.Event{
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "Hel"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "lo"},
			streamchat.EventEnd{MessageID: "msg_1"},
		}, events)
		assert.False(t, m.Implicit())
		assert.Equal(t, streamchat.MapperTerminated, m.State())
	})

	t.Run("end of stream without done ends implicitly", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		events := feedAll(m, streamchat.WireChunk{Content: "partial"})
		require.Len(t, events, 3)
		assert.Equal(t, streamchat.EventEnd{MessageID: "msg_1"}, events[2])
		assert.True(t, m.Implicit())
	})

	t.Run("error stops all further events", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		events := feedAll(m,
			streamchat.WireChunk{Content: "a"},
			streamchat.WireError{Error: "boom"},
			streamchat.WireChunk{Content: "b"},
			streamchat.WireDone{},
			streamchat.WireError{Error: "again"},
		)
		assert.Equal(t, []streamchat.Event{
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "a"},
			streamchat.EventError{Message: "boom"},
		}, events)
		assert.False(t, m.Implicit())
	})

	t.Run("duplicate done is ignored", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		events := feedAll(m, streamchat.WireDone{}, streamchat.WireDone{})
		assert.Equal(t, []streamchat.Event{
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventEnd{MessageID: "msg_1"},
		}, events)
	})

	t.Run("transport failure after start", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		start := m.Open()
		evt := m.Fail(errors.New("HTTP error! status: 500"))
		assert.Equal(t, streamchat.EventStart{MessageID: "msg_1"}, start)
		assert.Equal(t, streamchat.EventError{Message: "HTTP error! status: 500"}, evt)
		assert.Nil(t, m.Finish())
	})

	t.Run("fail after termination is ignored", func(t *testing.T) {
		t.Parallel()
		m := streamchat.NewMapper("msg_1")
		m.Open()
		m.Feed(streamchat.WireDone{})
		assert.Nil(t, m.Fail(errors.New("late")))
	})

	t.Run("every sequence matches the lifecycle pattern", func(t *testing.T) {
		t.Parallel()
		inputs := [][]streamchat.WireEvent{
			nil,
			{streamchat.WireChunk{Content: ""}},
			{streamchat.WireChunk{Content: "x"}, streamchat.WireChunk{Content: ""}, streamchat.WireDone{}},
			{streamchat.WireError{}, streamchat.WireChunk{Content: "x"}},
			{streamchat.WireDone{}, streamchat.WireError{Error: "x"}},
		}
		for _, in := range inputs {
			m := streamchat.NewMapper("msg_1")
			events := feedAll(m, in...)
			assertLifecycle(t, events, "msg_1")
		}
	})
}

// assertLifecycle checks events against Start ContentDelta* (End | Error).
func assertLifecycle(t *testing.T, events []streamchat.Event, id string) {
	t.Helper()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, streamchat.EventStart{MessageID: id}, events[0])
	for _, evt := range events[1 : len(events)-1] {
		delta, ok := evt.(streamchat.EventContentDelta)
		require.True(t, ok, "unexpected mid-stream event %T", evt)
		assert.Equal(t, id, delta.MessageID)
		assert.NotEmpty(t, delta.Delta)
	}
	last := events[len(events)-1]
	assert.True(t, streamchat.Terminal(last), "last event %T is not terminal", last)
	if end, ok := last.(streamchat.EventEnd); ok {
		assert.Equal(t, id, end.MessageID)
	}
}
