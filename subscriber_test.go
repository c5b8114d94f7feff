package streamchat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder builds a Subscriber that logs every callback as a string.
func recorder() (*[]string, streamchat.Subscriber) {
	var calls []string
	return &calls, streamchat.Subscriber{
		OnStart:    func(id string) { calls = append(calls, "start:"+id) },
		OnDelta:    func(delta string) { calls = append(calls, "delta:"+delta) },
		OnEnd:      func(id, full string) { calls = append(calls, "end:"+id+":"+full) },
		OnError:    func(err error) { calls = append(calls, "error:"+err.Error()) },
		OnComplete: func() { calls = append(calls, "complete") },
	}
}

func replayClient(s streamchat.Stream) *mock.Client {
	return &mock.Client{
		OpenFn: func(ctx context.Context, history []streamchat.Message) (streamchat.Stream, error) {
			return s, nil
		},
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	history := []streamchat.Message{streamchat.UserMessage("hi")}

	t.Run("success accumulates full text", func(t *testing.T) {
		t.Parallel()
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "Hel"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "lo"},
			streamchat.EventEnd{MessageID: "msg_1"},
		)
		calls, sub := recorder()

		err := streamchat.Run(context.Background(), replayClient(s), history, sub)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"start:msg_1",
			"delta:Hel",
			"delta:lo",
			"end:msg_1:Hello",
			"complete",
		}, *calls)
	})

	t.Run("error event replaces end", func(t *testing.T) {
		t.Parallel()
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "par"},
			streamchat.EventError{Message: "boom"},
		)
		calls, sub := recorder()

		err := streamchat.Run(context.Background(), replayClient(s), history, sub)
		require.NoError(t, err)
		assert.Equal(t, []string{"start:msg_1", "delta:par", "error:boom", "complete"}, *calls)
	})

	t.Run("open failure reports error and completes", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("bad history")
		c := &mock.Client{
			OpenFn: func(ctx context.Context, history []streamchat.Message) (streamchat.Stream, error) {
				return nil, wantErr
			},
		}
		calls, sub := recorder()

		err := streamchat.Run(context.Background(), c, history, sub)
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, []string{"error:bad history", "complete"}, *calls)
	})

	t.Run("nil callbacks are skipped", func(t *testing.T) {
		t.Parallel()
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "x"},
			streamchat.EventEnd{MessageID: "msg_1"},
		)
		var full string
		err := streamchat.Run(context.Background(), replayClient(s), history, streamchat.Subscriber{
			OnEnd: func(_, text string) { full = text },
		})
		require.NoError(t, err)
		assert.Equal(t, "x", full)
	})

	t.Run("abort completes without end or error", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "a"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "b"},
			streamchat.EventEnd{MessageID: "msg_1"},
		)
		calls, sub := recorder()
		onDelta := sub.OnDelta
		sub.OnDelta = func(delta string) {
			onDelta(delta)
			cancel()
			require.NoError(t, s.Close())
		}

		err := streamchat.Run(ctx, replayClient(s), history, sub)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"start:msg_1", "delta:a", "complete"}, *calls)
	})

	t.Run("close without cancel returns ErrStreamClosed", func(t *testing.T) {
		t.Parallel()
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventContentDelta{MessageID: "msg_1", Delta: "a"},
			streamchat.EventEnd{MessageID: "msg_1"},
		)
		completed := false
		err := streamchat.Run(context.Background(), replayClient(s), history, streamchat.Subscriber{
			OnStart:    func(string) { require.NoError(t, s.Close()) },
			OnComplete: func() { completed = true },
		})
		assert.ErrorIs(t, err, streamchat.ErrStreamClosed)
		assert.True(t, completed)
	})

	t.Run("closes the stream", func(t *testing.T) {
		t.Parallel()
		s := mock.Replay("msg_1",
			streamchat.EventStart{MessageID: "msg_1"},
			streamchat.EventEnd{MessageID: "msg_1"},
		)
		closed := false
		closeFn := s.CloseFn
		s.CloseFn = func() error {
			closed = true
			return closeFn()
		}
		require.NoError(t, streamchat.Run(context.Background(), replayClient(s), history, streamchat.Subscriber{}))
		assert.True(t, closed)
	})
}
