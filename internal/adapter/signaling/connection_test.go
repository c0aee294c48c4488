package signaling

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleConnection(t *testing.T) *connection {
	t.Helper()
	c := newConnection(context.Background(), testConfig(), "ws://127.0.0.1:1/", &recordingListener{},
		slog.New(slog.DiscardHandler), discardReporter{})
	t.Cleanup(c.cancel)
	return c
}

func TestLoopPrefersOutboundOverReadyFrame(t *testing.T) {
	// Run many rounds: an unprioritized select would pick the frame about
	// half of the time.
	for i := 0; i < 200; i++ {
		c := newIdleConnection(t)
		frames := make(chan []byte, 1)
		readErr := make(chan error, 1)
		keepAlive := make(chan time.Time, 1)
		pingDone := make(chan error, 1)
		frames <- []byte(`{"method":"invite"}`)
		readErr <- errors.New("eof")
		keepAlive <- time.Now()
		pingDone <- nil
		c.mailbox.Put([]byte(`{"method":"login"}`))

		ev := c.next(loopInputs{frames: frames, readErr: readErr, keepAlive: keepAlive, pingDone: pingDone})
		require.Equal(t, eventOutbound, ev.kind, "round %d", i)
	}
}

func TestLoopTakesFrameOnceMailboxDrained(t *testing.T) {
	c := newIdleConnection(t)
	frames := make(chan []byte, 1)
	frames <- []byte(`{"method":"invite"}`)
	c.mailbox.Put([]byte(`{"method":"login"}`))
	in := loopInputs{frames: frames}

	require.Equal(t, eventOutbound, c.next(in).kind)
	msg, ok := c.mailbox.Take()
	require.True(t, ok)
	assert.JSONEq(t, `{"method":"login"}`, string(msg))

	ev := c.next(in)
	require.Equal(t, eventFrame, ev.kind)
	assert.JSONEq(t, `{"method":"invite"}`, string(ev.frame))
}

func TestLoopCancellationWins(t *testing.T) {
	c := newIdleConnection(t)
	frames := make(chan []byte, 1)
	frames <- []byte(`{}`)
	c.mailbox.Put([]byte(`{}`))
	c.cancel()

	assert.Equal(t, eventCancelled, c.next(loopInputs{frames: frames}).kind)
}

func TestLoopBlocksUntilReady(t *testing.T) {
	c := newIdleConnection(t)
	readErr := make(chan error, 1)
	got := make(chan loopEvent, 1)
	go func() { got <- c.next(loopInputs{readErr: readErr}) }()

	select {
	case ev := <-got:
		t.Fatalf("next returned %v with nothing ready", ev.kind)
	case <-time.After(50 * time.Millisecond):
	}

	readErr <- errors.New("closed")
	select {
	case ev := <-got:
		assert.Equal(t, eventReadError, ev.kind)
		assert.EqualError(t, ev.err, "closed")
	case <-time.After(time.Second):
		t.Fatal("next did not wake on read error")
	}
}
