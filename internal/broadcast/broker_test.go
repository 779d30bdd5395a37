package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(version int) engine.Snapshot {
	return engine.Snapshot{Version: version, Match: engine.Match{ID: "m1", Status: engine.StatusLive}}
}

// helper: receive one message with a timeout so tests never hang
func recv(t *testing.T, c <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-c:
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
		return Message{}
	}
}

func TestBroker_PublishReachesAllSubscribersInOrder(t *testing.T) {
	b := NewBroker(nil)
	s1 := b.Subscribe("match:m1", 4)
	s2 := b.Subscribe("match:m1", 4)
	other := b.Subscribe("match:m2", 4)

	for v := 1; v <= 3; v++ {
		require.NoError(t, b.Publish(context.Background(), "match:m1", snapshot(v)))
	}

	for _, s := range []*Subscription{s1, s2} {
		for v := 1; v <= 3; v++ {
			msg := recv(t, s.C)
			assert.Equal(t, v, msg.Version)

			var decoded types.ServerMessage
			require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
			assert.Equal(t, types.MsgStateSnapshot, decoded.Type)
			assert.Equal(t, v, decoded.Version)
		}
	}
	assert.Empty(t, other.C)
}

func TestBroker_SlowSubscriberIsDropped(t *testing.T) {
	b := NewBroker(nil)
	slow := b.Subscribe("match:m1", 1)
	fast := b.Subscribe("match:m1", 8)

	require.NoError(t, b.Publish(context.Background(), "match:m1", snapshot(1)))
	err := b.Publish(context.Background(), "match:m1", snapshot(2))

	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, []string{slow.ID}, pubErr.Dropped)
	assert.Equal(t, 1, b.Subscribers("match:m1"))

	// The slow one still holds v1, then sees the close.
	assert.Equal(t, 1, recv(t, slow.C).Version)
	_, ok := <-slow.C
	assert.False(t, ok)

	assert.Equal(t, 1, recv(t, fast.C).Version)
	assert.Equal(t, 2, recv(t, fast.C).Version)

	// Closing an already dropped subscription is a no-op.
	slow.Close()
}

func TestBroker_CloseSubscription(t *testing.T) {
	b := NewBroker(nil)
	s := b.Subscribe("match:m1", 1)
	assert.Equal(t, []string{"match:m1"}, b.Topics())

	s.Close()
	s.Close()
	_, ok := <-s.C
	assert.False(t, ok)
	assert.Empty(t, b.Topics())
	require.NoError(t, b.Publish(context.Background(), "match:m1", snapshot(1)))
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(nil)
	s := b.Subscribe("match:m1", 1)
	b.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	late := b.Subscribe("match:m1", 1)
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()
}

func TestBroker_PublishHonoursContext(t *testing.T) {
	b := NewBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Publish(ctx, "match:m1", snapshot(1)), context.Canceled)
}
