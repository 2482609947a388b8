package actor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestActorProcessesMessagesInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	handler := func(_ context.Context, msg actor.Message) error {
		mu.Lock()
		seen = append(seen, msg.Payload.(int))
		mu.Unlock()
		return nil
	}

	a := actor.New("worker", 8, handler, ids.SystemClock{}, nil, nil)
	a.Start(context.Background())
	defer a.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(context.Background(), actor.Message{Payload: i}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	mu.Unlock()
}

func TestActorReportsHandlerErrorsWithoutStopping(t *testing.T) {
	var gotErr error
	var mu sync.Mutex

	handler := func(_ context.Context, msg actor.Message) error {
		if msg.Payload == "bad" {
			return assert.AnError
		}
		return nil
	}
	onErr := func(_ ids.ID, err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
	}

	a := actor.New("worker", 4, handler, ids.SystemClock{}, onErr, nil)
	a.Start(context.Background())
	defer a.Stop()

	require.NoError(t, a.Send(context.Background(), actor.Message{Payload: "bad"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotErr != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, a.Send(context.Background(), actor.Message{Payload: "ok"}))
	assert.Equal(t, actor.Active, a.Status())
}

func TestCheckResponsivenessMarksUnresponsiveAfterThreeMissedBeats(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	handler := func(context.Context, actor.Message) error { return nil }
	a := actor.New("worker", 1, handler, clock, nil, nil)
	a.Start(context.Background())
	defer a.Stop()

	clock.Advance(actor.HeartbeatInterval)
	assert.Equal(t, actor.Active, a.CheckResponsiveness(clock.Now()))

	clock.Advance(actor.HeartbeatInterval)
	assert.Equal(t, actor.Active, a.CheckResponsiveness(clock.Now()))

	clock.Advance(actor.HeartbeatInterval)
	assert.Equal(t, actor.Unresponsive, a.CheckResponsiveness(clock.Now()))
}

func TestStopTransitionsToStopped(t *testing.T) {
	handler := func(context.Context, actor.Message) error { return nil }
	a := actor.New("worker", 1, handler, ids.SystemClock{}, nil, nil)
	a.Start(context.Background())
	a.Stop()
	assert.Equal(t, actor.Stopped, a.Status())
}
