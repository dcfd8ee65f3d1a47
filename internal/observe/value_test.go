package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValue_SubscribeGetsCurrentThenUpdates(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := NewValueOf(1)
	ch := v.Subscribe(ctx)
	req.Equal(1, <-ch)

	v.Publish(2)
	req.Equal(2, <-ch)
}

func TestValue_NoInitialValue(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := NewValue[string]()
	_, ok := v.Load()
	req.False(ok)

	ch := v.Subscribe(ctx)
	select {
	case got := <-ch:
		req.Failf("unexpected value", "%q", got)
	case <-time.After(20 * time.Millisecond):
	}

	v.Publish("a")
	req.Equal("a", <-ch)
}

func TestValue_SlowSubscriberSeesLatestOnly(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := NewValue[int]()
	ch := v.Subscribe(ctx)

	// Publishing never blocks even though nobody reads
	for i := 0; i < 100; i++ {
		v.Publish(i)
	}
	req.Equal(99, <-ch)

	cur, ok := v.Load()
	req.True(ok)
	req.Equal(99, cur)
}

func TestValue_ContextClosesSubscription(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	v := NewValue[int]()
	ch := v.Subscribe(ctx)
	req.Equal(1, v.Subscribers())

	cancel()
	select {
	case _, open := <-ch:
		req.False(open)
	case <-time.After(time.Second):
		req.Fail("subscription not closed")
	}
	req.Equal(0, v.Subscribers())

	// Publishing after the close must not panic
	v.Publish(5)
}
