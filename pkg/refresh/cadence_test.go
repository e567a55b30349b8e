package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCadence_DeliversDeltas(t *testing.T) {
	var c Cadence
	deltas := make(chan time.Duration, 64)

	err := c.Start(context.Background(), 2*time.Millisecond, func(d time.Duration) {
		select {
		case deltas <- d:
		default:
		}
	})
	require.NoError(t, err)
	assert.True(t, c.Running())

	for i := 0; i < 3; i++ {
		select {
		case d := <-deltas:
			assert.Greater(t, d, time.Duration(0))
		case <-time.After(time.Second):
			t.Fatal("expected a tick")
		}
	}

	c.Stop()
	assert.False(t, c.Running())
}

func TestCadence_StopHaltsTicks(t *testing.T) {
	var c Cadence
	var ticks atomic.Int64

	require.NoError(t, c.Start(context.Background(), time.Millisecond, func(time.Duration) {
		ticks.Add(1)
	}))
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

	c.Stop()
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())

	// Stop is safe to repeat
	c.Stop()
}

func TestCadence_StartErrors(t *testing.T) {
	var c Cadence

	assert.Error(t, c.Start(context.Background(), 0, func(time.Duration) {}))

	require.NoError(t, c.Start(context.Background(), time.Hour, func(time.Duration) {}))
	defer c.Stop()
	assert.ErrorIs(t, c.Start(context.Background(), time.Hour, func(time.Duration) {}), ErrCadenceRunning)
}

func TestCadence_ContextCancel(t *testing.T) {
	var c Cadence
	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Start(ctx, time.Millisecond, func(time.Duration) { ticks.Add(1) }))
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

	cancel()
	c.Stop()
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}
