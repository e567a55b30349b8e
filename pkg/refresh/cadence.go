package refresh

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCadenceRunning is returned by Start when the cadence is already running
var ErrCadenceRunning = errors.New("cadence already running")

// Cadence delivers frame ticks with the measured wall-clock delta between them
type Cadence struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs onTick every frame until Stop is called or ctx is cancelled
func (c *Cadence) Start(ctx context.Context, frame time.Duration, onTick func(delta time.Duration)) error {
	if frame <= 0 {
		return errors.New("frame interval must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrCadenceRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(frame)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				delta := now.Sub(last)
				last = now
				onTick(delta)
			}
		}
	}()

	return nil
}

// Stop halts the cadence and waits for the tick goroutine to exit.
// It must not be called from inside onTick.
func (c *Cadence) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the cadence is delivering ticks
func (c *Cadence) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}
