package client

import (
	"context"
	"time"
)

// ConnState is the connection lifecycle state of a Client.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	// StateFailed is terminal: the retry budget is exhausted and the
	// client will not dial again without a fresh Connect.
	StateFailed ConnState = "failed"
)

const (
	defaultBackoffInitial = 1 * time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultMaxAttempts    = 10
)

// backoff computes the delay before each reconnection attempt:
// doubling from the initial delay, capped at the maximum.
type backoff struct {
	initial     time.Duration
	max         time.Duration
	maxAttempts int
}

func defaultBackoff() backoff {
	return backoff{
		initial:     defaultBackoffInitial,
		max:         defaultBackoffMax,
		maxAttempts: defaultMaxAttempts,
	}
}

// delay returns the wait before attempt n (1-based).
func (b backoff) delay(attempt int) time.Duration {
	d := b.initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.max {
			return b.max
		}
	}
	if d > b.max {
		return b.max
	}
	return d
}

// runReconnect drives the retry loop after an involuntary disconnect.
// It runs on its own goroutine; at most one loop is active per client.
func (c *Client) runReconnect() {
	for attempt := 1; attempt <= c.backoff.maxAttempts; attempt++ {
		c.sleep(c.backoff.delay(attempt))

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), transportWriteWait)
		transport, err := c.dialer.Dial(ctx)
		cancel()
		if err != nil {
			c.log.WithField("attempt", attempt).Warnf("Reconnect attempt failed: %v", err)
			continue
		}

		c.log.WithField("attempt", attempt).Info("Reconnected")
		c.establish(transport)
		return
	}

	c.log.Errorf("Giving up after %d reconnect attempts", c.backoff.maxAttempts)
	c.setState(StateFailed)
}
