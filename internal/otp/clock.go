package otp

import (
	"context"
	"time"
)

// Clock ticks once per wall-clock second boundary. It drives UI refresh of
// the currently displayed totp code and countdown; code derivation itself
// only depends on the timestamp passed to Code.
type Clock struct {
	C <-chan time.Time

	cancel context.CancelFunc
}

// NewClock starts a clock aligned to second boundaries. Stop it with Stop
// when the displaying view goes away.
func NewClock(ctx context.Context) *Clock {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan time.Time, 1)

	go func() {
		defer close(ch)
		for {
			now := time.Now()
			next := now.Truncate(time.Second).Add(time.Second)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case t := <-timer.C:
				select {
				case ch <- t:
				default: // slow consumer skips ticks instead of lagging
				}
			}
		}
	}()

	return &Clock{C: ch, cancel: cancel}
}

// Stop terminates the clock goroutine and closes C.
func (c *Clock) Stop() {
	c.cancel()
}
