package stream

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrReconnectExhausted is returned by a transport that gave up reconnecting.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// MaxDelay caps Delay when Backoff.Max is unset.
const MaxDelay = time.Hour

// Backoff is an exponential reconnect policy. MaxRetries of 0 retries forever.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// Delay is the wait before reconnect attempt n (1-based). It doubles from
// Initial and saturates at Max, or at MaxDelay when Max is not positive.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	if d <= 0 {
		d = time.Second
	}
	limit := b.Max
	if limit <= 0 {
		limit = MaxDelay
	}
	for i := 1; i < attempt && d < limit && d <= math.MaxInt64/2; i++ {
		d *= 2
	}
	return min(d, limit)
}

// Exhausted reports whether attempt is past the retry budget.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxRetries > 0 && attempt > b.MaxRetries
}

// Wait sleeps for the delay of attempt or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Delay(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
