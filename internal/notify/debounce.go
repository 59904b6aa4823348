package notify

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Debounced forwards at most one alert per window and silently drops the
// rest, so consecutive ticks or parallel sources do not repeat an alert.
type Debounced struct {
	next    Notifier
	limiter *rate.Limiter
	now     func() time.Time
	dropped atomic.Int64
}

// Debounce wraps n so that alerts within window of the last one are dropped
func Debounce(n Notifier, window time.Duration) *Debounced {
	return &Debounced{
		next:    n,
		limiter: rate.NewLimiter(rate.Every(window), 1),
		now:     time.Now,
	}
}

// Notify forwards the alert unless one was sent within the window
func (d *Debounced) Notify(title, message string) error {
	if !d.limiter.AllowN(d.now(), 1) {
		d.dropped.Add(1)
		return nil
	}
	return d.next.Notify(title, message)
}

// Dropped returns how many alerts were suppressed
func (d *Debounced) Dropped() int64 {
	return d.dropped.Load()
}
