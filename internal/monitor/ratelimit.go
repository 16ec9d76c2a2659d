package monitor

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRate = errors.New("monitor: target rate must be positive")

// RateLimiter pads each loop iteration out to a fixed period. An iteration that
// already overran the period is not delayed further.
type RateLimiter struct {
	opts   options
	period time.Duration
	last   time.Time
}

func NewRateLimiter(hz float64, opts ...Option) (*RateLimiter, error) {
	if hz <= 0 {
		return nil, ErrInvalidRate
	}
	o := newOptions(opts)
	return &RateLimiter{
		opts:   o,
		period: time.Duration(float64(time.Second) / hz),
		last:   o.now(),
	}, nil
}

func (r *RateLimiter) Period() time.Duration { return r.period }

// Wait blocks for the rest of the current period, or until ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	remaining := r.period - r.opts.now().Sub(r.last)
	var err error
	if remaining > 0 {
		err = r.opts.sleep(ctx, remaining)
	}
	r.last = r.opts.now()
	return err
}
