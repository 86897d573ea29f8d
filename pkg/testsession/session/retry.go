package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries transient failures with exponential backoff.
// Every other error kind is returned immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxBackoff > 0 && d > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// Do runs fn until it succeeds, returns a non-transient error, the attempts
// are used up, or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, log *zap.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}
		wait := p.backoff(attempt)
		if log != nil {
			log.Debug("retrying after transient failure",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return NewError(KindTransient, op, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
