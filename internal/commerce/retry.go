package commerce

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how transport failures are retried.
// MaxAttempts counts the first call, so 2 means "retry once".
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// backoff builds a fresh exponential schedule; backoffs are stateful.
func (p RetryPolicy) backoff() retry.Backoff {
	p = p.normalized()
	b := retry.NewExponential(p.InitialBackoff)
	b = retry.WithCappedDuration(p.MaxBackoff, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}
