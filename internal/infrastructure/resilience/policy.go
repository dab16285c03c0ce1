package resilience

import "time"

// RetryPolicy bounds how often an idempotent call against the judgment
// service is repeated.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// MaxRetryAfter caps a server-provided Retry-After hint.
	MaxRetryAfter time.Duration
}

// BreakerPolicy configures the per-operation circuit breaker.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
			MaxRetryAfter:  5 * time.Second,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      15 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// wait returns the delay before the attempt following attempt (1-based).
// A positive hint from the server replaces the computed backoff.
func (p RetryPolicy) wait(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return min(hint, p.MaxRetryAfter)
	}
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(backoff, p.MaxBackoff)
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	r := &out.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = r.InitialBackoff
	}
	if r.Multiplier < 1.0 {
		r.Multiplier = def.Retry.Multiplier
	}
	if r.MaxRetryAfter <= 0 {
		r.MaxRetryAfter = def.Retry.MaxRetryAfter
	}

	b := &out.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	return out
}
