package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	// RetryAfter is a server hint for the next attempt; zero means backoff.
	RetryAfter time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

// StateListener observes breaker transitions, e.g. to export them as a gauge.
type StateListener func(operation string, from, to gobreaker.State)

type Option func(*Executor)

func WithStateListener(listener StateListener) Option {
	return func(e *Executor) {
		if listener != nil {
			e.listeners = append(e.listeners, listener)
		}
	}
}

// Executor runs calls to the judgment service and the event bus under one
// retry policy and a circuit breaker per operation name.
type Executor struct {
	cfg       Config
	logger    *slog.Logger
	listeners []StateListener
	sleep     func(context.Context, time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Once wraps a classifier so a failure is never retried. The breaker still
// sees the failure when the inner classifier records it.
func Once(classifier ErrorClassifier) ErrorClassifier {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return func(err error) ErrorClassification {
		class := classifier(err)
		class.Retryable = false
		return class
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	if !e.cfg.Breaker.Enabled {
		return e.retry(ctx, op, fn, classifier)
	}
	_, err := e.circuitBreaker(op, classifier).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classifier)
	})
	return err
}

// State reports the breaker state of an operation. Operations that never ran
// are closed.
func (e *Executor) State(operation string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[operation]; ok {
		return breaker.State()
	}
	return gobreaker.StateClosed
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	policy := e.cfg.Retry
	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		class := classifier(err)
		if !class.Retryable || attempt == policy.MaxAttempts {
			return err
		}

		wait := policy.wait(attempt, class.RetryAfter)
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"server_hint", class.RetryAfter > 0,
			"error", err,
		)
		if e.sleep(ctx, wait) != nil {
			return err
		}
	}
	return err
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	policy := e.cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: policy.HalfOpenMaxCalls,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < policy.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= policy.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			for _, listener := range e.listeners {
				listener(name, from, to)
			}
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
