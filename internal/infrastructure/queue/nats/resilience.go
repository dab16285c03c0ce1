package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/infrastructure/resilience"
)

// transientPublishErrors clear up once the client reconnects.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

// rejectedPublishErrors mean the event itself is unacceptable; the bus is fine.
var rejectedPublishErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAny(err, transientPublishErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case isAny(err, rejectedPublishErrors):
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// publishFailure marks failures a later publish may not hit as temporary.
func publishFailure(kind string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish "+kind, err)
	}
	return err
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
