package judgmentapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "judgment api status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	// The service answered; it is healthy even when it says no.
	if domain.IsKind(err, domain.ErrRemote) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: statusErr.StatusCode != http.StatusTooManyRequests,
				RetryAfter:    statusErr.RetryAfter,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// wrapFailure tags every failure that is not an application answer as a
// transport failure, and marks the retryable ones as temporary.
func wrapFailure(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrRemote) || domain.IsKind(err, domain.ErrDocumentNotFound) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound && operation == opDocument {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, err)
	}

	if domain.IsKind(err, domain.ErrTransport) {
		return err
	}
	class := classifyError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return fmt.Errorf("%s: %w: %w: %w", operation, domain.ErrTransport, domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrTransport, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
