package judgmentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/observability/logging"
)

const requestIDHeader = "X-Request-Id"

type errorPayload struct {
	Error string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(requestIDHeader, requestID)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrTransport, operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// postForStatus reads the {} / {"error": "..."} acknowledgement. The body is
// decoded whatever the status code, so a server message on a 4xx/5xx still
// reaches the caller verbatim.
func (c *Client) postForStatus(ctx context.Context, path string, body io.Reader, contentType, operation string) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		if resp.StatusCode >= 300 {
			return &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       truncate(string(raw), 2048),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			}
		}
		return domain.WrapError(domain.ErrTransport, operation, fmt.Errorf("decode response: %w", err))
	}
	if payload.Error != "" {
		return &domain.RemoteError{Operation: operation, Message: payload.Error}
	}
	if resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "unacknowledged_status",
			"operation", operation,
			"status", resp.StatusCode,
		)
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	return nil
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
