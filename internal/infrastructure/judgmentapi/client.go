package judgmentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/infrastructure/resilience"
)

const (
	opSearch   = "judgment.search"
	opDocument = "judgment.document"
	opUpload   = "judgment.upload"
	opClearDB  = "judgment.clear_db"
)

type Options struct {
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	Executor   *resilience.Executor
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the judgment service HTTP API. It implements the search,
// document, upload and reset collaborator ports.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		executor:   opts.Executor,
		logger:     logger,
	}
}

func (c *Client) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Document, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	params.Set("exclude", query.Exclude)
	params.Set("type", string(query.Field))
	params.Set("docType", query.DocType)
	params.Set("source", query.Source)

	var raw json.RawMessage
	err := c.execute(ctx, opSearch, classifyError, func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/search?"+params.Encode(), &raw, opSearch)
	})
	if err != nil {
		return nil, wrapFailure(opSearch, err)
	}
	return decodeSearchResults(raw)
}

// decodeSearchResults treats null and unexpected shapes as zero results. Only
// an explicit error payload is reported as a failure.
func decodeSearchResults(raw json.RawMessage) ([]domain.Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, nil
	case strings.HasPrefix(trimmed, "["):
		var docs []domain.Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, domain.WrapError(domain.ErrTransport, opSearch, fmt.Errorf("decode results: %w", err))
		}
		return docs, nil
	case strings.HasPrefix(trimmed, "{"):
		var payload errorPayload
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
			return nil, &domain.RemoteError{Operation: opSearch, Message: payload.Error}
		}
	}
	return nil, nil
}

func (c *Client) GetDocument(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	params := url.Values{}
	params.Set("source", ref.Source)
	params.Set("q", ref.Query)
	path := "/api/document/" + url.PathEscape(strconv.Itoa(ref.ID)) + "?" + params.Encode()

	var doc domain.Document
	err := c.execute(ctx, opDocument, classifyError, func(ctx context.Context) error {
		return c.getJSON(ctx, path, &doc, opDocument)
	})
	if err != nil {
		return nil, wrapFailure(opDocument, err)
	}
	return &doc, nil
}

// Upload sends one file as multipart field "file". It is never retried.
func (c *Client) Upload(ctx context.Context, file domain.CandidateFile) error {
	err := c.execute(ctx, opUpload, resilience.Once(classifyError), func(ctx context.Context) error {
		if file.Open == nil {
			return fmt.Errorf("open %s: no content", file.Name)
		}
		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}
		body, contentType := multipartBody(file.Name, src)
		defer body.Close()
		return c.postForStatus(ctx, "/api/upload", body, contentType, opUpload)
	})
	return wrapFailure(opUpload, err)
}

// ClearDatabase removes every imported judgment. It is never retried.
func (c *Client) ClearDatabase(ctx context.Context) error {
	err := c.execute(ctx, opClearDB, resilience.Once(classifyError), func(ctx context.Context) error {
		return c.postForStatus(ctx, "/api/clear-db", nil, "", opClearDB)
	})
	return wrapFailure(opClearDB, err)
}

func (c *Client) execute(
	ctx context.Context,
	operation string,
	classifier resilience.ErrorClassifier,
	fn func(context.Context) error,
) error {
	call := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}
		return fn(ctx)
	}
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifier)
}

// multipartBody streams the file into a multipart form without buffering it.
func multipartBody(name string, src io.ReadCloser) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer src.Close()

		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("read %s: %w", name, err))
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType()
}
