package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/judgment-search/internal/config"
	"github.com/kirillkom/judgment-search/internal/core/domain"
)

type notifierFake struct {
	mu      sync.Mutex
	reloads int
}

func (n *notifierFake) BatchSettled(context.Context, domain.BatchSummary, domain.ViewSwitch) error {
	return nil
}

func (n *notifierFake) ReloadRequested(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads++
	return nil
}

type yesConfirmer struct{}

func (yesConfirmer) Confirm(context.Context, string) (bool, error) { return true, nil }

func TestNewWiresClientAndSurfaceNotifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clear-db" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	notifier := &notifierFake{}
	app, err := New(context.Background(), config.Config{
		APIBaseURL:       server.URL,
		HTTPTimeout:      time.Second,
		ResetReloadDelay: 0,
	}, Options{Service: "test", Notifier: notifier})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Reports != nil || app.Events != nil {
		t.Fatalf("optional backends must stay disabled without configuration")
	}
	if err := app.ResetUC.Reset(context.Background(), yesConfirmer{}); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.reloads != 1 {
		t.Fatalf("expected surface notifier to receive reload, got %d", notifier.reloads)
	}
}

func TestResilienceConfigMapsSettings(t *testing.T) {
	got := ResilienceConfig(config.Config{
		ResilienceRetryMaxAttempts:     5,
		ResilienceRetryAfterMax:        10 * time.Second,
		ResilienceBreakerEnabled:       false,
		ResilienceBreakerMinRequests:   7,
		ResilienceBreakerFailureRatio:  0.5,
		ResilienceBreakerOpenTimeout:   time.Minute,
		ResilienceBreakerHalfOpenCalls: 3,
	})
	if got.Retry.MaxAttempts != 5 || got.Retry.MaxRetryAfter != 10*time.Second {
		t.Fatalf("unexpected retry policy %+v", got.Retry)
	}
	if got.Breaker.Enabled || got.Breaker.MinRequests != 7 || got.Breaker.HalfOpenMaxCalls != 3 {
		t.Fatalf("unexpected breaker policy %+v", got.Breaker)
	}
	if got.Breaker.OpenTimeout != time.Minute || got.Breaker.FailureRatio != 0.5 {
		t.Fatalf("unexpected breaker timing %+v", got)
	}
}
