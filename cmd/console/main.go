package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/judgment-search/internal/adapters/http"
	"github.com/kirillkom/judgment-search/internal/bootstrap"
	"github.com/kirillkom/judgment-search/internal/config"
	"github.com/kirillkom/judgment-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/judgment-search/internal/observability/logging"
	"github.com/kirillkom/judgment-search/internal/observability/metrics"
)

const service = "console"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := httpadapter.NewViewState()
	tracker := httpadapter.NewBatchTracker(ctx, view, logger)
	serverMetrics := metrics.NewHTTPServerMetrics(service)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:  service,
		Notifier: tracker,
		Registry: serverMetrics.Registry(),
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if app.Reports != nil {
		tracker.UseHistory(app.Reports)
	}
	if app.Events != nil {
		go followEvents(ctx, app.Events, tracker, logger)
	}

	router := httpadapter.NewRouter(app.SearchUC, app.ViewUC, app.UploadUC, app.ResetUC, tracker, httpadapter.RouterOptions{
		RateLimitRPS:   cfg.ConsoleRateLimitRPS,
		RateLimitBurst: cfg.ConsoleRateLimitBurst,
		MaxInFlight:    cfg.ConsoleMaxInFlight,
		SpoolDir:       cfg.UploadSpoolDir,
		Metrics:        serverMetrics,
		Logger:         logger,
	}).Handler()
	server := &http.Server{
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.ConsolePort)
	if err != nil {
		log.Fatalf("console listen error: %v", err)
	}
	if cfg.ConsoleMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.ConsoleMaxConns)
	}

	go func() {
		logger.Info("console listening", "port", cfg.ConsolePort, "api_url", cfg.APIBaseURL, "max_connections", cfg.ConsoleMaxConns)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("console server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("console shutdown error", "error", err)
	}
	tracker.Wait()
}

// followEvents mirrors uploads and resets started from other consoles or the CLI.
func followEvents(ctx context.Context, events *nats.Notifier, tracker *httpadapter.BatchTracker, logger *slog.Logger) {
	err := events.Subscribe(ctx, func(ctx context.Context, event nats.Event) error {
		switch event.Kind {
		case nats.EventBatchSettled:
			if event.Summary == nil || event.View == nil {
				return errors.New("batch event without summary")
			}
			return tracker.BatchSettled(ctx, *event.Summary, *event.View)
		case nats.EventReloadRequested:
			return tracker.ReloadRequested(ctx)
		}
		return nil
	})
	if err != nil {
		logger.Error("event subscription stopped", "error", err)
	}
}
