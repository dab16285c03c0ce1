package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/judgment-search/internal/config"
	"github.com/kirillkom/judgment-search/internal/core/ports"
	"github.com/kirillkom/judgment-search/internal/core/usecase"
	"github.com/kirillkom/judgment-search/internal/infrastructure/judgmentapi"
	"github.com/kirillkom/judgment-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/judgment-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/judgment-search/internal/infrastructure/resilience"
	"github.com/kirillkom/judgment-search/internal/observability/metrics"
)

// Options carries the surface-specific pieces: the surface's own completion
// notifier and the registry its metrics are exported from.
type Options struct {
	Service  string
	Notifier ports.CompletionNotifier
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Client   *judgmentapi.Client
	Events   *nats.Notifier
	Reports  *postgres.BatchRepository
	Uploads  *metrics.UploadMetrics
	SearchUC *usecase.SearchUseCase
	ViewUC   *usecase.DocumentViewUseCase
	UploadUC *usecase.BatchUploadUseCase
	ResetUC  *usecase.ResetDatabaseUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	service := opts.Service
	if service == "" {
		service = "judgments"
	}
	uploads := metrics.NewUploadMetrics(service, opts.Registry)

	executor := resilience.NewExecutor(ResilienceConfig(cfg), logger,
		resilience.WithStateListener(func(operation string, _, to gobreaker.State) {
			uploads.ObserveBreakerState(operation, to.String())
		}),
	)
	client := judgmentapi.New(cfg.APIBaseURL, judgmentapi.Options{
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.ClientRateLimitRPS,
		RateBurst: cfg.ClientRateLimitBurst,
		Executor:  executor,
		Logger:    logger,
	})

	var (
		closers   []func()
		notifiers usecase.Notifiers
		reports   *postgres.BatchRepository
		events    *nats.Notifier
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if cfg.ReportPostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.ReportPostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		reports = postgres.NewBatchRepository(db)
		if err := reports.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("report_journal_enabled", "dsn", cfg.ReportPostgresDSN)
	}

	if cfg.NATSURL != "" {
		var err error
		events, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event notifier: %w", err)
		}
		closers = append(closers, events.Close)
		notifiers = append(notifiers, events)
		logger.Info("event_bus_connected", "nats_url", cfg.NATSURL, "subject", events.Subject(">"))
	}

	// The surface is told last, after the event has gone out.
	if opts.Notifier != nil {
		notifiers = append(notifiers, opts.Notifier)
	}

	uploadOpts := usecase.BatchUploadOptions{
		SettleDelay: cfg.UploadSettleDelay,
		Observer:    uploads,
		Logger:      logger,
	}
	if reports != nil {
		uploadOpts.Reports = reports
	}

	var notifier ports.CompletionNotifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Events:  events,
		Reports: reports,
		Uploads: uploads,

		SearchUC: usecase.NewSearchUseCase(client, logger),
		ViewUC:   usecase.NewDocumentViewUseCase(client, logger),
		UploadUC: usecase.NewBatchUploadUseCase(client, notifier, uploadOpts),
		ResetUC:  usecase.NewResetDatabaseUseCase(client, notifier, cfg.ResetReloadDelay, logger),

		closeFn: closeAll,
	}, nil
}

// ResilienceConfig maps the RESILIENCE_* settings onto the executor policy.
func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.MaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.Retry.InitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.Retry.MaxBackoff = cfg.ResilienceRetryMaxBackoff
	if cfg.ResilienceRetryAfterMax > 0 {
		out.Retry.MaxRetryAfter = cfg.ResilienceRetryAfterMax
	}
	out.Breaker.Enabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.Breaker.MinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.Breaker.FailureRatio = cfg.ResilienceBreakerFailureRatio
	out.Breaker.OpenTimeout = cfg.ResilienceBreakerOpenTimeout
	if cfg.ResilienceBreakerHalfOpenCalls > 0 {
		out.Breaker.HalfOpenMaxCalls = uint32(cfg.ResilienceBreakerHalfOpenCalls)
	}
	return out
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
