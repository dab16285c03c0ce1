package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/infrastructure/resilience"
)

const (
	EventBatchSettled    = "batch.settled"
	EventReloadRequested = "reload"
)

// Event is the payload published for every completion signal.
type Event struct {
	Kind    string               `json:"kind"`
	Summary *domain.BatchSummary `json:"summary,omitempty"`
	View    *domain.ViewSwitch   `json:"view,omitempty"`
	At      time.Time            `json:"at"`
	// Origin identifies the publishing process.
	Origin string `json:"origin,omitempty"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier broadcasts batch completion and reload requests so that every
// open console follows an upload or reset started elsewhere.
type Notifier struct {
	conn     *nats.Conn
	pub      publisher
	prefix   string
	origin   string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, prefix string) (*Notifier, error) {
	return NewWithOptions(url, prefix, Options{})
}

func NewWithOptions(url, prefix string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("judgment-search"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	notifier := newNotifier(conn, prefix, options.ResilienceExecutor, logger)
	notifier.conn = conn
	return notifier, nil
}

func newNotifier(pub publisher, prefix string, executor *resilience.Executor, logger *slog.Logger) *Notifier {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "judgments"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		pub:      pub,
		prefix:   prefix,
		origin:   uuid.NewString(),
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// Origin is stamped on every event this notifier publishes.
func (n *Notifier) Origin() string {
	return n.origin
}

func (n *Notifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

func (n *Notifier) BatchSettled(ctx context.Context, summary domain.BatchSummary, view domain.ViewSwitch) error {
	return n.publish(ctx, Event{Kind: EventBatchSettled, Summary: &summary, View: &view})
}

func (n *Notifier) ReloadRequested(ctx context.Context) error {
	return n.publish(ctx, Event{Kind: EventReloadRequested})
}

func (n *Notifier) publish(ctx context.Context, event Event) error {
	event.At = n.now().UTC()
	event.Origin = n.origin
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Kind, err)
	}
	subject := n.Subject(event.Kind)

	call := func(_ context.Context) error {
		if err := n.pub.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, "nats.publish."+event.Kind, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishFailure(event.Kind, err)
	}
	n.logger.Debug("event published", "subject", subject)
	return nil
}

// Subscribe delivers every event under the prefix to handler until ctx is
// done. Events this notifier published itself are skipped; the publisher
// already applied them locally.
func (n *Notifier) Subscribe(ctx context.Context, handler func(context.Context, Event) error) error {
	if n.conn == nil {
		return errors.New("nats subscribe: not connected")
	}
	sub, err := n.conn.Subscribe(n.prefix+".>", func(msg *nats.Msg) {
		n.deliver(ctx, msg.Subject, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, subject string, data []byte, handler func(context.Context, Event) error) {
	if ctx.Err() != nil {
		return
	}
	event, err := DecodeEvent(data)
	if err != nil {
		n.logger.Warn("discarding malformed event", "subject", subject, "error", err)
		return
	}
	if event.Origin == n.origin {
		return
	}
	if err := handler(ctx, event); err != nil {
		n.logger.Error("event handler failed", "kind", event.Kind, "error", err)
	}
}

func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Kind == "" {
		return Event{}, errors.New("decode event: missing kind")
	}
	return event, nil
}
