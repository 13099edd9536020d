package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
)

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

// Publisher emits one JSON message per finished extraction.
type Publisher struct {
	conn     *nats.Conn
	pub      msgPublisher
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
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

	conn, err := nats.Connect(
		url,
		nats.Name("bol-extractor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newPublisher(conn, subject, options.ResilienceExecutor)
	p.conn = conn
	return p, nil
}

func newPublisher(pub msgPublisher, subject string, executor *resilience.Executor) *Publisher {
	return &Publisher{pub: pub, subject: subject, executor: executor}
}

// Close flushes buffered events before closing the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		slog.Warn("nats_flush_failed", "error", err)
	}
	p.conn.Close()
}

func (p *Publisher) PublishExtracted(ctx context.Context, event domain.ExtractionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal extraction event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.pub.Publish(p.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Noop drops events. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) PublishExtracted(context.Context, domain.ExtractionEvent) error { return nil }
