package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/infrastructure/resilience"
)

const DefaultSubject = "snapshots.saved"

// Bus publishes snapshot lifecycle events and delivers them to a worker
// queue group.
type Bus struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	HandlerTimeout       time.Duration
}

func New(url, subject string) (*Bus, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Bus, error) {
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
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ride-progress"),
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
	return &Bus{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (b *Bus) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.handlerTimeout > 0 {
		return context.WithTimeout(ctx, b.handlerTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishSnapshotEvent(ctx context.Context, event domain.SnapshotEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, publishOperation, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishError(event, err)
}

// SubscribeSnapshotEvents blocks until ctx is done, then drains the
// subscription so in-flight handlers finish.
func (b *Bus) SubscribeSnapshotEvents(ctx context.Context, handler func(context.Context, domain.SnapshotEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("snapshot_event_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := b.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("snapshot_event_handler_failed",
				"snapshot_id", event.SnapshotID,
				"type", string(event.Type),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.SnapshotEvent) ([]byte, error) {
	if event.SnapshotID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode snapshot event", errors.New("snapshot id is empty"))
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.SnapshotEvent, error) {
	var event domain.SnapshotEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.SnapshotEvent{}, fmt.Errorf("unmarshal snapshot event: %w", err)
	}
	if event.SnapshotID == "" {
		return domain.SnapshotEvent{}, errors.New("snapshot event without id")
	}
	return event, nil
}
