// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/messaging"

// Consumer defaults
const (
	DefaultAckWait     = 2 * time.Minute
	DefaultMaxDeliver  = 5
	DefaultConcurrency = 4

	// UnlimitedAckPending lifts the server-side ack-pending cap.
	UnlimitedAckPending = -1
)

// DefaultRetryBackoff is the redelivery delay after the n-th failed attempt.
var DefaultRetryBackoff = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
}

// Processor handles one queued message. A nil error acks the message, a
// DeferredError redelivers it after the requested delay, a Validation error
// terminates it and anything else is retried with backoff.
type Processor func(ctx context.Context, subject string, data []byte) error

// IJetStreamConsumers is the JetStream interface needed to bind a durable consumer.
type IJetStreamConsumers interface {
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// ConsumerConfig configures a durable pull consumer.
type ConsumerConfig struct {
	Stream        string
	Durable       string
	FilterSubject string
	// AckWait is the redelivery timeout; long-running handlers extend it with heartbeats.
	AckWait     time.Duration
	MaxDeliver  int
	Concurrency int
	// MaxAckPending caps delivered but unsettled messages. Messages nak'd with
	// a delay stay pending until redelivered, so consumers whose processor
	// defers work should use UnlimitedAckPending. Zero means twice Concurrency.
	MaxAckPending int
	RetryBackoff  []time.Duration
}

// JetStreamConsumer feeds a durable consumer into a Processor.
type JetStreamConsumer struct {
	js         IJetStreamConsumers
	config     ConsumerConfig
	process    Processor
	sem        *semaphore.Weighted
	consumeCtx jetstream.ConsumeContext
	baseCtx    context.Context
}

// NewJetStreamConsumer creates a consumer; Start binds it to the stream.
func NewJetStreamConsumer(js IJetStreamConsumers, config ConsumerConfig, process Processor) *JetStreamConsumer {
	if config.AckWait <= 0 {
		config.AckWait = DefaultAckWait
	}
	if config.MaxDeliver <= 0 {
		config.MaxDeliver = DefaultMaxDeliver
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxAckPending == 0 {
		config.MaxAckPending = config.Concurrency * 2
	}
	if config.MaxAckPending < 0 {
		config.MaxAckPending = UnlimitedAckPending
	}
	if len(config.RetryBackoff) == 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}

	return &JetStreamConsumer{
		js:      js,
		config:  config,
		process: process,
		sem:     semaphore.NewWeighted(int64(config.Concurrency)),
		baseCtx: context.Background(),
	}
}

// Start creates or updates the durable consumer and begins consuming.
func (c *JetStreamConsumer) Start(ctx context.Context) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.config.Stream, jetstream.ConsumerConfig{
		Durable:       c.config.Durable,
		FilterSubject: c.config.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxDeliver,
		MaxAckPending: c.config.MaxAckPending,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s on %s: %w", c.config.Durable, c.config.Stream, err)
	}

	// in-flight messages outlive the caller's context so Stop can drain them
	c.baseCtx = context.WithoutCancel(ctx)

	consumeCtx, err := consumer.Consume(c.dispatch)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.config.Durable, err)
	}
	c.consumeCtx = consumeCtx

	slog.InfoContext(ctx, "JetStream consumer started",
		"stream", c.config.Stream,
		"consumer", c.config.Durable,
		"filter_subject", c.config.FilterSubject,
		"concurrency", c.config.Concurrency,
		"max_ack_pending", c.config.MaxAckPending,
	)
	return nil
}

// Stop stops pulling new messages and waits for in-flight ones until ctx ends.
func (c *JetStreamConsumer) Stop(ctx context.Context) error {
	if c.consumeCtx != nil {
		c.consumeCtx.Stop()
	}
	if err := c.sem.Acquire(ctx, int64(c.config.Concurrency)); err != nil {
		return fmt.Errorf("timed out waiting for in-flight %s messages: %w", c.config.Durable, err)
	}
	c.sem.Release(int64(c.config.Concurrency))
	slog.InfoContext(ctx, "JetStream consumer stopped", "consumer", c.config.Durable)
	return nil
}

// dispatch is the consume callback. Blocking on the semaphore applies
// backpressure to the pull loop.
func (c *JetStreamConsumer) dispatch(msg jetstream.Msg) {
	if err := c.sem.Acquire(c.baseCtx, 1); err != nil {
		_ = msg.Nak()
		return
	}
	go func() {
		defer c.sem.Release(1)
		c.handle(c.baseCtx, msg)
	}()
}

// handle runs the processor and settles the message.
func (c *JetStreamConsumer) handle(ctx context.Context, msg jetstream.Msg) {
	numDelivered := uint64(1)
	if meta, err := msg.Metadata(); err == nil && meta != nil {
		numDelivered = meta.NumDelivered
	}

	ctx = logging.AppendCtx(ctx, slog.String("subject", msg.Subject()))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "jetstream.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject()),
			attribute.String("messaging.consumer.group.name", c.config.Durable),
			attribute.Int64("messaging.nats.num_delivered", int64(numDelivered)),
		),
	)
	defer span.End()

	stopHeartbeat := c.heartbeat(msg)
	err := c.process(ctx, msg.Subject(), msg.Data())
	stopHeartbeat()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		if ackErr := msg.Ack(); ackErr != nil {
			slog.ErrorContext(ctx, "failed to ack message", logging.ErrKey, ackErr)
		}
		return
	}

	if delay, ok := domain.GetDeferDelay(err); ok {
		slog.DebugContext(ctx, "deferring message", "delay", delay.String())
		if nakErr := msg.NakWithDelay(delay); nakErr != nil {
			slog.ErrorContext(ctx, "failed to nak message", logging.ErrKey, nakErr)
		}
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && domainErr.Type == domain.ErrorTypeValidation {
		slog.ErrorContext(ctx, "dropping message that cannot be processed", logging.ErrKey, err)
		_ = msg.TermWithReason("invalid message")
		return
	}

	if numDelivered >= uint64(c.config.MaxDeliver) {
		slog.ErrorContext(ctx, "message failed on its last delivery, dropping",
			logging.ErrKey, err,
			"num_delivered", numDelivered,
			logging.PriorityCritical(),
		)
		_ = msg.TermWithReason("max deliveries reached")
		return
	}

	delay := c.retryDelay(numDelivered)
	slog.WarnContext(ctx, "message processing failed, will retry",
		logging.ErrKey, err,
		"num_delivered", numDelivered,
		"retry_in", delay.String(),
	)
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		slog.ErrorContext(ctx, "failed to nak message", logging.ErrKey, nakErr)
	}
}

// heartbeat keeps extending the ack deadline while the processor runs.
func (c *JetStreamConsumer) heartbeat(msg jetstream.Msg) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(c.config.AckWait / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = msg.InProgress()
			}
		}
	}()
	return func() { close(done) }
}

func (c *JetStreamConsumer) retryDelay(numDelivered uint64) time.Duration {
	idx := int(numDelivered) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.config.RetryBackoff) {
		idx = len(c.config.RetryBackoff) - 1
	}
	return c.config.RetryBackoff[idx]
}
