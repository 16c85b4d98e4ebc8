// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// INatsConn is the core NATS connection interface the publisher needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// IJetStreamPublisher is the JetStream publish interface the publisher needs.
type IJetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
// Fire-and-forget messages go over core NATS; anything that must survive a
// restart is published to JetStream and only counts as sent once acknowledged.
type MessageBuilder struct {
	NatsConn  INatsConn
	JetStream IJetStreamPublisher
}

// Ensure MessageBuilder implements WebhookEventSender
var _ domain.WebhookEventSender = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn, js IJetStreamPublisher) *MessageBuilder {
	return &MessageBuilder{
		NatsConn:  natsConn,
		JetStream: js,
	}
}

// sendMessage sends the message to the NATS server.
func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, data []byte) error {
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// publishDurable publishes to JetStream and waits for the stream ack.
// msgID enables broker-side deduplication within the stream's duplicate window.
func (m *MessageBuilder) publishDurable(ctx context.Context, subject string, data []byte, msgID string) error {
	if m.JetStream == nil {
		return domain.NewUnavailableError("event queue is not configured")
	}

	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}

	ack, err := m.JetStream.Publish(ctx, subject, data, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "error publishing message to JetStream", logging.ErrKey, err, "subject", subject)
		return domain.NewUnavailableError("failed to queue message", err)
	}

	slog.DebugContext(ctx, "published message to JetStream",
		"subject", subject,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate,
	)
	return nil
}

// PublishZoomWebhookEvent queues a Zoom webhook event on JetStream for async processing.
// Zoom redeliveries of the same event carry the same body, so the content hash
// doubles as the deduplication id.
func (m *MessageBuilder) PublishZoomWebhookEvent(ctx context.Context, subject string, message models.ZoomWebhookEventMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling Zoom webhook event into JSON", logging.ErrKey, err, "subject", subject)
		return domain.NewInternalError("failed to encode webhook event", err)
	}

	slog.DebugContext(ctx, "publishing Zoom webhook event to JetStream",
		"subject", subject,
		"event_type", message.EventType,
		"event_ts", message.EventTS,
	)

	return m.publishDurable(ctx, subject, messageBytes, webhookMsgID(message.EventType, messageBytes))
}

func webhookMsgID(eventType string, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("zoom-%s-%s", eventType, hex.EncodeToString(sum[:16]))
}

// SendNotificationCreated announces a stored notification record on core NATS.
func (m *MessageBuilder) SendNotificationCreated(ctx context.Context, record *models.NotificationRecord) error {
	dataBytes, err := json.Marshal(record)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling data into JSON", logging.ErrKey, err)
		return err
	}

	return m.sendMessage(ctx, models.NotificationCreatedSubject, dataBytes)
}
