// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
)

// INatsSubscriber is the core NATS interface needed for queue subscriptions.
type INatsSubscriber interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NatsMessage adapts a core NATS message to [domain.Message].
type NatsMessage struct {
	msg *nats.Msg
}

// Ensure NatsMessage implements domain.Message
var _ domain.Message = (*NatsMessage)(nil)

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

// Subject returns the subject the message was published on.
func (m *NatsMessage) Subject() string { return m.msg.Subject }

// Data returns the message payload.
func (m *NatsMessage) Data() []byte { return m.msg.Data }

// HasReply reports whether the publisher expects a reply.
func (m *NatsMessage) HasReply() bool { return m.msg.Reply != "" }

// Respond replies to a request.
func (m *NatsMessage) Respond(data []byte) error { return m.msg.Respond(data) }

// SubscribeHandler queue-subscribes handler to each subject under queue.
// Messages are handled on the subscription goroutine with ctx as the parent context.
func SubscribeHandler(ctx context.Context, nc INatsSubscriber, queue string, handler domain.MessageHandler, subjects ...string) ([]*nats.Subscription, error) {
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, NewNatsMessage(msg))
		})
		if err != nil {
			return subs, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		slog.DebugContext(ctx, "subscribed to NATS subject", "subject", subject, "queue", queue)
		subs = append(subs, sub)
	}
	return subs, nil
}
