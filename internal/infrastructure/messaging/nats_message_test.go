// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
)

type fakeSubscriber struct {
	handlers map[string]nats.MsgHandler
	queues   map[string]string
	failOn   string
}

func (f *fakeSubscriber) QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if subj == f.failOn {
		return nil, errors.New("subscription refused")
	}
	f.handlers[subj] = cb
	f.queues[subj] = queue
	return &nats.Subscription{Subject: subj, Queue: queue}, nil
}

type recordingHandler struct {
	got []domain.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg domain.Message) {
	h.got = append(h.got, msg)
}

func (h *recordingHandler) HandlerReady() bool { return true }

func TestNatsMessage(t *testing.T) {
	msg := NewNatsMessage(&nats.Msg{Subject: "a.b", Data: []byte("hi"), Reply: "_INBOX.1"})

	assert.Equal(t, "a.b", msg.Subject())
	assert.Equal(t, []byte("hi"), msg.Data())
	assert.True(t, msg.HasReply())
	assert.False(t, NewNatsMessage(&nats.Msg{Subject: "a.b"}).HasReply())
}

func TestSubscribeHandler(t *testing.T) {
	sub := &fakeSubscriber{handlers: map[string]nats.MsgHandler{}, queues: map[string]string{}}
	handler := &recordingHandler{}

	subs, err := SubscribeHandler(context.Background(), sub, "q", handler, "one", "two")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Equal(t, "q", sub.queues["one"])

	sub.handlers["two"](&nats.Msg{Subject: "two", Data: []byte("x")})
	require.Len(t, handler.got, 1)
	assert.Equal(t, "two", handler.got[0].Subject())
}

func TestSubscribeHandler_Error(t *testing.T) {
	sub := &fakeSubscriber{handlers: map[string]nats.MsgHandler{}, queues: map[string]string{}, failOn: "two"}

	subs, err := SubscribeHandler(context.Background(), sub, "q", &recordingHandler{}, "one", "two")
	require.Error(t, err)
	assert.Len(t, subs, 1)
}
