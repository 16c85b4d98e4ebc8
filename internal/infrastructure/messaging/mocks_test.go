// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// MockNATSConn is a mock implementation of INatsConn
type MockNATSConn struct {
	mock.Mock
}

func (m *MockNATSConn) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNATSConn) Publish(subj string, data []byte) error {
	args := m.Called(subj, data)
	return args.Error(0)
}

// MockJetStream is a mock implementation of IJetStreamPublisher
type MockJetStream struct {
	mock.Mock
}

func (m *MockJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, payload, len(opts))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.PubAck), args.Error(1)
}

// MockNotificationPublisher is a mock implementation of NotificationPublisher
type MockNotificationPublisher struct {
	mock.Mock
}

func (m *MockNotificationPublisher) SendNotificationCreated(ctx context.Context, record *models.NotificationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// fakeMsg records how a JetStream message was settled.
type fakeMsg struct {
	jetstream.Msg

	subject      string
	data         []byte
	numDelivered uint64

	mu         sync.Mutex
	acked      bool
	naked      bool
	nakDelay   time.Duration
	terminated bool
	inProgress int
	settled    chan struct{}
}

func newFakeMsg(subject string, data []byte, numDelivered uint64) *fakeMsg {
	return &fakeMsg{subject: subject, data: data, numDelivered: numDelivered, settled: make(chan struct{}, 1)}
}

func (m *fakeMsg) Subject() string { return m.subject }
func (m *fakeMsg) Data() []byte    { return m.data }

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.numDelivered}, nil
}

func (m *fakeMsg) settle(fn func()) error {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	select {
	case m.settled <- struct{}{}:
	default:
	}
	return nil
}

func (m *fakeMsg) Ack() error {
	return m.settle(func() { m.acked = true })
}

func (m *fakeMsg) Nak() error {
	return m.settle(func() { m.naked = true })
}

func (m *fakeMsg) NakWithDelay(delay time.Duration) error {
	return m.settle(func() {
		m.naked = true
		m.nakDelay = delay
	})
}

func (m *fakeMsg) TermWithReason(string) error {
	return m.settle(func() { m.terminated = true })
}

func (m *fakeMsg) InProgress() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inProgress++
	return nil
}

// fakeConsumers captures the consume callback of a started consumer.
type fakeConsumers struct {
	config  jetstream.ConsumerConfig
	stream  string
	handler jetstream.MessageHandler
	stopped bool
}

func (f *fakeConsumers) CreateOrUpdateConsumer(_ context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	f.stream = stream
	f.config = cfg
	return &fakeConsumer{parent: f}, nil
}

type fakeConsumer struct {
	jetstream.Consumer
	parent *fakeConsumers
}

func (c *fakeConsumer) Consume(handler jetstream.MessageHandler, _ ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	c.parent.handler = handler
	return &fakeConsumeContext{parent: c.parent}, nil
}

type fakeConsumeContext struct {
	jetstream.ConsumeContext
	parent *fakeConsumers
}

func (c *fakeConsumeContext) Stop() { c.parent.stopped = true }
