// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

const meterName = "github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"

// metrics holds the lifecycle counters. Instruments come from the global
// meter provider, which is a no-op until the OTel SDK is set up.
type metrics struct {
	transitions   metric.Int64Counter
	ingestions    metric.Int64Counter
	notifications metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}

	var err error
	if m.transitions, err = meter.Int64Counter("live_session.transitions",
		metric.WithDescription("Session status transitions applied by the lifecycle controller")); err != nil {
		slog.Warn("failed to create transitions counter", logging.ErrKey, err)
	}
	if m.ingestions, err = meter.Int64Counter("live_session.ingestions",
		metric.WithDescription("Recording ingestion attempts by outcome")); err != nil {
		slog.Warn("failed to create ingestions counter", logging.ErrKey, err)
	}
	if m.notifications, err = meter.Int64Counter("live_session.notifications",
		metric.WithDescription("Notification records emitted by kind and outcome")); err != nil {
		slog.Warn("failed to create notifications counter", logging.ErrKey, err)
	}
	return m
}

func (m *metrics) transition(ctx context.Context, event, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", event),
		attribute.String("status", to),
	))
}

func (m *metrics) ingestion(ctx context.Context, outcome string) {
	if m == nil || m.ingestions == nil {
		return
	}
	m.ingestions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) notification(ctx context.Context, kind, outcome string, n int) {
	if m == nil || m.notifications == nil || n == 0 {
		return
	}
	m.notifications.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
