// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the live session service. It accepts Zoom webhooks over
// HTTP, queues them on JetStream and drives the live session lifecycle from
// the queued events.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-live-session-service/cmd/live-session-api/platforms"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

// Durable consumer names.
const (
	webhookConsumerName = "live-session-webhooks"
	taskConsumerName    = "live-session-tasks"
)

// gracefulShutdownSeconds should be higher than NATS client
// request timeout, and lower than the pod or liveness probe's
// terminationGracePeriodSeconds.
const gracefulShutdownSeconds = 25

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}

	// Set up JWT validator needed by the operator endpoints.
	jwtAuth, err := setupJWTAuth()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
		os.Exit(1)
	}

	// Initialize platform providers
	zoomProvider, zoomValidator := platforms.SetupZoom(platforms.NewZoomConfigFromEnv())

	videoHost, err := setupVideoHost(ctx, env.VideoHost)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up video host")
		os.Exit(1)
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		os.Exit(1)
	}

	js, err := setupJetStream(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JetStream")
		os.Exit(1)
	}

	repos, err := getRepositories(ctx, env, js)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up repositories")
		os.Exit(1)
	}

	// Initialize services
	serviceConfig := service.ServiceConfig{
		ParticipantBackfillDelay: env.ParticipantBackfillDelay,
		IngestionTimeout:         env.IngestionTimeout,
		NotificationWorkers:      env.NotificationWorkers,
	}
	messageBuilder := messaging.NewMessageBuilder(natsConn, js)
	backfillScheduler := messaging.NewBackfillScheduler(messageBuilder)
	notificationSink := messaging.NewNotificationSink(repos.Notifications, messageBuilder)

	ingestion := service.NewIngestionPipeline(zoomProvider, videoHost, serviceConfig.IngestionTimeout)
	fanout := service.NewNotificationFanout(repos.Enrollments, notificationSink, serviceConfig.NotificationWorkers)
	controller := service.NewLiveSessionController(
		repos.Sessions,
		ingestion,
		fanout,
		backfillScheduler,
		serviceConfig,
	)
	backfillService := service.NewParticipantBackfillService(repos.Sessions, zoomProvider)
	syncService := service.NewSessionSyncService(repos.Sessions, repos.Enrollments)
	operatorService := service.NewOperatorService(controller, backfillService)
	webhookService := service.NewZoomWebhookService(messageBuilder, zoomValidator)
	authService := service.NewAuthService(jwtAuth)

	// Initialize handlers
	zoomWebhookHandler := handlers.NewZoomWebhookHandler(controller)
	taskHandler := handlers.NewTaskHandler(backfillService)
	syncHandlers := handlers.NewSyncHandlers(syncService)

	consumers := []*messaging.JetStreamConsumer{
		messaging.NewJetStreamConsumer(js, messaging.ConsumerConfig{
			Stream:        models.WebhookStreamName,
			Durable:       webhookConsumerName,
			FilterSubject: models.ZoomWebhookSubjectWildcard,
		}, zoomWebhookHandler.ProcessEvent),
		messaging.NewJetStreamConsumer(js, messaging.ConsumerConfig{
			Stream:        models.TaskStreamName,
			Durable:       taskConsumerName,
			FilterSubject: models.TaskSubjectWildcard,
			MaxAckPending: env.TaskMaxAckPending,
		}, taskHandler.ProcessTask),
	}
	for _, consumer := range consumers {
		if err := consumer.Start(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("error starting JetStream consumer")
			os.Exit(1)
		}
	}

	// Create NATS subscriptions for the service.
	_, err = messaging.SubscribeHandler(ctx, natsConn, models.LiveSessionsAPIQueue, syncHandlers,
		models.SessionScheduledSubject,
		models.EnrollmentUpdatedSubject,
	)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		os.Exit(1)
	}

	svc := NewLiveSessionAPI(
		webhookService,
		operatorService,
		authService,
		natsReadiness(natsConn),
		repos.Sessions.IsReady,
		handlerReadiness(zoomWebhookHandler, taskHandler),
	)

	httpServer := setupHTTPServer(flags, svc, &gracefulCloseWG)

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, consumers, natsConn, repos, otelShutdown, &gracefulCloseWG, cancel)
}

// natsReadiness fails while the NATS connection is down.
func natsReadiness(nc *nats.Conn) ReadinessCheck {
	return func(context.Context) error {
		if !nc.IsConnected() {
			return domain.NewUnavailableError("NATS is not connected")
		}
		return nil
	}
}

type readyHandler interface {
	HandlerReady() bool
}

// handlerReadiness fails while a queue handler lacks its collaborators, e.g.
// when the Zoom API credentials are missing.
func handlerReadiness(handlers ...readyHandler) ReadinessCheck {
	return func(context.Context) error {
		for _, h := range handlers {
			if !h.HandlerReady() {
				return domain.NewUnavailableError("queue handler not ready")
			}
		}
		return nil
	}
}

// gracefulShutdown stops intake first, lets in-flight work finish, then
// releases the connections.
func gracefulShutdown(
	httpServer interface{ Shutdown(context.Context) error },
	consumers []*messaging.JetStreamConsumer,
	natsConn *nats.Conn,
	repos *repositories,
	otelShutdown func(context.Context) error,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
) {
	slog.Info("graceful shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	// Stop accepting webhooks.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("http shutdown error")
	}
	// The HTTP goroutine does not decrement the wait group itself.
	gracefulCloseWG.Done()

	// Stop pulling queued events and wait for in-flight handlers.
	for _, consumer := range consumers {
		if err := consumer.Stop(shutdownCtx); err != nil {
			slog.With(logging.ErrKey, err).Warn("JetStream consumer did not stop cleanly")
		}
	}

	// Cancelling the base context marks the upcoming NATS close as expected.
	cancel()
	if !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			natsConn.Close()
		}
	}

	if repos != nil && repos.pool != nil {
		repos.pool.Close()
	}

	// Wait for HTTP and NATS to close, bounded by the shutdown timeout.
	waitDone := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-shutdownCtx.Done():
		slog.Warn("graceful shutdown timed out")
	}

	if err := otelShutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
	}
	slog.Info("graceful shutdown complete")
}
