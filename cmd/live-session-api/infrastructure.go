// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/store/postgres"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/videohost"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// repositories groups the persistence backends used by the services.
type repositories struct {
	Sessions      domain.LiveSessionRepository
	Enrollments   domain.EnrollmentRepository
	Notifications domain.NotificationRepository
	// pool is set for the postgres backend and closed on shutdown.
	pool *pgxpool.Pool
}

// setupJWTAuth configures JWT authentication for the operator endpoints
func setupJWTAuth() (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            os.Getenv("JWKS_URL"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupNATS connects to NATS. A permanently closed connection ends the
// process through done so the orchestrator can restart it.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	slog.InfoContext(ctx, "connecting to NATS", "url", env.NATSURL)

	gracefulCloseWG.Add(1)
	conn, err := nats.Connect(
		env.NATSURL,
		nats.Name("lfx-v2-live-session-service"),
		nats.Timeout(env.NATSTimeout),
		nats.MaxReconnects(env.NATSMaxReconnect),
		nats.ReconnectWait(env.NATSReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.With(logging.ErrKey, err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			attrs := []any{logging.ErrKey, err}
			if sub != nil {
				attrs = append(attrs, "subject", sub.Subject)
			}
			slog.Error("NATS async error", attrs...)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			gracefulCloseWG.Done()
			// Draining during shutdown also closes the connection.
			if ctx.Err() != nil {
				return
			}
			slog.Error("NATS connection closed permanently")
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return conn, nil
}

// setupJetStream creates the JetStream context and makes sure the service's streams exist.
func setupJetStream(ctx context.Context, conn *nats.Conn) (jetstream.JetStream, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := messaging.EnsureStreams(streamCtx, js); err != nil {
		return nil, err
	}
	return js, nil
}

// getRepositories opens the configured store backend.
func getRepositories(ctx context.Context, env environment, js jetstream.JetStream) (*repositories, error) {
	switch env.StoreBackend {
	case storeBackendPostgres:
		return getPostgresRepositories(ctx, env.DatabaseURL)
	default:
		return getKeyValueStores(ctx, js)
	}
}

// getKeyValueStores binds the NATS KV buckets, creating them when missing.
func getKeyValueStores(ctx context.Context, js jetstream.JetStream) (*repositories, error) {
	buckets := map[string]jetstream.KeyValue{}
	for _, bucket := range []string{
		store.KVStoreNameLiveSessions,
		store.KVStoreNameEnrollments,
		store.KVStoreNameNotifications,
	} {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			History: 5,
			Storage: jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to bind KV bucket %s: %w", bucket, err)
		}
		buckets[bucket] = kv
	}

	return &repositories{
		Sessions:      store.NewNatsLiveSessionRepository(buckets[store.KVStoreNameLiveSessions]),
		Enrollments:   store.NewNatsEnrollmentRepository(buckets[store.KVStoreNameEnrollments]),
		Notifications: store.NewNatsNotificationRepository(buckets[store.KVStoreNameNotifications]),
	}, nil
}

// getPostgresRepositories opens the pool and applies the schema.
func getPostgresRepositories(ctx context.Context, databaseURL string) (*repositories, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &repositories{
		Sessions:      postgres.NewLiveSessionRepository(pool),
		Enrollments:   postgres.NewEnrollmentRepository(pool),
		Notifications: postgres.NewNotificationRepository(pool),
		pool:          pool,
	}, nil
}

// setupVideoHost builds the configured video host backend.
func setupVideoHost(ctx context.Context, config videoHostConfig) (domain.VideoHost, error) {
	switch config.Backend {
	case videoHostBackendS3:
		if config.S3.Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when VIDEO_HOST_BACKEND is s3")
		}
		return videohost.NewS3VideoHost(ctx, videohost.S3Config{
			Region:          config.S3.Region,
			Bucket:          config.S3.Bucket,
			Prefix:          config.S3.Prefix,
			Endpoint:        config.S3.Endpoint,
			AccessKeyID:     config.S3.AccessKeyID,
			SecretAccessKey: config.S3.SecretAccessKey,
		})
	default:
		if config.BaseURL == "" {
			return nil, errors.New("VIDEO_HOST_BASE_URL is required when VIDEO_HOST_BACKEND is http")
		}
		return videohost.NewHTTPVideoHost(videohost.HTTPConfig{
			BaseURL:   config.BaseURL,
			AccessKey: config.AccessKey,
			Timeout:   config.Timeout,
		}), nil
	}
}
