// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// Store backends selectable with STORE_BACKEND.
const (
	storeBackendNATS     = "nats"
	storeBackendPostgres = "postgres"
)

// Video host backends selectable with VIDEO_HOST_BACKEND.
const (
	videoHostBackendHTTP = "http"
	videoHostBackendS3   = "s3"
)

// flags are the command line flags for the live session service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the live session service.
type environment struct {
	Port                     string
	NATSURL                  string
	NATSTimeout              time.Duration
	NATSMaxReconnect         int
	NATSReconnectWait        time.Duration
	StoreBackend             string
	DatabaseURL              string
	VideoHost                videoHostConfig
	IngestionTimeout         time.Duration
	ParticipantBackfillDelay time.Duration
	NotificationWorkers      int
	// TaskMaxAckPending caps in-flight backfill tasks; deferred tasks count against it.
	TaskMaxAckPending int
}

// videoHostConfig holds the video host backend configuration
type videoHostConfig struct {
	Backend   string
	BaseURL   string
	AccessKey string
	Timeout   time.Duration
	S3        s3Config
}

// s3Config holds the S3 video host configuration
type s3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// parseFlags parses command line flags for the live session service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the live session service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	storeBackend := os.Getenv("STORE_BACKEND")
	switch storeBackend {
	case storeBackendPostgres:
	case "", storeBackendNATS:
		storeBackend = storeBackendNATS
	default:
		slog.Error("invalid STORE_BACKEND, expected nats or postgres", "value", storeBackend)
		os.Exit(1)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if storeBackend == storeBackendPostgres && databaseURL == "" {
		slog.Error("DATABASE_URL environment variable is required when STORE_BACKEND is postgres")
		os.Exit(1)
	}

	return environment{
		Port:                     port,
		NATSURL:                  natsURL,
		NATSTimeout:              durationEnv("NATS_TIMEOUT", 10*time.Second),
		NATSMaxReconnect:         intEnv("NATS_MAX_RECONNECT", 3),
		NATSReconnectWait:        durationEnv("NATS_RECONNECT_WAIT", 2*time.Second),
		StoreBackend:             storeBackend,
		DatabaseURL:              databaseURL,
		VideoHost:                parseVideoHostConfig(),
		IngestionTimeout:         durationEnv("INGESTION_TIMEOUT", 30*time.Minute),
		ParticipantBackfillDelay: durationEnv("PARTICIPANT_BACKFILL_DELAY", 30*time.Minute),
		NotificationWorkers:      intEnv("NOTIFICATION_WORKERS", 10),
		TaskMaxAckPending:        taskMaxAckPending(),
	}
}

// parseVideoHostConfig parses the video host configuration from environment variables
func parseVideoHostConfig() videoHostConfig {
	backend := os.Getenv("VIDEO_HOST_BACKEND")
	if backend == "" {
		backend = videoHostBackendHTTP
	}
	if backend != videoHostBackendHTTP && backend != videoHostBackendS3 {
		slog.Error("invalid VIDEO_HOST_BACKEND, expected http or s3", "value", backend)
		os.Exit(1)
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-2"
	}

	return videoHostConfig{
		Backend:   backend,
		BaseURL:   os.Getenv("VIDEO_HOST_BASE_URL"),
		AccessKey: os.Getenv("VIDEO_HOST_ACCESS_KEY"),
		Timeout:   durationEnv("VIDEO_HOST_TIMEOUT", 0),
		S3: s3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Prefix:          os.Getenv("S3_PREFIX"),
			Region:          region,
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
	}
}

// taskMaxAckPending reads TASK_MAX_ACK_PENDING. Unset or zero leaves the
// task consumer uncapped.
func taskMaxAckPending() int {
	if n := intEnv("TASK_MAX_ACK_PENDING", 0); n > 0 {
		return n
	}
	return messaging.UnlimitedAckPending
}

// durationEnv reads a Go duration, falling back to def when unset or invalid.
func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", def.String())
		return def
	}
	return d
}

func intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("invalid integer, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return n
}
