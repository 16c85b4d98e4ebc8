// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/middleware"
)

// HTTP routes served by the live session API.
const (
	livezPath             = "/livez"
	readyzPath            = "/readyz"
	replayRecordingPath   = "/operator/webhooks/zoom/replay"
	forceParticipantsPath = "/operator/sessions/{id}/participants"
)

// newHandler mounts the API routes and wraps them in the middleware chain.
func newHandler(svc *LiveSessionAPI) http.Handler {
	mux := goahttp.NewMuxer()
	svc.vars = mux.Vars

	mux.Handle(http.MethodPost, middleware.ZoomWebhookPath, svc.ZoomWebhook)
	mux.Handle(http.MethodGet, livezPath, svc.Livez)
	mux.Handle(http.MethodGet, readyzPath, svc.Readyz)
	mux.Handle(http.MethodPost, replayRecordingPath, svc.ReplayRecording)
	mux.Handle(http.MethodPost, forceParticipantsPath, svc.ForceParticipants)

	var handler http.Handler = mux

	// Add HTTP middleware
	// Note: Order matters - RequestIDMiddleware should come first in the chain,
	// so it should be the last middleware added to the handler since it is executed in reverse order.
	// The body capture runs innermost so the signature is checked against the exact bytes received.
	handler = middleware.WebhookBodyCaptureMiddleware()(handler)
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = middleware.AuthorizationMiddleware()(handler)

	return otelhttp.NewHandler(handler, "live-session-api")
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, svc *LiveSessionAPI, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHandler(svc),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
