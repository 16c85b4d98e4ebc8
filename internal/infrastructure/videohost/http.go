// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package videohost implements the video hosting backends recordings are ingested into.
package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

const (
	// DefaultHTTPTimeout bounds a single fetch request to the video host.
	DefaultHTTPTimeout = 60 * time.Second
	// DefaultMaxRetries is how many times a request the host did not accept
	// (429, 503 or a failed dial) is retried. The fetch is not idempotent, so
	// other failures are not retried.
	DefaultMaxRetries = 2
	// DefaultRetryBackoff is the wait before the first retry; it doubles per attempt.
	DefaultRetryBackoff = 500 * time.Millisecond

	accessKeyHeader = "AccessKey"
	fetchPath       = "/videos/fetch"
)

// HTTPConfig configures the fetch-from-URL video host.
type HTTPConfig struct {
	BaseURL   string
	AccessKey string
	Timeout   time.Duration
	// MaxRetries defaults to DefaultMaxRetries; a negative value disables retries.
	MaxRetries   int
	RetryBackoff time.Duration
}

// HTTPVideoHost asks a video hosting API to pull a recording from a remote URL.
// The recording bytes never pass through this service.
type HTTPVideoHost struct {
	client *http.Client
	config HTTPConfig
}

var _ domain.VideoHost = (*HTTPVideoHost)(nil)

type fetchRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type fetchResponse struct {
	GUID    string `json:"guid"`
	ID      string `json:"id"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewHTTPVideoHost creates the HTTP video host client
func NewHTTPVideoHost(config HTTPConfig) *HTTPVideoHost {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultHTTPTimeout
	}
	switch {
	case config.MaxRetries == 0:
		config.MaxRetries = DefaultMaxRetries
	case config.MaxRetries < 0:
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}

	return &HTTPVideoHost{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config: config,
	}
}

// IngestFromURL submits the remote URL for ingestion and returns the media id.
func (h *HTTPVideoHost) IngestFromURL(ctx context.Context, url string, title string) (*models.IngestResult, error) {
	if url == "" {
		return nil, domain.NewValidationError("recording url is required")
	}

	body, err := json.Marshal(fetchRequest{URL: url, Title: title})
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal fetch request", err)
	}

	var lastErr error
	backoff := h.config.RetryBackoff
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "video host fetch failed, retrying",
				"attempt", attempt,
				"backoff", backoff.String(),
				logging.ErrKey, lastErr)
			select {
			case <-ctx.Done():
				return nil, domain.NewUnavailableError("video host fetch cancelled", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, retry, err := h.fetch(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, domain.NewUnavailableError(
		fmt.Sprintf("video host fetch failed after %d attempts", h.config.MaxRetries+1), lastErr)
}

// fetch performs one attempt and reports whether a failure may be retried.
func (h *HTTPVideoHost) fetch(ctx context.Context, body []byte) (*models.IngestResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.BaseURL+fetchPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, domain.NewInternalError("failed to create fetch request", err)
	}
	req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	req.Header.Set("Accept", constants.ContentTypeJSON)
	req.Header.Set(accessKeyHeader, h.config.AccessKey)

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, domain.NewUnavailableError("video host fetch cancelled", err)
		}
		if isDialError(err) {
			return nil, true, err
		}
		// the host may have accepted the fetch before the connection broke
		return nil, false, domain.NewUnavailableError("video host fetch outcome unknown", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, domain.NewUnavailableError("failed to read video host response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, true, fmt.Errorf("video host returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, false, domain.NewUnavailableError(
			fmt.Sprintf("video host returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, domain.NewUnauthorizedError(fmt.Sprintf("video host rejected the access key (status %d)", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, false, domain.NewValidationError(
			fmt.Sprintf("video host rejected the fetch request (status %d): %s", resp.StatusCode, strings.TrimSpace(string(payload))))
	}

	var parsed fetchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, false, domain.NewInternalError("failed to decode video host response", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		return nil, false, domain.NewInternalError(fmt.Sprintf("video host reported failure: %s", parsed.Message))
	}

	mediaID := utils.FirstNonEmpty(parsed.GUID, parsed.ID)
	if mediaID == "" {
		return nil, false, domain.NewInternalError("video host accepted the fetch without a media id", domain.ErrMissingMediaID)
	}
	return &models.IngestResult{MediaID: mediaID}, false, nil
}

// isDialError reports whether err happened before the request reached the host.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
