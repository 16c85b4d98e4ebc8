// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// ClientAPI defines the Zoom API operations the service relies on
type ClientAPI interface {
	GetMeetingRecordings(ctx context.Context, meetingUUID string) (*MeetingRecordings, error)
	ListPastMeetingParticipants(ctx context.Context, meetingID string, pageSize int, nextPageToken string) (*ParticipantsPage, error)
}

const (
	// BaseURL is the base URL for Zoom API
	BaseURL = "https://api.zoom.us/v2"
	// AuthURL is the OAuth token endpoint
	AuthURL = "https://zoom.us/oauth/token"
	// DefaultClientTimeout is the default HTTP client timeout for Zoom API requests
	DefaultClientTimeout = 30 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0

	maxErrorBodyBytes = 4096
)

// Client represents a Zoom API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// Config holds the configuration for the Zoom client
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override auth URL for testing
	AuthURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// IsConfigured reports whether the server-to-server OAuth credentials are present.
func (c Config) IsConfigured() bool {
	return c.AccountID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// APIError is a non-2xx response from the Zoom API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("zoom API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("zoom API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a Zoom 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Ensure that Client implements ClientAPI
var _ ClientAPI = (*Client)(nil)

// NewClient creates a new Zoom API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = AuthURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}

	// Zoom Server-to-Server OAuth uses the account_credentials grant.
	oauthConfig := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.AuthURL,
		EndpointParams: url.Values{
			"grant_type": []string{"account_credentials"},
			"account_id": []string{config.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	// The token source caches the access token until it expires.
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &oauth2.Transport{
				Base:   otelhttp.NewTransport(http.DefaultTransport),
				Source: oauthConfig.TokenSource(context.Background()),
			},
		},
		config: config,
	}
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	withJitter := time.Duration(backoff + jitter)
	if withJitter < c.config.InitialBackoff {
		withJitter = c.config.InitialBackoff
	}
	return withJitter
}

// doRequest performs an authenticated request, retrying transport errors, 5xx and 429.
// Any other response is returned to the caller with its body unread.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt - 1)
			slog.WarnContext(ctx, "Zoom API request failed, retrying",
				"method", method,
				"path", path,
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff.String(),
				logging.ErrKey, lastErr)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}

		if err == nil && !shouldRetry(statusCode, nil) {
			slog.DebugContext(ctx, "Zoom API request completed",
				"method", method,
				"path", path,
				"status", statusCode,
				"duration", duration.String(),
				"attempt", attempt+1,
			)
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = readAPIError(resp)
		}

		if !shouldRetry(statusCode, err) {
			slog.ErrorContext(ctx, "Zoom API request failed (not retryable)",
				"method", method,
				"path", path,
				"duration", duration.String(),
				logging.ErrKey, lastErr)
			return nil, lastErr
		}
	}

	slog.ErrorContext(ctx, "Zoom API request failed after all retries",
		"method", method,
		"path", path,
		"attempts", c.config.MaxRetries+1,
		logging.ErrKey, lastErr,
		logging.PriorityCritical())
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// getJSON issues a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Zoom API response: %w", err)
	}
	return nil
}

// readAPIError consumes and closes the body of an error response.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	return parseErrorResponse(resp.StatusCode, body)
}

// parseErrorResponse attempts to parse a Zoom API error response
func parseErrorResponse(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// escapeMeetingID encodes a meeting id or UUID for use as a path segment.
// UUIDs that begin with "/" or contain "//" must be encoded twice.
func escapeMeetingID(id string) string {
	escaped := url.PathEscape(id)
	if strings.HasPrefix(id, "/") || strings.Contains(id, "//") {
		escaped = url.PathEscape(escaped)
	}
	return escaped
}
