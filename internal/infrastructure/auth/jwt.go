// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package auth validates the Heimdall-issued bearer tokens that guard the
// operator endpoints.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

const (
	// PS256 is the default for Heimdall's JWT finalizer.
	PS256 = validator.PS256

	defaultIssuer   = "heimdall"
	defaultAudience = "lfx-v2-live-session-service"
	defaultJWKSURL  = "http://heimdall:4457/.well-known/jwks"

	jwksCacheTTL   = 5 * time.Minute
	allowedSkew    = 5 * time.Second
	principalClaim = "principal"
)

// IJWTAuth parses the principal out of a bearer token.
type IJWTAuth interface {
	ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error)
}

// HeimdallClaims contains extra custom claims we want to parse from the JWT
// token.
type HeimdallClaims struct {
	Principal string `json:"principal"`
	Email     string `json:"email,omitempty"`
}

// Validate provides additional middleware validation of any claims defined in
// HeimdallClaims.
func (c *HeimdallClaims) Validate(_ context.Context) error {
	if c.Principal == "" {
		return fmt.Errorf("%s must be provided", principalClaim)
	}
	return nil
}

// JWTAuthConfig holds the JWT validation settings.
type JWTAuthConfig struct {
	// JWKSURL is the Heimdall JWKS endpoint.
	JWKSURL string
	// Audience is the expected token audience.
	Audience string
	// MockLocalPrincipal bypasses validation and returns this principal. Local development only.
	MockLocalPrincipal string
}

// JWTAuth validates Heimdall JWTs.
type JWTAuth struct {
	validator *validator.Validator
	config    JWTAuthConfig
}

// Ensure JWTAuth implements IJWTAuth
var _ IJWTAuth = (*JWTAuth)(nil)

// NewJWTAuth creates a validator backed by a caching JWKS provider.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultJWKSURL
	}
	if config.Audience == "" {
		config.Audience = defaultAudience
	}

	jwksURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS URL: %w", err)
	}

	issuer, err := url.Parse(defaultIssuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer: %w", err)
	}

	provider := jwks.NewCachingProvider(issuer, jwksCacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	customClaims := func() validator.CustomClaims {
		return &HeimdallClaims{}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		PS256,
		issuer.String(),
		[]string{config.Audience},
		validator.WithCustomClaims(customClaims),
		validator.WithAllowedClockSkew(allowedSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the JWT validator: %w", err)
	}

	return &JWTAuth{
		validator: jwtValidator,
		config:    config,
	}, nil
}

// ParsePrincipal validates token and returns its principal claim.
func (j *JWTAuth) ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error) {
	if j.config.MockLocalPrincipal != "" {
		logger.InfoContext(ctx, "JWT validation is disabled, using mock principal",
			"principal", j.config.MockLocalPrincipal,
		)
		return j.config.MockLocalPrincipal, nil
	}

	if j.validator == nil {
		return "", domain.NewUnavailableError("JWT validator is not set up")
	}

	parsed, err := j.validator.ValidateToken(ctx, token)
	if err != nil {
		logger.WarnContext(ctx, "JWT validation failed", logging.ErrKey, err)
		return "", domain.NewUnauthorizedError("invalid bearer token", err)
	}

	claims, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return "", domain.NewUnauthorizedError("unexpected token claims")
	}

	custom, ok := claims.CustomClaims.(*HeimdallClaims)
	if !ok || custom.Principal == "" {
		return "", domain.NewUnauthorizedError("token has no principal")
	}

	return custom.Principal, nil
}
