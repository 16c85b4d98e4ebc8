// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// AuthorizationHeader is the header name for the authorization
	AuthorizationHeader string = "authorization"

	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// ContentTypeHeader is the header name for the body media type
	ContentTypeHeader string = "Content-Type"

	// ContentTypeJSON is the media type of every JSON body the service writes
	ContentTypeJSON string = "application/json"
)

// Zoom webhook headers
const (
	// ZoomSignatureHeader carries "v0=" followed by the hex HMAC of the request
	ZoomSignatureHeader string = "x-zm-signature"

	// ZoomTimestampHeader carries the unix seconds the signature was computed at
	ZoomTimestampHeader string = "x-zm-request-timestamp"

	// ZoomSignaturePrefix is the version prefix of the signature and of the signed message
	ZoomSignaturePrefix string = "v0"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// contextAuthorization is the type for the authorization context key
type contextAuthorization string

// AuthorizationContextID is the context ID for the authorization
const AuthorizationContextID contextAuthorization = "authorization"

// contextPrincipal is the type for the principal context key
type contextPrincipal string

// PrincipalContextID is the context ID for the authenticated operator
const PrincipalContextID contextPrincipal = "principal"
