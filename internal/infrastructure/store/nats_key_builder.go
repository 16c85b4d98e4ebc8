// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// Common key prefixes
const (
	// Entity prefixes
	KeyPrefixSession      = "session"
	KeyPrefixEnrollment   = "enrollment"
	KeyPrefixNotification = "notification"

	// Index prefixes
	KeyPrefixIndex                = "index"
	KeyPrefixIndexProviderMeeting = "provider_meeting"
	KeyPrefixIndexClass           = "class"
	KeyPrefixIndexUser            = "user"

	// encodedSegmentPrefix marks a key segment that had to be encoded.
	encodedSegmentPrefix = "b64-"
)

// validSegment matches values NATS KV accepts verbatim as one key segment.
// See https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
var validSegment = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds a key for an entity (e.g., "session/sess-123")
func (kb *KeyBuilder) EntityKey(entityType, id string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s", entityType, EncodeSegment(id)))
}

// IndexKey builds a key for an index (e.g., "index/provider_meeting/85746065/sess-123")
func (kb *KeyBuilder) IndexKey(indexType, indexValue, entityID string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s/%s",
		KeyPrefixIndex, indexType, EncodeSegment(indexValue), EncodeSegment(entityID)))
}

// IndexPrefix builds the key prefix shared by every entry of one index value,
// including the trailing separator.
func (kb *KeyBuilder) IndexPrefix(indexType, indexValue string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s/", KeyPrefixIndex, indexType, EncodeSegment(indexValue)))
}

// CompoundKey builds a compound key from multiple parts
func (kb *KeyBuilder) CompoundKey(parts ...string) string {
	encoded := make([]string, 0, len(parts))
	for _, part := range parts {
		encoded = append(encoded, EncodeSegment(part))
	}
	return kb.applyPrefix(strings.Join(encoded, "/"))
}

// IndexEntityID returns the entity id an index key points at.
func IndexEntityID(indexKey string) (string, error) {
	idx := strings.LastIndex(indexKey, "/")
	if idx < 0 || idx == len(indexKey)-1 {
		return "", fmt.Errorf("malformed index key %q", indexKey)
	}
	return DecodeSegment(indexKey[idx+1:])
}

// applyPrefix adds the builder's prefix if one is set
func (kb *KeyBuilder) applyPrefix(key string) string {
	if kb.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s/%s", kb.prefix, key)
}

// EncodeSegment returns value unchanged when it is a valid key segment, and
// a prefixed base64url form otherwise. Zoom meeting UUIDs may contain '/'
// and '+', neither of which can appear inside a segment.
func EncodeSegment(value string) string {
	if validSegment.MatchString(value) && !strings.HasPrefix(value, encodedSegmentPrefix) {
		return value
	}
	return encodedSegmentPrefix + base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeSegment reverses EncodeSegment.
func DecodeSegment(segment string) (string, error) {
	encoded, ok := strings.CutPrefix(segment, encodedSegmentPrefix)
	if !ok {
		return segment, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid encoded key segment %q: %w", segment, err)
	}
	return string(decoded), nil
}
