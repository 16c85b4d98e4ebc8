// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// NATS Key-Value store bucket names
const (
	KVStoreNameLiveSessions  = "live-sessions"
	KVStoreNameEnrollments   = "live-session-enrollments"
	KVStoreNameNotifications = "live-session-notifications"
)

// maxCASAttempts bounds the read-modify-write loop of Mutate.
const maxCASAttempts = 5

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/store"

// INatsKeyValue is the subset of jetstream.KeyValue the repositories use.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsBaseRepository provides common NATS KV operations that can be reused across all repositories
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "live session", "enrollment")
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", operation),
		attribute.String("db.nats.entity", r.entityName),
	)
	if key != "" {
		attrs = append(attrs, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// fail records err on the span and returns it.
func fail(span trace.Span, err error, status string) error {
	span.RecordError(err)
	if status == "" {
		status = err.Error()
	}
	span.SetStatus(codes.Error, status)
	return err
}

func (r *NatsBaseRepository[T]) unavailable() error {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
}

// GetWithRevision retrieves an entity with its revision from NATS KV store
func (r *NatsBaseRepository[T]) GetWithRevision(ctx context.Context, key string) (*T, uint64, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, 0, fail(span, r.unavailable(), "")
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, fail(span, domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err), "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, 0, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err), "")
	}

	var entity T
	if err := json.Unmarshal(entry.Value(), &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error unmarshaling %s", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, 0, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to unmarshal %s data", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return &entity, entry.Revision(), nil
}

// Get retrieves and unmarshals an entity from NATS KV store
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	entity, _, err := r.GetWithRevision(ctx, key)
	return entity, err
}

// Put writes an entity regardless of the stored revision.
func (r *NatsBaseRepository[T]) Put(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Put(ctx, key, data); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error writing %s to NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to write %s to store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Create writes an entity only if the key does not exist yet.
// An existing key surfaces as a Conflict error.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Create(ctx, key, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fail(span, domain.NewConflictError(fmt.Sprintf("%s already exists", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error creating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to create %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Update writes an entity only if the stored revision still equals revision.
// A lost race surfaces as a Conflict error.
func (r *NatsBaseRepository[T]) Update(ctx context.Context, key string, entity *T, revision uint64) error {
	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Update(ctx, key, data, revision); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		if isRevisionMismatch(err) {
			return fail(span, domain.NewConflictError(fmt.Sprintf("%s has been modified", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error updating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return fail(span, domain.NewInternalError(fmt.Sprintf("failed to update %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Mutate runs a compare-and-set loop on key. mutate edits the entity in place
// and reports whether it changed anything; false ends the loop without a write.
// A revision conflict re-reads and re-applies mutate, up to maxCASAttempts times.
func (r *NatsBaseRepository[T]) Mutate(ctx context.Context, key string, mutate func(*T) bool) (bool, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		entity, revision, err := r.GetWithRevision(ctx, key)
		if err != nil {
			return false, err
		}

		if !mutate(entity) {
			return false, nil
		}

		err = r.Update(ctx, key, entity, revision)
		if err == nil {
			return true, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return false, err
		}

		slog.DebugContext(ctx, fmt.Sprintf("%s revision conflict, re-reading", r.entityName),
			"key", key,
			"attempt", attempt,
		)
	}

	return false, domain.NewConflictError(
		fmt.Sprintf("%s is under heavy concurrent modification", r.entityName))
}

// ListKeys lists every key of the bucket that starts with prefix.
func (r *NatsBaseRepository[T]) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "", attribute.String("db.nats.prefix", prefix))
	defer span.End()

	if !r.IsReady() {
		return nil, fail(span, r.unavailable(), "")
	}

	lister, err := r.kvStore.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			span.SetStatus(codes.Ok, "")
			return nil, nil
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err)
		return nil, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err), "")
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// ListEntities loads every entity whose key starts with prefix.
// Entries that fail to load are skipped.
func (r *NatsBaseRepository[T]) ListEntities(ctx context.Context, prefix string) ([]*T, error) {
	keys, err := r.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(keys))
	for _, key := range keys {
		entity, err := r.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("failed to get %s, skipping", r.entityName),
				"key", key, logging.ErrKey, err)
			continue
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// PutIndex creates an index entry in the store (stores empty value, key is used for indexing)
func (r *NatsBaseRepository[T]) PutIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if _, err := r.kvStore.Put(ctx, indexKey, []byte{}); err != nil {
		slog.ErrorContext(ctx, "error creating index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to create index", err)
	}
	return nil
}

// DeleteIndex removes an index entry. A missing entry is not an error.
func (r *NatsBaseRepository[T]) DeleteIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if err := r.kvStore.Delete(ctx, indexKey); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.ErrorContext(ctx, "error deleting index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to delete index", err)
	}
	return nil
}

// isRevisionMismatch matches the JetStream error returned when the expected
// last sequence of a subject does not hold.
func isRevisionMismatch(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return strings.Contains(err.Error(), "wrong last sequence")
}
