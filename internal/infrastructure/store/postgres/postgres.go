// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package postgres stores live sessions, enrollments and notifications in
// PostgreSQL. Conditional writes are single UPDATE statements guarded by
// the expected status, so the database provides the compare-and-set.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/store/postgres"

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Querier is the subset of *pgxpool.Pool the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// NewPool creates a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL connection pool established",
		"host", config.ConnConfig.Host,
		"database", config.ConnConfig.Database,
		"max_conns", config.MaxConns,
	)
	return pool, nil
}

// Migrate runs the embedded SQL migrations in file name order.
// Every migration is written to be safe to re-run.
func Migrate(ctx context.Context, db Querier) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		slog.DebugContext(ctx, "applied migration", "name", name)
	}
	return nil
}

func startSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "postgres."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// mapError converts a pgx failure into a domain error and records it on the span.
func mapError(span trace.Span, err error, message string) error {
	var domainErr error
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		domainErr = domain.NewNotFoundError(message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		domainErr = domain.NewUnavailableError(message, err)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		domainErr = domain.NewConflictError(message, err)
	case pgconn.SafeToRetry(err):
		domainErr = domain.NewUnavailableError(message, err)
	default:
		domainErr = domain.NewInternalError(message, err)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return domainErr
}
