// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent provides bounded fan-out helpers.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many functions run at the same time.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool that runs at most workerCount functions at once.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Size returns the concurrency limit of the pool.
func (wp *WorkerPool) Size() int {
	return wp.workerCount
}

// Run executes all functions and returns the first error.
// The first failure cancels the functions that have not started yet.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return fn()
		})
	}

	return g.Wait()
}

// RunAll executes every function regardless of failures and returns the
// non-nil errors in the order the functions were given.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	results := make([]error, len(functions))

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for i, fn := range functions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = fn()
			return nil
		})
	}

	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Failure pairs an item with the error its function returned.
type Failure[T any] struct {
	Item T
	Err  error
}

// ForEach applies fn to every item through the pool without stopping on
// failures, and reports the items whose call failed.
func ForEach[T any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) error) []Failure[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]error, len(items))
	started := make([]bool, len(items))
	functions := make([]func() error, len(items))
	for i, item := range items {
		functions[i] = func() error {
			started[i] = true
			results[i] = fn(ctx, item)
			return results[i]
		}
	}

	wp.RunAll(ctx, functions...)

	var failures []Failure[T]
	for i, item := range items {
		switch {
		case !started[i]:
			failures = append(failures, Failure[T]{Item: item, Err: ctx.Err()})
		case results[i] != nil:
			failures = append(failures, Failure[T]{Item: item, Err: results[i]})
		}
	}
	return failures
}
