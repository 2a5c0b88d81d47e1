// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package future provides a single-assignment completion cell awaited with a context.
package future

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrFutureTimeout is returned when the future times out
var ErrFutureTimeout = errors.New("future timeout")

// ErrFutureCanceled is returned when the promise is canceled before completion
var ErrFutureCanceled = errors.New("future canceled")

// Result defines the future result
type Result[T any] interface {
	// Success returns the successful result of the future
	Success() T
	// Failure returns the error
	Failure() error
}

type result[T any] struct {
	success T
	failure error
}

func (x *result[T]) Success() T {
	return x.success
}

func (x *result[T]) Failure() error {
	return x.failure
}

// Future is the read side of a Promise
type Future[T any] interface {
	// Await blocks until the future completes or ctx is done
	Await(ctx context.Context) Result[T]
	// AwaitTimeout blocks until the future completes or the timeout elapses
	AwaitTimeout(timeout time.Duration) Result[T]
	// Done is closed once the future completes
	Done() <-chan struct{}
}

// Promise is completed exactly once by its producer.
type Promise[T any] struct {
	once   sync.Once
	done   chan struct{}
	result *result[T]
}

var _ Future[int] = (*Promise[int])(nil)

// NewPromise creates an uncompleted Promise
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Complete resolves the promise with value.
// It reports false when the promise was already completed.
func (p *Promise[T]) Complete(value T) bool {
	return p.settle(&result[T]{success: value})
}

// Fail resolves the promise with err.
// It reports false when the promise was already completed.
func (p *Promise[T]) Fail(err error) bool {
	return p.settle(&result[T]{failure: err})
}

// Cancel fails the promise with ErrFutureCanceled
func (p *Promise[T]) Cancel() bool {
	return p.Fail(ErrFutureCanceled)
}

// Future returns the read side of the promise
func (p *Promise[T]) Future() Future[T] {
	return p
}

// Done is closed once the promise completes
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Await returns the result or the context error
func (p *Promise[T]) Await(ctx context.Context) Result[T] {
	select {
	case <-p.done:
		return p.result
	default:
	}

	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return &result[T]{failure: ctx.Err()}
	}
}

// AwaitTimeout returns the result or ErrFutureTimeout
func (p *Promise[T]) AwaitTimeout(timeout time.Duration) Result[T] {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.result
	case <-timer.C:
		return &result[T]{failure: ErrFutureTimeout}
	}
}

func (p *Promise[T]) settle(r *result[T]) bool {
	settled := false
	p.once.Do(func() {
		p.result = r
		close(p.done)
		settled = true
	})
	return settled
}
