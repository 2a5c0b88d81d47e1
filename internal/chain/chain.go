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

// Package chain runs ordered lifecycle steps.
//
// A fail-fast chain stops at the first failing step and is used for startup.
// A run-all chain executes every step, logs each failure and combines them,
// which is what a best-effort shutdown needs.
package chain

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/quarkgo/quark/log"
)

// Runner is a named lifecycle step
type Runner func(ctx context.Context) error

// Chain defines an ordered list of named steps
type Chain struct {
	failFast bool
	ctx      context.Context
	logger   log.Logger
	err      error
	executed []string
}

// Option configures a chain at creation time.
type Option func(*Chain)

// New creates a new chain. Steps are executed in insertion order as they are added.
func New(opts ...Option) *Chain {
	chain := &Chain{
		ctx:    context.Background(),
		logger: log.DiscardLogger,
	}

	for _, opt := range opts {
		opt(chain)
	}

	return chain
}

// AddRunner executes the named step unless a fail-fast chain already failed.
func (c *Chain) AddRunner(name string, fn Runner) *Chain {
	if c.failFast && c.err != nil {
		return c
	}

	c.executed = append(c.executed, name)
	if err := fn(c.ctx); err != nil {
		err = fmt.Errorf("%s: %w", name, err)
		if !c.failFast {
			c.logger.Warnf("step %s failed: %v", name, err)
		}
		c.err = multierr.Append(c.err, err)
	}
	return c
}

// AddRunnerIf adds the step only when condition holds
func (c *Chain) AddRunnerIf(condition bool, name string, fn Runner) *Chain {
	if !condition {
		return c
	}
	return c.AddRunner(name, fn)
}

// Run returns the combined error of the executed steps
func (c *Chain) Run() error {
	return c.err
}

// Executed returns the names of the steps that ran, in order
func (c *Chain) Executed() []string {
	return append([]string(nil), c.executed...)
}

// WithFailFast stops the chain on the first error.
func WithFailFast() Option {
	return func(c *Chain) { c.failFast = true }
}

// WithRunAll runs every step and returns all errors.
func WithRunAll() Option {
	return func(c *Chain) { c.failFast = false }
}

// WithContext sets the context handed to each step
func WithContext(ctx context.Context) Option {
	return func(c *Chain) { c.ctx = ctx }
}

// WithLogger sets the logger used to report failing steps of a run-all chain
func WithLogger(logger log.Logger) Option {
	return func(c *Chain) { c.logger = logger }
}
