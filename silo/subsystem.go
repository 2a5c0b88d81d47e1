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

package silo

import (
	"context"
)

// Subsystem is an auxiliary service whose life is bound to the silo.
// Subsystems start once the silo is Active and stop after its actors.
type Subsystem interface {
	// Name identifies the subsystem in logs and errors
	Name() string
	// Start starts the subsystem
	Start(ctx context.Context) error
	// Stop stops the subsystem
	Stop(ctx context.Context) error
}

type subsystem struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

// NewSubsystem builds a Subsystem from its start and stop functions.
// Either function may be nil.
func NewSubsystem(name string, start, stop func(ctx context.Context) error) Subsystem {
	return &subsystem{name: name, start: start, stop: stop}
}

func (s *subsystem) Name() string {
	return s.name
}

func (s *subsystem) Start(ctx context.Context) error {
	if s.start == nil {
		return nil
	}
	return s.start(ctx)
}

func (s *subsystem) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	return s.stop(ctx)
}
