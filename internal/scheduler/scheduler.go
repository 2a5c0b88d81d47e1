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

// Package scheduler runs periodic and one-shot background jobs on top of go-quartz.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/log"
)

// ErrSchedulerNotStarted is returned when a job is scheduled before Start
var ErrSchedulerNotStarted = errors.New("scheduler is not started")

// Scheduler wraps a quartz scheduler with keyed jobs
type Scheduler struct {
	mu          sync.Mutex
	quartz      quartz.Scheduler
	started     *atomic.Bool
	logger      log.Logger
	stopTimeout time.Duration
}

// New creates an instance of Scheduler
func New(logger log.Logger, stopTimeout time.Duration) *Scheduler {
	// quartz logs are noisy and carry nothing we do not log ourselves
	qs, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Scheduler{
		quartz:      qs,
		started:     atomic.NewBool(false),
		logger:      logger,
		stopTimeout: stopTimeout,
	}
}

// Start starts the scheduler
func (x *Scheduler) Start(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.started.Load() {
		return
	}
	x.quartz.Start(ctx)
	x.started.Store(x.quartz.IsStarted())
}

// Stop clears every job, stops the scheduler and waits for running jobs
func (x *Scheduler) Stop(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.started.Load() {
		return
	}

	_ = x.quartz.Clear()
	x.quartz.Stop()
	x.started.Store(false)

	ctx, cancel := context.WithTimeout(ctx, x.stopTimeout)
	defer cancel()
	x.quartz.Wait(ctx)
}

// Every runs fn every interval under key until the scheduler stops
func (x *Scheduler) Every(key string, interval time.Duration, fn func(ctx context.Context) error) error {
	return x.schedule(key, fn, quartz.NewSimpleTrigger(interval))
}

// Once runs fn once after delay. Scheduling a key that is still pending fails.
func (x *Scheduler) Once(key string, delay time.Duration, fn func(ctx context.Context) error) error {
	return x.schedule(key, fn, quartz.NewRunOnceTrigger(delay))
}

func (x *Scheduler) schedule(key string, fn func(ctx context.Context) error, trigger quartz.Trigger) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return ErrSchedulerNotStarted
	}

	logger := x.logger
	fnJob := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		if err := fn(ctx); err != nil {
			logger.Warnf("scheduled job %s failed: %v", key, err)
			return false, err
		}
		return true, nil
	})

	detail := quartz.NewJobDetail(fnJob, quartz.NewJobKey(key))
	return x.quartz.ScheduleJob(detail, trigger)
}
