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

// Package workerpool runs mailbox turns on a bounded set of reusable goroutines.
//
// Workers are kept per shard and parked when idle. A parked worker that has not
// been reused within the idle lifetime exits. Tasks are never dropped: when no
// idle worker is available a new one is spawned.
package workerpool

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const maxShards = 128

// ErrPoolNotRunning is returned when a task is submitted to a pool that is not started or already stopped
var ErrPoolNotRunning = errors.New("worker pool is not running")

// WorkerPool is a sharded goroutine pool
type WorkerPool struct {
	idleLifetime time.Duration
	numShards    int
	shards       []*shard
	next         atomic.Uint64
	spawned      atomic.Int64
	running      atomic.Bool

	mu      sync.Mutex
	stopCh  chan struct{}
	cleaned sync.WaitGroup
	workers sync.WaitGroup
}

type worker struct {
	tasks    chan func()
	lastUsed time.Time
}

type shard struct {
	mu      sync.Mutex
	idle    []*worker
	stopped bool
}

// New creates a WorkerPool. Call Start before submitting work.
func New(opts ...Option) *WorkerPool {
	pool := &WorkerPool{
		idleLifetime: time.Second,
		numShards:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt.Apply(pool)
	}
	if pool.numShards > maxShards {
		pool.numShards = maxShards
	}
	return pool
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.running.Load() {
		return
	}

	wp.shards = make([]*shard, wp.numShards)
	for i := range wp.shards {
		wp.shards[i] = &shard{}
	}
	wp.stopCh = make(chan struct{})
	wp.running.Store(true)

	wp.cleaned.Add(1)
	go wp.cleanup(wp.stopCh)
}

// Stop stops the worker pool.
// Tasks already handed to a worker complete before the worker exits.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.running.Load() {
		wp.mu.Unlock()
		return
	}
	wp.running.Store(false)
	close(wp.stopCh)
	for _, s := range wp.shards {
		s.mu.Lock()
		s.stopped = true
		for _, w := range s.idle {
			close(w.tasks)
		}
		s.idle = nil
		s.mu.Unlock()
	}
	wp.mu.Unlock()

	wp.cleaned.Wait()
	wp.workers.Wait()
}

// SubmitWork runs task on a pooled worker
func (wp *WorkerPool) SubmitWork(task func()) error {
	if !wp.running.Load() {
		return ErrPoolNotRunning
	}

	s := wp.shards[wp.next.Inc()%uint64(len(wp.shards))]
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrPoolNotRunning
	}
	if n := len(s.idle); n > 0 {
		w := s.idle[n-1]
		s.idle[n-1] = nil
		s.idle = s.idle[:n-1]
		s.mu.Unlock()
		w.tasks <- task
		return nil
	}
	wp.workers.Add(1)
	s.mu.Unlock()

	w := &worker{tasks: make(chan func(), 1)}
	w.tasks <- task
	go wp.run(s, w)
	return nil
}

// SpawnedWorkers returns the number of live workers
func (wp *WorkerPool) SpawnedWorkers() int {
	return int(wp.spawned.Load())
}

func (wp *WorkerPool) run(s *shard, w *worker) {
	wp.spawned.Inc()
	defer func() {
		wp.spawned.Dec()
		wp.workers.Done()
	}()

	for task := range w.tasks {
		task()
		if !s.park(w) {
			return
		}
	}
}

// park returns the worker to the idle list. It reports false when the shard is stopped.
func (s *shard) park(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	w.lastUsed = time.Now()
	s.idle = append(s.idle, w)
	return true
}

func (wp *WorkerPool) cleanup(stop <-chan struct{}) {
	defer wp.cleaned.Done()
	ticker := time.NewTicker(wp.idleLifetime)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, s := range wp.shards {
				s.mu.Lock()
				// idle is ordered by park time, oldest first
				expired := 0
				for expired < len(s.idle) && now.Sub(s.idle[expired].lastUsed) >= wp.idleLifetime {
					close(s.idle[expired].tasks)
					s.idle[expired] = nil
					expired++
				}
				s.idle = append(s.idle[:0], s.idle[expired:]...)
				s.mu.Unlock()
			}
		}
	}
}
