// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks, like the compilation of several source files, on a
// bounded number of goroutines.
package workerspool

import (
	"runtime"
	"sync"
)

type Pool struct {
	// maxParallelism is the limit of tasks running at the same time.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Should be signaled whenever numRunning is decreased.
	numRunning     int
	running        sync.WaitGroup
}

// New returns a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{maxParallelism: runtime.NumCPU()}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// WithMaxParallelism sets the limit of tasks running at the same time.
// If set to 0 parallelism is disabled, and tasks run inline.
// If set to -1 parallelism is unlimited.
//
// It should only be changed before any task starts. It returns the updated Pool, so calls can be cascaded.
func (w *Pool) WithMaxParallelism(maxParallelism int) *Pool {
	w.maxParallelism = maxParallelism
	return w
}

// MaxParallelism returns the limit of tasks running at the same time. See WithMaxParallelism.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with w.mu acquired.
func (w *Pool) lockedIsFull() bool {
	return w.maxParallelism > 0 && w.numRunning >= w.maxParallelism
}

// Go waits until there is a worker available, and runs task in a goroutine.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *Pool) Go(task func()) {
	if w.maxParallelism == 0 {
		task()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
	w.running.Add(1)
	go func() {
		defer w.running.Done()
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// Wait until all tasks started with Go are finished.
func (w *Pool) Wait() {
	w.running.Wait()
}

// Map runs fn(i) for i in [0, n) in the pool, and returns the results in order.
func Map[T any](w *Pool, n int, fn func(i int) T) []T {
	results := make([]T, n)
	for ii := range n {
		w.Go(func() { results[ii] = fn(ii) })
	}
	w.Wait()
	return results
}
