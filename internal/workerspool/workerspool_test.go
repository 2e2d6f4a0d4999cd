// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	squares := Map(New(), 100, func(i int) int { return i * i })
	assert.Len(t, squares, 100)
	for ii, sq := range squares {
		assert.Equal(t, ii*ii, sq)
	}
	assert.Empty(t, Map(New(), 0, func(i int) int { return i }))
}

func TestMaxParallelism(t *testing.T) {
	const maxParallelism = 3
	pool := New().WithMaxParallelism(maxParallelism)
	assert.Equal(t, maxParallelism, pool.MaxParallelism())

	var running, maxRunning atomic.Int32
	Map(pool, 20, func(int) bool {
		current := running.Add(1)
		for {
			seen := maxRunning.Load()
			if current <= seen || maxRunning.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		runtime.Gosched()
		running.Add(-1)
		return true
	})
	assert.LessOrEqual(t, int(maxRunning.Load()), maxParallelism)
	assert.Positive(t, int(maxRunning.Load()))
}

func TestNoParallelism(t *testing.T) {
	pool := New().WithMaxParallelism(0)
	var order []int
	// Tasks run inline, in order.
	Map(pool, 5, func(i int) int {
		order = append(order, i)
		return i
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnlimited(t *testing.T) {
	pool := New().WithMaxParallelism(-1)
	var count atomic.Int32
	Map(pool, 50, func(int) int { return int(count.Add(1)) })
	assert.Equal(t, int32(50), count.Load())
}
