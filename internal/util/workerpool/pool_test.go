package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutesSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(&Config{Name: "test", MaxWorkers: 4, QueueSize: 16})
	defer pool.Stop()

	var executed int32
	for i := 0; i < 10; i++ {
		ok := pool.TrySubmit(Task{
			ID: "task",
			Fn: func(ctx context.Context) error {
				atomic.AddInt32(&executed, 1)
				return nil
			},
		})
		require.True(t, ok)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&executed) == 10
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecoversFromPanic(t *testing.T) {
	pool := NewWorkerPool(&Config{Name: "test", MaxWorkers: 1, QueueSize: 4})
	defer pool.Stop()

	require.True(t, pool.TrySubmit(Task{
		ID: "panics",
		Fn: func(ctx context.Context) error { panic("boom") },
	}))

	// The pool must survive and keep executing
	var executed int32
	require.True(t, pool.TrySubmit(Task{
		ID: "after",
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		},
	}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&executed) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRejectsWhenQueueFull(t *testing.T) {
	pool := NewWorkerPool(&Config{Name: "test", MaxWorkers: 1, QueueSize: 1})
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	// Occupy the single worker
	pool.TrySubmit(Task{ID: "blocker", Fn: func(ctx context.Context) error {
		<-block
		return nil
	}})

	// Fill the queue, then overflow it
	accepted := 0
	for i := 0; i < 10; i++ {
		if pool.TrySubmit(Task{ID: "filler", Fn: func(ctx context.Context) error { return nil }}) {
			accepted++
		}
	}

	assert.LessOrEqual(t, accepted, 2)
	assert.Greater(t, pool.Rejected(), uint64(0))
}

func TestRejectsAfterStop(t *testing.T) {
	pool := NewWorkerPool(&Config{Name: "test", MaxWorkers: 1, QueueSize: 1})
	pool.Stop()

	ok := pool.TrySubmit(Task{ID: "late", Fn: func(ctx context.Context) error { return nil }})
	assert.False(t, ok)
}
