// Package queue defines the minimal priority task queue contract the
// Realtime Sync Service runs block-processing tasks through.
package queue

import "context"

// Task is one unit of work. The queue does not inspect task contents; it
// only orders and serializes execution.
type Task func(ctx context.Context) error

// ErrorHook is invoked when a worker's task returns an error. task is the
// same value passed to AddTask, so a hook can inspect it for retry
// decisions or logging context.
type ErrorHook func(err error, task Task)

// Queue is a single-worker, priority-ordered task queue. Higher priority
// values run first; ordering among tasks enqueued at the same priority is
// unspecified. The worker is strictly sequential: at most one task executes
// at a time.
//
// Callers that need equal-priority tasks to be distinguishable in any way
// must make the priority itself unique (see internal/realtime's
// blockPriority, derived from the block number) or make the task safe to
// run in either order.
type Queue interface {
	// AddTask enqueues task at the given priority.
	AddTask(task Task, priority int64)

	// Start begins draining the queue on its dedicated worker goroutine.
	// Start is idempotent; calling it while already running has no effect.
	Start(ctx context.Context)

	// Pause stops the worker from dequeuing new tasks. A task already in
	// flight runs to completion.
	Pause()

	// Clear drops every pending task without running it. A task already in
	// flight is unaffected.
	Clear()

	// Size returns the number of pending tasks.
	Size() int

	// OnIdle registers a callback invoked whenever the queue transitions
	// from non-empty to empty after a task completes.
	OnIdle(fn func())

	// OnError registers the hook invoked when a task returns an error.
	OnError(hook ErrorHook)
}
