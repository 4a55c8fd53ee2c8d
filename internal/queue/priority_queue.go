// Package queue implements pkg/queue.Queue on top of a single dedicated
// worker goroutine draining a github.com/ethereum/go-ethereum/common/prque
// priority heap.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/prque"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/internal/metrics"
	"github.com/goran-ethernal/ChainIndexor/pkg/queue"
)

// PriorityQueue is a single-worker, priority-ordered implementation of
// queue.Queue, backed by go-ethereum's common/prque heap. Priorities follow
// the prque convention: the greatest priority value runs first. prque's
// underlying container/heap gives no tie-breaking guarantee among equal
// priorities, so this queue makes none either — see queue.Queue's doc
// comment.
type PriorityQueue struct {
	log *logger.Logger

	mu      sync.Mutex
	pq      *prque.Prque[int64, queue.Task]
	paused  bool
	running bool
	cancel  context.CancelFunc
	wakeCh  chan struct{}

	onIdle  func()
	onError queue.ErrorHook
}

var _ queue.Queue = (*PriorityQueue)(nil)

// New creates an empty, stopped queue.
func New(log *logger.Logger) *PriorityQueue {
	return &PriorityQueue{
		log:    log,
		pq:     prque.New[int64, queue.Task](nil),
		paused: true,
		wakeCh: make(chan struct{}, 1),
	}
}

// AddTask implements queue.Queue.
func (q *PriorityQueue) AddTask(task queue.Task, priority int64) {
	q.mu.Lock()
	q.pq.Push(task, priority)
	q.mu.Unlock()

	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Start implements queue.Queue. Calling Start while already running has no
// effect; calling it again after Pause resumes draining.
func (q *PriorityQueue) Start(ctx context.Context) {
	q.mu.Lock()
	q.paused = false
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()

	go q.run(runCtx)
}

// Pause implements queue.Queue.
func (q *PriorityQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	if q.cancel != nil {
		q.cancel()
	}
	q.running = false
	q.mu.Unlock()
}

// Clear implements queue.Queue.
func (q *PriorityQueue) Clear() {
	q.mu.Lock()
	q.pq.Reset()
	q.mu.Unlock()
}

// Size implements queue.Queue.
func (q *PriorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Size()
}

// OnIdle implements queue.Queue.
func (q *PriorityQueue) OnIdle(fn func()) {
	q.mu.Lock()
	q.onIdle = fn
	q.mu.Unlock()
}

// OnError implements queue.Queue.
func (q *PriorityQueue) OnError(hook queue.ErrorHook) {
	q.mu.Lock()
	q.onError = hook
	q.mu.Unlock()
}

func (q *PriorityQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := q.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wakeCh:
				continue
			}
		}

		start := time.Now()
		err := task(ctx)
		metrics.TaskDurationLog(time.Since(start))
		if err != nil {
			metrics.TaskErrorsInc()
			q.mu.Lock()
			hook := q.onError
			q.mu.Unlock()
			if hook != nil {
				hook(err, task)
			} else if q.log != nil {
				q.log.Errorw("task failed with no error hook registered", "error", err)
			}
		}

		q.mu.Lock()
		idle := q.pq.Empty()
		onIdle := q.onIdle
		depth := q.pq.Size()
		q.mu.Unlock()
		metrics.QueueDepthSet(depth)
		if idle && onIdle != nil {
			onIdle()
		}
	}
}

// dequeue pops the highest-priority task, respecting Pause.
func (q *PriorityQueue) dequeue() (queue.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused || q.pq.Empty() {
		return nil, false
	}
	return q.pq.PopItem(), true
}
