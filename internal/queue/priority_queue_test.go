package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/pkg/queue"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before deadline")
}

func TestPriorityQueue_ProcessesHighestPriorityFirst(t *testing.T) {
	q := New(logger.NewNopLogger())

	var mu sync.Mutex
	var order []int

	record := func(n int) queue.Task {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		}
	}

	// priority = MAX - blockNumber: lower numbers get higher priority.
	const max = int64(1) << 40
	q.AddTask(record(103), max-103)
	q.AddTask(record(101), max-101)
	q.AddTask(record(102), max-102)

	q.Start(context.Background())
	defer q.Pause()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{101, 102, 103}, order)
}

func TestPriorityQueue_OnIdleFiresAfterDraining(t *testing.T) {
	q := New(logger.NewNopLogger())

	idleCh := make(chan struct{}, 1)
	q.OnIdle(func() {
		select {
		case idleCh <- struct{}{}:
		default:
		}
	})

	q.AddTask(func(ctx context.Context) error { return nil }, 1)
	q.Start(context.Background())
	defer q.Pause()

	select {
	case <-idleCh:
	case <-time.After(2 * time.Second):
		t.Fatal("onIdle never fired")
	}
}

func TestPriorityQueue_OnErrorFiresOnTaskFailure(t *testing.T) {
	q := New(logger.NewNopLogger())

	errCh := make(chan error, 1)
	q.OnError(func(err error, task queue.Task) {
		errCh <- err
	})

	q.AddTask(func(ctx context.Context) error { return context.DeadlineExceeded }, 1)
	q.Start(context.Background())
	defer q.Pause()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("onError never fired")
	}
}

func TestPriorityQueue_ClearDropsPendingTasks(t *testing.T) {
	q := New(logger.NewNopLogger())

	ran := false
	q.AddTask(func(ctx context.Context) error { ran = true; return nil }, 1)
	require.Equal(t, 1, q.Size())

	q.Clear()
	require.Equal(t, 0, q.Size())

	q.Start(context.Background())
	defer q.Pause()

	time.Sleep(20 * time.Millisecond)
	require.False(t, ran)
}

func TestPriorityQueue_PauseStopsProcessingNewTasks(t *testing.T) {
	q := New(logger.NewNopLogger())
	q.Start(context.Background())
	q.Pause()

	ran := make(chan struct{}, 1)
	q.AddTask(func(ctx context.Context) error { ran <- struct{}{}; return nil }, 1)

	select {
	case <-ran:
		t.Fatal("task ran while paused")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, 1, q.Size())
}

func TestPriorityQueue_SizeReflectsPendingCount(t *testing.T) {
	q := New(logger.NewNopLogger())
	require.Equal(t, 0, q.Size())

	q.AddTask(func(ctx context.Context) error { return nil }, 1)
	q.AddTask(func(ctx context.Context) error { return nil }, 2)
	require.Equal(t, 2, q.Size())
}
