package ratequeue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/internal/logging"
)

func TestQueueSpacesCallStarts(t *testing.T) {
	const interval = 40 * time.Millisecond
	q := New(interval, logging.NopLogger())

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Enqueue(context.Background(), func(ctx context.Context) error {
				last := q.Stats().LastCall
				mu.Lock()
				starts = append(starts, last)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, starts, 5)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval, "gap between call %d and %d", i-1, i)
	}
	assert.EqualValues(t, 5, q.Stats().Calls)
}

func TestQueueRunsInFIFOOrder(t *testing.T) {
	q := New(0, logging.NopLogger())

	release := make(chan struct{})
	var order []int
	var mu sync.Mutex

	// The first call holds the drain loop so the rest queue up behind it.
	firstDone := make(chan struct{})
	go func() {
		_ = q.Enqueue(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
		close(firstDone)
	}()
	require.Eventually(t, func() bool { return q.Stats().Calls == 1 }, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = q.Enqueue(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool { return q.Stats().Pending == i+1 }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()
	<-firstDone

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueFailureOnlyRejectsItsCaller(t *testing.T) {
	q := New(0, logging.NopLogger())
	boom := errors.New("boom")

	err := q.Enqueue(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	ran := false
	err = q.Enqueue(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestQueueSkipsCancelledCallers(t *testing.T) {
	q := New(0, logging.NopLogger())

	release := make(chan struct{})
	go func() {
		_ = q.Enqueue(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()
	require.Eventually(t, func() bool { return q.Stats().Calls == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	ran := make(chan struct{}, 1)
	go func() {
		errCh <- q.Enqueue(ctx, func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		})
	}()
	require.Eventually(t, func() bool { return q.Stats().Pending == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return q.Stats().Skipped == 1 }, time.Second, time.Millisecond)
	select {
	case <-ran:
		t.Fatal("cancelled work should not run")
	default:
	}
}

func TestQueueFirstCallDoesNotWait(t *testing.T) {
	q := New(time.Hour, logging.NopLogger())

	start := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Less(t, time.Since(start), time.Second)
}
