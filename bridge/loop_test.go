package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop()

	got := []int{}
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func(ctx context.Context) error {
			got = append(got, i)
			return nil
		})
	}
	loop.Post(func(ctx context.Context) error {
		cancel()
		return nil
	})

	require.NoError(t, loop.Run(ctx))
	want := []int{}
	for i := 0; i < 100; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, got)
}

func TestLoopStopsAtFirstError(t *testing.T) {
	loop := NewLoop()
	boom := errors.New("boom")
	ran := false
	loop.Post(func(ctx context.Context) error { return boom })
	loop.Post(func(ctx context.Context) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, loop.Run(context.Background()), boom)
	assert.False(t, ran)
}

func TestLoopAcceptsPostsFromAnyGoroutine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop()
	done := make(chan error)
	go func() { done <- loop.Run(ctx) }()

	count := 0
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				loop.Post(func(ctx context.Context) error {
					count++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	result := make(chan int)
	loop.Post(func(ctx context.Context) error {
		result <- count
		return nil
	})
	assert.Equal(t, 1000, <-result)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestWorkerWaitsForEachCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop()
	worker := NewWorker(loop)

	order := []string{}
	worker.Enqueue("first", func(ctx context.Context) error {
		order = append(order, "first")
		// Posted while the first command runs, so it runs before the second command starts.
		loop.Post(func(ctx context.Context) error {
			order = append(order, "follow-up")
			return nil
		})
		return nil
	})
	worker.Enqueue("second", func(ctx context.Context) error {
		order = append(order, "second")
		cancel()
		return nil
	})
	assert.Equal(t, 2, worker.Pending())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, worker.Run(ctx))
	}()
	assert.NoError(t, loop.Run(ctx))
	<-done

	assert.Equal(t, []string{"first", "follow-up", "second"}, order)
}

func TestWorkerCommandErrorEndsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop()
	worker := NewWorker(loop)
	boom := errors.New("boom")
	worker.Enqueue("fail", func(ctx context.Context) error { return boom })

	go worker.Run(ctx)
	assert.ErrorIs(t, loop.Run(ctx), boom)
}

func TestRunHeartbeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	beats := 0
	err := RunHeartbeat(ctx, time.Millisecond, func() error {
		beats++
		if beats >= 3 {
			cancel()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, beats, 3)

	boom := errors.New("unplugged")
	err = RunHeartbeat(context.Background(), time.Millisecond, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}
