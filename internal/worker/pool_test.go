package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxelgate/server/internal/vec"
)

func noopTask(kind Kind) Task {
	return Task{
		Kind:  kind,
		Coord: vec.Vec2{X: 0, Z: 0},
		Run: func(ctx context.Context) (any, error) {
			return "ok", nil
		},
	}
}

func TestPool_RunsTaskAndDeliversResult(t *testing.T) {
	p := NewPool(2, 8, 0, zap.NewNop())
	p.Start()
	defer p.Shutdown()

	task := noopTask(KindGenerate)
	task.Token = 42
	id, err := p.Submit(task)
	require.NoError(t, err)
	require.NotZero(t, id)

	select {
	case res := <-p.Results():
		assert.Equal(t, id, res.TaskID)
		assert.Equal(t, KindGenerate, res.Kind)
		assert.Equal(t, uint64(42), res.Token)
		assert.Equal(t, "ok", res.Payload)
		assert.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
}

func TestPool_BackpressureOnFullQueue(t *testing.T) {
	gate := make(chan struct{})

	p := NewPool(1, 1, 0, zap.NewNop())
	p.Start()
	defer p.Shutdown()
	defer close(gate)

	blocking := Task{
		Kind: KindGenerate,
		Run: func(ctx context.Context) (any, error) {
			<-gate
			return nil, nil
		},
	}

	// Saturate: one task running (or about to run) plus one queued slot. With
	// a single worker, submitting until failure must hit ErrBackpressure
	// within three attempts, and the failure must be immediate.
	var backpressured bool
	for i := 0; i < 3; i++ {
		start := time.Now()
		_, err := p.Submit(blocking)
		require.Less(t, time.Since(start), 100*time.Millisecond, "Submit must not block")
		if err != nil {
			require.ErrorIs(t, err, ErrBackpressure)
			backpressured = true
			break
		}
	}
	assert.True(t, backpressured)
}

func TestPool_CancelBeforeStartDropsTask(t *testing.T) {
	gate := make(chan struct{})

	p := NewPool(1, 4, 0, zap.NewNop())
	p.Start()
	defer p.Shutdown()

	// Occupy the only worker so the next task stays queued.
	_, err := p.Submit(Task{
		Kind: KindGenerate,
		Run: func(ctx context.Context) (any, error) {
			<-gate
			return "first", nil
		},
	})
	require.NoError(t, err)

	var ran atomic.Bool
	id, err := p.Submit(Task{
		Kind: KindMesh,
		Run: func(ctx context.Context) (any, error) {
			ran.Store(true)
			return nil, nil
		},
	})
	require.NoError(t, err)

	p.Cancel(id)
	close(gate)

	// Only the first task produces a result; the cancelled one is dropped.
	select {
	case res := <-p.Results():
		assert.Equal(t, "first", res.Payload)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
	select {
	case res := <-p.Results():
		t.Fatalf("unexpected second result: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, ran.Load())
}

func TestPool_SoftTimeout(t *testing.T) {
	p := NewPool(1, 4, 10*time.Millisecond, zap.NewNop())
	p.Start()
	defer p.Shutdown()

	_, err := p.Submit(Task{
		Kind: KindGenerate,
		Run: func(ctx context.Context) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "too late", nil
			}
		},
	})
	require.NoError(t, err)

	select {
	case res := <-p.Results():
		assert.ErrorIs(t, res.Err, ErrTimeout)
		assert.Nil(t, res.Payload)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
}

func TestPool_ParallelExecution(t *testing.T) {
	const workers = 4
	p := NewPool(workers, 16, 0, zap.NewNop())
	p.Start()
	defer p.Shutdown()

	// All tasks rendezvous at a barrier; this only completes if they run
	// concurrently on distinct workers.
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		_, err := p.Submit(Task{
			Kind: KindGenerate,
			Run: func(ctx context.Context) (any, error) {
				wg.Done()
				wg.Wait()
				return nil, nil
			},
		})
		require.NoError(t, err)
	}

	for i := 0; i < workers; i++ {
		select {
		case res := <-p.Results():
			assert.NoError(t, res.Err)
		case <-time.After(2 * time.Second):
			t.Fatal("workers did not run in parallel")
		}
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := NewPool(1, 4, 0, zap.NewNop())
	p.Start()
	p.Shutdown()

	_, err := p.Submit(noopTask(KindGenerate))
	assert.ErrorIs(t, err, ErrPoolClosed)

	// Shutdown is idempotent.
	p.Shutdown()
}

func TestPool_ShutdownWaitsForRunningTasks(t *testing.T) {
	p := NewPool(2, 4, 0, zap.NewNop())
	p.Start()

	var done atomic.Bool
	_, err := p.Submit(Task{
		Kind: KindGenerate,
		Run: func(ctx context.Context) (any, error) {
			time.Sleep(20 * time.Millisecond)
			done.Store(true)
			return nil, nil
		},
	})
	require.NoError(t, err)

	p.Shutdown()
	assert.True(t, done.Load(), "Shutdown returns only after running tasks finish")
}
