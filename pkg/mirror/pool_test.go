package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmirror/pkg/logging"
)

func TestPoolWaitCoversDerivedWork(t *testing.T) {
	var handled atomic.Int64
	var pool *Pool
	// 每个深度 < 3 的路径派生两个子路径：1 + 2 + 4 + 8 = 15 个任务
	pool = NewPool(context.Background(), 4, func(ctx context.Context, path string) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		if strings.Count(path, "/") < 3 {
			assert.NoError(t, pool.Submit(path+"/l"))
			assert.NoError(t, pool.Submit(path+"/r"))
		}
		return nil
	}, logging.Discard().Logger)

	require.NoError(t, pool.Submit(""))
	require.NoError(t, pool.Wait())
	assert.Equal(t, int64(15), handled.Load())
	require.NoError(t, pool.Close())
}

func TestPoolAggregatesErrorsWithoutDeadlock(t *testing.T) {
	pool := NewPool(context.Background(), 2, func(ctx context.Context, path string) error {
		if strings.HasPrefix(path, "bad") {
			return fmt.Errorf("task %s failed", path)
		}
		return nil
	}, logging.Discard().Logger)
	defer pool.Close()

	for _, p := range []string{"bad1", "ok1", "bad2", "ok2"} {
		require.NoError(t, pool.Submit(p))
	}
	err := pool.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task bad1 failed")
	assert.Contains(t, err.Error(), "task bad2 failed")

	// 错误在 Wait 后被清空，池可继续使用
	require.NoError(t, pool.Submit("ok3"))
	assert.NoError(t, pool.Wait())
}

func TestPoolCloseRejectsNewWork(t *testing.T) {
	pool := NewPool(context.Background(), 1, func(ctx context.Context, path string) error { return nil }, logging.Discard().Logger)
	require.NoError(t, pool.Close())
	assert.True(t, errors.Is(pool.Submit("x"), ErrPoolClosed))
	assert.NoError(t, pool.Wait())
}

func TestPoolCloseDrainsQueuedWork(t *testing.T) {
	var handled atomic.Int64
	pool := NewPool(context.Background(), 2, func(ctx context.Context, path string) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	}, logging.Discard().Logger)
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(fmt.Sprint(i)))
	}
	require.NoError(t, pool.Close())
	assert.Equal(t, int64(10), handled.Load())
}

func TestPoolSkipsWorkAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var handled atomic.Int64
	pool := NewPool(ctx, 1, func(ctx context.Context, path string) error {
		handled.Add(1)
		cancel()
		return nil
	}, logging.Discard().Logger)
	defer pool.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(fmt.Sprint(i)))
	}
	err := pool.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), handled.Load())
}
