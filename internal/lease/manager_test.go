package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestLease(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := Config{
		Addr: mr.Addr(),
		TTL:  2 * time.Second,
	}
	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestAcquireAndRelease(t *testing.T) {
	mr, manager := setupTestLease(t)
	ctx := context.Background()

	release, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("vakaflow:lease:exec-1"))

	release()
	assert.False(t, mr.Exists("vakaflow:lease:exec-1"))
}

func TestAcquireHeld(t *testing.T) {
	_, manager := setupTestLease(t)
	ctx := context.Background()

	release, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	defer release()

	// 同一执行 ID 不能被第二个持有者获取
	_, err = manager.Acquire(ctx, "exec-1")
	assert.Error(t, err)

	// 其他执行 ID 不受影响
	release2, err := manager.Acquire(ctx, "exec-2")
	require.NoError(t, err)
	release2()
}

func TestReacquireAfterRelease(t *testing.T) {
	_, manager := setupTestLease(t)
	ctx := context.Background()

	release, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	release()

	release2, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	release2()
}

func TestAcquireAfterExpiry(t *testing.T) {
	mr, manager := setupTestLease(t)
	ctx := context.Background()

	release, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)

	// 模拟持有者崩溃：不释放，直接让 TTL 过期
	mr.FastForward(3 * time.Second)

	release2, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	release2()

	release()
}

func TestReleaseIdempotent(t *testing.T) {
	_, manager := setupTestLease(t)
	ctx := context.Background()

	release, err := manager.Acquire(ctx, "exec-1")
	require.NoError(t, err)
	release()
	release()
}

func TestAcquireAfterClose(t *testing.T) {
	_, manager := setupTestLease(t)
	require.NoError(t, manager.Close())

	_, err := manager.Acquire(context.Background(), "exec-1")
	assert.Error(t, err)
}
