package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waworker/internal/edge"
	"waworker/pkg/logger"
)

type fakeEdge struct {
	mu           sync.Mutex
	acquireOK    bool
	renewOK      bool
	acquireCalls int
	renewCalls   int32
	releaseCalls int32
}

func (f *fakeEdge) AcquireLock(ctx context.Context, instanceID, owner string, ttlMs int64) (*edge.LockResponse, *edge.Error) {
	f.mu.Lock()
	f.acquireCalls++
	f.mu.Unlock()
	return &edge.LockResponse{Acquired: f.acquireOK, InstanceOwner: owner, LockToken: "tok-" + instanceID}, nil
}

func (f *fakeEdge) RenewLock(ctx context.Context, instanceID, owner, token string, ttlMs int64) (*edge.LockResponse, *edge.Error) {
	atomic.AddInt32(&f.renewCalls, 1)
	f.mu.Lock()
	ok := f.renewOK
	f.mu.Unlock()
	return &edge.LockResponse{Acquired: ok, InstanceOwner: owner, LockToken: token}, nil
}

func (f *fakeEdge) ReleaseLock(ctx context.Context, instanceID, owner, token string) *edge.Error {
	atomic.AddInt32(&f.releaseCalls, 1)
	return nil
}

func testLog(t *testing.T) logger.Logger {
	t.Helper()
	return logger.SetupForTesting()
}

func TestCoordinator_AcquireConflict(t *testing.T) {
	f := &fakeEdge{acquireOK: false}
	c := New(f, "host:1", func(string) {}, testLog(t))

	ok := c.Acquire(context.Background(), "s1", 30*time.Second, 2*time.Second)
	assert.False(t, ok)
	assert.False(t, c.Held("s1"))
}

func TestCoordinator_AcquireThenRelease(t *testing.T) {
	f := &fakeEdge{acquireOK: true}
	c := New(f, "host:1", func(string) {}, testLog(t))

	ok := c.Acquire(context.Background(), "s1", 30*time.Second, 50*time.Millisecond)
	require.True(t, ok)
	assert.True(t, c.Held("s1"))

	c.Release(context.Background(), "s1")
	assert.False(t, c.Held("s1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.releaseCalls))
}

func TestCoordinator_RenewalLossInvokesOnLockLost(t *testing.T) {
	f := &fakeEdge{acquireOK: true, renewOK: false}
	lost := make(chan string, 1)
	c := New(f, "host:1", func(id string) { lost <- id }, testLog(t))

	ok := c.Acquire(context.Background(), "s1", 30*time.Second, 20*time.Millisecond)
	require.True(t, ok)

	select {
	case id := <-lost:
		assert.Equal(t, "s1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("onLockLost was never invoked")
	}
	assert.False(t, c.Held("s1"))
}

func TestCoordinator_AcquireIsIdempotentWhileHeld(t *testing.T) {
	f := &fakeEdge{acquireOK: true}
	c := New(f, "host:1", func(string) {}, testLog(t))

	require.True(t, c.Acquire(context.Background(), "s1", 30*time.Second, 1*time.Second))
	require.True(t, c.Acquire(context.Background(), "s1", 30*time.Second, 1*time.Second))

	f.mu.Lock()
	calls := f.acquireCalls
	f.mu.Unlock()
	assert.Equal(t, 1, calls, "a second Acquire while already held must not re-call the control plane")
}
