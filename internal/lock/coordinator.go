// Package lock implements the per-session distributed lock coordinator (§4.3).
package lock

import (
	"context"
	"sync"
	"time"

	"waworker/internal/edge"
	"waworker/pkg/logger"
)

// OnLockLost is invoked when a held lock's renewal fails or is refused. The
// callback triggers the session's graceful stop; it must not block.
type OnLockLost func(sessionID string)

// EdgeLocker is the subset of edge.Client the coordinator depends on,
// exposed as an interface so tests can substitute a fake control plane.
type EdgeLocker interface {
	AcquireLock(ctx context.Context, instanceID, owner string, ttlMs int64) (*edge.LockResponse, *edge.Error)
	RenewLock(ctx context.Context, instanceID, owner, token string, ttlMs int64) (*edge.LockResponse, *edge.Error)
	ReleaseLock(ctx context.Context, instanceID, owner, token string) *edge.Error
}

type ownership struct {
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator acquires, renews, and releases per-session locks via EdgeClient.
// Invariant: at most one ownership entry and one renewal timer per session id.
type Coordinator struct {
	client EdgeLocker
	owner  string
	onLost OnLockLost
	log    logger.Logger

	mu      sync.Mutex
	entries map[string]*ownership
}

// New builds a Coordinator. owner is this process's lock-owner identity
// (typically "<hostname>:<pid>", see PROCESS_OWNER_ID in config).
func New(client EdgeLocker, owner string, onLost OnLockLost, log logger.Logger) *Coordinator {
	return &Coordinator{
		client:  client,
		owner:   owner,
		onLost:  onLost,
		log:     log.WithComponent("lock-coordinator"),
		entries: map[string]*ownership{},
	}
}

// Held reports whether this process currently believes it owns sessionID's lock.
func (c *Coordinator) Held(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[sessionID]
	return ok
}

// Acquire attempts to take ownership of sessionID's lock and, on success,
// starts its renewal timer. Returns false on conflict or any acquire failure.
func (c *Coordinator) Acquire(ctx context.Context, sessionID string, ttl, renewEvery time.Duration) bool {
	c.mu.Lock()
	if _, ok := c.entries[sessionID]; ok {
		c.mu.Unlock()
		return true // already held by this process
	}
	c.mu.Unlock()

	resp, err := c.client.AcquireLock(ctx, sessionID, c.owner, ttl.Milliseconds())
	if err != nil {
		if err.StatusCode == 404 {
			c.log.Warn().Str("session_id", sessionID).Msg("lock acquire skipped: instance not found")
		} else {
			c.log.Warn().Err(err).Str("session_id", sessionID).Msg("lock acquire failed")
		}
		return false
	}
	if !resp.Acquired {
		c.log.Warn().Str("session_id", sessionID).Msg("lock conflict: another owner holds this session")
		return false
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	o := &ownership{token: resp.LockToken, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.entries[sessionID] = o
	c.mu.Unlock()

	go c.runRenewal(renewCtx, sessionID, ttl, renewEvery, o)
	return true
}

func (c *Coordinator) runRenewal(ctx context.Context, sessionID string, ttl, renewEvery time.Duration, o *ownership) {
	defer close(o.done)

	ticker := time.NewTicker(renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current, ok := c.entries[sessionID]
			c.mu.Unlock()
			if !ok || current != o {
				return
			}

			resp, err := c.client.RenewLock(context.Background(), sessionID, c.owner, o.token, ttl.Milliseconds())
			lost := err != nil || !resp.Acquired
			if lost {
				if err != nil {
					c.log.Warn().Err(err).Str("session_id", sessionID).Msg("lock renewal failed")
				} else {
					c.log.Warn().Str("session_id", sessionID).Msg("lock renewal refused")
				}
				c.clearLocal(sessionID, o)
				c.onLost(sessionID)
				return
			}
		}
	}
}

// Release gives up ownership of sessionID's lock and stops its timer. The
// local state is cleared regardless of the HTTP outcome.
func (c *Coordinator) Release(ctx context.Context, sessionID string) {
	c.mu.Lock()
	o, ok := c.entries[sessionID]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.clearLocal(sessionID, o)

	if err := c.client.ReleaseLock(ctx, sessionID, c.owner, o.token); err != nil {
		c.log.Warn().Err(err).Str("session_id", sessionID).Msg("lock release failed (ignored)")
	}
}

// clearLocal stops the renewal timer and removes the entry, but only if it
// is still the same ownership instance (guards against a lost race with Acquire).
func (c *Coordinator) clearLocal(sessionID string, o *ownership) {
	c.mu.Lock()
	if current, ok := c.entries[sessionID]; ok && current == o {
		delete(c.entries, sessionID)
	}
	c.mu.Unlock()
	o.cancel()
}

// ReleaseAll releases every held lock best-effort; used during shutdown.
func (c *Coordinator) ReleaseAll(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.Release(ctx, id)
	}
}
