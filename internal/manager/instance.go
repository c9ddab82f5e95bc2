package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"waworker/internal/connection"
	"waworker/internal/edge"
	"waworker/internal/journal"
	"waworker/internal/lock"
	"waworker/internal/session"
	"waworker/pkg/logger"
)

// EdgeOps is the subset of edge.Client the discovery cycle depends on.
type EdgeOps interface {
	GetSettings(ctx context.Context) *edge.Settings
	ListEligible(ctx context.Context, enabled bool, limit int, order string) ([]edge.EligibleInstance, *edge.Error)
}

// Locker is the subset of lock.Coordinator the manager depends on.
type Locker interface {
	Acquire(ctx context.Context, sessionID string, ttl, renewEvery time.Duration) bool
	Held(sessionID string) bool
	Release(ctx context.Context, sessionID string)
	ReleaseAll(ctx context.Context)
}

// runnerFactory builds the per-session ConnectionRunner; overridable in tests.
type runnerFactory func(sess session.Session, manager connection.ManagerHandle) runner

// runner is the subset of *connection.Runner the manager drives directly.
type runner interface {
	Runtime() *session.Runtime
	Start(ctx context.Context)
	Connect(ctx context.Context)
	Stop(ctx context.Context)
}

// Config bundles the discovery cycle's tunables (§6).
type Config struct {
	PollInterval        time.Duration
	FallbackMaxActive   int
	LockTTL             time.Duration
	LockRenewEvery      time.Duration
	StopCooldown        time.Duration
	ListEligibleLimit   int
}

// InstanceManager runs the discovery cycle (§4.7): computing the desired set
// of sessions, starting/stopping ConnectionRunners, and owning their locks.
type InstanceManager struct {
	edge    EdgeOps
	locks   Locker
	journal *journal.Journal
	cfg     Config
	log     logger.Logger
	newRun  runnerFactory

	mu       sync.Mutex
	runtimes map[string]runner
	desired  map[string]bool
	running  bool
	ticking  int32
	stopCh   chan struct{}
}

// New builds an InstanceManager with the real *connection.Runner factory.
// j may be nil (journal disabled, see journal.New).
func New(edgeClient *edge.Client, authBase string, locks *lock.Coordinator, j *journal.Journal, cfg Config, log logger.Logger) *InstanceManager {
	m := &InstanceManager{
		edge:     edgeClient,
		locks:    locks,
		journal:  j,
		cfg:      cfg,
		log:      log.WithComponent("instance-manager"),
		runtimes: map[string]runner{},
		desired:  map[string]bool{},
		stopCh:   make(chan struct{}),
	}
	m.newRun = func(sess session.Session, handle connection.ManagerHandle) runner {
		return connection.New(sess, authBase, edgeClient, handle, j, log)
	}
	return m
}

// SetLocks wires the lock coordinator after construction, breaking the
// construction-order cycle between lock.New (which needs OnLockLost) and
// manager.New (which needs the coordinator it calls back into).
func (m *InstanceManager) SetLocks(locks Locker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = locks
}

// IsDesired implements connection.ManagerHandle: does the current desired set
// still include this session?
func (m *InstanceManager) IsDesired(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desired[sessionID]
}

// EnsureRunning implements connection.ManagerHandle: used by a Runner after
// wiping its own auth to ask the manager to immediately retry connecting.
func (m *InstanceManager) EnsureRunning(sessionID string) {
	m.mu.Lock()
	r, ok := m.runtimes[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	r.Connect(context.Background())
}

// ResetRuntime implements connection.ManagerHandle: a no-op hook point for
// future per-runtime reset bookkeeping (priority, breaker state already live
// on session.Runtime and are reset by SetState(Open) on successful reconnect).
func (m *InstanceManager) ResetRuntime(sessionID string) {}

// Start launches the discovery ticker. Each tick is non-reentrant (§5).
func (m *InstanceManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.runLoop(ctx)
}

func (m *InstanceManager) runLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one discovery cycle (§4.7 steps 1-7). The ticking flag keeps
// ticks non-reentrant (§5), matching the outbound runner's CAS guard.
func (m *InstanceManager) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&m.ticking, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&m.ticking, 0)

	var settings *edge.Settings
	var eligible []edge.EligibleInstance

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); settings = m.edge.GetSettings(ctx) }()
	go func() {
		defer wg.Done()
		var err *edge.Error
		eligible, err = m.edge.ListEligible(ctx, true, m.cfg.ListEligibleLimit, "priority.desc")
		if err != nil {
			m.log.Warn().Err(err).Msg("listEligible failed, skipping this cycle")
		}
	}()
	wg.Wait()

	if eligible == nil {
		return
	}

	n := m.cfg.FallbackMaxActive
	if settings != nil && settings.MaxActiveInstances != nil {
		n = *settings.MaxActiveInstances
	}
	if n < 0 {
		n = 0
	}

	ids := make([]string, 0, len(eligible))
	priorityOf := map[string]int{}
	for _, e := range eligible {
		if e.ID == "" {
			continue
		}
		ids = append(ids, e.ID)
		priorityOf[e.ID] = e.Priority
	}

	ordered := prioritize(ids, priorityOf)
	targets := selectTargets(ordered, n)

	desired := make(map[string]bool, len(targets))
	for _, t := range targets {
		desired[t.ID] = true
		m.ensureRunning(ctx, t.ID, t.Priority)
	}

	m.mu.Lock()
	m.desired = desired
	toCheck := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		toCheck = append(toCheck, id)
	}
	m.mu.Unlock()

	for _, id := range toCheck {
		if desired[id] {
			continue
		}
		m.maybeStop(ctx, id)
	}
}

func (m *InstanceManager) ensureRunning(ctx context.Context, id string, priority int) {
	m.mu.Lock()
	r, exists := m.runtimes[id]
	m.mu.Unlock()

	if !exists {
		if !m.locks.Acquire(ctx, id, m.cfg.LockTTL, m.cfg.LockRenewEvery) {
			return
		}
		r = m.newRun(session.Session{ID: id, Priority: priority}, m)
		m.mu.Lock()
		m.runtimes[id] = r
		m.mu.Unlock()
		r.Start(ctx)
	}
	r.Runtime().SetPriority(priority)
	if r.Runtime().State() == session.StateIdle {
		r.Connect(ctx)
	}
}

// maybeStop applies the canStop rule (§4.7): always stoppable unless
// currently Open and hasn't held STOP_COOLDOWN_MS yet.
func (m *InstanceManager) maybeStop(ctx context.Context, id string) {
	m.mu.Lock()
	r, ok := m.runtimes[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	rt := r.Runtime()
	if rt.State() == session.StateOpen {
		if time.Since(rt.ConnectedAt()) < m.cfg.StopCooldown {
			return
		}
	}

	m.stopGracefully(ctx, id, r)
}

func (m *InstanceManager) stopGracefully(ctx context.Context, id string, r runner) {
	r.Stop(ctx)
	m.locks.Release(ctx, id)
	m.journal.Record(ctx, id, journal.KindDiscoveryStop, "")

	m.mu.Lock()
	delete(m.runtimes, id)
	m.mu.Unlock()
}

// OnLockLost is the lock.Coordinator's OnLockLost callback: renewal failed or
// was refused, so the session must stop immediately regardless of the
// STOP_COOLDOWN_MS cooldown (§7 lock-lost policy, §8 scenario 6).
func (m *InstanceManager) OnLockLost(sessionID string) {
	m.mu.Lock()
	r, ok := m.runtimes[sessionID]
	if ok {
		delete(m.runtimes, sessionID)
	}
	delete(m.desired, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}
	r.Stop(context.Background())
	m.journal.Record(context.Background(), sessionID, journal.KindLockLost, "")
}

// Shutdown stops the discovery ticker, stops every runtime, and releases all
// held locks, bounded by the caller's context deadline (SHUTDOWN_TIMEOUT_MS).
func (m *InstanceManager) Shutdown(ctx context.Context) {
	close(m.stopCh)

	m.mu.Lock()
	runtimes := make(map[string]runner, len(m.runtimes))
	for id, r := range m.runtimes {
		runtimes[id] = r
	}
	m.runtimes = map[string]runner{}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range runtimes {
		wg.Add(1)
		go func(r runner) { defer wg.Done(); r.Stop(ctx) }(r)
	}
	wg.Wait()

	m.locks.ReleaseAll(ctx)
}
