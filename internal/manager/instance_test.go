package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waworker/internal/connection"
	"waworker/internal/edge"
	"waworker/internal/session"
	"waworker/pkg/logger"
)

type fakeEdgeOps struct {
	settings *edge.Settings
	eligible []edge.EligibleInstance
	err      *edge.Error
}

func (f *fakeEdgeOps) GetSettings(ctx context.Context) *edge.Settings { return f.settings }

func (f *fakeEdgeOps) ListEligible(ctx context.Context, enabled bool, limit int, order string) ([]edge.EligibleInstance, *edge.Error) {
	return f.eligible, f.err
}

type fakeLocker struct {
	mu            sync.Mutex
	acquireResult map[string]bool
	acquired      []string
	released      []string
	releasedAll   bool
}

func (f *fakeLocker) Acquire(ctx context.Context, sessionID string, ttl, renewEvery time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = append(f.acquired, sessionID)
	if f.acquireResult == nil {
		return true
	}
	ok, set := f.acquireResult[sessionID]
	return !set || ok
}

func (f *fakeLocker) Held(sessionID string) bool { return true }

func (f *fakeLocker) Release(ctx context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, sessionID)
}

func (f *fakeLocker) ReleaseAll(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releasedAll = true
}

type fakeRunner struct {
	rt         *session.Runtime
	connectErr bool
	stopped    bool
}

func newFakeRunner(id string, priority int) *fakeRunner {
	return &fakeRunner{rt: session.NewRuntime(id, priority)}
}

func (f *fakeRunner) Runtime() *session.Runtime { return f.rt }
func (f *fakeRunner) Start(ctx context.Context)  {}
func (f *fakeRunner) Connect(ctx context.Context) {
	f.rt.SetState(session.StateOpen)
}
func (f *fakeRunner) Stop(ctx context.Context) {
	f.stopped = true
	f.rt.SetState(session.StateIdle)
}

func newTestManager(e *fakeEdgeOps, l *fakeLocker) (*InstanceManager, map[string]*fakeRunner) {
	created := map[string]*fakeRunner{}
	var mu sync.Mutex
	m := &InstanceManager{
		edge: e,
		locks: l,
		cfg: Config{
			PollInterval:      time.Hour,
			FallbackMaxActive: 0,
			LockTTL:           time.Second,
			LockRenewEvery:    time.Second,
			StopCooldown:      time.Minute,
			ListEligibleLimit: 50,
		},
		log:      logger.SetupForTesting(),
		runtimes: map[string]runner{},
		desired:  map[string]bool{},
		stopCh:   make(chan struct{}),
	}
	m.newRun = func(sess session.Session, handle connection.ManagerHandle) runner {
		fr := newFakeRunner(sess.ID, sess.Priority)
		mu.Lock()
		created[sess.ID] = fr
		mu.Unlock()
		return fr
	}
	return m, created
}

func TestTick_SelectsTopNByPriorityStableTieBreak(t *testing.T) {
	n := 2
	e := &fakeEdgeOps{
		settings: &edge.Settings{MaxActiveInstances: &n},
		eligible: []edge.EligibleInstance{
			{ID: "A", Priority: 5},
			{ID: "B", Priority: 10},
			{ID: "C", Priority: 10},
		},
	}
	l := &fakeLocker{}
	m, created := newTestManager(e, l)

	m.tick(context.Background())

	assert.ElementsMatch(t, []string{"B", "C"}, l.acquired)
	assert.Contains(t, created, "B")
	assert.Contains(t, created, "C")
	assert.NotContains(t, created, "A")
}

func TestTick_LockFailureSkipsTarget(t *testing.T) {
	n := 1
	e := &fakeEdgeOps{
		settings: &edge.Settings{MaxActiveInstances: &n},
		eligible: []edge.EligibleInstance{{ID: "A", Priority: 1}},
	}
	l := &fakeLocker{acquireResult: map[string]bool{"A": false}}
	m, created := newTestManager(e, l)

	m.tick(context.Background())

	assert.Empty(t, created)
}

func TestTick_ListEligibleErrorSkipsCycle(t *testing.T) {
	e := &fakeEdgeOps{err: &edge.Error{Kind: edge.KindTimeout}}
	l := &fakeLocker{}
	m, created := newTestManager(e, l)

	m.tick(context.Background())

	assert.Empty(t, l.acquired)
	assert.Empty(t, created)
}

func TestMaybeStop_OpenWithinCooldownIsNotStopped(t *testing.T) {
	e := &fakeEdgeOps{eligible: []edge.EligibleInstance{}}
	l := &fakeLocker{}
	m, _ := newTestManager(e, l)

	fr := newFakeRunner("S", 1)
	fr.rt.SetState(session.StateOpen)
	m.runtimes["S"] = fr

	m.maybeStop(context.Background(), "S")

	assert.False(t, fr.stopped)
	assert.Empty(t, l.released)
}

func TestMaybeStop_IdleStopsImmediately(t *testing.T) {
	e := &fakeEdgeOps{eligible: []edge.EligibleInstance{}}
	l := &fakeLocker{}
	m, _ := newTestManager(e, l)

	fr := newFakeRunner("S", 1)
	m.runtimes["S"] = fr

	m.maybeStop(context.Background(), "S")

	assert.True(t, fr.stopped)
	require.Len(t, l.released, 1)
	assert.Equal(t, "S", l.released[0])
	_, stillTracked := m.runtimes["S"]
	assert.False(t, stillTracked)
}

func TestShutdown_StopsAllAndReleasesLocks(t *testing.T) {
	e := &fakeEdgeOps{eligible: []edge.EligibleInstance{}}
	l := &fakeLocker{}
	m, _ := newTestManager(e, l)

	fr1 := newFakeRunner("S1", 1)
	fr2 := newFakeRunner("S2", 1)
	m.runtimes["S1"] = fr1
	m.runtimes["S2"] = fr2

	m.Shutdown(context.Background())

	assert.True(t, fr1.stopped)
	assert.True(t, fr2.stopped)
	assert.True(t, l.releasedAll)
	assert.Empty(t, m.runtimes)
}
