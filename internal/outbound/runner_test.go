package outbound

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"waworker/internal/edge"
	"waworker/pkg/logger"
)

type fakeWAClient struct {
	sendErrs    []error
	sendCalls   int32
	uploadCalls int32
}

func (f *fakeWAClient) SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	i := atomic.AddInt32(&f.sendCalls, 1) - 1
	if int(i) < len(f.sendErrs) && f.sendErrs[i] != nil {
		return whatsmeow.SendResponse{}, f.sendErrs[i]
	}
	return whatsmeow.SendResponse{ID: "wamid-ok"}, nil
}

func (f *fakeWAClient) Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	atomic.AddInt32(&f.uploadCalls, 1)
	return whatsmeow.UploadResponse{URL: "https://example/media"}, nil
}

type fakeEdgeOps struct {
	mu            sync.Mutex
	queued        []edge.QueuedMessage
	markSentCalls []string
	markFailed    []string
	refreshCalls  []string
	primary       *edge.PrimaryJIDResult
}

func (f *fakeEdgeOps) PrimaryJID(ctx context.Context, instanceID, jid string) (*edge.PrimaryJIDResult, *edge.Error) {
	return f.primary, nil
}

func (f *fakeEdgeOps) ListQueued(ctx context.Context, instanceID string) ([]edge.QueuedMessage, *edge.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queued
	f.queued = nil
	return out, nil
}

func (f *fakeEdgeOps) MarkSent(ctx context.Context, messageID, waMessageID string, debug edge.SendDebug) *edge.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markSentCalls = append(f.markSentCalls, messageID)
	return nil
}

func (f *fakeEdgeOps) MarkFailed(ctx context.Context, messageID, reason string, debug edge.SendDebug) *edge.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailed = append(f.markFailed, messageID+":"+reason)
	return nil
}

func (f *fakeEdgeOps) RefreshSession(ctx context.Context, instanceID, jid, trigger string) *edge.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls = append(f.refreshCalls, trigger)
	return nil
}

type passthroughCanonicalizer struct{}

func (passthroughCanonicalizer) ResolveCanonical(jid, fallbackPN string) string { return jid }

func testLogger() logger.Logger { return logger.SetupForTesting() }

func TestRunner_SendWithSessionRecovery(t *testing.T) {
	orig := SessionRefreshBackoff
	SessionRefreshBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { SessionRefreshBackoff = orig }()

	noSession := errors.New("no matching sessions found for pre key bundle")
	wac := &fakeWAClient{sendErrs: []error{noSession, noSession, nil}}
	fe := &fakeEdgeOps{queued: []edge.QueuedMessage{{ID: "m1", To: "5511999999999", Body: "hi"}}}

	r := New("sess-1", fe, passthroughCanonicalizer{}, func() (WAClient, bool) { return wac, true }, time.Hour, testLogger())
	r.tick(context.Background())

	assert.Equal(t, []string{"no_matching_sessions", "no_matching_sessions"}, fe.refreshCalls)
	assert.Equal(t, []string{"m1"}, fe.markSentCalls)
	assert.Empty(t, fe.markFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&wac.sendCalls))
}

func TestRunner_MalformedMessageMarkedFailed(t *testing.T) {
	wac := &fakeWAClient{}
	fe := &fakeEdgeOps{queued: []edge.QueuedMessage{{ID: "m2"}}}
	r := New("sess-1", fe, passthroughCanonicalizer{}, func() (WAClient, bool) { return wac, true }, time.Hour, testLogger())

	r.tick(context.Background())
	require.Len(t, fe.markFailed, 1)
	assert.Contains(t, fe.markFailed[0], "malformed-message")
}

func TestRunner_NotOpenSkipsTick(t *testing.T) {
	fe := &fakeEdgeOps{queued: []edge.QueuedMessage{{ID: "m3", To: "123", Body: "hi"}}}
	r := New("sess-1", fe, passthroughCanonicalizer{}, func() (WAClient, bool) { return nil, false }, time.Hour, testLogger())

	r.tick(context.Background())
	assert.Empty(t, fe.markFailed)
	assert.Empty(t, fe.markSentCalls)
}

func TestRunner_NoOverlappingTicks(t *testing.T) {
	fe := &fakeEdgeOps{}
	wac := &fakeWAClient{}
	r := New("sess-1", fe, passthroughCanonicalizer{}, func() (WAClient, bool) { return wac, true }, time.Hour, testLogger())

	atomic.StoreInt32(&r.processing, 1) // simulate a tick already in flight
	r.tick(context.Background())        // must be a no-op
	assert.Empty(t, fe.markSentCalls)
}
