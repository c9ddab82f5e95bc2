package connection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"waworker/internal/alias"
	"waworker/internal/edge"
	"waworker/internal/inbound"
	"waworker/internal/journal"
	"waworker/internal/outbound"
	"waworker/internal/session"
	"waworker/pkg/logger"
)

// ManagerHandle is the parent-owns-child seam back into InstanceManager: a
// Runner holds this typed handle instead of a raw pointer to its owner,
// avoiding an import cycle between connection and manager.
type ManagerHandle interface {
	IsDesired(sessionID string) bool
	EnsureRunning(sessionID string)
	ResetRuntime(sessionID string)
}

// StatusReporter is the subset of edge.Client the runner uses to publish
// connection status and QR codes.
type StatusReporter interface {
	UpdateStatus(ctx context.Context, instanceID, status, qrCode string)
}

// Runner is the per-session connect/QR/open/close/reconnect state machine (§4.4).
type Runner struct {
	sess     session.Session
	authBase string
	runtime  *session.Runtime
	edge     StatusReporter
	manager  ManagerHandle
	aliases  *alias.Store
	journal  *journal.Journal
	log      logger.Logger

	outboundEdge outbound.EdgeOps
	inboundEdge  inbound.EdgeOps

	mu     sync.Mutex
	client *whatsmeow.Client
	cmdCh  chan func()

	out *outbound.Runner
	in  *inbound.Relay
}

// New builds an idle Runner for a session. It does not connect until Connect
// is called, and queued commands run only once Start has launched the
// command-channel goroutine.
func New(sess session.Session, authBase string, edgeClient *edge.Client, manager ManagerHandle, j *journal.Journal, log logger.Logger) *Runner {
	l := log.WithComponent("connection-runner").WithField("session_id", sess.ID)
	return &Runner{
		sess:         sess,
		authBase:     authBase,
		runtime:      session.NewRuntime(sess.ID, sess.Priority),
		edge:         edgeClient,
		manager:      manager,
		aliases:      alias.New(sess.AliasMapPath(authBase), l),
		journal:      j,
		outboundEdge: edgeClient,
		inboundEdge:  edgeClient,
		log:          l,
		cmdCh:        make(chan func(), 16),
	}
}

// Runtime exposes the shared per-session state (priority, connection state,
// bad-MAC window) to the manager's discovery cycle.
func (r *Runner) Runtime() *session.Runtime { return r.runtime }

// Start begins the command-processing goroutine. Every state mutation runs
// on this one goroutine, so no two commands ever touch Runner fields at once.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-r.cmdCh:
			if !ok {
				return
			}
			cmd()
		}
	}
}

func (r *Runner) enqueue(fn func()) {
	select {
	case r.cmdCh <- fn:
	default:
		r.log.Warn().Msg("command channel full, dropping command")
	}
}

// Connect transitions Idle -> Connecting: creates the auth directory, the
// whatsmeow client, and binds event handlers (§4.4 table row 1).
func (r *Runner) Connect(ctx context.Context) {
	r.enqueue(func() { r.connect(ctx) })
}

func (r *Runner) connect(ctx context.Context) {
	if r.runtime.State() != session.StateIdle {
		return
	}
	r.runtime.SetState(session.StateConnecting)
	r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusConnecting, "")

	if err := os.MkdirAll(r.sess.AuthPath(r.authBase), 0o700); err != nil {
		r.log.Error().Err(err).Msg("failed to create auth dir")
		r.runtime.SetState(session.StateIdle)
		r.transitionToIdle(ctx, false, false)
		return
	}

	client, err := r.openClient(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to open whatsmeow client")
		r.runtime.SetState(session.StateIdle)
		r.transitionToIdle(ctx, false, false)
		return
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	client.AddEventHandler(func(evt interface{}) { r.enqueue(func() { r.handleEvent(ctx, evt) }) })

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("failed to open QR channel")
			r.runtime.SetState(session.StateIdle)
			r.transitionToIdle(ctx, false, false)
			return
		}
		go r.consumeQR(ctx, qrChan)
	}

	if err := client.Connect(); err != nil {
		r.log.Error().Err(err).Msg("client.Connect failed")
		r.runtime.SetState(session.StateIdle)
		r.transitionToIdle(ctx, false, false)
		return
	}
}

func (r *Runner) openClient(ctx context.Context) (*whatsmeow.Client, error) {
	dbPath := filepath.Join(r.sess.AuthPath(r.authBase), "device.db")
	waLogger := logger.NewWhatsAppLoggerAdapter(r.log)
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", waLogger.Sub("sqlstore"))
	if err != nil {
		return nil, err
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, err
	}
	return whatsmeow.NewClient(device, waLogger.Sub("client")), nil
}

func (r *Runner) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			dataURL, err := RenderQRDataURL(item.Code)
			if err != nil {
				r.log.Warn().Err(err).Msg("failed to render QR")
				continue
			}
			r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusConnecting, dataURL)
		case "success":
			r.log.Info().Msg("QR scan succeeded")
		case "timeout":
			r.log.Warn().Msg("QR scan timed out")
		}
	}
}

// handleEvent runs on the command goroutine; dispatches connection lifecycle
// and message events (§4.4).
func (r *Runner) handleEvent(ctx context.Context, evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		r.onOpen(ctx)
	case *events.Disconnected:
		r.onClose(ctx, false, "")
	case *events.LoggedOut:
		r.onClose(ctx, true, "logged out")
	case *events.StreamReplaced:
		// WhatsApp's stream:replaced signal is the multi-device protocol's
		// statusCode==515 restart request (§4.4): reconnect fast, not on the
		// full backoff schedule.
		r.onClose(ctx, false, "stream replaced (515)")
	case *events.Message:
		if r.in != nil {
			r.in.HandleMessage(ctx, v)
		}
	case *events.UndecryptableMessage:
		r.recordClientError(ctx, "failed to decrypt message")
	}
}

// onOpen transitions Connecting/Open -> Open (§4.4 row 3).
func (r *Runner) onOpen(ctx context.Context) {
	r.runtime.SetState(session.StateOpen)
	r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusConnected, "")
	r.journal.Record(ctx, r.sess.ID, journal.KindStateChange, "open")

	r.mu.Lock()
	client := r.client
	r.mu.Unlock()

	getClient := func() (outbound.WAClient, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.client == nil || r.runtime.State() != session.StateOpen {
			return nil, false
		}
		return r.client, true
	}
	getInClient := func() (inbound.WAClient, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.client == nil || r.runtime.State() != session.StateOpen {
			return nil, false
		}
		return inboundClientAdapter{r.client}, true
	}

	r.out = outbound.New(r.sess.ID, r.outboundEdge, r.aliases, getClient, 2*time.Second, r.log)
	ownJID := ""
	if client.Store.ID != nil {
		ownJID = client.Store.ID.String()
	}
	r.in = inbound.New(r.sess.ID, ownJID, r.inboundEdge, r.aliases, getInClient, r.log)

	r.out.Start(ctx)
}

// onClose transitions Open/Connecting -> Idle and decides the next action
// (reconnect, wipe, or terminal) per §4.4's close-decision table.
func (r *Runner) onClose(ctx context.Context, loggedOut bool, reason string) {
	wasOpen := r.runtime.State() == session.StateOpen
	r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusDisconnected, "")
	r.journal.Record(ctx, r.sess.ID, journal.KindStateChange, reason)
	if wasOpen && r.out != nil {
		r.out.Stop()
	}
	r.runtime.SetState(session.StateIdle)

	shouldWipe := loggedOut || strings.Contains(strings.ToLower(reason), "bad session")
	fastReconnect := strings.Contains(reason, "515")
	r.transitionToIdle(ctx, shouldWipe, fastReconnect)
}

// transitionToIdle applies the Idle-after-close decision table: terminal
// (not desired/intentional stop), wipe-and-restart, 515 fast reconnect, or
// backoff reconnect.
func (r *Runner) transitionToIdle(ctx context.Context, shouldWipe, fastReconnect bool) {
	if r.runtime.IntentionalStop() || !r.manager.IsDesired(r.sess.ID) {
		return
	}
	if shouldWipe {
		r.wipeAuthAndRestart(ctx)
		return
	}
	if fastReconnect {
		time.AfterFunc(Restart515Delay(), func() { r.Connect(ctx) })
		return
	}
	attempt := r.runtime.NextReconnectAttempt()
	delay := BackoffFor(attempt)
	time.AfterFunc(delay, func() { r.Connect(ctx) })
}

func (r *Runner) wipeAuthAndRestart(ctx context.Context) {
	r.runtime.SetState(session.StateWipedPendingRestart)
	r.mu.Lock()
	r.client = nil
	r.mu.Unlock()
	r.journal.Record(ctx, r.sess.ID, journal.KindAuthWipe, "")
	if err := os.RemoveAll(r.sess.AuthPath(r.authBase)); err != nil {
		r.log.Warn().Err(err).Msg("failed to wipe auth dir")
	}
	r.manager.ResetRuntime(r.sess.ID)
	r.runtime.SetState(session.StateIdle)
	r.manager.EnsureRunning(r.sess.ID)
}

// recordClientError feeds the bad-MAC circuit breaker (§4.4). Trips wipe the
// auth directory and restart via the manager, same as shouldWipeAuth.
func (r *Runner) recordClientError(ctx context.Context, errText string) {
	lower := strings.ToLower(errText)
	if !strings.Contains(lower, "bad mac") && !strings.Contains(lower, "failed to decrypt message") && !strings.Contains(lower, "no matching sessions found") {
		return
	}
	tripped := r.runtime.RecordBadMac(time.Now(), BadMacWindow, BadMacThreshold, BadMacCooldown)
	if !tripped {
		return
	}
	r.log.Warn().Msg("bad-mac circuit breaker tripped, wiping auth")
	r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusDisconnected, "")
	r.journal.Record(ctx, r.sess.ID, journal.KindBreakerTrip, errText)
	r.wipeAuthAndRestart(ctx)
}

// Stop ends the session intentionally: stops outbound, ends the socket and
// posts DISCONNECTED; no reconnect follows (§4.4, §4.7 stopGracefully).
func (r *Runner) Stop(ctx context.Context) {
	r.enqueue(func() {
		r.runtime.SetIntentionalStop(true)
		if r.out != nil {
			r.out.Stop()
		}
		r.mu.Lock()
		client := r.client
		r.client = nil
		r.mu.Unlock()
		if client != nil {
			client.Disconnect()
		}
		r.runtime.SetState(session.StateIdle)
		r.edge.UpdateStatus(ctx, r.sess.ID, edge.StatusDisconnected, "")
	})
}

// inboundClientAdapter narrows *whatsmeow.Client to inbound.WAClient.
type inboundClientAdapter struct{ c *whatsmeow.Client }

func (a inboundClientAdapter) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return a.c.Download(ctx, msg)
}

func (a inboundClientAdapter) ResolvePNForLID(ctx context.Context, lid types.JID) (types.JID, error) {
	if a.c.Store == nil || a.c.Store.LIDs == nil {
		return types.JID{}, nil
	}
	return a.c.Store.LIDs.GetPNForLID(ctx, lid)
}
