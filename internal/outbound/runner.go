package outbound

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"waworker/internal/edge"
	"waworker/pkg/logger"
)

// MaxSendAttempts is DECRYPT_RETRY_MAX_ATTEMPTS+1 from §4.5 (default 4 total attempts).
const MaxSendAttempts = 4

// validate checks a queued message against the malformed-message rule (§4.5):
// id and to required, and at least one of body/media_url present.
var validate = validator.New()

// SessionRefreshBackoff is the sleep schedule between session-refresh retries (§4.5).
var SessionRefreshBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}

// WAClient is the subset of *whatsmeow.Client the runner depends on.
type WAClient interface {
	SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
}

// EdgeOps is the subset of edge.Client the runner depends on.
type EdgeOps interface {
	PrimaryJIDResolver
	ListQueued(ctx context.Context, instanceID string) ([]edge.QueuedMessage, *edge.Error)
	MarkSent(ctx context.Context, messageID, waMessageID string, debug edge.SendDebug) *edge.Error
	MarkFailed(ctx context.Context, messageID, reason string, debug edge.SendDebug) *edge.Error
	RefreshSession(ctx context.Context, instanceID, jid, trigger string) *edge.Error
}

// Canonicalizer is the identity-alias lookup the runner needs before each send attempt.
type Canonicalizer interface {
	ResolveCanonical(jid, fallbackPN string) string
}

// ClientProvider returns the live client for the session, or ok=false when
// the session is not currently Open (§4.5 step 1).
type ClientProvider func() (WAClient, bool)

// Runner is the per-session outbound queue drain of §4.5.
type Runner struct {
	sessionID    string
	edge         EdgeOps
	alias        Canonicalizer
	getClient    ClientProvider
	pollInterval time.Duration
	httpClient   *http.Client
	log          logger.Logger

	processing int32 // 0/1, CAS guard against overlapping ticks
	stopCh     chan struct{}
	stoppedWG  sync.WaitGroup
}

// New builds a Runner for one session. It does not start polling until Start is called.
func New(sessionID string, edgeOps EdgeOps, alias Canonicalizer, getClient ClientProvider, pollInterval time.Duration, log logger.Logger) *Runner {
	return &Runner{
		sessionID:    sessionID,
		edge:         edgeOps,
		alias:        alias,
		getClient:    getClient,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log.WithComponent("outbound-runner").WithField("session_id", sessionID),
	}
}

// Start begins the poll ticker. Safe to call once per Open transition.
func (r *Runner) Start(ctx context.Context) {
	r.stopCh = make(chan struct{})
	r.stoppedWG.Add(1)
	go r.loop(ctx)
}

// Stop ends the poll ticker and waits for any in-flight tick to finish.
func (r *Runner) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	r.stoppedWG.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.stoppedWG.Done()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one poll cycle, reentrancy-guarded so at most one is in flight (§5, §8).
func (r *Runner) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&r.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&r.processing, 0)

	client, ok := r.getClient()
	if !ok {
		return
	}

	msgs, err := r.edge.ListQueued(ctx, r.sessionID)
	if err != nil {
		r.log.Error().Err(err).Msg("listQueued failed, retrying next tick")
		return
	}

	for _, m := range msgs {
		r.processMessage(ctx, client, m)
	}
}

func (r *Runner) processMessage(ctx context.Context, client WAClient, m edge.QueuedMessage) {
	markFailed := func(reason string, debug edge.SendDebug) {
		if e := r.edge.MarkFailed(ctx, m.ID, reason, debug); e != nil {
			r.log.Warn().Err(e).Str("message_id", m.ID).Msg("markFailed failed")
		}
	}

	if err := validate.Struct(m); err != nil {
		markFailed("malformed-message", newSendDebug(m.To, "", 0, ""))
		return
	}

	dest, reason := ResolveDestination(ctx, r.edge, r.sessionID, m.To)
	if reason != "" {
		markFailed(reason, newSendDebug(m.To, "", 0, ""))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= MaxSendAttempts; attempt++ {
		canonical := r.alias.ResolveCanonical(dest, "")

		waMessageID, sendErr := r.sendByType(ctx, client, canonical, m)
		if sendErr == nil {
			r.edge.MarkSent(ctx, m.ID, waMessageID, newSendDebug(m.To, canonical, attempt, ""))
			return
		}
		lastErr = sendErr

		cerr := edge.ClassifyClientError(sendErr)
		if cerr.Kind != edge.KindSignalNoSession || attempt >= MaxSendAttempts {
			break
		}

		if e := r.edge.RefreshSession(ctx, r.sessionID, canonical, edge.TriggerNoMatchingSessions); e != nil {
			r.log.Warn().Err(e).Msg("refreshSession failed")
		}
		select {
		case <-time.After(SessionRefreshBackoff[attempt-1]):
		case <-ctx.Done():
			return
		}
	}

	markFailed(lastErr.Error(), newSendDebug(m.To, dest, MaxSendAttempts, fmt.Sprintf("%+v", lastErr)))
}

// sendByType dispatches the send-by-type rules of §4.5.
func (r *Runner) sendByType(ctx context.Context, client WAClient, destJID string, m edge.QueuedMessage) (string, error) {
	jid, err := types.ParseJID(destJID)
	if err != nil {
		return "", err
	}

	var msg *waE2E.Message
	if m.MediaURL == "" {
		msg = &waE2E.Message{Conversation: proto.String(m.Body)}
	} else {
		data, mimeType, err := r.downloadMedia(ctx, m)
		if err != nil {
			return "", err
		}
		msg, err = r.buildMediaMessage(ctx, client, m, data, mimeType)
		if err != nil {
			return "", err
		}
	}

	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *Runner) downloadMedia(ctx context.Context, m edge.QueuedMessage) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.MediaURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("media download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	mimeType := m.MimeType
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	return data, mimeType, nil
}

func (r *Runner) buildMediaMessage(ctx context.Context, client WAClient, m edge.QueuedMessage, data []byte, mimeType string) (*waE2E.Message, error) {
	switch m.MediaType {
	case "image":
		uploaded, err := client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, err
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption: proto.String(m.Body), URL: proto.String(uploaded.URL), DirectPath: proto.String(uploaded.DirectPath),
			MediaKey: uploaded.MediaKey, Mimetype: proto.String(mimeType), FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256: uploaded.FileSHA256, FileLength: proto.Uint64(uploaded.FileLength),
		}}, nil
	case "video":
		uploaded, err := client.Upload(ctx, data, whatsmeow.MediaVideo)
		if err != nil {
			return nil, err
		}
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption: proto.String(m.Body), URL: proto.String(uploaded.URL), DirectPath: proto.String(uploaded.DirectPath),
			MediaKey: uploaded.MediaKey, Mimetype: proto.String(mimeType), FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256: uploaded.FileSHA256, FileLength: proto.Uint64(uploaded.FileLength),
		}}, nil
	case "audio":
		mt := mimeType
		if mt == "" {
			mt = "audio/ogg"
		}
		uploaded, err := client.Upload(ctx, data, whatsmeow.MediaAudio)
		if err != nil {
			return nil, err
		}
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL: proto.String(uploaded.URL), DirectPath: proto.String(uploaded.DirectPath),
			MediaKey: uploaded.MediaKey, Mimetype: proto.String(mt), FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256: uploaded.FileSHA256, FileLength: proto.Uint64(uploaded.FileLength), PTT: proto.Bool(false),
		}}, nil
	default: // document, and the default fallback per §4.5
		mt := mimeType
		if mt == "" {
			mt = "application/octet-stream"
		}
		fileName := m.FileName
		if fileName == "" {
			fileName = "document-" + m.ID
		}
		uploaded, err := client.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return nil, err
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption: proto.String(m.Body), URL: proto.String(uploaded.URL), DirectPath: proto.String(uploaded.DirectPath),
			MediaKey: uploaded.MediaKey, Mimetype: proto.String(mt), FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256: uploaded.FileSHA256, FileLength: proto.Uint64(uploaded.FileLength), FileName: proto.String(fileName),
		}}, nil
	}
}
