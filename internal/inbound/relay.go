// Package inbound implements the messages.upsert event handler (§4.6):
// identity-alias learning, content extraction, media download/upload, sender
// contact resolution, and the POST to /inbound.
package inbound

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"waworker/internal/edge"
	"waworker/internal/session"
	"waworker/pkg/logger"
)

// ContactResolveErrorCooldown and ContactResolveDuplicateCooldown are the
// negative-cache TTLs of §4.6 step 6. Overridable for tests.
var (
	ContactResolveErrorCooldown     = time.Minute
	ContactResolveDuplicateCooldown = 5 * time.Minute
)

// WAClient is the subset of *whatsmeow.Client the relay needs: media download
// and the device's persistent LID/PN identity store (Store.LIDs).
type WAClient interface {
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
	ResolvePNForLID(ctx context.Context, lid types.JID) (types.JID, error)
}

// Canonicalizer is the identity-alias store the relay learns pairs into.
type Canonicalizer interface {
	RememberPair(lid, pn string) (bool, error)
	ResolveCanonical(jid, fallbackPN string) string
}

// EdgeOps is the subset of edge.Client the relay depends on.
type EdgeOps interface {
	UploadMedia(ctx context.Context, instanceID, messageID, mimeType, fileName, bytesBase64 string) (*edge.UploadMediaResult, *edge.Error)
	ResolveContact(ctx context.Context, instanceID, jid, jidType, pushName string) (*edge.ResolveContactResult, *edge.Error)
	PostInbound(ctx context.Context, payload edge.InboundPayload) *edge.Error
}

// mimetyped is satisfied by whatsmeow's image/video/audio/document message types.
type mimetyped interface {
	GetMimetype() string
}

// Relay is the per-session inbound pipeline.
type Relay struct {
	sessionID string
	ownJID    string
	edge      EdgeOps
	alias     Canonicalizer
	getClient func() (WAClient, bool)
	cache     *session.ContactCache
	log       logger.Logger
}

// New builds a Relay for one session. ownJID is the session's own bare JID,
// used to compute senderJidRaw/contactJid for own-sent messages.
func New(sessionID, ownJID string, edgeOps EdgeOps, alias Canonicalizer, getClient func() (WAClient, bool), log logger.Logger) *Relay {
	return &Relay{
		sessionID: sessionID,
		ownJID:    ownJID,
		edge:      edgeOps,
		alias:     alias,
		getClient: getClient,
		cache:     session.NewContactCache(),
		log:       log.WithComponent("inbound-relay").WithField("session_id", sessionID),
	}
}

// HandleMessage processes one events.Message (messages.upsert, type notify/append).
func (r *Relay) HandleMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.Chat.String() == "" {
		return
	}

	senderPN := r.learnIdentityPair(ctx, evt)

	chatIDNorm := r.alias.ResolveCanonical(evt.Info.Chat.String(), "")
	isGroup := strings.HasSuffix(chatIDNorm, "@g.us")

	senderJIDRaw := evt.Info.Chat.String()
	if isGroup {
		senderJIDRaw = evt.Info.Sender.String()
	} else if evt.Info.IsFromMe {
		senderJIDRaw = r.ownJID
	}

	contactJID := senderPN
	if evt.Info.IsFromMe {
		contactJID = chatIDNorm
	} else if contactJID == "" {
		contactJID = senderJIDRaw
	}

	content := extractContent(evt.Message)
	if content.isEmpty() {
		return
	}

	payload := edge.InboundPayload{
		InstanceID:   r.sessionID,
		From:         senderJIDRaw,
		To:           evt.Info.Chat.String(),
		Body:         content.Body,
		WAMessageID:  evt.Info.ID,
		FromMe:       evt.Info.IsFromMe,
		ChatIDNorm:   chatIDNorm,
		SenderJIDRaw: senderJIDRaw,
		SenderPN:     senderPN,
		PushName:     evt.Info.PushName,
	}

	if content.MediaType != "" {
		if !r.attachMedia(ctx, &payload, content) {
			return // upload-media failure: skip this message entirely (§4.6 step 5)
		}
	}

	if !evt.Info.IsFromMe {
		payload.SenderContactID = r.resolveSenderContact(ctx, contactJID, evt.Info.PushName)
	}

	if err := r.edge.PostInbound(ctx, payload); err != nil {
		r.log.Warn().Err(err).Str("wa_message_id", evt.Info.ID).Msg("postInbound failed")
	}
}

// learnIdentityPair resolves the sender's phone JID from the device's
// persistent LID store, grounded on whatsmeow's Store.LIDs.GetPNForLID, and
// records the pair for future canonicalization. Returns the resolved PN, if any.
func (r *Relay) learnIdentityPair(ctx context.Context, evt *events.Message) string {
	if !strings.HasSuffix(evt.Info.Sender.String(), "@lid") {
		return ""
	}
	client, ok := r.getClient()
	if !ok {
		return ""
	}
	pn, err := client.ResolvePNForLID(ctx, evt.Info.Sender)
	if err != nil || pn.IsEmpty() {
		return ""
	}
	pnStr := pn.String()
	if _, err := r.alias.RememberPair(evt.Info.Sender.String(), pnStr); err != nil {
		r.log.Warn().Err(err).Msg("rememberPair failed")
	}
	return pnStr
}

// attachMedia downloads, sanitizes, and uploads media, filling in the
// payload's media fields. It returns false when the message must be skipped.
func (r *Relay) attachMedia(ctx context.Context, payload *edge.InboundPayload, content extracted) bool {
	client, ok := r.getClient()
	if !ok {
		return false
	}

	data, err := client.Download(ctx, content.Content)
	if err != nil {
		r.log.Warn().Err(err).Str("media_type", content.MediaType).Msg("media download failed")
		return false
	}

	mimeType := ""
	if mt, ok := content.Content.(mimetyped); ok {
		mimeType = mt.GetMimetype()
	}
	ext := extensionFor(mimeType, content.MediaType)
	fileName := sanitizeFileName(payload.WAMessageID) + ext

	result, uerr := r.edge.UploadMedia(ctx, r.sessionID, payload.WAMessageID, mimeType, fileName, base64.StdEncoding.EncodeToString(data))
	if uerr != nil || result == nil {
		r.log.Warn().Err(uerr).Msg("uploadMedia failed")
		return false
	}

	payload.MediaType = content.MediaType
	payload.MediaURL = result.MediaURL
	payload.MimeType = mimeType
	payload.FileName = fileName
	payload.FileSize = len(data)
	return true
}

func (r *Relay) resolveSenderContact(ctx context.Context, contactJID, pushName string) string {
	if contactJID == "" {
		return ""
	}
	now := time.Now()
	if cached, ok := r.cache.Get(contactJID, now); ok {
		return cached
	}

	jidType := "pn"
	if strings.HasSuffix(contactJID, "@lid") {
		jidType = "lid"
	}

	result, err := r.edge.ResolveContact(ctx, r.sessionID, contactJID, jidType, pushName)
	if err != nil {
		ttl := ContactResolveErrorCooldown
		if err.IsDuplicateConflict() {
			ttl = ContactResolveDuplicateCooldown
		}
		r.cache.Put(contactJID, "", ttl, now)
		return ""
	}
	if result == nil {
		r.cache.Put(contactJID, "", ContactResolveErrorCooldown, now)
		return ""
	}
	r.cache.Put(contactJID, result.ContactID, 24*time.Hour, now)
	return result.ContactID
}

