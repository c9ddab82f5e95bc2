package inbound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"waworker/internal/edge"
	"waworker/pkg/logger"
)

type fakeCanon struct {
	pairs map[string]string
}

func (f *fakeCanon) RememberPair(lid, pn string) (bool, error) {
	if f.pairs == nil {
		f.pairs = map[string]string{}
	}
	f.pairs[lid] = pn
	return true, nil
}

func (f *fakeCanon) ResolveCanonical(jid, fallbackPN string) string { return jid }

type fakeInboundEdge struct {
	uploadResult  *edge.UploadMediaResult
	uploadErr     *edge.Error
	resolveResult *edge.ResolveContactResult
	resolveErr    *edge.Error
	posted        []edge.InboundPayload
}

func (f *fakeInboundEdge) UploadMedia(ctx context.Context, instanceID, messageID, mimeType, fileName, bytesBase64 string) (*edge.UploadMediaResult, *edge.Error) {
	return f.uploadResult, f.uploadErr
}

func (f *fakeInboundEdge) ResolveContact(ctx context.Context, instanceID, jid, jidType, pushName string) (*edge.ResolveContactResult, *edge.Error) {
	return f.resolveResult, f.resolveErr
}

func (f *fakeInboundEdge) PostInbound(ctx context.Context, payload edge.InboundPayload) *edge.Error {
	f.posted = append(f.posted, payload)
	return nil
}

type noMediaClient struct{}

func (noMediaClient) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return nil, nil
}

func (noMediaClient) ResolvePNForLID(ctx context.Context, lid types.JID) (types.JID, error) {
	return types.JID{}, nil
}

func mustJID(t *testing.T, s string) types.JID {
	j, err := types.ParseJID(s)
	require.NoError(t, err)
	return j
}

func TestRelay_HandleMessage_TextDM(t *testing.T) {
	fe := &fakeInboundEdge{resolveResult: &edge.ResolveContactResult{ContactID: "contact-1"}}
	fc := &fakeCanon{}
	r := New("sess-1", "5511000000000@s.whatsapp.net", fe, fc, func() (WAClient, bool) { return noMediaClient{}, true }, logger.SetupForTesting())

	evt := &events.Message{
		Info: types.MessageInfo{
			ID:       "wamid-1",
			Chat:     mustJID(t, "5511999999999@s.whatsapp.net"),
			Sender:   mustJID(t, "5511999999999@s.whatsapp.net"),
			IsFromMe: false,
			PushName: "Alice",
		},
		Message: &waE2E.Message{Conversation: proto.String("hi there")},
	}

	r.HandleMessage(context.Background(), evt)

	require.Len(t, fe.posted, 1)
	p := fe.posted[0]
	assert.Equal(t, "hi there", p.Body)
	assert.Equal(t, "wamid-1", p.WAMessageID)
	assert.Equal(t, "contact-1", p.SenderContactID)
	assert.Empty(t, p.MediaType)
}

func TestRelay_HandleMessage_EmptyContentSkipped(t *testing.T) {
	fe := &fakeInboundEdge{}
	fc := &fakeCanon{}
	r := New("sess-1", "5511000000000@s.whatsapp.net", fe, fc, func() (WAClient, bool) { return noMediaClient{}, true }, logger.SetupForTesting())

	evt := &events.Message{
		Info: types.MessageInfo{
			ID:   "wamid-2",
			Chat: mustJID(t, "5511999999999@s.whatsapp.net"),
		},
		Message: &waE2E.Message{},
	}

	r.HandleMessage(context.Background(), evt)
	assert.Empty(t, fe.posted)
}

func TestRelay_HandleMessage_UploadMediaFailureSkipsPost(t *testing.T) {
	fe := &fakeInboundEdge{uploadErr: &edge.Error{Kind: edge.KindHTTPStatus}}
	fc := &fakeCanon{}
	r := New("sess-1", "5511000000000@s.whatsapp.net", fe, fc, func() (WAClient, bool) { return noMediaClient{}, true }, logger.SetupForTesting())

	evt := &events.Message{
		Info: types.MessageInfo{
			ID:   "wamid-3",
			Chat: mustJID(t, "5511999999999@s.whatsapp.net"),
		},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic")}},
	}

	r.HandleMessage(context.Background(), evt)
	assert.Empty(t, fe.posted)
}
