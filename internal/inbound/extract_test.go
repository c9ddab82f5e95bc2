package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/proto"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

func TestExtractContent_ConversationWins(t *testing.T) {
	msg := &waE2E.Message{
		Conversation: proto.String("hello"),
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("ignored")},
	}
	got := extractContent(msg)
	assert.Equal(t, "hello", got.Body)
	assert.Empty(t, got.MediaType)
}

func TestExtractContent_ExtendedTextBeforeMedia(t *testing.T) {
	msg := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted reply")},
		DocumentMessage:     &waE2E.DocumentMessage{Caption: proto.String("ignored")},
	}
	got := extractContent(msg)
	assert.Equal(t, "quoted reply", got.Body)
	assert.Empty(t, got.MediaType)
}

func TestExtractContent_ImagePriorityOverVideo(t *testing.T) {
	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic")},
		VideoMessage: &waE2E.VideoMessage{Caption: proto.String("vid")},
	}
	got := extractContent(msg)
	assert.Equal(t, "image", got.MediaType)
	assert.Equal(t, "pic", got.Body)
}

func TestExtractContent_AudioHasNoCaption(t *testing.T) {
	msg := &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}
	got := extractContent(msg)
	assert.Equal(t, "audio", got.MediaType)
	assert.Empty(t, got.Body)
}

func TestExtractContent_Empty(t *testing.T) {
	got := extractContent(&waE2E.Message{})
	assert.True(t, got.isEmpty())
}

func TestExtractContent_NilMessage(t *testing.T) {
	got := extractContent(nil)
	assert.True(t, got.isEmpty())
}
