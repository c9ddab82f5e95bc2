package inbound

import (
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

// extracted is the result of content extraction (§4.6 step 3).
type extracted struct {
	MediaType string
	Body      string
	Content   whatsmeow.DownloadableMessage
}

// extractContent applies the content-extraction priority order of §4.6:
// conversation, extendedTextMessage, image, video, audio, document. Only the
// first matching field wins.
func extractContent(msg *waE2E.Message) extracted {
	if msg == nil {
		return extracted{}
	}
	if c := msg.GetConversation(); c != "" {
		return extracted{Body: c}
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil && ext.GetText() != "" {
		return extracted{Body: ext.GetText()}
	}
	if img := msg.GetImageMessage(); img != nil {
		return extracted{MediaType: "image", Body: img.GetCaption(), Content: img}
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return extracted{MediaType: "video", Body: vid.GetCaption(), Content: vid}
	}
	if aud := msg.GetAudioMessage(); aud != nil {
		return extracted{MediaType: "audio", Content: aud}
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return extracted{MediaType: "document", Body: doc.GetCaption(), Content: doc}
	}
	return extracted{}
}

// isEmpty reports whether neither a body nor a media type was extracted,
// meaning the message carries nothing the relay can forward (§4.6 step 4).
func (e extracted) isEmpty() bool {
	return e.Body == "" && e.MediaType == ""
}
