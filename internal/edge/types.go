package edge

// Settings is the response of getSettings (§4.1).
type Settings struct {
	MaxActiveInstances *int `json:"max_active_instances"`
}

// EligibleInstance is one entry of listEligible's instances array.
type EligibleInstance struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

type eligibleResponse struct {
	Instances []EligibleInstance `json:"instances"`
}

// StatusUpdate is the body of updateStatus.
type StatusUpdate struct {
	InstanceID string `json:"instanceId"`
	Status     string `json:"status"`
	QRCode     string `json:"qr_code,omitempty"`
}

// Status values posted via updateStatus (§4.4).
const (
	StatusConnecting   = "CONNECTING"
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
)

// QueuedMessage is one record returned by listQueued (§6). The validate tags
// encode the §4.5 malformed-message rule: id and to are required, and at
// least one of body/media_url must be present.
type QueuedMessage struct {
	ID        string `json:"id" validate:"required"`
	To        string `json:"to" validate:"required"`
	Body      string `json:"body,omitempty" validate:"required_without=MediaURL"`
	MediaURL  string `json:"media_url,omitempty" validate:"required_without=Body"`
	MediaType string `json:"media_type,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// SendDebug accompanies both mark-sent and mark-failed calls (§4.5).
type SendDebug struct {
	OriginalTo   string `json:"original_to"`
	NormalizedTo string `json:"normalized_to,omitempty"`
	Attempts     int    `json:"attempts"`
	Stack        string `json:"stack,omitempty"`
}

type markSentRequest struct {
	MessageID   string    `json:"messageId"`
	WAMessageID string    `json:"wa_message_id"`
	SendDebug   SendDebug `json:"send_debug"`
}

type markFailedRequest struct {
	MessageID string    `json:"messageId"`
	Error     string    `json:"error"`
	SendDebug SendDebug `json:"send_debug"`
}

// InboundPayload is posted to /inbound (§6).
type InboundPayload struct {
	InstanceID       string `json:"instanceId"`
	From             string `json:"from"`
	To               string `json:"to"`
	Body             string `json:"body"`
	WAMessageID      string `json:"wa_message_id"`
	FromMe           bool   `json:"from_me"`
	ChatIDNorm       string `json:"chat_id_norm"`
	SenderJIDRaw     string `json:"sender_jid_raw"`
	SenderPN         string `json:"sender_pn,omitempty"`
	SenderContactID  string `json:"sender_contact_id,omitempty"`
	PushName         string `json:"push_name,omitempty"`
	MediaType        string `json:"media_type,omitempty"`
	MediaURL         string `json:"media_url,omitempty"`
	MimeType         string `json:"mime_type,omitempty"`
	FileName         string `json:"file_name,omitempty"`
	FileSize         int    `json:"file_size,omitempty"`
}

type resolveContactRequest struct {
	InstanceID string `json:"instanceId"`
	JID        string `json:"jid"`
	JIDType    string `json:"jid_type"`
	PushName   string `json:"push_name,omitempty"`
}

// ResolveContactResult is the response of resolveContact.
type ResolveContactResult struct {
	ContactID string `json:"contact_id"`
}

// PrimaryJIDResult is the response of primaryJid; nil when unknown.
type PrimaryJIDResult struct {
	JIDPN string `json:"jid_pn"`
}

type uploadMediaRequest struct {
	InstanceID  string `json:"instanceId"`
	MessageID   string `json:"messageId"`
	MimeType    string `json:"mime_type"`
	FileName    string `json:"file_name"`
	BytesBase64 string `json:"bytes_base64"`
}

// UploadMediaResult is the response of uploadMedia.
type UploadMediaResult struct {
	MediaURL string `json:"media_url"`
}

type refreshSessionRequest struct {
	InstanceID string `json:"instanceId"`
	JID        string `json:"jid"`
	Trigger    string `json:"trigger"`
}

// Trigger values for refreshSession (§4.5).
const TriggerNoMatchingSessions = "no_matching_sessions"

// LockRequest is the shared request body for acquire/renew/release (§6).
type LockRequest struct {
	InstanceID    string `json:"instanceId"`
	InstanceOwner string `json:"instance_owner"`
	TTLMs         int64  `json:"ttl_ms"`
	LockToken     string `json:"lock_token,omitempty"`
}

// LockResponse is the shared response body for acquire/renew/release (§6).
type LockResponse struct {
	Acquired      bool   `json:"acquired"`
	InstanceOwner string `json:"instance_owner"`
	LockToken     string `json:"lock_token"`
}
