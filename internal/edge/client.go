// Package edge implements the typed HTTP client to the control plane.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"waworker/pkg/logger"
)

// Client is a stateless typed HTTP client to the control plane, matching the
// teacher's webhook service in shape: one *http.Client, bearer auth, a
// per-request context timeout, and typed status-code handling.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	timeout time.Duration
	log     logger.Logger
}

// New builds a Client. baseURL has any trailing "/inbound" stripped per §6.
func New(baseURL, secret string, timeout time.Duration, log logger.Logger) *Client {
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/inbound")
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log.WithComponent("edge-client"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody any, out any) *Error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return &Error{Kind: KindOther, StatusCode: -1, Reason: "marshal request", Err: err}
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return &Error{Kind: KindOther, StatusCode: -1, Reason: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ClassifyHTTP(err, -1, "")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassifyHTTP(nil, resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindOther, StatusCode: resp.StatusCode, Reason: "decode response", Err: err}
		}
	}
	return nil
}

// GetSettings returns nil on any failure, per §4.1 ("or null on failure").
func (c *Client) GetSettings(ctx context.Context) *Settings {
	var out Settings
	if e := c.do(ctx, http.MethodGet, "/worker-settings", nil, nil, &out); e != nil {
		c.log.Warn().Err(e).Msg("getSettings failed")
		return nil
	}
	return &out
}

// ListEligible returns the ordered eligible-instance list.
func (c *Client) ListEligible(ctx context.Context, enabled bool, limit int, order string) ([]EligibleInstance, *Error) {
	q := url.Values{}
	q.Set("enabled", strconv.FormatBool(enabled))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", order)

	var out eligibleResponse
	if e := c.do(ctx, http.MethodGet, "/eligible-instances", q, nil, &out); e != nil {
		return nil, e
	}
	return out.Instances, nil
}

// UpdateStatus is fire-and-forget; failures are logged, never returned.
func (c *Client) UpdateStatus(ctx context.Context, instanceID, status, qrCode string) {
	body := StatusUpdate{InstanceID: instanceID, Status: status, QRCode: qrCode}
	if e := c.do(ctx, http.MethodPost, "/update-status", nil, body, nil); e != nil {
		c.log.Warn().Err(e).Str("session_id", instanceID).Str("status", status).Msg("updateStatus failed")
	}
}

// ListQueued returns the queued messages for instanceID.
func (c *Client) ListQueued(ctx context.Context, instanceID string) ([]QueuedMessage, *Error) {
	q := url.Values{"instanceId": {instanceID}}
	var out []QueuedMessage
	if e := c.do(ctx, http.MethodGet, "/queued-messages", q, nil, &out); e != nil {
		return nil, e
	}
	return out, nil
}

// MarkSent reports a successful send.
func (c *Client) MarkSent(ctx context.Context, messageID, waMessageID string, debug SendDebug) *Error {
	return c.do(ctx, http.MethodPost, "/mark-sent", nil, markSentRequest{
		MessageID: messageID, WAMessageID: waMessageID, SendDebug: debug,
	}, nil)
}

// MarkFailed reports a failed send; best-effort per §4.5 (caller logs but does not halt).
func (c *Client) MarkFailed(ctx context.Context, messageID, reason string, debug SendDebug) *Error {
	return c.do(ctx, http.MethodPost, "/mark-failed", nil, markFailedRequest{
		MessageID: messageID, Error: reason, SendDebug: debug,
	}, nil)
}

// PostInbound delivers one relayed message.
func (c *Client) PostInbound(ctx context.Context, payload InboundPayload) *Error {
	return c.do(ctx, http.MethodPost, "/inbound", nil, payload, nil)
}

// ResolveContact resolves a sender identity to a control-plane contact id.
func (c *Client) ResolveContact(ctx context.Context, instanceID, jid, jidType, pushName string) (*ResolveContactResult, *Error) {
	var out ResolveContactResult
	e := c.do(ctx, http.MethodPost, "/contacts/resolve", nil, resolveContactRequest{
		InstanceID: instanceID, JID: jid, JIDType: jidType, PushName: pushName,
	}, &out)
	if e != nil {
		return nil, e
	}
	return &out, nil
}

// PrimaryJID resolves a @lid pseudonym to its phone JID; returns nil when unknown.
func (c *Client) PrimaryJID(ctx context.Context, instanceID, jid string) (*PrimaryJIDResult, *Error) {
	q := url.Values{"instanceId": {instanceID}, "jid": {jid}}
	var out PrimaryJIDResult
	if e := c.do(ctx, http.MethodGet, "/contacts/primary-jid", q, nil, &out); e != nil {
		return nil, e
	}
	if out.JIDPN == "" {
		return nil, nil
	}
	return &out, nil
}

// UploadMedia uploads base64-encoded bytes and returns the stored media URL.
func (c *Client) UploadMedia(ctx context.Context, instanceID, messageID, mimeType, fileName, bytesBase64 string) (*UploadMediaResult, *Error) {
	var out UploadMediaResult
	e := c.do(ctx, http.MethodPost, "/upload-media", nil, uploadMediaRequest{
		InstanceID: instanceID, MessageID: messageID, MimeType: mimeType, FileName: fileName, BytesBase64: bytesBase64,
	}, &out)
	if e != nil {
		return nil, e
	}
	return &out, nil
}

// RefreshSession asks the control plane to refresh session state before a retry.
func (c *Client) RefreshSession(ctx context.Context, instanceID, jid, trigger string) *Error {
	return c.do(ctx, http.MethodPost, "/sessions/refresh", nil, refreshSessionRequest{
		InstanceID: instanceID, JID: jid, Trigger: trigger,
	}, nil)
}

func (c *Client) lockOp(ctx context.Context, op string, req LockRequest) (*LockResponse, *Error) {
	var out LockResponse
	e := c.do(ctx, http.MethodPost, fmt.Sprintf("/instance-lock/%s", op), nil, req, &out)
	if e != nil {
		return nil, e
	}
	return &out, nil
}

// AcquireLock attempts to take ownership of a session's lock.
func (c *Client) AcquireLock(ctx context.Context, instanceID, owner string, ttlMs int64) (*LockResponse, *Error) {
	return c.lockOp(ctx, "acquire", LockRequest{InstanceID: instanceID, InstanceOwner: owner, TTLMs: ttlMs})
}

// RenewLock extends the TTL of a held lock.
func (c *Client) RenewLock(ctx context.Context, instanceID, owner, token string, ttlMs int64) (*LockResponse, *Error) {
	return c.lockOp(ctx, "renew", LockRequest{InstanceID: instanceID, InstanceOwner: owner, TTLMs: ttlMs, LockToken: token})
}

// ReleaseLock gives up ownership; callers clear local state regardless of the result.
func (c *Client) ReleaseLock(ctx context.Context, instanceID, owner, token string) *Error {
	_, e := c.lockOp(ctx, "release", LockRequest{InstanceID: instanceID, InstanceOwner: owner, LockToken: token})
	return e
}
