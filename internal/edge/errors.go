package edge

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// ErrorKind tags an error with its handling category so call sites branch on
// a fixed enum instead of re-matching message substrings (see design notes).
type ErrorKind string

const (
	KindLoggedOut        ErrorKind = "logged_out"
	KindBadSession       ErrorKind = "bad_session"
	KindRestart515       ErrorKind = "restart_515"
	KindTimeout          ErrorKind = "timeout"
	KindHTTPStatus       ErrorKind = "http_status"
	KindSignalDecrypt    ErrorKind = "signal_decrypt"
	KindSignalNoSession  ErrorKind = "signal_no_session"
	KindBadMac           ErrorKind = "bad_mac"
	KindDuplicateContact ErrorKind = "duplicate_contact"
	KindOther            ErrorKind = "other"
)

// Error is the single error type carried across EdgeClient and the
// connection/outbound runners. StatusCode is -1 when the error did not
// originate from an HTTP response.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsDuplicateConflict reports the 409/500-body duplicate-contact shape from §4.1.
func (e *Error) IsDuplicateConflict() bool { return e.Kind == KindDuplicateContact }

// ClassifyHTTP builds a tagged *Error from an HTTP round trip outcome.
func ClassifyHTTP(err error, statusCode int, body string) *Error {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{Kind: KindTimeout, StatusCode: -1, Reason: "timeout", Err: err}
		}
		return &Error{Kind: KindOther, StatusCode: -1, Reason: err.Error(), Err: err}
	}
	if statusCode == 409 || isDuplicateBody(body) {
		return &Error{Kind: KindDuplicateContact, StatusCode: statusCode, Body: body, Reason: "duplicate conflict"}
	}
	if statusCode >= 400 {
		return &Error{Kind: KindHTTPStatus, StatusCode: statusCode, Body: body, Reason: "http status " + strconv.Itoa(statusCode)}
	}
	return nil
}

func isDuplicateBody(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "duplicate key value") ||
		strings.Contains(lower, "contacts_instance_id_jid_key") ||
		strings.Contains(lower, "23505")
}

// ClassifyClientError tags an error surfaced by the WhatsApp client library,
// matching against its message text the way §4.4/§4.7's design notes describe.
func ClassifyClientError(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bad session"):
		return &Error{Kind: KindBadSession, StatusCode: -1, Reason: err.Error(), Err: err}
	case strings.Contains(msg, "bad mac"):
		return &Error{Kind: KindBadMac, StatusCode: -1, Reason: err.Error(), Err: err}
	case strings.Contains(msg, "failed to decrypt message"):
		return &Error{Kind: KindSignalDecrypt, StatusCode: -1, Reason: err.Error(), Err: err}
	case strings.Contains(msg, "no matching sessions found"):
		return &Error{Kind: KindSignalNoSession, StatusCode: -1, Reason: err.Error(), Err: err}
	default:
		return &Error{Kind: KindOther, StatusCode: -1, Reason: err.Error(), Err: err}
	}
}

// IsBadMacFamily reports whether the kind belongs to the circuit-breaker window (§4.4).
func (k ErrorKind) IsBadMacFamily() bool {
	return k == KindBadMac || k == KindSignalDecrypt || k == KindSignalNoSession
}
