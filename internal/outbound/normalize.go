// Package outbound implements the per-session queue drain (§4.5): destination
// normalization, send-by-type dispatch, and send-with-session-recovery retry.
package outbound

import (
	"context"
	"regexp"
	"strings"

	"waworker/internal/edge"
)

var digitsOnly = regexp.MustCompile(`^\d+$`)
var groupPattern = regexp.MustCompile(`^\d+-\d+$`)

// ErrLIDWithoutMapping is the resolveDestination failure reason of §4.5.
const ErrLIDWithoutMapping = "lid_without_mapping"

// PrimaryJIDResolver is the subset of edge.Client used to resolve @lid destinations.
type PrimaryJIDResolver interface {
	PrimaryJID(ctx context.Context, instanceID, jid string) (*edge.PrimaryJIDResult, *edge.Error)
}

// ResolveDestination implements the resolveDestination rules of §4.5. It
// returns the normalized JID, or an empty string and a reason on failure.
func ResolveDestination(ctx context.Context, resolver PrimaryJIDResolver, instanceID, to string) (string, string) {
	normalized := NormalizeOutboundTo(to)

	if strings.HasSuffix(normalized, "@lid") {
		res, err := resolver.PrimaryJID(ctx, instanceID, normalized)
		if err != nil || res == nil || !strings.HasSuffix(res.JIDPN, "@s.whatsapp.net") {
			return "", ErrLIDWithoutMapping
		}
		return res.JIDPN, ""
	}
	return normalized, ""
}

// NormalizeOutboundTo applies the destination-normalization rules of §4.5
// that do not require a control-plane round trip (pass-through, digit-only,
// group-pattern). It is idempotent: normalizing a normalized value is a no-op.
func NormalizeOutboundTo(to string) string {
	if strings.HasSuffix(to, "@lid") || strings.HasSuffix(to, "@g.us") || strings.HasSuffix(to, "@s.whatsapp.net") {
		return to
	}
	if digitsOnly.MatchString(to) {
		return to + "@s.whatsapp.net"
	}
	if groupPattern.MatchString(to) {
		return to + "@g.us"
	}
	return to
}
