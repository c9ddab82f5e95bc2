package outbound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"waworker/internal/edge"
)

func TestNormalizeOutboundTo(t *testing.T) {
	cases := map[string]string{
		"5511999999999":             "5511999999999@s.whatsapp.net",
		"123456-654321":             "123456-654321@g.us",
		"123@lid":                   "123@lid",
		"1203-group@g.us":           "1203-group@g.us",
		"5511999999999@s.whatsapp.net": "5511999999999@s.whatsapp.net",
		"not-a-number":              "not-a-number",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeOutboundTo(in), "input %q", in)
	}
}

func TestNormalizeOutboundTo_Idempotent(t *testing.T) {
	inputs := []string{"5511999999999", "123456-654321", "123@lid", "whatever"}
	for _, in := range inputs {
		once := NormalizeOutboundTo(in)
		twice := NormalizeOutboundTo(once)
		assert.Equal(t, once, twice)
	}
}

type fakeResolver struct {
	result *edge.PrimaryJIDResult
	err    *edge.Error
}

func (f *fakeResolver) PrimaryJID(ctx context.Context, instanceID, jid string) (*edge.PrimaryJIDResult, *edge.Error) {
	return f.result, f.err
}

func TestResolveDestination_LIDWithMapping(t *testing.T) {
	r := &fakeResolver{result: &edge.PrimaryJIDResult{JIDPN: "5511888@s.whatsapp.net"}}
	dest, reason := ResolveDestination(context.Background(), r, "inst-1", "1203630@lid")
	assert.Equal(t, "5511888@s.whatsapp.net", dest)
	assert.Empty(t, reason)
}

func TestResolveDestination_LIDWithoutMapping(t *testing.T) {
	r := &fakeResolver{result: nil}
	dest, reason := ResolveDestination(context.Background(), r, "inst-1", "1203630@lid")
	assert.Empty(t, dest)
	assert.Equal(t, ErrLIDWithoutMapping, reason)
}

func TestResolveDestination_PlainDigits(t *testing.T) {
	r := &fakeResolver{}
	dest, reason := ResolveDestination(context.Background(), r, "inst-1", "5511999999999")
	assert.Equal(t, "5511999999999@s.whatsapp.net", dest)
	assert.Empty(t, reason)
}
