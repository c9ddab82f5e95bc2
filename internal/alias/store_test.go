package alias

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waworker/pkg/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	return logger.SetupForTesting()
}

func TestStore_RememberPair_ChangedOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "identity-alias-map.json"), testLogger(t))

	changed, err := s.RememberPair("123@lid", "5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.RememberPair("123@lid", "5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	assert.False(t, changed, "re-remembering the same pair must not report changed")
}

func TestStore_RememberPair_MapsAreInverses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity-alias-map.json")
	s := New(path, testLogger(t))

	_, err := s.RememberPair("123@lid", "5511999999999@s.whatsapp.net")
	require.NoError(t, err)

	s2 := New(path, testLogger(t))
	s2.ensureLoaded()
	assert.Equal(t, "5511999999999@s.whatsapp.net", s2.data.LIDToPN["123@lid"])
	assert.Equal(t, "123@lid", s2.data.PNToLID["5511999999999@s.whatsapp.net"])
}

func TestStore_ResolveCanonical(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "identity-alias-map.json"), testLogger(t))
	_, err := s.RememberPair("123@lid", "5511999999999@s.whatsapp.net")
	require.NoError(t, err)

	assert.Equal(t, "5511888888888@s.whatsapp.net", s.ResolveCanonical("123@lid", "5511888888888@s.whatsapp.net"),
		"a phone-JID fallback always wins")
	assert.Equal(t, "5511999999999@s.whatsapp.net", s.ResolveCanonical("123@lid", ""),
		"known @lid resolves via the map when there is no fallback")
	assert.Equal(t, "999@lid", s.ResolveCanonical("999@lid", ""), "unknown @lid passes through unchanged")
}

func TestStore_ResolveCanonical_Idempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "identity-alias-map.json"), testLogger(t))
	_, err := s.RememberPair("123@lid", "5511999999999@s.whatsapp.net")
	require.NoError(t, err)

	for _, jid := range []string{"123@lid", "999@lid", "5511999999999@s.whatsapp.net"} {
		once := s.ResolveCanonical(jid, "")
		twice := s.ResolveCanonical(once, "")
		assert.Equal(t, once, twice)
	}
}
