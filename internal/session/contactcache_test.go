package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContactCache_MissThenHit(t *testing.T) {
	c := NewContactCache()
	now := time.Now()

	_, ok := c.Get("5511999999999@s.whatsapp.net", now)
	assert.False(t, ok)

	c.Put("5511999999999@s.whatsapp.net", "contact-1", time.Minute, now)
	got, ok := c.Get("5511999999999@s.whatsapp.net", now)
	assert.True(t, ok)
	assert.Equal(t, "contact-1", got)
}

func TestContactCache_ExpiresOnRead(t *testing.T) {
	c := NewContactCache()
	now := time.Now()
	c.Put("jid", "contact-1", time.Minute, now)

	_, ok := c.Get("jid", now.Add(2*time.Minute))
	assert.False(t, ok, "entries past their TTL must read as a miss")
}

func TestContactCache_CachedNilOnFailure(t *testing.T) {
	c := NewContactCache()
	now := time.Now()
	c.Put("jid", "", time.Minute, now)

	got, ok := c.Get("jid", now)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestContactCache_SoftPurgeAtCapacity(t *testing.T) {
	c := NewContactCache()
	now := time.Now()

	for i := 0; i < ContactCacheMaxEntries+50; i++ {
		jid := time.Unix(int64(i), 0).Format(time.RFC3339Nano)
		c.Put(jid, "c", time.Duration(i)*time.Second, now)
	}
	assert.LessOrEqual(t, c.Len(), ContactCacheMaxEntries)
}
